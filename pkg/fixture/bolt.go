package fixture

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	bolt "go.etcd.io/bbolt"
)

var bucketFixtures = []byte("fixtures")

// BoltConfig configures a BoltStore.
type BoltConfig struct {
	// Path is the database file. Its directory is created if needed.
	Path string

	// Compress stores payloads zstd compressed.
	Compress bool

	// NoSync disables fsync after each write.
	NoSync bool

	// ReadOnly opens the database in read-only mode.
	ReadOnly bool
}

// BoltStore keeps fixtures in a single bbolt file.
type BoltStore struct {
	db     *bolt.DB
	config BoltConfig

	mu     sync.RWMutex
	closed bool
}

// OpenBolt opens or creates the database at cfg.Path.
func OpenBolt(cfg BoltConfig) (*BoltStore, error) {
	if cfg.Path == "" {
		return nil, errors.New("bolt fixture store needs a path")
	}
	if !cfg.ReadOnly {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, errors.Wrap(err, "create directory")
		}
	}

	db, err := bolt.Open(cfg.Path, 0600, &bolt.Options{
		Timeout:  5 * time.Second,
		NoSync:   cfg.NoSync,
		ReadOnly: cfg.ReadOnly,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	if !cfg.ReadOnly {
		err = db.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(bucketFixtures)
			return err
		})
		if err != nil {
			db.Close()
			return nil, errors.Wrap(err, "create bucket")
		}
	}

	logger.Debugf("opened bolt fixture store at %s", cfg.Path)
	return &BoltStore{db: db, config: cfg}, nil
}

func (s *BoltStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Put implements Store.
func (s *BoltStore) Put(f *Fixture) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := f.Validate(); err != nil {
		return err
	}
	data, err := Encode(f, s.config.Compress)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFixtures).Put([]byte(f.Name), data)
	})
}

// Get implements Store.
func (s *BoltStore) Get(name string) (*Fixture, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFixtures)
		if b == nil {
			return ErrNotFound
		}
		v := b.Get([]byte(name))
		if v == nil {
			return ErrNotFound
		}
		// v is only valid inside the transaction.
		data = append([]byte{}, v...)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "%q", name)
	}
	return Decode(data)
}

// Names implements Store.
func (s *BoltStore) Names() ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFixtures)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return names, err
}

// Delete implements Store.
func (s *BoltStore) Delete(name string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFixtures)
		if b.Get([]byte(name)) == nil {
			return errors.Wrapf(ErrNotFound, "%q", name)
		}
		return b.Delete([]byte(name))
	})
}

// Close implements Store. Closing twice is a no-op.
func (s *BoltStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.db.Close()
}
