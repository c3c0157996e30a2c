package fixture

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
	badger "github.com/dgraph-io/badger/v4"
)

var prefixFixture = []byte("fixture/")

// BadgerConfig configures a BadgerStore.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in memory. Nothing survives Close.
	InMemory bool

	// Compress stores payloads zstd compressed.
	Compress bool

	// SyncWrites syncs every write to disk.
	SyncWrites bool
}

// BadgerStore keeps fixtures in a badger database.
type BadgerStore struct {
	db     *badger.DB
	config BadgerConfig
	closed atomic.Bool
}

// OpenBadger opens or creates the database described by cfg.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else if cfg.Path == "" {
		return nil, errors.New("badger fixture store needs a path or in-memory mode")
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "open badger")
	}
	logger.Debugf("opened badger fixture store (in memory: %t)", cfg.InMemory)
	return &BadgerStore{db: db, config: cfg}, nil
}

func fixtureKey(name string) []byte {
	return append(append([]byte{}, prefixFixture...), name...)
}

// Put implements Store.
func (s *BadgerStore) Put(f *Fixture) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := f.Validate(); err != nil {
		return err
	}
	data, err := Encode(f, s.config.Compress)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(fixtureKey(f.Name), data)
	})
}

// Get implements Store.
func (s *BadgerStore) Get(name string) (*Fixture, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(fixtureKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "%q", name)
	}
	return Decode(data)
}

// Names implements Store.
func (s *BadgerStore) Names() ([]string, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefixFixture
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefixFixture); it.ValidForPrefix(prefixFixture); it.Next() {
			names = append(names, string(it.Item().Key()[len(prefixFixture):]))
		}
		return nil
	})
	return names, err
}

// Delete implements Store.
func (s *BadgerStore) Delete(name string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.Update(func(txn *badger.Txn) error {
		key := fixtureKey(name)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return errors.Wrapf(ErrNotFound, "%q", name)
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// Close implements Store. Closing twice is a no-op.
func (s *BadgerStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}
