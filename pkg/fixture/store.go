package fixture

import (
	"github.com/cockroachdb/errors"

	"github.com/fortiblox/X1-Harness/pkg/config"
)

// Store persists fixtures by name.
type Store interface {
	// Put stores f, replacing any fixture with the same name.
	Put(f *Fixture) error
	// Get returns the fixture stored under name.
	Get(name string) (*Fixture, error)
	// Names lists stored fixtures in byte order.
	Names() ([]string, error)
	// Delete removes the fixture stored under name.
	Delete(name string) error
	Close() error
}

// Open opens the store selected by cfg.
func Open(cfg config.FixtureConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendBolt:
		return OpenBolt(BoltConfig{Path: cfg.Path, Compress: cfg.Compress})
	case config.BackendBadger:
		return OpenBadger(BadgerConfig{Path: cfg.Path, InMemory: cfg.Path == "", Compress: cfg.Compress})
	default:
		return nil, errors.Newf("unknown fixture backend %q", cfg.Backend)
	}
}

// SaveAll stores every fixture, stopping at the first failure.
func SaveAll(s Store, fixtures ...*Fixture) error {
	for _, f := range fixtures {
		if err := s.Put(f); err != nil {
			return errors.Wrapf(err, "save %s", f.Name)
		}
	}
	return nil
}

// LoadAll returns every stored fixture in name order.
func LoadAll(s Store) ([]*Fixture, error) {
	names, err := s.Names()
	if err != nil {
		return nil, err
	}
	out := make([]*Fixture, 0, len(names))
	for _, name := range names {
		f, err := s.Get(name)
		if err != nil {
			return nil, errors.Wrapf(err, "load %s", name)
		}
		out = append(out, f)
	}
	return out, nil
}
