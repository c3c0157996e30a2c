package accounts

import (
	"github.com/cockroachdb/errors"

	"github.com/fortiblox/X1-Harness/internal/types"
)

// ErrAlreadyCommitted is returned when a layer is committed twice.
var ErrAlreadyCommitted = errors.New("store layer already committed")

// Entry is one resolved account reference.
//
// Present is false when the key was never supplied; Account then holds a
// default account so callers can still read it. Absence is checked
// explicitly rather than signalled with a nil pointer.
type Entry struct {
	Pubkey  types.Pubkey
	Account *Account
	Present bool
}

// Store is the account working set for one instruction call.
//
// The root store is seeded with the caller's accounts. Each nested
// instruction works in a child layer created with Fork: loads deep-copy from
// the parent, and Commit copies every loaded entry back in one step. A layer
// that is never committed leaves its parent untouched, which is how a failed
// instruction leaves no partial state behind.
type Store struct {
	parent    *Store
	entries   map[types.Pubkey]*Entry
	order     []types.Pubkey
	committed bool
}

// NewStore creates a root store seeded with deep copies of list. When a key
// appears more than once, the last occurrence wins.
func NewStore(list []KeyedAccount) *Store {
	s := &Store{
		entries: make(map[types.Pubkey]*Entry, len(list)),
	}
	for _, k := range list {
		acc := k.Account
		if acc == nil {
			acc = Default()
		}
		if _, ok := s.entries[k.Pubkey]; !ok {
			s.order = append(s.order, k.Pubkey)
		}
		s.entries[k.Pubkey] = &Entry{Pubkey: k.Pubkey, Account: acc.Clone(), Present: true}
	}
	return s
}

// Fork creates a child layer over s.
func (s *Store) Fork() *Store {
	return &Store{
		parent:  s,
		entries: make(map[types.Pubkey]*Entry),
	}
}

// Has reports whether key resolves to a supplied account in this layer or
// any parent.
func (s *Store) Has(key types.Pubkey) bool {
	e := s.lookup(key)
	return e != nil && e.Present
}

// Load resolves each key to an entry in this layer. Repeated keys resolve to
// the same entry, so aliased references observe each other's writes.
func (s *Store) Load(keys []types.Pubkey) []*Entry {
	out := make([]*Entry, len(keys))
	for i, key := range keys {
		out[i] = s.load(key)
	}
	return out
}

func (s *Store) load(key types.Pubkey) *Entry {
	if e, ok := s.entries[key]; ok {
		return e
	}

	var e *Entry
	if src := s.parent.lookupOrNil(key); src != nil {
		e = &Entry{Pubkey: key, Account: src.Account.Clone(), Present: src.Present}
	} else {
		e = &Entry{Pubkey: key, Account: Default(), Present: false}
	}
	s.entries[key] = e
	s.order = append(s.order, key)
	return e
}

func (s *Store) lookup(key types.Pubkey) *Entry {
	for layer := s; layer != nil; layer = layer.parent {
		if e, ok := layer.entries[key]; ok {
			return e
		}
	}
	return nil
}

func (s *Store) lookupOrNil(key types.Pubkey) *Entry {
	if s == nil {
		return nil
	}
	return s.lookup(key)
}

// Commit writes every entry loaded in this layer back into the parent. On
// the root store it only marks the layer committed.
func (s *Store) Commit() error {
	if s.committed {
		return ErrAlreadyCommitted
	}
	s.committed = true
	if s.parent == nil {
		return nil
	}
	for _, key := range s.order {
		e := s.entries[key]
		if dst, ok := s.parent.entries[key]; ok {
			// Copy in place: callers in the parent layer hold this pointer.
			*dst.Account = *e.Account.Clone()
			dst.Present = dst.Present || e.Present
			continue
		}
		s.parent.entries[key] = &Entry{Pubkey: key, Account: e.Account.Clone(), Present: e.Present}
		s.parent.order = append(s.parent.order, key)
	}
	return nil
}

// Snapshot returns deep copies of the current state of keys, in order.
// Keys that were never supplied come back as default accounts.
func (s *Store) Snapshot(keys []types.Pubkey) []KeyedAccount {
	out := make([]KeyedAccount, len(keys))
	for i, key := range keys {
		if e := s.lookup(key); e != nil {
			out[i] = KeyedAccount{Pubkey: key, Account: e.Account.Clone()}
			continue
		}
		out[i] = KeyedAccount{Pubkey: key, Account: Default()}
	}
	return out
}

// Keys returns the keys held by this layer in first-seen order.
func (s *Store) Keys() []types.Pubkey {
	out := make([]types.Pubkey, len(s.order))
	copy(out, s.order)
	return out
}

// Hash digests every supplied account visible from this layer.
func (s *Store) Hash() types.Hash {
	seen := make(map[types.Pubkey]bool)
	var list []KeyedAccount
	for layer := s; layer != nil; layer = layer.parent {
		for _, key := range layer.order {
			if seen[key] {
				continue
			}
			seen[key] = true
			if e := layer.entries[key]; e.Present {
				list = append(list, KeyedAccount{Pubkey: key, Account: e.Account})
			}
		}
	}
	return ComputeStateHash(list)
}
