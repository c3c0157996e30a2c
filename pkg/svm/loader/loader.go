// Package loader maps program ids to loaded programs.
//
// A program is registered with an opaque artifact. The Resolver turns the
// artifact into a program.Program; resolved programs are kept in an LRU
// cache and re-resolved from the stored artifact after eviction.
package loader

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru"

	"github.com/fortiblox/X1-Harness/internal/types"
	"github.com/fortiblox/X1-Harness/pkg/log"
	"github.com/fortiblox/X1-Harness/pkg/svm/program"
	"github.com/fortiblox/X1-Harness/pkg/svm/programs/cpitarget"
	"github.com/fortiblox/X1-Harness/pkg/svm/programs/primary"
)

var logger = log.NewLogger("loader")

// Loader errors.
var (
	ErrProgramNotFound  = errors.New("program not found")
	ErrUnknownArtifact  = errors.New("unknown program artifact")
	ErrReservedProgram  = errors.New("program id is reserved for a builtin")
	ErrInvalidCacheSize = errors.New("program cache size must be positive")
)

// DefaultCacheSize is the number of resolved programs kept in memory.
const DefaultCacheSize = 64

// Resolver turns an artifact into a program.
type Resolver interface {
	Resolve(artifact []byte) (program.Program, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(artifact []byte) (program.Program, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(artifact []byte) (program.Program, error) {
	return f(artifact)
}

// NamedResolver resolves artifacts that are program names.
type NamedResolver map[string]func() program.Program

// DefaultResolver knows the reference programs.
func DefaultResolver() NamedResolver {
	return NamedResolver{
		primary.ArtifactName:   func() program.Program { return primary.New() },
		cpitarget.ArtifactName: func() program.Program { return cpitarget.New() },
	}
}

// Resolve implements Resolver.
func (r NamedResolver) Resolve(artifact []byte) (program.Program, error) {
	ctor, ok := r[string(artifact)]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownArtifact, "%q", artifact)
	}
	return ctor(), nil
}

// Loader holds registered programs.
type Loader struct {
	mu        sync.RWMutex
	artifacts map[types.Pubkey][]byte
	resolver  Resolver
	cache     *lru.Cache
}

// NewLoader creates a loader backed by resolver with a cache of cacheSize
// programs.
func NewLoader(resolver Resolver, cacheSize int) (*Loader, error) {
	if cacheSize <= 0 {
		return nil, ErrInvalidCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "program cache")
	}
	return &Loader{
		artifacts: make(map[types.Pubkey][]byte),
		resolver:  resolver,
		cache:     cache,
	}, nil
}

// Register resolves artifact and makes it available under id. Registering
// an id again replaces the previous program.
func (l *Loader) Register(id types.Pubkey, artifact []byte) error {
	if types.IsBuiltinProgram(id) {
		return errors.Wrapf(ErrReservedProgram, "%s", id)
	}
	prog, err := l.resolver.Resolve(artifact)
	if err != nil {
		return errors.Wrapf(err, "register %s", id)
	}

	stored := make([]byte, len(artifact))
	copy(stored, artifact)

	l.mu.Lock()
	l.artifacts[id] = stored
	l.mu.Unlock()
	l.cache.Add(id, prog)

	logger.Debugf("registered program %s as %s", id, prog.Name())
	return nil
}

// Load returns the program registered under id.
func (l *Loader) Load(id types.Pubkey) (program.Program, error) {
	if v, ok := l.cache.Get(id); ok {
		return v.(program.Program), nil
	}

	l.mu.RLock()
	artifact, ok := l.artifacts[id]
	l.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrProgramNotFound, "%s", id)
	}

	prog, err := l.resolver.Resolve(artifact)
	if err != nil {
		return nil, errors.Wrapf(err, "reload %s", id)
	}
	l.cache.Add(id, prog)
	logger.Debugf("reloaded program %s after eviction", id)
	return prog, nil
}

// IsRegistered reports whether id has a registered program.
func (l *Loader) IsRegistered(id types.Pubkey) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.artifacts[id]
	return ok
}

// Artifact returns a copy of the artifact registered under id.
func (l *Loader) Artifact(id types.Pubkey) ([]byte, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	artifact, ok := l.artifacts[id]
	if !ok {
		return nil, false
	}
	return append([]byte{}, artifact...), true
}

// Programs returns the registered ids in byte order.
func (l *Loader) Programs() []types.Pubkey {
	l.mu.RLock()
	ids := make([]types.Pubkey, 0, len(l.artifacts))
	for id := range l.artifacts {
		ids = append(ids, id)
	}
	l.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i].Compare(ids[j]) < 0 })
	return ids
}

// Cached returns the number of resolved programs in the cache.
func (l *Loader) Cached() int {
	return l.cache.Len()
}

// ClearCache drops every resolved program. Registrations are kept.
func (l *Loader) ClearCache() {
	l.cache.Purge()
}
