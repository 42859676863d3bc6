package termcache

import (
	"sync"

	"ontologycore/pkg/domain"
)

// Guarded serialises all access to a Cache behind one mutex. The critical
// sections are CPU only; callers must not hold results across network I/O
// expecting the cache to stay unchanged.
type Guarded struct {
	mu    sync.Mutex
	cache *Cache
}

// NewGuarded returns a guarded cache holding at most limit terms. It panics
// if limit is not positive.
func NewGuarded(limit int, opts ...Option) *Guarded {
	return &Guarded{cache: New(limit, opts...)}
}

// Add caches term under the lock.
func (g *Guarded) Add(term domain.Term) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache.Add(term)
}

// FindByKey looks up a term by CURIE under the lock.
func (g *Guarded) FindByKey(key string) (domain.Term, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cache.FindByKey(key)
}

// Len returns the number of cached terms.
func (g *Guarded) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cache.Len()
}

// Entries returns a copy of the entry statistics.
func (g *Guarded) Entries() []Entry {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cache.Entries()
}
