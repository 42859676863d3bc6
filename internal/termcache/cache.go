// Package termcache keeps a small, capacity-bounded set of resolved
// terminology terms in process.
//
// Eviction is by creation time, not by last use: when the cache is full the
// entry that was cached first is replaced, however often it was read since.
// Cache is not safe for concurrent use; wrap it in Guarded for that.
package termcache

import (
	"time"

	"ontologycore/internal/observability"
	"ontologycore/pkg/domain"
)

// DefaultLimit is the capacity used by the terminology resolver when none is configured.
const DefaultLimit = 500

// Entry records when a term entered the cache.
type Entry struct {
	Term    domain.Term
	Created time.Time
	seq     uint64
}

// Option configures a Cache.
type Option func(*settings)

type settings struct {
	clock   observability.Clock
	onEvict func(domain.Term)
}

// WithClock overrides the creation timestamp source.
func WithClock(c observability.Clock) Option {
	return func(s *settings) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithEvictHook registers fn to be called with every evicted term. The hook
// runs while the cache is being modified and must not call back into it.
func WithEvictHook(fn func(domain.Term)) Option {
	return func(s *settings) { s.onEvict = fn }
}

// Cache holds at most limit distinct terms. terms and stats are parallel:
// stats[i] describes terms[i].
type Cache struct {
	limit   int
	terms   []domain.Term
	stats   []Entry
	nextSeq uint64
	clock   observability.Clock
	onEvict func(domain.Term)
}

// New returns an empty cache holding at most limit terms. It panics if
// limit is not positive.
func New(limit int, opts ...Option) *Cache {
	if limit <= 0 {
		panic("termcache: limit must be positive")
	}
	cfg := settings{clock: observability.SystemClock()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Cache{
		limit:   limit,
		terms:   make([]domain.Term, 0, limit),
		stats:   make([]Entry, 0, limit),
		clock:   cfg.clock,
		onEvict: cfg.onEvict,
	}
}

// Limit returns the capacity.
func (c *Cache) Limit() int { return c.limit }

// Len returns the number of cached terms.
func (c *Cache) Len() int { return len(c.terms) }

// Add caches term. Adding a term that is already cached is a no-op and
// keeps its original creation time. At capacity, the oldest entry is
// replaced in place by the new one.
func (c *Cache) Add(term domain.Term) {
	if c.contains(term) {
		return
	}
	entry := Entry{Term: term, Created: c.clock.Now(), seq: c.nextSeq}
	c.nextSeq++
	if len(c.terms) < c.limit {
		c.terms = append(c.terms, term)
		c.stats = append(c.stats, entry)
		return
	}
	i := c.oldest()
	evicted := c.terms[i]
	c.terms[i] = term
	c.stats[i] = entry
	if c.onEvict != nil {
		c.onEvict(evicted)
	}
}

// FindByKey returns the first cached term whose CURIE equals key.
func (c *Cache) FindByKey(key string) (domain.Term, bool) {
	for _, t := range c.terms {
		if t.Key() == key {
			return t, true
		}
	}
	return domain.Term{}, false
}

// Entries returns a copy of the entry statistics, in slot order.
func (c *Cache) Entries() []Entry {
	out := make([]Entry, len(c.stats))
	copy(out, c.stats)
	return out
}

func (c *Cache) contains(term domain.Term) bool {
	for _, t := range c.terms {
		if t == term {
			return true
		}
	}
	return false
}

// oldest returns the slot with the earliest creation time; equal times fall
// back to insertion order.
func (c *Cache) oldest() int {
	idx := 0
	for i := 1; i < len(c.stats); i++ {
		if c.stats[i].before(c.stats[idx]) {
			idx = i
		}
	}
	return idx
}

func (e Entry) before(other Entry) bool {
	if !e.Created.Equal(other.Created) {
		return e.Created.Before(other.Created)
	}
	return e.seq < other.seq
}
