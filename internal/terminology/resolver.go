package terminology

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"ontologycore/internal/events"
	"ontologycore/internal/observability"
	"ontologycore/internal/termcache"
	"ontologycore/pkg/domain"
)

// Source fetches a term by exact obo id.
type Source interface {
	SearchByOboID(ctx context.Context, curie string) (domain.Term, bool, error)
}

var _ Source = (*Client)(nil)

// Resolver answers CURIE lookups from the guarded term cache and falls back
// to the remote source on a miss. The cache lock is never held while the
// source is called; concurrent misses for one CURIE share a single fetch,
// which a cancelled caller abandons without cancelling it for the others.
type Resolver struct {
	source  Source
	cache   *termcache.Guarded
	bus     *events.Bus[domain.TermResolved]
	metrics *observability.CacheMetrics
	obs     observability.Options
	group   singleflight.Group
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithBus publishes a TermResolved event for every resolution.
func WithBus(bus *events.Bus[domain.TermResolved]) ResolverOption {
	return func(r *Resolver) { r.bus = bus }
}

// WithCacheMetrics counts hits, misses and failures.
func WithCacheMetrics(m *observability.CacheMetrics) ResolverOption {
	return func(r *Resolver) { r.metrics = m }
}

// WithResolverObservability sets logger, metrics, tracer and clock.
func WithResolverObservability(o observability.Options) ResolverOption {
	return func(r *Resolver) { r.obs = o.Normalize() }
}

// NewResolver returns a resolver over source. A nil cache is replaced by
// one of termcache.DefaultLimit entries.
func NewResolver(source Source, cache *termcache.Guarded, opts ...ResolverOption) *Resolver {
	if cache == nil {
		cache = termcache.NewGuarded(termcache.DefaultLimit)
	}
	r := &Resolver{source: source, cache: cache, obs: observability.Defaults()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CacheLookup returns the cached term for curie, if any.
func (r *Resolver) CacheLookup(curie string) (domain.Term, bool) {
	return r.cache.FindByKey(OboID(curie))
}

// CacheInsert caches term.
func (r *Resolver) CacheInsert(term domain.Term) {
	r.cache.Add(term)
	if r.metrics != nil {
		r.metrics.Entries.Set(float64(r.cache.Len()))
	}
}

// CacheSize returns the number of cached terms.
func (r *Resolver) CacheSize() int { return r.cache.Len() }

// Resolve returns the term for curie. A term the service does not know is
// reported with found == false; neither that nor a failure is cached.
func (r *Resolver) Resolve(ctx context.Context, curie string) (domain.Term, bool, error) {
	key := OboID(curie)
	if key == "" {
		return domain.Term{}, false, nil
	}
	if term, ok := r.CacheLookup(key); ok {
		r.count(func(m *observability.CacheMetrics) { m.Hits.Inc() })
		r.publish(ctx, key, term, domain.SourceCache)
		return term, true, nil
	}
	r.count(func(m *observability.CacheMetrics) { m.Misses.Inc() })

	type result struct {
		term  domain.Term
		found bool
	}
	var res result
	err := r.obs.Run(ctx, "terminology.resolve", func(ctx context.Context) error {
		// The fetch is shared by every waiter, so it must not end with the
		// caller that started it. The client timeout bounds it.
		fetchCtx := context.WithoutCancel(ctx)
		ch := r.group.DoChan(key, func() (any, error) {
			term, found, err := r.source.SearchByOboID(fetchCtx, key)
			if err != nil {
				return nil, err
			}
			if found {
				r.CacheInsert(term)
			}
			return result{term: term, found: found}, nil
		})
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out := <-ch:
			if out.Err != nil {
				return out.Err
			}
			res = out.Val.(result)
			return nil
		}
	})
	if err != nil {
		r.count(func(m *observability.CacheMetrics) { m.Failures.Inc() })
		r.obs.Logger.Warn("resolve term", "curie", key, "error", err)
		return domain.Term{}, false, err
	}
	if !res.found {
		return domain.Term{}, false, nil
	}
	r.publish(ctx, key, res.term, domain.SourceRemote)
	return res.term, true, nil
}

func (r *Resolver) count(fn func(*observability.CacheMetrics)) {
	if r.metrics != nil {
		fn(r.metrics)
	}
}

func (r *Resolver) publish(ctx context.Context, curie string, term domain.Term, source domain.ResolutionSource) {
	r.bus.Publish(ctx, domain.TermResolved{
		ID:     uuid.New(),
		Curie:  curie,
		Term:   term,
		Source: source,
		At:     r.obs.Clock.Now(),
	})
}
