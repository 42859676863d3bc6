// Package lookup executes filtered, sorted and paginated queries for one
// entity against a backing store.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"ontologycore/internal/fulltext"
	"ontologycore/internal/observability"
	"ontologycore/internal/spec"
	"ontologycore/pkg/domain"
)

// ErrInvalidWindow is returned for a negative offset or limit.
var ErrInvalidWindow = errors.New("lookup: offset and limit must not be negative")

// Order sorts by a field.
type Order struct {
	Field      spec.Field
	Descending bool
}

// Rank orders results by fulltext relevance of Query against Field.
type Rank struct {
	Field spec.Field
	Query fulltext.Query
}

// Query is what a Store executes: membership, ranking, ordering and window.
type Query struct {
	Predicate spec.Predicate
	Rank      *Rank
	Order     []Order
	Offset    int
	Limit     int
}

// Store runs queries for records of type T.
type Store[T any] interface {
	Find(ctx context.Context, q Query) ([]T, error)
	Count(ctx context.Context, p spec.Predicate) (int, error)
}

// Entity describes the lookup rules for one record type.
type Entity[T any] struct {
	Type domain.EntityType
	// Key is the primary key, appended to every ordering so pages are stable.
	Key spec.Field
	// SortKeys is the allow-list of caller visible sort keys.
	SortKeys map[string]spec.Field
	// Predicate composes the membership condition for a filter.
	Predicate func(domain.Filter) spec.Predicate
	// Accept reports whether a filter is worth executing at all. Nil accepts all.
	Accept func(domain.Filter) bool
	// Rank optionally ranks rows for a filter when no sort is requested.
	Rank func(domain.Filter) *Rank
	// DefaultOrder is applied when no sort is requested.
	DefaultOrder []Order
}

// Option configures a Lookup.
type Option func(*observability.Options)

// WithLogger sets the logger.
func WithLogger(l observability.Logger) Option {
	return func(o *observability.Options) { o.Logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *observability.Options) { o.Metrics = m }
}

// WithTracer sets the tracer.
func WithTracer(t observability.Tracer) Option {
	return func(o *observability.Options) { o.Tracer = t }
}

// WithClock sets the clock used for latency measurement.
func WithClock(c observability.Clock) Option {
	return func(o *observability.Options) { o.Clock = c }
}

// Lookup serves pages and counts of T for caller filters.
type Lookup[T any] struct {
	entity Entity[T]
	store  Store[T]
	obs    observability.Options
}

// New returns a lookup for entity backed by store.
func New[T any](entity Entity[T], store Store[T], opts ...Option) *Lookup[T] {
	o := observability.Defaults()
	for _, opt := range opts {
		opt(&o)
	}
	return &Lookup[T]{entity: entity, store: store, obs: o.Normalize()}
}

// Entity returns the entity descriptor.
func (l *Lookup[T]) Entity() Entity[T] { return l.entity }

// Lookup returns the page [offset, offset+limit) of records matching f,
// ordered by sort. Unknown sort keys fail with *domain.SortKeyError before
// the store is queried.
func (l *Lookup[T]) Lookup(ctx context.Context, f domain.Filter, offset, limit int, sort ...domain.SortOrder) (domain.Page[T], error) {
	page := domain.Page[T]{Items: []T{}, Offset: offset, Limit: limit}
	orders, err := l.orders(sort)
	if err != nil {
		return page, err
	}
	if offset < 0 || limit < 0 {
		return page, ErrInvalidWindow
	}
	pred, ok := l.predicate(f)
	if !ok || limit == 0 {
		return page, nil
	}
	q := Query{Predicate: pred, Order: orders, Offset: offset, Limit: limit}
	if len(sort) == 0 && l.entity.Rank != nil {
		q.Rank = l.entity.Rank(f)
	}
	err = l.obs.Run(ctx, "lookup."+string(l.entity.Type), func(ctx context.Context) error {
		items, err := l.store.Find(ctx, q)
		if err != nil {
			return fmt.Errorf("find %s: %w", l.entity.Type, err)
		}
		page.Items = items
		return nil
	})
	return page, err
}

// Count returns the number of records matching f, independent of paging.
func (l *Lookup[T]) Count(ctx context.Context, f domain.Filter) (int, error) {
	pred, ok := l.predicate(f)
	if !ok {
		return 0, nil
	}
	var n int
	err := l.obs.Run(ctx, "count."+string(l.entity.Type), func(ctx context.Context) error {
		var err error
		n, err = l.store.Count(ctx, pred)
		if err != nil {
			return fmt.Errorf("count %s: %w", l.entity.Type, err)
		}
		return nil
	})
	return n, err
}

// predicate composes the membership predicate, reporting false when the
// result is known to be empty without asking the store.
func (l *Lookup[T]) predicate(f domain.Filter) (spec.Predicate, bool) {
	if l.entity.Accept != nil && !l.entity.Accept(f) {
		l.obs.Logger.Debug("lookup skipped", "entity", l.entity.Type, "reason", "filter not accepted")
		return nil, false
	}
	pred := spec.True()
	if l.entity.Predicate != nil {
		pred = l.entity.Predicate(f)
	}
	if spec.IsFalse(spec.Unwrap(pred)) {
		l.obs.Logger.Debug("lookup skipped", "entity", l.entity.Type, "reason", "empty scope")
		return nil, false
	}
	if err := spec.Validate(pred); err != nil {
		l.obs.Logger.Warn("predicate contains unsatisfiable leaves", "entity", l.entity.Type, "error", err)
	}
	return pred, true
}

func (l *Lookup[T]) orders(sort []domain.SortOrder) ([]Order, error) {
	if len(sort) == 0 {
		return l.withKey(slices.Clone(l.entity.DefaultOrder)), nil
	}
	var invalid []string
	orders := make([]Order, 0, len(sort))
	for _, s := range sort {
		f, ok := l.entity.SortKeys[s.Key]
		if !ok {
			invalid = append(invalid, s.Key)
			continue
		}
		orders = append(orders, Order{Field: f, Descending: s.Descending})
	}
	if len(invalid) > 0 {
		return nil, &domain.SortKeyError{Entity: l.entity.Type, Keys: invalid}
	}
	return l.withKey(orders), nil
}

func (l *Lookup[T]) withKey(orders []Order) []Order {
	key := l.entity.Key
	if key.Column == "" && key.Name == "" {
		return orders
	}
	for _, o := range orders {
		if o.Field == key {
			return orders
		}
	}
	return append(orders, Order{Field: key})
}
