// Package memory provides in-memory lookup stores used for tests and
// ephemeral environments. Predicates are evaluated with spec.Eval.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"ontologycore/internal/lookup"
	"ontologycore/internal/spec"
)

// Table holds records of type T together with the values predicates are
// evaluated against.
type Table[T any] struct {
	mu    sync.RWMutex
	rows  []entry[T]
	byKey map[string]int
}

type entry[T any] struct {
	item   T
	values spec.Values
}

// NewTable returns an empty table.
func NewTable[T any]() *Table[T] { return &Table[T]{} }

// Insert appends a record.
func (t *Table[T]) Insert(item T, values spec.Values) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = append(t.rows, entry[T]{item: item, values: values})
}

// Put stores the record built for key, replacing the record previously
// put under the same key. build receives the replaced record, if any.
func (t *Table[T]) Put(key string, build func(old T, found bool) (T, spec.Values)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i, ok := t.byKey[key]; ok {
		item, values := build(t.rows[i].item, true)
		t.rows[i] = entry[T]{item: item, values: values}
		return
	}
	var zero T
	item, values := build(zero, false)
	if t.byKey == nil {
		t.byKey = make(map[string]int)
	}
	t.byKey[key] = len(t.rows)
	t.rows = append(t.rows, entry[T]{item: item, values: values})
}

// Len returns the number of stored records.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Find implements lookup.Store.
func (t *Table[T]) Find(ctx context.Context, q lookup.Query) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	type scored struct {
		entry[T]
		score int
	}
	t.mu.RLock()
	var matched []scored
	for _, e := range t.rows {
		if !spec.Eval(q.Predicate, e.values) {
			continue
		}
		s := scored{entry: e}
		if q.Rank != nil {
			s.score = q.Rank.Query.Score(text(e.values[q.Rank.Field.Name]))
		}
		matched = append(matched, s)
	}
	t.mu.RUnlock()

	slices.SortStableFunc(matched, func(a, b scored) int {
		if q.Rank != nil {
			if c := cmp.Compare(b.score, a.score); c != 0 {
				return c
			}
		}
		for _, o := range q.Order {
			c := compareValues(a.values[o.Field.Name], b.values[o.Field.Name])
			if o.Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})

	out := make([]T, 0, min(q.Limit, len(matched)))
	for i := q.Offset; i < len(matched) && len(out) < q.Limit; i++ {
		out = append(out, matched[i].item)
	}
	return out, nil
}

// Count implements lookup.Store.
func (t *Table[T]) Count(ctx context.Context, p spec.Predicate) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, e := range t.rows {
		if spec.Eval(p, e.values) {
			n++
		}
	}
	return n, nil
}

// Distinct returns the sorted distinct non-empty text values of f.
func (t *Table[T]) Distinct(ctx context.Context, f spec.Field) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.RLock()
	seen := make(map[string]struct{})
	for _, e := range t.rows {
		if v := text(e.values[f.Name]); v != "" {
			seen[v] = struct{}{}
		}
	}
	t.mu.RUnlock()
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	slices.Sort(out)
	return out, nil
}

// compareValues orders nil first, strings case-insensitively, and numbers
// and instants naturally.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			if c := strings.Compare(strings.ToLower(x), strings.ToLower(y)); c != 0 {
				return c
			}
			return strings.Compare(x, y)
		}
	case int64:
		if y, ok := b.(int64); ok {
			return cmp.Compare(x, y)
		}
	case int:
		if y, ok := b.(int); ok {
			return cmp.Compare(x, y)
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	}
	return strings.Compare(text(a), text(b))
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	}
	return fmt.Sprint(v)
}
