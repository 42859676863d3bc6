package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Filter bundles the caller supplied search text, the identifiers the caller
// may see, and the client presentation settings used for date matching. A
// Filter is immutable; the With* methods return modified copies.
type Filter struct {
	term         string
	scope        []string
	excluded     []string
	offsetMillis int
	timePattern  string
}

// NewFilter constructs a filter for the given search text and scope.
func NewFilter(term string, scope ...string) Filter {
	return Filter{term: term, scope: slices.Clone(scope)}
}

// Term returns the raw search text.
func (f Filter) Term() string { return f.term }

// Scope returns a copy of the scoping identifiers.
func (f Filter) Scope() []string { return slices.Clone(f.scope) }

// Excluded returns a copy of the denied identifiers.
func (f Filter) Excluded() []string { return slices.Clone(f.excluded) }

// EffectiveScope returns the scoping identifiers minus the excluded ones,
// preserving scope order and dropping duplicates.
func (f Filter) EffectiveScope() []string {
	out := make([]string, 0, len(f.scope))
	seen := make(map[string]struct{}, len(f.scope))
	for _, id := range f.scope {
		if slices.Contains(f.excluded, id) {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ClientOffsetMillis returns the client timezone offset in milliseconds.
func (f Filter) ClientOffsetMillis() int { return f.offsetMillis }

// TimePattern returns the optional date/time display pattern.
func (f Filter) TimePattern() string { return f.timePattern }

// WithTerm returns a copy with a different search text.
func (f Filter) WithTerm(term string) Filter {
	out := f.clone()
	out.term = term
	return out
}

// WithScope returns a copy whose scope is replaced by ids.
func (f Filter) WithScope(ids ...string) Filter {
	out := f.clone()
	out.scope = slices.Clone(ids)
	return out
}

// WithIncludedSamples returns a copy whose scope additionally contains ids.
func (f Filter) WithIncludedSamples(ids ...string) Filter {
	out := f.clone()
	out.scope = append(out.scope, ids...)
	return out
}

// WithExcluded returns a copy that additionally denies ids.
func (f Filter) WithExcluded(ids ...string) Filter {
	out := f.clone()
	out.excluded = append(out.excluded, ids...)
	return out
}

// AtClientTimeOffset returns a copy using the given client offset.
func (f Filter) AtClientTimeOffset(millis int) Filter {
	out := f.clone()
	out.offsetMillis = millis
	return out
}

// WithTimePattern returns a copy using the given date/time display pattern.
func (f Filter) WithTimePattern(pattern string) Filter {
	out := f.clone()
	out.timePattern = pattern
	return out
}

func (f Filter) clone() Filter {
	f.scope = slices.Clone(f.scope)
	f.excluded = slices.Clone(f.excluded)
	return f
}

// SortOrder is one sort instruction: a logical key and a direction.
type SortOrder struct {
	Key        string `json:"key"`
	Descending bool   `json:"descending,omitempty"`
}

// Asc sorts by key ascending.
func Asc(key string) SortOrder { return SortOrder{Key: key} }

// Desc sorts by key descending.
func Desc(key string) SortOrder { return SortOrder{Key: key, Descending: true} }

func (o SortOrder) String() string {
	if o.Descending {
		return o.Key + ":desc"
	}
	return o.Key + ":asc"
}

// ParseSortOrders parses "key[:asc|:desc]" instructions, e.g. from query
// parameters. Only the syntax is checked here; keys are validated by the
// lookup that receives them.
func ParseSortOrders(specs ...string) ([]SortOrder, error) {
	var out []SortOrder
	for _, raw := range specs {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			key, dir, _ := strings.Cut(part, ":")
			order := SortOrder{Key: strings.TrimSpace(key)}
			switch strings.ToLower(strings.TrimSpace(dir)) {
			case "", "asc":
			case "desc":
				order.Descending = true
			default:
				return nil, fmt.Errorf("invalid sort direction %q for key %q", dir, key)
			}
			if order.Key == "" {
				return nil, fmt.Errorf("empty sort key in %q", raw)
			}
			out = append(out, order)
		}
	}
	return out, nil
}

// MustSortOrders is ParseSortOrders for literals; it panics on malformed input.
func MustSortOrders(specs ...string) []SortOrder {
	out, err := ParseSortOrders(specs...)
	if err != nil {
		panic(err)
	}
	return out
}

// Page is a bounded window of lookup results.
type Page[T any] struct {
	Items  []T `json:"items"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// Len returns the number of items in the page.
func (p Page[T]) Len() int { return len(p.Items) }
