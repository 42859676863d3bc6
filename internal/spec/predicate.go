// Package spec composes declarative query predicates over typed entity
// fields and lowers them either to an in-memory evaluation or to
// parameterized SQL for MariaDB, PostgreSQL and SQLite.
//
// Predicate is a closed sum type:
//
//	constant | contains | exact | in | clientTime | jsonPath | match
//	| and(...) | anyOf(...) | distinct(p)
//
// Leaves built from blank search text collapse to True, so an undefined
// filter degrades to "no filtering". The distinct node does not change
// truth values; it only asks the executing store to drop duplicate rows.
package spec

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"ontologycore/internal/fulltext"
)

// DefaultTimePattern formats client times as "2024-05-01 13:37".
const DefaultTimePattern = "%Y-%m-%d %H:%i"

// Predicate is a composable condition over an entity.
type Predicate interface {
	predicate()
}

type constant bool

type containsLeaf struct {
	field Field
	term  string
}

type exactLeaf struct {
	field Field
	value any
}

type inLeaf struct {
	field  Field
	values []any
}

type clientTimeLeaf struct {
	field   Field
	term    string
	offset  string
	pattern []dateToken
	raw     string
}

type jsonPathLeaf struct {
	field Field
	path  string
	term  string
}

type matchLeaf struct {
	field Field
	query fulltext.Query
}

type andNode struct{ parts []Predicate }

type orNode struct{ parts []Predicate }

type distinctNode struct{ inner Predicate }

func (constant) predicate()        {}
func (*containsLeaf) predicate()   {}
func (*exactLeaf) predicate()      {}
func (*inLeaf) predicate()         {}
func (*clientTimeLeaf) predicate() {}
func (*jsonPathLeaf) predicate()   {}
func (*matchLeaf) predicate()      {}
func (*andNode) predicate()        {}
func (*orNode) predicate()         {}
func (*distinctNode) predicate()   {}

// True matches every row.
func True() Predicate { return constant(true) }

// False matches no row.
func False() Predicate { return constant(false) }

// IsTrue reports whether p is the always-true predicate.
func IsTrue(p Predicate) bool {
	c, ok := p.(constant)
	return ok && bool(c)
}

// IsFalse reports whether p is the always-false predicate.
func IsFalse(p Predicate) bool {
	c, ok := p.(constant)
	return ok && !bool(c)
}

func normalizeTerm(term string) (string, bool) {
	t := strings.ToLower(strings.TrimSpace(term))
	return t, t != ""
}

// Contains matches rows whose field, coerced to text, contains term
// case-insensitively. Blank terms yield True.
func Contains(f Field, term string) Predicate {
	t, ok := normalizeTerm(term)
	if !ok {
		return True()
	}
	return &containsLeaf{field: f, term: t}
}

// ExactMatch matches rows whose field equals value.
func ExactMatch(f Field, value any) Predicate {
	return &exactLeaf{field: f, value: value}
}

// In matches rows whose field equals one of values. No values yields False.
func In[T any](f Field, values ...T) Predicate {
	if len(values) == 0 {
		return False()
	}
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return &inLeaf{field: f, values: vals}
}

// FormattedClientTimeContains converts the field's UTC instant to the fixed
// client offset, formats it with pattern (MariaDB DATE_FORMAT syntax, the
// default when empty) and matches term as Contains does. The field must be
// a timestamp; any other type never matches.
func FormattedClientTimeContains(f Field, term string, offsetMillis int, pattern string) Predicate {
	t, ok := normalizeTerm(term)
	if !ok {
		return True()
	}
	if pattern == "" {
		pattern = DefaultTimePattern
	}
	return &clientTimeLeaf{
		field:   f,
		term:    t,
		offset:  OffsetString(offsetMillis),
		pattern: parsePattern(pattern),
		raw:     pattern,
	}
}

// JSONPathContains matches rows whose JSON document holds, under path, a
// string value containing term case-insensitively.
func JSONPathContains(f Field, path, term string) Predicate {
	t, ok := normalizeTerm(term)
	if !ok {
		return True()
	}
	return &jsonPathLeaf{field: f, path: path, term: t}
}

// Matches runs the fulltext query q against a text field. An empty query
// yields True.
func Matches(f Field, q fulltext.Query) Predicate {
	if q.Empty() {
		return True()
	}
	return &matchLeaf{field: f, query: q}
}

// And is the conjunction of parts. True members are dropped; any False
// member makes the whole conjunction False.
func And(parts ...Predicate) Predicate {
	kept := make([]Predicate, 0, len(parts))
	for _, p := range parts {
		switch {
		case p == nil || IsTrue(p):
			continue
		case IsFalse(p):
			return False()
		}
		kept = append(kept, p)
	}
	switch len(kept) {
	case 0:
		return True()
	case 1:
		return kept[0]
	}
	return &andNode{parts: kept}
}

// AnyOf is the disjunction of parts. An empty disjunction is False.
func AnyOf(parts ...Predicate) Predicate {
	kept := make([]Predicate, 0, len(parts))
	for _, p := range parts {
		switch {
		case p == nil || IsFalse(p):
			continue
		case IsTrue(p):
			return True()
		}
		kept = append(kept, p)
	}
	switch len(kept) {
	case 0:
		return False()
	case 1:
		return kept[0]
	}
	return &orNode{parts: kept}
}

// Distinct marks the query as requiring duplicate-row elimination without
// changing p's truth value.
func Distinct(p Predicate) Predicate {
	if p == nil {
		p = True()
	}
	if d, ok := p.(*distinctNode); ok {
		return d
	}
	return &distinctNode{inner: p}
}

// Unwrap strips distinct markers, returning the predicate that decides
// membership.
func Unwrap(p Predicate) Predicate {
	for {
		d, ok := p.(*distinctNode)
		if !ok {
			return p
		}
		p = d.inner
	}
}

// IsDistinct reports whether any node in p requests distinct rows.
func IsDistinct(p Predicate) bool {
	found := false
	walk(p, func(n Predicate) {
		if _, ok := n.(*distinctNode); ok {
			found = true
		}
	})
	return found
}

// Joins returns the relation names referenced by fields in p, in first-use order.
func Joins(p Predicate) []string {
	var out []string
	walk(p, func(n Predicate) {
		if f, ok := leafField(n); ok && f.Join != "" && !slices.Contains(out, f.Join) {
			out = append(out, f.Join)
		}
	})
	return out
}

// Validate reports leaves whose field type is incompatible with the
// comparison and JSON paths that cannot be parsed. Such leaves evaluate to
// no match; Validate only surfaces them.
func Validate(p Predicate) error {
	var errs []error
	walk(p, func(n Predicate) {
		if err := checkLeaf(n); err != nil {
			errs = append(errs, err)
		}
		if j, ok := n.(*jsonPathLeaf); ok {
			if _, err := parseJSONPath(j.path); err != nil {
				errs = append(errs, fmt.Errorf("json path on field %s: %w", j.field.Name, err))
			}
		}
	})
	return errors.Join(errs...)
}

func checkLeaf(n Predicate) error {
	switch l := n.(type) {
	case *clientTimeLeaf:
		if l.field.Type != FieldTimestamp {
			return &FieldTypeError{Predicate: "formatted client time contains", Field: l.field, Want: []FieldType{FieldTimestamp}}
		}
	case *jsonPathLeaf:
		if l.field.Type != FieldJSON && l.field.Type != FieldText {
			return &FieldTypeError{Predicate: "json path contains", Field: l.field, Want: []FieldType{FieldJSON, FieldText}}
		}
	case *matchLeaf:
		if l.field.Type != FieldText {
			return &FieldTypeError{Predicate: "fulltext match", Field: l.field, Want: []FieldType{FieldText}}
		}
	}
	return nil
}

func leafField(n Predicate) (Field, bool) {
	switch l := n.(type) {
	case *containsLeaf:
		return l.field, true
	case *exactLeaf:
		return l.field, true
	case *inLeaf:
		return l.field, true
	case *clientTimeLeaf:
		return l.field, true
	case *jsonPathLeaf:
		return l.field, true
	case *matchLeaf:
		return l.field, true
	}
	return Field{}, false
}

func walk(p Predicate, fn func(Predicate)) {
	if p == nil {
		return
	}
	fn(p)
	switch n := p.(type) {
	case *andNode:
		for _, c := range n.parts {
			walk(c, fn)
		}
	case *orNode:
		for _, c := range n.parts {
			walk(c, fn)
		}
	case *distinctNode:
		walk(n.inner, fn)
	}
}

// String renders p for logs.
func String(p Predicate) string {
	switch n := p.(type) {
	case nil:
		return "<nil>"
	case constant:
		if n {
			return "TRUE"
		}
		return "FALSE"
	case *containsLeaf:
		return fmt.Sprintf("contains(%s, %q)", n.field, n.term)
	case *exactLeaf:
		return fmt.Sprintf("eq(%s, %v)", n.field, n.value)
	case *inLeaf:
		return fmt.Sprintf("in(%s, %v)", n.field, n.values)
	case *clientTimeLeaf:
		return fmt.Sprintf("clientTime(%s, %s, %q, %q)", n.field, n.offset, n.raw, n.term)
	case *jsonPathLeaf:
		return fmt.Sprintf("json(%s, %s, %q)", n.field, n.path, n.term)
	case *matchLeaf:
		return fmt.Sprintf("match(%s, %s)", n.field, n.query.BooleanMode())
	case *andNode:
		return "and(" + joinStrings(n.parts) + ")"
	case *orNode:
		return "anyOf(" + joinStrings(n.parts) + ")"
	case *distinctNode:
		return "distinct(" + String(n.inner) + ")"
	}
	return fmt.Sprintf("%T", p)
}

func joinStrings(parts []Predicate) string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = String(p)
	}
	return strings.Join(out, ", ")
}
