package spec

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Record exposes field values to the in-memory evaluator. Multi-valued
// fields (values reached through a join) are returned as slices; a leaf on
// such a field matches when any element matches.
type Record interface {
	Value(f Field) (any, bool)
}

// Values is a Record keyed by field name.
type Values map[string]any

// Value implements Record.
func (v Values) Value(f Field) (any, bool) {
	x, ok := v[f.Name]
	return x, ok
}

// Eval reports whether r satisfies p.
func Eval(p Predicate, r Record) bool {
	switch n := p.(type) {
	case nil:
		return true
	case constant:
		return bool(n)
	case *andNode:
		for _, c := range n.parts {
			if !Eval(c, r) {
				return false
			}
		}
		return true
	case *orNode:
		for _, c := range n.parts {
			if Eval(c, r) {
				return true
			}
		}
		return false
	case *distinctNode:
		return Eval(n.inner, r)
	}
	if checkLeaf(p) != nil {
		return false
	}
	f, _ := leafField(p)
	v, ok := r.Value(f)
	if !ok || v == nil {
		return false
	}
	return anyElement(v, func(x any) bool { return evalLeaf(p, x) })
}

func anyElement(v any, fn func(any) bool) bool {
	switch vs := v.(type) {
	case []string:
		for _, x := range vs {
			if fn(x) {
				return true
			}
		}
		return false
	case []int64:
		for _, x := range vs {
			if fn(x) {
				return true
			}
		}
		return false
	case []any:
		for _, x := range vs {
			if fn(x) {
				return true
			}
		}
		return false
	}
	return fn(v)
}

func evalLeaf(p Predicate, v any) bool {
	switch l := p.(type) {
	case *containsLeaf:
		return strings.Contains(strings.ToLower(asText(v)), l.term)
	case *exactLeaf:
		return equalValues(v, l.value)
	case *inLeaf:
		for _, want := range l.values {
			if equalValues(v, want) {
				return true
			}
		}
		return false
	case *clientTimeLeaf:
		t, ok := v.(time.Time)
		if !ok {
			return false
		}
		zone := time.FixedZone(l.offset, offsetMinutes(l.offset)*60)
		return strings.Contains(strings.ToLower(formatTokens(t.In(zone), l.pattern)), l.term)
	case *jsonPathLeaf:
		return jsonContains(v, l.path, l.term)
	case *matchLeaf:
		return l.query.Matches(asText(v))
	}
	return false
}

// asText mirrors the textual coercion of CAST(... AS CHAR).
func asText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case json.RawMessage:
		return string(x)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case time.Time:
		return x.UTC().Format("2006-01-02 15:04:05")
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

func equalValues(a, b any) bool {
	if ai, ok := asInt(a); ok {
		if bi, ok := asInt(b); ok {
			return ai == bi
		}
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Equal(bt)
		}
	}
	return reflect.DeepEqual(a, b)
}

func asInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	}
	return 0, false
}

func jsonContains(v any, path, term string) bool {
	var doc any
	switch x := v.(type) {
	case string:
		if err := json.Unmarshal([]byte(x), &doc); err != nil {
			return false
		}
	case []byte:
		if err := json.Unmarshal(x, &doc); err != nil {
			return false
		}
	case json.RawMessage:
		if err := json.Unmarshal(x, &doc); err != nil {
			return false
		}
	default:
		raw, err := json.Marshal(x)
		if err != nil || json.Unmarshal(raw, &doc) != nil {
			return false
		}
	}
	steps, err := parseJSONPath(path)
	if err != nil {
		return false
	}
	for _, node := range selectJSON(doc, steps) {
		if searchStrings(node, term) {
			return true
		}
	}
	return false
}

func searchStrings(node any, term string) bool {
	switch x := node.(type) {
	case string:
		return strings.Contains(strings.ToLower(x), term)
	case []any:
		for _, c := range x {
			if searchStrings(c, term) {
				return true
			}
		}
	case map[string]any:
		for _, c := range x {
			if searchStrings(c, term) {
				return true
			}
		}
	}
	return false
}

// jsonStep is one accessor of a JSON path: a member key, an array index,
// or a wildcard over members or elements.
type jsonStep struct {
	key      string
	index    int
	isIndex  bool
	wildcard bool
}

// parseJSONPath accepts the subset $, .key, ."key", .*, [n] and [*].
func parseJSONPath(path string) ([]jsonStep, error) {
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "$") {
		return nil, fmt.Errorf("path %q must start with $", path)
	}
	var steps []jsonStep
	rest := path[1:]
	for rest != "" {
		switch rest[0] {
		case '.':
			rest = rest[1:]
			switch {
			case strings.HasPrefix(rest, "*"):
				steps = append(steps, jsonStep{wildcard: true})
				rest = rest[1:]
			case strings.HasPrefix(rest, `"`):
				end := strings.Index(rest[1:], `"`)
				if end < 0 {
					return nil, fmt.Errorf("path %q has unterminated key", path)
				}
				steps = append(steps, jsonStep{key: rest[1 : end+1]})
				rest = rest[end+2:]
			default:
				end := strings.IndexAny(rest, ".[")
				if end < 0 {
					end = len(rest)
				}
				if end == 0 {
					return nil, fmt.Errorf("path %q has empty key", path)
				}
				steps = append(steps, jsonStep{key: rest[:end]})
				rest = rest[end:]
			}
		case '[':
			end := strings.Index(rest, "]")
			if end < 0 {
				return nil, fmt.Errorf("path %q has unterminated index", path)
			}
			inner := strings.TrimSpace(rest[1:end])
			if inner == "*" {
				steps = append(steps, jsonStep{wildcard: true, isIndex: true})
			} else {
				n, err := strconv.Atoi(inner)
				if err != nil || n < 0 {
					return nil, fmt.Errorf("path %q has invalid index %q", path, inner)
				}
				steps = append(steps, jsonStep{index: n, isIndex: true})
			}
			rest = rest[end+1:]
		default:
			return nil, fmt.Errorf("path %q has unexpected %q", path, rest[0])
		}
	}
	return steps, nil
}

func selectJSON(doc any, steps []jsonStep) []any {
	nodes := []any{doc}
	for _, st := range steps {
		var next []any
		for _, n := range nodes {
			switch x := n.(type) {
			case map[string]any:
				if st.isIndex {
					continue
				}
				if st.wildcard {
					for _, c := range x {
						next = append(next, c)
					}
				} else if c, ok := x[st.key]; ok {
					next = append(next, c)
				}
			case []any:
				if !st.isIndex {
					continue
				}
				if st.wildcard {
					next = append(next, x...)
				} else if st.index < len(x) {
					next = append(next, x[st.index])
				}
			}
		}
		nodes = next
	}
	return nodes
}
