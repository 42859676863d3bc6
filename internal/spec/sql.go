package spec

import (
	"fmt"
	"strings"

	"ontologycore/internal/fulltext"
)

// Dialect lowers predicates to one SQL flavour. Implementations live in
// this package: MariaDB, Postgres and SQLite.
type Dialect interface {
	// Name identifies the dialect ("mariadb", "postgres", "sqlite").
	Name() string
	// Value converts a Go value to the representation bound for this store.
	Value(v any) any

	placeholder(n int) string
	textExpr(column string) string
	lower(expr string) string
	likeEscape() string
	clientTime(c *Compiler, column, offset string, pattern []dateToken) string
	jsonContains(c *Compiler, column, path, like string) string
	fulltextMatch(c *Compiler, column string, q fulltext.Query) string
	fulltextScore(c *Compiler, column string, q fulltext.Query) string
}

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "mariadb", "mysql":
		return MariaDB, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return nil, fmt.Errorf("unknown sql dialect %q", name)
}

// Compiler accumulates bind arguments while fragments of one statement are
// lowered, so placeholders stay numbered in statement order.
type Compiler struct {
	dialect Dialect
	args    []any
}

// NewCompiler returns a compiler for d.
func NewCompiler(d Dialect) *Compiler { return &Compiler{dialect: d} }

// Dialect returns the target dialect.
func (c *Compiler) Dialect() Dialect { return c.dialect }

// Args returns the bind arguments collected so far.
func (c *Compiler) Args() []any { return c.args }

// Bind appends v and returns its placeholder.
func (c *Compiler) Bind(v any) string {
	c.args = append(c.args, c.dialect.Value(v))
	return c.dialect.placeholder(len(c.args))
}

// Where lowers p to a boolean SQL expression. Leaves with incompatible
// field types lower to a false condition.
func (c *Compiler) Where(p Predicate) string {
	switch n := p.(type) {
	case nil:
		return "1=1"
	case constant:
		if n {
			return "1=1"
		}
		return "1=0"
	case *andNode:
		return c.join(n.parts, " AND ")
	case *orNode:
		return c.join(n.parts, " OR ")
	case *distinctNode:
		return c.Where(n.inner)
	}
	if checkLeaf(p) != nil {
		return "1=0"
	}
	d := c.dialect
	switch l := p.(type) {
	case *containsLeaf:
		return fmt.Sprintf("%s LIKE %s%s", d.lower(d.textExpr(l.field.Column)), c.Bind(likePattern(l.term)), d.likeEscape())
	case *exactLeaf:
		return fmt.Sprintf("%s = %s", l.field.Column, c.Bind(l.value))
	case *inLeaf:
		phs := make([]string, len(l.values))
		for i, v := range l.values {
			phs[i] = c.Bind(v)
		}
		return fmt.Sprintf("%s IN (%s)", l.field.Column, strings.Join(phs, ", "))
	case *clientTimeLeaf:
		expr := d.clientTime(c, l.field.Column, l.offset, l.pattern)
		return fmt.Sprintf("%s LIKE %s%s", d.lower(expr), c.Bind(likePattern(l.term)), d.likeEscape())
	case *jsonPathLeaf:
		if _, err := parseJSONPath(l.path); err != nil {
			return "1=0"
		}
		return d.jsonContains(c, l.field.Column, l.path, likePattern(l.term))
	case *matchLeaf:
		return d.fulltextMatch(c, l.field.Column, l.query)
	}
	return "1=0"
}

// Relevance lowers the ranking score of q against f. Higher is better.
func (c *Compiler) Relevance(f Field, q fulltext.Query) string {
	if q.Empty() || f.Type != FieldText {
		return "0"
	}
	return c.dialect.fulltextScore(c, f.Column, q)
}

func (c *Compiler) join(parts []Predicate, sep string) string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = c.Where(p)
	}
	return "(" + strings.Join(out, sep) + ")"
}

// Compiled is a predicate lowered on its own.
type Compiled struct {
	Where    string
	Args     []any
	Distinct bool
	Joins    []string
}

// Compile lowers p with a fresh compiler.
func Compile(p Predicate, d Dialect) Compiled {
	c := NewCompiler(d)
	where := c.Where(p)
	return Compiled{Where: where, Args: c.Args(), Distinct: IsDistinct(p), Joins: Joins(p)}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern wraps an already normalized term for a LIKE comparison,
// escaping wildcard characters typed by users.
func likePattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}
