// Package sqlstore implements lookup stores over database/sql, lowering
// predicates with the internal/spec dialects.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"ontologycore/internal/lookup"
	"ontologycore/internal/spec"
)

// relevanceColumn is the alias of the ranking expression in ranked selects.
const relevanceColumn = "relevance_score"

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// Mapping binds a record type to its tables.
type Mapping[T any] struct {
	// From is the root table with its alias, e.g. "ontology_classes c".
	From string
	// Key is the primary key, used for distinct counts.
	Key spec.Field
	// Columns is the select list read by Scan, in order.
	Columns []string
	// Joins maps join names used by fields to JOIN clauses.
	Joins map[string]string
	// Scan reads one row selected with Columns.
	Scan func(Scanner) (T, error)
}

// Table runs lookup queries against one mapping.
type Table[T any] struct {
	db      *sql.DB
	dialect spec.Dialect
	mapping Mapping[T]
}

// NewTable returns a table for mapping on db.
func NewTable[T any](db *sql.DB, dialect spec.Dialect, mapping Mapping[T]) *Table[T] {
	return &Table[T]{db: db, dialect: dialect, mapping: mapping}
}

// DB returns the underlying handle.
func (t *Table[T]) DB() *sql.DB { return t.db }

// Dialect returns the SQL dialect of the table.
func (t *Table[T]) Dialect() spec.Dialect { return t.dialect }

// Find implements lookup.Store.
func (t *Table[T]) Find(ctx context.Context, q lookup.Query) ([]T, error) {
	query, args, err := t.SelectSQL(q)
	if err != nil {
		return nil, err
	}
	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.mapping.From, err)
	}
	defer func() { _ = rows.Close() }()
	var scanner Scanner = rows
	if ranked(q) {
		scanner = &rankedRow{rows: rows}
	}
	out := make([]T, 0, q.Limit)
	for rows.Next() {
		item, err := t.mapping.Scan(scanner)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.mapping.From, err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", t.mapping.From, err)
	}
	return out, nil
}

// Count implements lookup.Store.
func (t *Table[T]) Count(ctx context.Context, p spec.Predicate) (int, error) {
	query, args, err := t.CountSQL(p)
	if err != nil {
		return 0, err
	}
	var n int
	if err := t.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", t.mapping.From, err)
	}
	return n, nil
}

// Distinct returns the sorted distinct non-empty values of f, which must
// be reachable without a join.
func (t *Table[T]) Distinct(ctx context.Context, f spec.Field) ([]string, error) {
	if f.Join != "" {
		return nil, fmt.Errorf("%s: distinct over joined field %s", t.mapping.From, f.Name)
	}
	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s <> '' ORDER BY %s", f.Column, t.mapping.From, f.Column, f.Column)
	rows, err := t.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("distinct %s: %w", f.Name, err)
	}
	defer func() { _ = rows.Close() }()
	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan distinct %s: %w", f.Name, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate distinct %s: %w", f.Name, err)
	}
	return out, nil
}

// SelectSQL renders the statement Find executes.
func (t *Table[T]) SelectSQL(q lookup.Query) (string, []any, error) {
	c := spec.NewCompiler(t.dialect)
	var b strings.Builder
	b.WriteString("SELECT ")
	if spec.IsDistinct(q.Predicate) {
		b.WriteString("DISTINCT ")
	}
	b.WriteString(strings.Join(t.mapping.Columns, ", "))
	if ranked(q) {
		fmt.Fprintf(&b, ", %s AS %s", c.Relevance(q.Rank.Field, q.Rank.Query), relevanceColumn)
	}
	if err := t.writeFrom(&b, c, q.Predicate); err != nil {
		return "", nil, err
	}
	var order []string
	if ranked(q) {
		order = append(order, relevanceColumn+" DESC")
	}
	for _, o := range q.Order {
		dir := "ASC"
		if o.Descending {
			dir = "DESC"
		}
		order = append(order, o.Field.Column+" "+dir)
	}
	if len(order) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(order, ", "))
	}
	fmt.Fprintf(&b, " LIMIT %d OFFSET %d", q.Limit, q.Offset)
	return b.String(), c.Args(), nil
}

// CountSQL renders the statement Count executes.
func (t *Table[T]) CountSQL(p spec.Predicate) (string, []any, error) {
	c := spec.NewCompiler(t.dialect)
	var b strings.Builder
	if spec.IsDistinct(p) {
		fmt.Fprintf(&b, "SELECT COUNT(DISTINCT %s)", t.mapping.Key.Column)
	} else {
		b.WriteString("SELECT COUNT(*)")
	}
	if err := t.writeFrom(&b, c, p); err != nil {
		return "", nil, err
	}
	return b.String(), c.Args(), nil
}

func (t *Table[T]) writeFrom(b *strings.Builder, c *spec.Compiler, p spec.Predicate) error {
	b.WriteString(" FROM ")
	b.WriteString(t.mapping.From)
	for _, name := range spec.Joins(p) {
		clause, ok := t.mapping.Joins[name]
		if !ok {
			return fmt.Errorf("%s: unknown join %q", t.mapping.From, name)
		}
		b.WriteString(" ")
		b.WriteString(clause)
	}
	b.WriteString(" WHERE ")
	b.WriteString(c.Where(p))
	return nil
}

func ranked(q lookup.Query) bool {
	return q.Rank != nil && !q.Rank.Query.Empty()
}

// rankedRow discards the trailing relevance column.
type rankedRow struct {
	rows *sql.Rows
}

func (r *rankedRow) Scan(dest ...any) error {
	var score any
	return r.rows.Scan(append(dest, &score)...)
}
