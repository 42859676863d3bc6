package spec

import (
	"fmt"
	"strings"
	"time"

	"ontologycore/internal/fulltext"
)

var (
	// MariaDB lowers to MariaDB/MySQL, using boolean mode fulltext search,
	// CONVERT_TZ/DATE_FORMAT and JSON_SEARCH.
	MariaDB Dialect = mariaDB{}
	// Postgres lowers to PostgreSQL, using tsquery, to_char and jsonpath.
	Postgres Dialect = postgres{}
	// SQLite lowers to SQLite, emulating fulltext ranking with word-bounded
	// LIKE comparisons and JSON search with json_tree. Connections must
	// provide the SQLiteLowerFunc and SQLiteWordsFunc scalar functions.
	SQLite Dialect = sqlite{}
)

// Scalar functions the SQLite dialect calls. SQLite's own LOWER only folds
// ASCII and has no tokenizer.
const (
	SQLiteLowerFunc = "unicode_lower"
	SQLiteWordsFunc = "fulltext_words"
)

// FoldLower is the SQLiteLowerFunc implementation.
func FoldLower(text string) string { return strings.ToLower(text) }

// FoldWords is the SQLiteWordsFunc implementation: the fulltext tokens of
// text joined and surrounded by single spaces, so every word is bounded by
// a space on both sides.
func FoldWords(text string) string {
	words := fulltext.Tokenize(text)
	if len(words) == 0 {
		return " "
	}
	return " " + strings.Join(words, " ") + " "
}

type mariaDB struct{}

func (mariaDB) Name() string { return "mariadb" }

func (mariaDB) Value(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC()
	}
	return v
}

func (mariaDB) placeholder(int) string        { return "?" }
func (mariaDB) textExpr(column string) string { return "CAST(" + column + " AS CHAR)" }
func (mariaDB) lower(expr string) string      { return "LOWER(" + expr + ")" }
func (mariaDB) likeEscape() string            { return ` ESCAPE '\\'` }

func (mariaDB) clientTime(c *Compiler, column, offset string, pattern []dateToken) string {
	off := c.Bind(offset)
	return fmt.Sprintf("DATE_FORMAT(CONVERT_TZ(%s, '+00:00', %s), %s)", column, off, c.Bind(mariaDBPattern(pattern)))
}

func (mariaDB) jsonContains(c *Compiler, column, path, like string) string {
	term := c.Bind(like)
	return fmt.Sprintf("JSON_SEARCH(%s, 'one', %s, NULL, %s) IS NOT NULL", column, term, c.Bind(path))
}

func (mariaDB) fulltextMatch(c *Compiler, column string, q fulltext.Query) string {
	return fmt.Sprintf("MATCH(%s) AGAINST(%s IN BOOLEAN MODE)", column, c.Bind(q.BooleanMode()))
}

func (m mariaDB) fulltextScore(c *Compiler, column string, q fulltext.Query) string {
	return m.fulltextMatch(c, column, q)
}

func mariaDBPattern(tokens []dateToken) string {
	var b strings.Builder
	for _, tok := range tokens {
		if tok.spec == 0 {
			b.WriteString(strings.ReplaceAll(tok.literal, "%", "%%"))
			continue
		}
		b.WriteByte('%')
		b.WriteByte(tok.spec)
	}
	return b.String()
}

type postgres struct{}

func (postgres) Name() string { return "postgres" }

func (postgres) Value(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC()
	}
	return v
}

func (postgres) placeholder(n int) string      { return fmt.Sprintf("$%d", n) }
func (postgres) textExpr(column string) string { return "CAST(" + column + " AS TEXT)" }
func (postgres) lower(expr string) string      { return "LOWER(" + expr + ")" }
func (postgres) likeEscape() string            { return ` ESCAPE '\'` }

func (postgres) clientTime(c *Compiler, column, offset string, pattern []dateToken) string {
	off := c.Bind(offset)
	return fmt.Sprintf("to_char(%s + CAST(%s AS INTERVAL), %s)", column, off, c.Bind(postgresPattern(pattern)))
}

func (p postgres) jsonContains(c *Compiler, column, path, like string) string {
	jp := c.Bind(path + ".**")
	return fmt.Sprintf("EXISTS (SELECT 1 FROM jsonb_path_query(CAST(%s AS JSONB), CAST(%s AS JSONPATH)) AS j(v) "+
		"WHERE jsonb_typeof(j.v) = 'string' AND %s LIKE %s%s)", column, jp, p.lower("j.v #>> '{}'"), c.Bind(like), p.likeEscape())
}

func (postgres) fulltextMatch(c *Compiler, column string, q fulltext.Query) string {
	tsq := tsQuery(q)
	if tsq == "" {
		return "1=0"
	}
	return fmt.Sprintf("to_tsvector('simple', %s) @@ to_tsquery('simple', %s)", column, c.Bind(tsq))
}

func (postgres) fulltextScore(c *Compiler, column string, q fulltext.Query) string {
	tsq := tsQuery(q)
	if tsq == "" {
		return "0"
	}
	return fmt.Sprintf("ts_rank(to_tsvector('simple', %s), to_tsquery('simple', %s))", column, c.Bind(tsq))
}

// tsQuery renders q as a tsquery: phrases with <->, the broad alternative as
// its required first word, prefixed with :* for single words.
func tsQuery(q fulltext.Query) string {
	var alts []string
	for _, alt := range q.Alternatives {
		words := fulltext.Tokenize(alt.Text())
		if len(words) == 0 {
			continue
		}
		switch {
		case alt.Phrase:
			lex := make([]string, len(words))
			for i, w := range words {
				lex[i] = tsLexeme(w)
			}
			alts = append(alts, "("+strings.Join(lex, " <-> ")+")")
		case alt.Prefix && len(words) == 1:
			alts = append(alts, tsLexeme(words[0])+":*")
		default:
			alts = append(alts, tsLexeme(words[0]))
		}
	}
	return strings.Join(alts, " | ")
}

func tsLexeme(w string) string {
	return "'" + strings.ReplaceAll(w, "'", "''") + "'"
}

type sqlite struct{}

// sqliteTimeLayout is how timestamps are stored in SQLite TEXT columns.
const sqliteTimeLayout = "2006-01-02 15:04:05"

func (sqlite) Name() string { return "sqlite" }

func (sqlite) Value(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return v
}

func (sqlite) placeholder(int) string        { return "?" }
func (sqlite) textExpr(column string) string { return "CAST(" + column + " AS TEXT)" }
func (sqlite) lower(expr string) string      { return SQLiteLowerFunc + "(" + expr + ")" }
func (sqlite) likeEscape() string            { return ` ESCAPE '\'` }

func (sqlite) clientTime(c *Compiler, column, offset string, pattern []dateToken) string {
	format := c.Bind(sqlitePattern(pattern))
	return fmt.Sprintf("strftime(%s, %s, %s)", format, column, c.Bind(fmt.Sprintf("%+d minutes", offsetMinutes(offset))))
}

func (s sqlite) jsonContains(c *Compiler, column, path, like string) string {
	jp := c.Bind(path)
	return fmt.Sprintf("EXISTS (SELECT 1 FROM json_tree(%s, %s) AS jt WHERE jt.type = 'text' AND %s LIKE %s%s)",
		column, jp, s.lower("jt.value"), c.Bind(like), s.likeEscape())
}

func (s sqlite) fulltextMatch(c *Compiler, column string, q fulltext.Query) string {
	var conds []string
	for _, alt := range q.Alternatives {
		if cond, ok := s.alternative(c, column, alt); ok {
			conds = append(conds, cond)
		}
	}
	if len(conds) == 0 {
		return "1=0"
	}
	return "(" + strings.Join(conds, " OR ") + ")"
}

func (s sqlite) fulltextScore(c *Compiler, column string, q fulltext.Query) string {
	var terms []string
	for _, alt := range q.Alternatives {
		if cond, ok := s.alternative(c, column, alt); ok {
			terms = append(terms, fmt.Sprintf("(CASE WHEN %s THEN %d ELSE 0 END)", cond, alt.Weight))
		}
	}
	if len(terms) == 0 {
		return "0"
	}
	return "(" + strings.Join(terms, " + ") + ")"
}

// alternative matches words against the column's token string, as built by
// the SQLiteWordsFunc scalar function.
func (s sqlite) alternative(c *Compiler, column string, alt fulltext.Alternative) (string, bool) {
	words := fulltext.Tokenize(alt.Text())
	if len(words) == 0 {
		return "", false
	}
	padded := SQLiteWordsFunc + "(" + column + ")"
	switch {
	case alt.Phrase:
		return fmt.Sprintf("%s LIKE %s%s", padded, c.Bind("% "+likeEscaper.Replace(strings.Join(words, " "))+" %"), s.likeEscape()), true
	case alt.Prefix && len(words) == 1:
		return fmt.Sprintf("%s LIKE %s%s", padded, c.Bind("% "+likeEscaper.Replace(words[0])+"%"), s.likeEscape()), true
	default:
		return fmt.Sprintf("%s LIKE %s%s", padded, c.Bind("% "+likeEscaper.Replace(words[0])+" %"), s.likeEscape()), true
	}
}
