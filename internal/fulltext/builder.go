// Package fulltext turns user typed search phrases into ranked boolean-mode
// fulltext queries.
//
// A single word becomes a required prefix term:
//
//	mu            ->  +mu*
//
// Several words become three alternatives joined by the relevance operator,
// most specific first:
//
//	Homo sapiens  ->  "Homo sapiens" < "Homo" < +Homo sapiens*
package fulltext

import "strings"

// MinLength is the shortest trimmed input worth sending to the store.
// Callers skip execution for anything shorter.
const MinLength = 2

// Relevance weights of the alternatives, highest first.
const (
	WeightPhrase  = 3
	WeightPartial = 2
	WeightBroad   = 1
)

// TooShort reports whether the trimmed input is below MinLength.
func TooShort(input string) bool {
	return len([]rune(strings.TrimSpace(input))) < MinLength
}

// Alternative is one ranked component of a Query.
type Alternative struct {
	Words []string
	// Phrase requires the words to occur adjacent and in order.
	Phrase bool
	// Required marks the first word as mandatory.
	Required bool
	// Prefix lets the last word match as a prefix.
	Prefix bool
	Weight int
}

// Text returns the words joined by single spaces.
func (a Alternative) Text() string { return strings.Join(a.Words, " ") }

func (a Alternative) boolean() string {
	switch {
	case a.Phrase:
		return `"` + a.Text() + `"`
	default:
		var b strings.Builder
		if a.Required {
			b.WriteByte('+')
		}
		b.WriteString(a.Text())
		if a.Prefix {
			b.WriteByte('*')
		}
		return b.String()
	}
}

// Query is a structured fulltext query, ordered by descending relevance.
type Query struct {
	Alternatives []Alternative
}

// Empty reports whether the query has nothing to match.
func (q Query) Empty() bool { return len(q.Alternatives) == 0 }

// BooleanMode renders the query in MariaDB/MySQL boolean mode syntax.
func (q Query) BooleanMode() string {
	parts := make([]string, len(q.Alternatives))
	for i, alt := range q.Alternatives {
		parts[i] = alt.boolean()
	}
	return strings.Join(parts, " < ")
}

func (q Query) String() string { return q.BooleanMode() }

// Build converts a search phrase into a Query. Leading and trailing
// whitespace is ignored and inner whitespace runs collapse to one space.
// Blank input yields an empty Query.
func Build(input string) Query {
	words := strings.Fields(input)
	switch len(words) {
	case 0:
		return Query{}
	case 1:
		return Query{Alternatives: []Alternative{
			{Words: words, Required: true, Prefix: true, Weight: WeightBroad},
		}}
	}
	return Query{Alternatives: []Alternative{
		{Words: words, Phrase: true, Weight: WeightPhrase},
		{Words: words[:len(words)-1], Phrase: true, Weight: WeightPartial},
		{Words: words, Required: true, Prefix: true, Weight: WeightBroad},
	}}
}

// BuildSearchTerm returns the boolean mode expression for input.
func BuildSearchTerm(input string) string {
	return Build(input).BooleanMode()
}
