package fulltext

import (
	"strings"
	"unicode"
)

// Tokenize lower-cases text and splits it into letter/digit runs, the way a
// fulltext index does.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Score evaluates q against text in process, summing the weights of the
// matching alternatives. Zero means no match.
func (q Query) Score(text string) int {
	tokens := Tokenize(text)
	score := 0
	for _, alt := range q.Alternatives {
		if alt.matches(tokens) {
			score += alt.Weight
		}
	}
	return score
}

// Matches reports whether any alternative matches text.
func (q Query) Matches(text string) bool { return q.Score(text) > 0 }

func (a Alternative) matches(tokens []string) bool {
	words := Tokenize(a.Text())
	if len(words) == 0 {
		return false
	}
	if a.Phrase {
		return containsRun(tokens, words)
	}
	// Only the first word carries the required operator; the rest are
	// optional and do not affect membership.
	first := words[0]
	prefix := a.Prefix && len(words) == 1
	for _, tok := range tokens {
		if tok == first || (prefix && strings.HasPrefix(tok, first)) {
			return true
		}
	}
	return false
}

func containsRun(tokens, run []string) bool {
	for i := 0; i+len(run) <= len(tokens); i++ {
		match := true
		for j, w := range run {
			if tokens[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
