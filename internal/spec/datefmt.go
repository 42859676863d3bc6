package spec

import (
	"fmt"
	"strings"
	"time"
)

// OffsetString renders a client offset in milliseconds as ±HH:MM.
// Seconds are truncated.
func OffsetString(millis int) string {
	sign := '+'
	if millis < 0 {
		sign = '-'
		millis = -millis
	}
	minutes := millis / int(time.Minute/time.Millisecond)
	return fmt.Sprintf("%c%02d:%02d", sign, minutes/60, minutes%60)
}

// offsetMinutes returns the signed offset in whole minutes.
func offsetMinutes(offset string) int {
	var h, m int
	sign := 1
	if strings.HasPrefix(offset, "-") {
		sign = -1
	}
	_, _ = fmt.Sscanf(strings.TrimLeft(offset, "+-"), "%02d:%02d", &h, &m)
	return sign * (h*60 + m)
}

// dateToken is either a DATE_FORMAT specifier or a literal run.
type dateToken struct {
	spec    byte
	literal string
}

type dateSpec struct {
	layout   string // Go reference layout
	sqlite   string // strftime
	postgres string // to_char
}

var dateSpecs = map[byte]dateSpec{
	'Y': {"2006", "%Y", "YYYY"},
	'm': {"01", "%m", "MM"},
	'd': {"02", "%d", "DD"},
	'H': {"15", "%H", "HH24"},
	'i': {"04", "%M", "MI"},
	's': {"05", "%S", "SS"},
	'S': {"05", "%S", "SS"},
	'j': {"002", "%j", "DDD"},
	'T': {"15:04:05", "%H:%M:%S", "HH24:MI:SS"},
}

// parsePattern splits a DATE_FORMAT pattern. Unknown specifiers render as
// the bare character, matching MariaDB.
func parsePattern(pattern string) []dateToken {
	var tokens []dateToken
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			tokens = append(tokens, dateToken{literal: lit.String()})
			lit.Reset()
		}
	}
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c != '%' || i == len(pattern)-1 {
			lit.WriteByte(c)
			continue
		}
		i++
		next := pattern[i]
		if _, ok := dateSpecs[next]; ok {
			flush()
			tokens = append(tokens, dateToken{spec: next})
			continue
		}
		lit.WriteByte(next)
	}
	flush()
	return tokens
}

func formatTokens(t time.Time, tokens []dateToken) string {
	var b strings.Builder
	for _, tok := range tokens {
		if tok.spec == 0 {
			b.WriteString(tok.literal)
			continue
		}
		b.WriteString(t.Format(dateSpecs[tok.spec].layout))
	}
	return b.String()
}

func sqlitePattern(tokens []dateToken) string {
	var b strings.Builder
	for _, tok := range tokens {
		if tok.spec == 0 {
			b.WriteString(strings.ReplaceAll(tok.literal, "%", "%%"))
			continue
		}
		b.WriteString(dateSpecs[tok.spec].sqlite)
	}
	return b.String()
}

func postgresPattern(tokens []dateToken) string {
	var b strings.Builder
	for _, tok := range tokens {
		if tok.spec == 0 {
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(tok.literal, `"`, `\"`))
			b.WriteByte('"')
			continue
		}
		b.WriteString(dateSpecs[tok.spec].postgres)
	}
	return b.String()
}

// FormatClientTime renders instant at the given ±HH:MM offset using a
// DATE_FORMAT pattern, as the SQL lowerings do.
func FormatClientTime(instant time.Time, offset, pattern string) string {
	zone := time.FixedZone(offset, offsetMinutes(offset)*60)
	return formatTokens(instant.In(zone), parsePattern(pattern))
}
