package fulltext

import (
	"strings"
	"testing"
)

func TestBuildSingleWordIsRequiredPrefix(t *testing.T) {
	got := BuildSearchTerm("mu")
	if got != "+mu*" {
		t.Fatalf("expected +mu*, got %q", got)
	}
	if strings.Contains(got, `"`) {
		t.Fatalf("single word must never be quoted: %q", got)
	}
}

func TestBuildMultiWordRanksPhraseFirst(t *testing.T) {
	got := BuildSearchTerm("Homo sapiens")
	want := `"Homo sapiens" < "Homo" < +Homo sapiens*`
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	full := strings.Index(got, `"Homo sapiens"`)
	partial := strings.Index(got, `"Homo"`)
	broad := strings.Index(got, "+Homo sapiens*")
	if !(full < partial && partial < broad) {
		t.Fatalf("alternatives out of relevance order in %q", got)
	}
	q := Build("Homo sapiens")
	for i := 1; i < len(q.Alternatives); i++ {
		if q.Alternatives[i-1].Weight <= q.Alternatives[i].Weight {
			t.Fatalf("weights must descend: %+v", q.Alternatives)
		}
	}
}

func TestBuildTrimsAndCollapsesWhitespace(t *testing.T) {
	if BuildSearchTerm(" Escherichia coli ") != BuildSearchTerm("Escherichia coli") {
		t.Fatalf("surrounding whitespace must not change the expression")
	}
	if got := BuildSearchTerm("Mus \t musculus   domesticus"); got != `"Mus musculus domesticus" < "Mus musculus" < +Mus musculus domesticus*` {
		t.Fatalf("unexpected expression %q", got)
	}
}

func TestBuildDeterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		if BuildSearchTerm("liver tissue") != BuildSearchTerm("liver tissue") {
			t.Fatalf("builder must be deterministic")
		}
	}
}

func TestBuildBlankIsEmpty(t *testing.T) {
	if q := Build("   "); !q.Empty() || q.BooleanMode() != "" {
		t.Fatalf("blank input should produce empty query, got %+v", q)
	}
}

func TestTooShort(t *testing.T) {
	cases := map[string]bool{"": true, " ": true, "a": true, " a ": true, "ab": false, "é": true, "éa": false}
	for in, want := range cases {
		if got := TooShort(in); got != want {
			t.Errorf("TooShort(%q) = %v want %v", in, got, want)
		}
	}
}

func TestScoreFollowsBooleanModeSemantics(t *testing.T) {
	single := Build("mu")
	if !single.Matches("Mus musculus") {
		t.Fatalf("prefix should match longer word")
	}
	if single.Matches("human") {
		t.Fatalf("prefix must anchor at word start")
	}

	q := Build("Homo sapiens")
	exact := q.Score("Homo sapiens")
	partial := q.Score("Homo erectus")
	if exact != WeightPhrase+WeightPartial+WeightBroad {
		t.Fatalf("unexpected exact score %d", exact)
	}
	if partial != WeightPartial+WeightBroad {
		t.Fatalf("unexpected partial score %d", partial)
	}
	if q.Matches("Pan troglodytes") {
		t.Fatalf("unrelated label must not match")
	}
	if !(exact > partial) {
		t.Fatalf("phrase match must outrank partial match")
	}
}
