package catalog_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"ontologycore/internal/catalog"
	"ontologycore/internal/infra/persistence/memory"
	"ontologycore/internal/lookup"
	"ontologycore/internal/spec"
	"ontologycore/pkg/domain"
)

func classLookup(t *testing.T) *lookup.Lookup[domain.Class] {
	t.Helper()
	classes := memory.NewClasses()
	err := classes.InsertClasses(context.Background(), []domain.Class{
		{Ontology: "go", Label: "liver development", Curie: "GO_0001889"},
		{Ontology: "go", Label: "liver morphogenesis", Curie: "GO_0072576"},
		{Ontology: "efo", Label: "liver", Curie: "EFO_0000887"},
		{Ontology: "bto", Label: "liver cell", Curie: "BTO_0000759"},
		{Ontology: "go", Label: "kidney development", Curie: "GO_0001822"},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return lookup.New(catalog.OntologyEntity(), classes)
}

func labels(classes []domain.Class) []string {
	out := make([]string, len(classes))
	for i, c := range classes {
		out[i] = c.Label
	}
	return out
}

func TestOntologyLookupScopesByOntology(t *testing.T) {
	l := classLookup(t)
	ctx := context.Background()
	page, err := l.Lookup(ctx, domain.NewFilter("liv", "go", "efo"), 0, 10)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	want := []string{"liver", "liver development", "liver morphogenesis"}
	if got := labels(page.Items); !slices.Equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	n, err := l.Count(ctx, domain.NewFilter("liv", "go", "efo"))
	if err != nil || n != 3 {
		t.Fatalf("expected count 3, got %d %v", n, err)
	}
}

func TestOntologyLookupRanksPhraseFirst(t *testing.T) {
	l := classLookup(t)
	page, err := l.Lookup(context.Background(), domain.NewFilter("liver morphogenesis", "go", "efo", "bto"), 0, 2)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if page.Len() != 2 || page.Items[0].Curie != "GO_0072576" {
		t.Fatalf("expected exact phrase first, got %v", labels(page.Items))
	}
}

func TestOntologyLookupShortTermAndSort(t *testing.T) {
	l := classLookup(t)
	ctx := context.Background()
	page, err := l.Lookup(ctx, domain.NewFilter("l", "go"), 0, 10)
	if err != nil || page.Len() != 0 {
		t.Fatalf("single character search should be empty, got %v %v", page.Items, err)
	}
	page, err = l.Lookup(ctx, domain.NewFilter("development", "go"), 0, 10, domain.Desc("curie"))
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got := labels(page.Items); !slices.Equal(got, []string{"liver development", "kidney development"}) {
		t.Fatalf("unexpected curie order %v", got)
	}
	_, err = l.Lookup(ctx, domain.NewFilter("liver", "go"), 0, 10, domain.Asc("nonexistentField"))
	if !errors.Is(err, domain.ErrInvalidSortKey) {
		t.Fatalf("expected sort key error, got %v", err)
	}
}

func measurementLookup(t *testing.T) *lookup.Lookup[domain.Measurement] {
	t.Helper()
	ms := memory.NewMeasurements()
	ctx := context.Background()
	seed := []struct {
		m       domain.Measurement
		samples []string
	}{
		{domain.Measurement{
			Code: "NGSQ001AE-1", Name: "liver run", Facility: "Core Facility", InjectionVolume: 150,
			RegisteredAt: time.Date(2024, 5, 1, 22, 30, 0, 0, time.UTC),
			Device:       domain.Reference{Label: "Orbitrap Exploris 480", OboID: "MS:1003028"},
			Organisation: domain.Reference{Label: "University of Tuebingen", IRI: "https://ror.org/03a1kwz48"},
		}, []string{"S1", "S2"}},
		{domain.Measurement{
			Code: "MSQ002", Facility: "Proteomics lab",
			RegisteredAt: time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC),
		}, []string{"S3"}},
		{domain.Measurement{
			Code: "NGSQ003", Comment: "pilot",
			RegisteredAt: time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC),
		}, []string{"S2"}},
	}
	for _, s := range seed {
		if err := ms.InsertMeasurement(ctx, s.m, s.samples); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return lookup.New(catalog.MeasurementEntity(), ms)
}

func codes(ms []domain.Measurement) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Code
	}
	return out
}

func TestMeasurementLookupMatchesAttributes(t *testing.T) {
	l := measurementLookup(t)
	ctx := context.Background()
	all := []string{"S1", "S2", "S3"}
	cases := []struct {
		name   string
		filter domain.Filter
		want   []string
	}{
		{"code", domain.NewFilter("ngsq", all...), []string{"NGSQ003", "NGSQ001AE-1"}},
		{"excluded", domain.NewFilter("ngsq", "S1", "S2").WithExcluded("S2"), []string{"NGSQ001AE-1"}},
		{"device label", domain.NewFilter("exploris", "S1"), []string{"NGSQ001AE-1"}},
		{"device curie", domain.NewFilter("ms:1003", "S2"), []string{"NGSQ001AE-1"}},
		{"organisation iri", domain.NewFilter("03a1kwz48", all...), []string{"NGSQ001AE-1"}},
		{"injection volume", domain.NewFilter("150", all...), []string{"NGSQ001AE-1"}},
		{"facility", domain.NewFilter("proteomics", all...), []string{"MSQ002"}},
		{"comment", domain.NewFilter("PILOT", all...), []string{"NGSQ003"}},
		{"client time", domain.NewFilter("2024-05-02 00:30", all...).AtClientTimeOffset(2 * 3_600_000), []string{"NGSQ001AE-1"}},
		{"utc time", domain.NewFilter("2024-05-02 00:30", all...), []string{}},
		{"pattern", domain.NewFilter("10.06.", all...).WithTimePattern("%d.%m.%Y"), []string{"MSQ002"}},
		{"blank", domain.NewFilter("", "S2"), []string{"NGSQ003", "NGSQ001AE-1"}},
		{"included samples", domain.NewFilter("", "S3").WithIncludedSamples("S1"), []string{"MSQ002", "NGSQ001AE-1"}},
		{"empty scope", domain.NewFilter("ngsq"), []string{}},
	}
	for _, tc := range cases {
		page, err := l.Lookup(ctx, tc.filter, 0, 10)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got := codes(page.Items); !slices.Equal(got, tc.want) {
			t.Errorf("%s: got %v want %v", tc.name, got, tc.want)
		}
		n, err := l.Count(ctx, tc.filter)
		if err != nil || n != len(tc.want) {
			t.Errorf("%s: count %d, %v, want %d", tc.name, n, err, len(tc.want))
		}
	}
}

func TestMeasurementLookupSortKeys(t *testing.T) {
	l := measurementLookup(t)
	ctx := context.Background()
	page, err := l.Lookup(ctx, domain.NewFilter("", "S1", "S2", "S3"), 0, 10, domain.MustSortOrders("facility:desc,measurementCode")...)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got := codes(page.Items); !slices.Equal(got, []string{"MSQ002", "NGSQ001AE-1", "NGSQ003"}) {
		t.Fatalf("unexpected order %v", got)
	}
	_, err = l.Lookup(ctx, domain.NewFilter("", "S1"), 0, 10, domain.Asc("comment"))
	var sk *domain.SortKeyError
	if !errors.As(err, &sk) || sk.Entity != domain.EntityMeasurement {
		t.Fatalf("comment is not sortable, got %v", err)
	}
}

func TestMeasurementPredicateIsDistinctJoin(t *testing.T) {
	p := catalog.MeasurementPredicate(domain.NewFilter("x", "S1"))
	if !spec.IsDistinct(p) || !slices.Equal(spec.Joins(p), []string{catalog.JoinSamples}) {
		t.Fatalf("expected distinct predicate over the sample join, got %s", spec.String(p))
	}
	if err := spec.Validate(p); err != nil {
		t.Fatalf("measurement predicate should be well typed: %v", err)
	}
	if !spec.IsFalse(spec.Unwrap(catalog.MeasurementPredicate(domain.NewFilter("x")))) {
		t.Fatalf("empty scope should simplify to false")
	}
}

func TestClassByCurieNotations(t *testing.T) {
	if got := catalog.NormalizeCurie(" NCBITaxon:9606 "); got != "NCBITaxon_9606" {
		t.Fatalf("unexpected normalized curie %q", got)
	}
	classes := memory.NewClasses()
	err := classes.InsertClasses(context.Background(), []domain.Class{
		{Ontology: "go", Label: "liver development", Curie: "GO_0001889"},
		{Ontology: "ncbitaxon", Label: "Homo sapiens", Curie: "NCBITaxon_9606"},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	cases := map[string]string{
		"GO:0001889":     "liver development",
		"go_0001889":     "liver development",
		"NCBITaxon:9606": "Homo sapiens",
		"GO:0000000":     "",
		"":               "",
	}
	for curie, want := range cases {
		items, err := classes.Find(context.Background(), lookup.Query{Predicate: catalog.ClassByCurie(curie), Limit: 2})
		if err != nil {
			t.Fatalf("%q: %v", curie, err)
		}
		got := ""
		if len(items) == 1 {
			got = items[0].Label
		}
		if len(items) > 1 || got != want {
			t.Errorf("%q: got %v want %q", curie, labels(items), want)
		}
	}
}
