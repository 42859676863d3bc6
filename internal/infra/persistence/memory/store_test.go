package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"ontologycore/internal/catalog"
	"ontologycore/internal/fulltext"
	"ontologycore/internal/lookup"
	"ontologycore/internal/spec"
	"ontologycore/pkg/domain"
)

func seedClasses(t *testing.T) *Classes {
	t.Helper()
	classes := NewClasses()
	err := classes.InsertClasses(context.Background(), []domain.Class{
		{Ontology: "go", Label: "liver development", Curie: "GO_0001889"},
		{Ontology: "go", Label: "Liver morphogenesis", Curie: "GO_0072576"},
		{Ontology: "efo", Label: "liver", Curie: "EFO_0000887"},
		{Ontology: "bto", Label: "liver cell", Curie: "BTO_0000759"},
	})
	if err != nil {
		t.Fatalf("insert classes: %v", err)
	}
	return classes
}

func TestClassesAssignIDs(t *testing.T) {
	classes := seedClasses(t)
	if classes.Len() != 4 {
		t.Fatalf("expected 4 classes, got %d", classes.Len())
	}
	got, err := classes.Find(context.Background(), lookup.Query{
		Predicate: spec.ExactMatch(catalog.ClassCurie, "EFO_0000887"),
		Limit:     1,
	})
	if err != nil || len(got) != 1 || got[0].ID != 3 {
		t.Fatalf("expected sequence id 3, got %+v %v", got, err)
	}
}

func TestFindOrdersAndPages(t *testing.T) {
	classes := seedClasses(t)
	q := lookup.Query{
		Predicate: spec.True(),
		Order:     []lookup.Order{{Field: catalog.ClassLabel}},
		Offset:    1,
		Limit:     2,
	}
	got, err := classes.Find(context.Background(), q)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 2 || got[0].Label != "liver cell" || got[1].Label != "liver development" {
		t.Fatalf("unexpected page %+v", got)
	}
	q.Order = []lookup.Order{{Field: catalog.ClassOntology, Descending: true}, {Field: catalog.ClassID}}
	q.Offset, q.Limit = 0, 10
	got, _ = classes.Find(context.Background(), q)
	if got[0].Ontology != "go" || got[0].ID != 1 || got[3].Ontology != "bto" {
		t.Fatalf("unexpected multi-key order %+v", got)
	}
	q.Offset = 8
	if got, _ := classes.Find(context.Background(), q); len(got) != 0 {
		t.Fatalf("offset beyond the end should be empty, got %d", len(got))
	}
}

func TestFindRanksByRelevance(t *testing.T) {
	classes := seedClasses(t)
	query := fulltext.Build("liver morphogenesis")
	got, err := classes.Find(context.Background(), lookup.Query{
		Predicate: spec.Matches(catalog.ClassLabel, query),
		Rank:      &lookup.Rank{Field: catalog.ClassLabel, Query: query},
		Order:     []lookup.Order{{Field: catalog.ClassLabel}},
		Limit:     10,
	})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 4 || got[0].Curie != "GO_0072576" || got[1].Label != "liver" {
		t.Fatalf("phrase match should rank first, then by label: %+v", got)
	}
}

func TestCountAndCancelledContext(t *testing.T) {
	classes := seedClasses(t)
	n, err := classes.Count(context.Background(), spec.In(catalog.ClassOntology, "go", "bto"))
	if err != nil || n != 3 {
		t.Fatalf("expected 3, got %d %v", n, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := classes.Find(ctx, lookup.Query{Predicate: spec.True(), Limit: 1}); err == nil {
		t.Fatalf("expected context error")
	}
	if err := classes.InsertClasses(ctx, nil); err == nil {
		t.Fatalf("expected context error on insert")
	}
}

func TestMeasurementsNormalizeAndValidate(t *testing.T) {
	ms := NewMeasurements()
	local := time.Date(2024, 5, 2, 0, 30, 0, 0, time.FixedZone("CEST", 7200))
	if err := ms.InsertMeasurement(context.Background(), domain.Measurement{Code: "NGS1", RegisteredAt: local}, []string{"S1"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := ms.InsertMeasurement(context.Background(), domain.Measurement{}, nil); !errors.Is(err, domain.ErrMeasurementCodeRequired) {
		t.Fatalf("expected code validation error, got %v", err)
	}
	got, _ := ms.Find(context.Background(), lookup.Query{Predicate: spec.In(catalog.MeasurementSample, "S1"), Limit: 1})
	if len(got) != 1 || got[0].RegisteredAt.Location() != time.UTC || got[0].ID != 1 {
		t.Fatalf("expected stored UTC measurement, got %+v", got)
	}
}

func TestCompareValues(t *testing.T) {
	cases := []struct {
		a, b any
		want int
	}{
		{nil, "a", -1},
		{"a", nil, 1},
		{"Beta", "alpha", 1},
		{"a", "A", 1},
		{int64(2), int64(10), -1},
		{time.Unix(5, 0), time.Unix(1, 0), 1},
		{3, 3, 0},
	}
	for _, tc := range cases {
		if got := compareValues(tc.a, tc.b); got != tc.want {
			t.Errorf("compareValues(%v, %v) = %d want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestReimportReplacesClassesAndKeepsIDs(t *testing.T) {
	classes := seedClasses(t)
	ctx := context.Background()
	err := classes.InsertClasses(ctx, []domain.Class{
		{Ontology: "efo", Label: "liver", Curie: "EFO_0000887", Description: "an organ"},
		{Ontology: "go", Label: "liver development", Curie: "GO_0001889"},
		{Ontology: "hp", Label: "Hepatomegaly", Curie: "EFO_0000887"},
	})
	if err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if classes.Len() != 5 {
		t.Fatalf("expected 4 seeded classes plus one new, got %d", classes.Len())
	}
	got, err := classes.Find(ctx, lookup.Query{
		Predicate: spec.And(spec.ExactMatch(catalog.ClassOntology, "efo"), spec.ExactMatch(catalog.ClassCurie, "EFO_0000887")),
		Limit:     5,
	})
	if err != nil || len(got) != 1 {
		t.Fatalf("expected one efo class, got %+v %v", got, err)
	}
	if got[0].ID != 3 || got[0].Description != "an organ" {
		t.Fatalf("expected replaced class with id 3, got %+v", got[0])
	}
	n, err := classes.Count(ctx, spec.ExactMatch(catalog.ClassCurie, "EFO_0000887"))
	if err != nil || n != 2 {
		t.Fatalf("same CURIE in another ontology is a distinct class, got %d %v", n, err)
	}
}

func TestOntologiesAreDistinctAndSorted(t *testing.T) {
	classes := seedClasses(t)
	got, err := classes.Ontologies(context.Background())
	if err != nil || len(got) != 3 || got[0] != "bto" || got[1] != "efo" || got[2] != "go" {
		t.Fatalf("unexpected ontologies %v %v", got, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := classes.Ontologies(ctx); err == nil {
		t.Fatalf("expected context error")
	}
}
