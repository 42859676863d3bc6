package termimport

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ontologycore/internal/blob"
	"ontologycore/internal/events"
	"ontologycore/internal/infra/persistence/memory"
	"ontologycore/pkg/domain"
)

const goDump = `{"ontology":"go","label":"liver development","curie":"GO_0001889"}
{"ontology":"go","label":"liver morphogenesis","curie":"GO_0072576","description":"d"}

{"ontology":"go","label":"kidney development","curie":"GO_0001822","id":99}
`

type batchRecorder struct {
	batches [][]domain.Class
	err     error
}

func (b *batchRecorder) InsertClasses(_ context.Context, classes []domain.Class) error {
	if b.err != nil {
		return b.err
	}
	b.batches = append(b.batches, append([]domain.Class(nil), classes...))
	return nil
}

func put(t *testing.T, store blob.Store, key, body string) {
	t.Helper()
	if _, err := store.Put(context.Background(), key, strings.NewReader(body), "application/x-ndjson"); err != nil {
		t.Fatalf("put %s: %v", key, err)
	}
}

func TestImportBatchesAndPublishes(t *testing.T) {
	for _, store := range []blob.Store{blob.NewMemory(), blob.NewMockS3()} {
		put(t, store, "dumps/go.jsonl", goDump)
		put(t, store, "dumps/efo.jsonl", `{"ontology":"efo","label":"liver","curie":"EFO_0000887"}`)
		put(t, store, "elsewhere/bto.jsonl", `{"ontology":"bto","label":"liver cell","curie":"BTO_0000759"}`)
		rec := &batchRecorder{}
		bus := events.NewBus[domain.TermsImported]()
		var published []domain.TermsImported
		bus.Subscribe(func(_ context.Context, e domain.TermsImported) { published = append(published, e) })

		results, err := New(store, rec, WithBatchSize(2), WithBus(bus)).Import(context.Background(), "dumps/")
		if err != nil {
			t.Fatalf("%s: import: %v", store.Driver(), err)
		}
		if len(results) != 2 || results[0] != (Result{Object: "dumps/efo.jsonl", Count: 1}) || results[1] != (Result{Object: "dumps/go.jsonl", Count: 3}) {
			t.Fatalf("%s: unexpected results %+v", store.Driver(), results)
		}
		if len(rec.batches) != 3 || len(rec.batches[1]) != 2 || len(rec.batches[2]) != 1 {
			t.Fatalf("%s: unexpected batches %+v", store.Driver(), rec.batches)
		}
		if rec.batches[2][0].ID != 0 || rec.batches[1][1].Description != "d" {
			t.Fatalf("%s: unexpected class fields %+v", store.Driver(), rec.batches)
		}
		if len(published) != 2 || published[1].Object != "dumps/go.jsonl" || published[1].Count != 3 {
			t.Fatalf("%s: unexpected events %+v", store.Driver(), published)
		}
	}
}

func TestMalformedLineAbortsObject(t *testing.T) {
	store := blob.NewMemory()
	put(t, store, "a.jsonl", `{"ontology":"go","label":"x","curie":"GO_1"}`)
	put(t, store, "b.jsonl", "{\"ontology\":\"go\",\"label\":\"y\",\"curie\":\"GO_2\"}\n{not json}\n")
	classes := memory.NewClasses()
	results, err := New(store, classes).Import(context.Background(), "")
	var lineErr *LineError
	if !errors.As(err, &lineErr) || lineErr.Object != "b.jsonl" || lineErr.Line != 2 {
		t.Fatalf("expected line error for b.jsonl:2, got %v", err)
	}
	if len(results) != 1 || results[0].Object != "a.jsonl" {
		t.Fatalf("unexpected partial results %+v", results)
	}
	if classes.Len() != 1 {
		t.Fatalf("malformed object must not be written, have %d classes", classes.Len())
	}
}

func TestMissingFieldsAreRejected(t *testing.T) {
	store := blob.NewMemory()
	put(t, store, "bad.jsonl", `{"ontology":"go","label":" "}`)
	_, err := New(store, &batchRecorder{}).ImportObject(context.Background(), "bad.jsonl")
	if !errors.Is(err, ErrInvalidClass) || !strings.Contains(err.Error(), "curie, label") {
		t.Fatalf("expected missing field error, got %v", err)
	}
}

func TestWriterAndStoreFailures(t *testing.T) {
	store := blob.NewMemory()
	put(t, store, "go.jsonl", goDump)
	_, err := New(store, &batchRecorder{err: errors.New("disk full")}).ImportObject(context.Background(), "go.jsonl")
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected writer error, got %v", err)
	}
	_, err = New(store, &batchRecorder{}).ImportObject(context.Background(), "missing.jsonl")
	if !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
