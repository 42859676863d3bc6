package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ontologycore/internal/blob/core"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestKeysStayBelowRoot(t *testing.T) {
	store := newTempStore(t)
	ctx := context.Background()
	for _, key := range []string{"", "  ", "/etc/passwd", "a/../../b", "../x", "dump.jsonl.meta"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), ""); err == nil {
			t.Errorf("expected %q to be rejected", key)
		}
	}
	obj, err := store.Put(ctx, "a/./b.jsonl", strings.NewReader("line\n"), "application/x-ndjson")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if obj.Key != "a/b.jsonl" || obj.ContentType != "application/x-ndjson" {
		t.Fatalf("unexpected object %+v", obj)
	}
	if _, err := os.Stat(filepath.Join(store.Root(), "a", "b.jsonl")); err != nil {
		t.Fatalf("expected cleaned path on disk: %v", err)
	}
}

func TestListSkipsSidecarsAndTempFiles(t *testing.T) {
	store := newTempStore(t)
	ctx := context.Background()
	if _, err := store.Put(ctx, "go.jsonl", strings.NewReader("{}\n"), "application/json"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := os.WriteFile(filepath.Join(store.Root(), ".tmp-123"), []byte("partial"), 0o644); err != nil {
		t.Fatalf("write temp: %v", err)
	}
	objs, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(objs) != 1 || objs[0].Key != "go.jsonl" || objs[0].ContentType != "application/json" {
		t.Fatalf("unexpected listing %+v", objs)
	}
}

func TestMissingAndCancelled(t *testing.T) {
	store := newTempStore(t)
	if _, _, err := store.Open(context.Background(), "nope.jsonl"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Put(ctx, "x.jsonl", strings.NewReader("x"), ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestNewDefaultsRoot(t *testing.T) {
	t.Chdir(t.TempDir())
	store, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if store.Root() != DefaultRoot || store.Driver() != core.DriverFilesystem {
		t.Fatalf("unexpected store %+v", store)
	}
}
