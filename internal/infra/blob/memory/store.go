// Package memory implements an in-memory blob Store.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"ontologycore/internal/blob/core"
)

type entry struct {
	obj  core.Object
	data []byte
}

// Store implements core.Store backed by process memory.
type Store struct {
	mu   sync.RWMutex
	objs map[string]entry
	now  func() time.Time
}

var _ core.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{objs: make(map[string]entry), now: func() time.Time { return time.Now().UTC() }}
}

// Driver implements core.Store.
func (s *Store) Driver() core.Driver { return core.DriverMemory }

// Put stores a copy of r's content under key.
func (s *Store) Put(_ context.Context, key string, r io.Reader, contentType string) (core.Object, error) {
	k, err := core.CleanKey(key)
	if err != nil {
		return core.Object{}, err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return core.Object{}, fmt.Errorf("read blob %s: %w", key, err)
	}
	obj := core.Object{Key: k, Size: int64(len(b)), ContentType: contentType, Modified: s.now()}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objs[k] = entry{obj: obj, data: b}
	return obj, nil
}

// Open returns a reader over a copy of key's content.
func (s *Store) Open(_ context.Context, key string) (io.ReadCloser, core.Object, error) {
	k, err := core.CleanKey(key)
	if err != nil {
		return nil, core.Object{}, err
	}
	s.mu.RLock()
	e, ok := s.objs[k]
	s.mu.RUnlock()
	if !ok {
		return nil, core.Object{}, fmt.Errorf("%w: %s", core.ErrNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(e.data))), e.obj, nil
}

// Delete removes key, reporting whether it existed.
func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objs[key]
	delete(s.objs, key)
	return ok, nil
}

// List returns the objects whose key starts with prefix.
func (s *Store) List(_ context.Context, prefix string) ([]core.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Object, 0, len(s.objs))
	for k, e := range s.objs {
		if strings.HasPrefix(k, prefix) {
			out = append(out, e.obj)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
