// Package fs implements the blob Store on a local directory. Each object
// is a file below the root with a JSON sidecar holding its content type.
package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ontologycore/internal/blob/core"
)

// DefaultRoot is used when no root directory is configured.
const DefaultRoot = "./dumps"

const metaSuffix = ".meta"

// Store implements core.Store using the local filesystem.
type Store struct {
	root string
}

var _ core.Store = (*Store)(nil)

// New returns a store rooted at root, creating the directory if needed.
func New(root string) (*Store, error) {
	if root == "" {
		root = DefaultRoot
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root %s: %w", root, err)
	}
	return &Store{root: root}, nil
}

// Driver implements core.Store.
func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

// Root returns the directory objects are stored under.
func (s *Store) Root() string { return s.root }

func (s *Store) pathFor(key string) (string, string, error) {
	k, err := core.CleanKey(key)
	if err != nil {
		return "", "", err
	}
	if strings.HasSuffix(k, metaSuffix) {
		return "", "", fmt.Errorf("blob: key %q uses the reserved %s suffix", key, metaSuffix)
	}
	return k, filepath.Join(s.root, filepath.FromSlash(k)), nil
}

type sidecar struct {
	ContentType string `json:"content_type,omitempty"`
}

// Put writes r to key through a temporary file renamed into place.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, contentType string) (core.Object, error) {
	if err := ctx.Err(); err != nil {
		return core.Object{}, err
	}
	key, dataPath, err := s.pathFor(key)
	if err != nil {
		return core.Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return core.Object{}, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dataPath), ".tmp-*")
	if err != nil {
		return core.Object{}, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return core.Object{}, fmt.Errorf("write blob %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return core.Object{}, err
	}
	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		return core.Object{}, err
	}
	meta, err := json.Marshal(sidecar{ContentType: contentType})
	if err != nil {
		return core.Object{}, err
	}
	if err := os.WriteFile(dataPath+metaSuffix, meta, 0o644); err != nil {
		return core.Object{}, err
	}
	return s.stat(key, dataPath)
}

// Open returns a reader for key.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, core.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.Object{}, err
	}
	key, dataPath, err := s.pathFor(key)
	if err != nil {
		return nil, core.Object{}, err
	}
	obj, err := s.stat(key, dataPath)
	if err != nil {
		return nil, core.Object{}, err
	}
	f, err := os.Open(dataPath)
	if err != nil {
		return nil, core.Object{}, err
	}
	return f, obj, nil
}

// Delete removes key and its sidecar, reporting whether it existed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, dataPath, err := s.pathFor(key)
	if err != nil {
		return false, err
	}
	if err := os.Remove(dataPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	_ = os.Remove(dataPath + metaSuffix)
	return true, nil
}

// List walks the root and returns the objects whose key starts with prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]core.Object, error) {
	out := []core.Object{}
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(p, metaSuffix) || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		obj, err := s.stat(key, p)
		if err != nil {
			return err
		}
		out = append(out, obj)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) stat(key, dataPath string) (core.Object, error) {
	fi, err := os.Stat(dataPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return core.Object{}, fmt.Errorf("%w: %s", core.ErrNotFound, key)
		}
		return core.Object{}, err
	}
	obj := core.Object{Key: key, Size: fi.Size(), Modified: fi.ModTime().UTC()}
	if b, err := os.ReadFile(dataPath + metaSuffix); err == nil {
		var meta sidecar
		if json.Unmarshal(b, &meta) == nil {
			obj.ContentType = meta.ContentType
		}
	}
	return obj, nil
}
