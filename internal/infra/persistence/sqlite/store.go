// Package sqlite opens the embedded SQLite catalog.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"ontologycore/internal/infra/persistence/sqlstore"
	"ontologycore/internal/spec"
)

// DefaultPath is used when no path is configured.
const DefaultPath = "ontologycore.db"

// Open opens (creating if needed) the SQLite database at path and applies
// the catalog schema. ":memory:" yields a private in-memory database.
func Open(ctx context.Context, path string) (*sqlstore.Catalog, error) {
	if path == "" {
		path = DefaultPath
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases
	// shared across statements.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	catalog, err := sqlstore.NewCatalog(ctx, db, spec.SQLite)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return catalog, nil
}
