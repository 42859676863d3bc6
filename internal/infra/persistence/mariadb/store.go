// Package mariadb opens the MariaDB/MySQL catalog, whose boolean mode
// fulltext index serves the class label search.
package mariadb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"

	"ontologycore/internal/infra/persistence/sqlstore"
	"ontologycore/internal/spec"
)

// DefaultDSN is used when no DSN is configured.
const DefaultDSN = "ontologycore@tcp(localhost:3306)/ontologycore"

var (
	openDB = func(cfg *mysql.Config) (*sql.DB, error) {
		connector, err := mysql.NewConnector(cfg)
		if err != nil {
			return nil, err
		}
		return sql.OpenDB(connector), nil
	}
	openMu sync.Mutex
)

// Config parses dsn and forces the settings the catalog relies on: UTC
// timestamps decoded into time.Time.
func Config(dsn string) (*mysql.Config, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mariadb dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	cfg.Params["time_zone"] = "'+00:00'"
	return cfg, nil
}

// Open connects to dsn, verifies the connection and applies the catalog
// schema.
func Open(ctx context.Context, dsn string) (*sqlstore.Catalog, error) {
	cfg, err := Config(dsn)
	if err != nil {
		return nil, err
	}
	openMu.Lock()
	db, err := openDB(cfg)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open mariadb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mariadb: %w", err)
	}
	catalog, err := sqlstore.NewCatalog(ctx, db, spec.MariaDB)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return catalog, nil
}

// OverrideOpenDB swaps the connection factory for tests and returns a restore function.
func OverrideOpenDB(fn func(cfg *mysql.Config) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := openDB
	openDB = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		openDB = prev
	}
}
