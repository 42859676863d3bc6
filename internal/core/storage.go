package core

import (
	"context"
	"fmt"

	"ontologycore/internal/config"
	"ontologycore/internal/infra/persistence/mariadb"
	"ontologycore/internal/infra/persistence/memory"
	"ontologycore/internal/infra/persistence/postgres"
	"ontologycore/internal/infra/persistence/sqlite"
	"ontologycore/internal/infra/persistence/sqlstore"
	"ontologycore/internal/lookup"
	"ontologycore/pkg/domain"
)

// ClassStore serves class lookups and accepts imported classes.
type ClassStore interface {
	lookup.Store[domain.Class]
	domain.ClassWriter
	Ontologies(ctx context.Context) ([]string, error)
}

// MeasurementStore serves measurement lookups and accepts registrations.
type MeasurementStore interface {
	lookup.Store[domain.Measurement]
	domain.MeasurementWriter
}

// Catalog is the backing store of the lookups.
type Catalog struct {
	Driver       config.StorageDriver
	Classes      ClassStore
	Measurements MeasurementStore
	close        func() error
}

// Close releases the underlying connection, if any.
func (c *Catalog) Close() error {
	if c == nil || c.close == nil {
		return nil
	}
	return c.close()
}

// NewMemoryCatalog returns an ephemeral in-process catalog.
func NewMemoryCatalog() *Catalog {
	return &Catalog{Driver: config.StorageMemory, Classes: memory.NewClasses(), Measurements: memory.NewMeasurements()}
}

// OpenCatalog selects the backend named by cfg.Driver. An empty driver
// selects sqlite.
func OpenCatalog(ctx context.Context, cfg config.StorageConfig) (*Catalog, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = config.StorageSQLite
	}
	var (
		sqlCatalog *sqlstore.Catalog
		err        error
	)
	switch driver {
	case config.StorageMemory:
		return NewMemoryCatalog(), nil
	case config.StorageSQLite:
		sqlCatalog, err = sqlite.Open(ctx, cfg.SQLitePath)
	case config.StoragePostgres:
		sqlCatalog, err = postgres.Open(ctx, cfg.PostgresDSN)
	case config.StorageMariaDB:
		sqlCatalog, err = mariadb.Open(ctx, cfg.MariaDBDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
	if err != nil {
		return nil, err
	}
	return &Catalog{
		Driver:       driver,
		Classes:      sqlCatalog.Classes,
		Measurements: sqlCatalog.Measurements,
		close:        sqlCatalog.Close,
	}, nil
}
