package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"ontologycore/internal/spec"
)

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS ontology_classes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ontology TEXT NOT NULL,
		ontology_version TEXT NOT NULL DEFAULT '',
		ontology_iri TEXT NOT NULL DEFAULT '',
		label TEXT NOT NULL,
		curie TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		class_iri TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ontology_classes_ontology ON ontology_classes (ontology)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_ontology_classes_curie ON ontology_classes (ontology, curie)`,
	`CREATE TABLE IF NOT EXISTS measurements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		measurement_code TEXT NOT NULL,
		measurement_name TEXT NOT NULL DEFAULT '',
		facility TEXT NOT NULL DEFAULT '',
		comment TEXT NOT NULL DEFAULT '',
		injection_volume INTEGER NOT NULL DEFAULT 0,
		registered_at TEXT NOT NULL,
		ms_device TEXT NOT NULL DEFAULT '{}',
		organisation TEXT NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS measurement_samples (
		measurement_id INTEGER NOT NULL REFERENCES measurements (id),
		sample_id TEXT NOT NULL,
		PRIMARY KEY (measurement_id, sample_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_measurement_samples_sample ON measurement_samples (sample_id)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS ontology_classes (
		id BIGSERIAL PRIMARY KEY,
		ontology TEXT NOT NULL,
		ontology_version TEXT NOT NULL DEFAULT '',
		ontology_iri TEXT NOT NULL DEFAULT '',
		label TEXT NOT NULL,
		curie TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		class_iri TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ontology_classes_ontology ON ontology_classes (ontology)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_ontology_classes_curie ON ontology_classes (ontology, curie)`,
	`CREATE INDEX IF NOT EXISTS idx_ontology_classes_label_fts ON ontology_classes USING GIN (to_tsvector('simple', label))`,
	`CREATE TABLE IF NOT EXISTS measurements (
		id BIGSERIAL PRIMARY KEY,
		measurement_code TEXT NOT NULL,
		measurement_name TEXT NOT NULL DEFAULT '',
		facility TEXT NOT NULL DEFAULT '',
		comment TEXT NOT NULL DEFAULT '',
		injection_volume BIGINT NOT NULL DEFAULT 0,
		registered_at TIMESTAMP NOT NULL,
		ms_device JSONB NOT NULL DEFAULT '{}',
		organisation JSONB NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS measurement_samples (
		measurement_id BIGINT NOT NULL REFERENCES measurements (id),
		sample_id TEXT NOT NULL,
		PRIMARY KEY (measurement_id, sample_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_measurement_samples_sample ON measurement_samples (sample_id)`,
}

var mariaDBSchema = []string{
	`CREATE TABLE IF NOT EXISTS ontology_classes (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		ontology VARCHAR(64) NOT NULL,
		ontology_version VARCHAR(255) NOT NULL DEFAULT '',
		ontology_iri VARCHAR(1024) NOT NULL DEFAULT '',
		label VARCHAR(1024) NOT NULL,
		curie VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		class_iri VARCHAR(1024) NOT NULL DEFAULT '',
		KEY idx_ontology_classes_ontology (ontology),
		FULLTEXT KEY ft_ontology_classes_label (label)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_ontology_classes_curie ON ontology_classes (ontology, curie)`,
	`CREATE TABLE IF NOT EXISTS measurements (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		measurement_code VARCHAR(255) NOT NULL,
		measurement_name VARCHAR(255) NOT NULL DEFAULT '',
		facility VARCHAR(255) NOT NULL DEFAULT '',
		comment TEXT NOT NULL,
		injection_volume BIGINT NOT NULL DEFAULT 0,
		registered_at DATETIME NOT NULL,
		ms_device JSON NOT NULL,
		organisation JSON NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS measurement_samples (
		measurement_id BIGINT NOT NULL,
		sample_id VARCHAR(255) NOT NULL,
		PRIMARY KEY (measurement_id, sample_id),
		KEY idx_measurement_samples_sample (sample_id),
		CONSTRAINT fk_measurement_samples_measurement FOREIGN KEY (measurement_id) REFERENCES measurements (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Schema returns the DDL statements for d.
func Schema(d spec.Dialect) ([]string, error) {
	switch d {
	case spec.SQLite:
		return sqliteSchema, nil
	case spec.Postgres:
		return postgresSchema, nil
	case spec.MariaDB:
		return mariaDBSchema, nil
	}
	return nil, fmt.Errorf("no schema for dialect %s", d.Name())
}

// Migrate applies the schema for d. Statements are idempotent.
func Migrate(ctx context.Context, db Execer, d spec.Dialect) error {
	stmts, err := Schema(d)
	if err != nil {
		return err
	}
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply %s schema statement %d: %w", d.Name(), i+1, err)
		}
	}
	return nil
}
