package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"ontologycore/internal/catalog"
	"ontologycore/internal/spec"
	"ontologycore/pkg/domain"
)

// Compile-time contract assertions.
var (
	_ domain.ClassWriter       = (*Classes)(nil)
	_ domain.MeasurementWriter = (*Measurements)(nil)
)

var classColumns = []string{
	"c.id", "c.ontology", "c.ontology_version", "c.ontology_iri",
	"c.label", "c.curie", "c.description", "c.class_iri",
}

// ClassMapping maps domain.Class onto the ontology_classes table.
func ClassMapping() Mapping[domain.Class] {
	return Mapping[domain.Class]{
		From:    "ontology_classes c",
		Key:     catalog.ClassID,
		Columns: classColumns,
		Scan: func(s Scanner) (domain.Class, error) {
			var c domain.Class
			err := s.Scan(&c.ID, &c.Ontology, &c.OntologyVersion, &c.OntologyIRI,
				&c.Label, &c.Curie, &c.Description, &c.ClassIRI)
			return c, err
		},
	}
}

var measurementColumns = []string{
	"m.id", "m.measurement_code", "m.measurement_name", "m.facility", "m.comment",
	"m.injection_volume", "m.registered_at", "m.ms_device", "m.organisation",
}

// MeasurementMapping maps domain.Measurement onto the measurements table
// and its measurement_samples link.
func MeasurementMapping() Mapping[domain.Measurement] {
	return Mapping[domain.Measurement]{
		From:    "measurements m",
		Key:     catalog.MeasurementID,
		Columns: measurementColumns,
		Joins: map[string]string{
			catalog.JoinSamples: "JOIN measurement_samples ms ON ms.measurement_id = m.id",
		},
		Scan: func(s Scanner) (domain.Measurement, error) {
			var m domain.Measurement
			err := s.Scan(&m.ID, &m.Code, &m.Name, &m.Facility, &m.Comment, &m.InjectionVolume,
				utcTime{dest: &m.RegisteredAt}, jsonValue{dest: &m.Device}, jsonValue{dest: &m.Organisation})
			return m, err
		},
	}
}

// Classes is the SQL class table.
type Classes struct {
	*Table[domain.Class]
}

// NewClasses returns the class table on db.
func NewClasses(db *sql.DB, dialect spec.Dialect) *Classes {
	return &Classes{Table: NewTable(db, dialect, ClassMapping())}
}

// classInsertColumns are written by InsertClasses. classKey identifies a
// class; re-importing a class with the same key updates it in place.
var (
	classInsertColumns = []string{"ontology", "ontology_version", "ontology_iri", "label", "curie", "description", "class_iri"}
	classKey           = []string{"ontology", "curie"}
)

// InsertClasses implements domain.ClassWriter. IDs are assigned by the
// database; the batch is upserted in one transaction.
func (c *Classes) InsertClasses(ctx context.Context, classes []domain.Class) (retErr error) {
	if len(classes) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert classes: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, class := range classes {
		query, args := upsertSQL(c.dialect, "ontology_classes", classInsertColumns, classKey,
			class.Ontology, class.OntologyVersion, class.OntologyIRI, class.Label, class.Curie, class.Description, class.ClassIRI)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert class %s: %w", class.Curie, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit classes: %w", err)
	}
	return nil
}

// Ontologies returns the abbreviations of the ontologies holding classes.
func (c *Classes) Ontologies(ctx context.Context) ([]string, error) {
	return c.Distinct(ctx, catalog.ClassOntology)
}

// Measurements is the SQL measurement table.
type Measurements struct {
	*Table[domain.Measurement]
}

// NewMeasurements returns the measurement table on db.
func NewMeasurements(db *sql.DB, dialect spec.Dialect) *Measurements {
	return &Measurements{Table: NewTable(db, dialect, MeasurementMapping())}
}

// InsertMeasurement implements domain.MeasurementWriter.
func (m *Measurements) InsertMeasurement(ctx context.Context, measurement domain.Measurement, sampleIDs []string) (retErr error) {
	if measurement.Code == "" {
		return domain.ErrMeasurementCodeRequired
	}
	device, err := marshalJSON(measurement.Device)
	if err != nil {
		return fmt.Errorf("encode device: %w", err)
	}
	organisation, err := marshalJSON(measurement.Organisation)
	if err != nil {
		return fmt.Errorf("encode organisation: %w", err)
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert measurement: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	query, args := insertSQL(m.dialect, "measurements",
		[]string{"measurement_code", "measurement_name", "facility", "comment", "injection_volume", "registered_at", "ms_device", "organisation"},
		measurement.Code, measurement.Name, measurement.Facility, measurement.Comment, measurement.InjectionVolume,
		measurement.RegisteredAt, device, organisation)
	var id int64
	if m.dialect == spec.Postgres {
		if err := tx.QueryRowContext(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
			return fmt.Errorf("insert measurement %s: %w", measurement.Code, err)
		}
	} else {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("insert measurement %s: %w", measurement.Code, err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("measurement id: %w", err)
		}
	}
	for _, sample := range sampleIDs {
		query, args := insertSQL(m.dialect, "measurement_samples", []string{"measurement_id", "sample_id"}, id, sample)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("link sample %s: %w", sample, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit measurement: %w", err)
	}
	return nil
}

func insertSQL(d spec.Dialect, table string, columns []string, values ...any) (string, []any) {
	c := spec.NewCompiler(d)
	phs := make([]string, len(values))
	for i, v := range values {
		phs[i] = c.Bind(v)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), strings.Join(phs, ", ")), c.Args()
}

// upsertSQL is insertSQL updating the non-key columns when a row with the
// same key exists.
func upsertSQL(d spec.Dialect, table string, columns, key []string, values ...any) (string, []any) {
	query, args := insertSQL(d, table, columns, values...)
	sets := make([]string, 0, len(columns))
	for _, col := range columns {
		if slices.Contains(key, col) {
			continue
		}
		if d == spec.MariaDB {
			sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", col, col))
		} else {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", col, col))
		}
	}
	if d == spec.MariaDB {
		return query + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", "), args
	}
	return fmt.Sprintf("%s ON CONFLICT (%s) DO UPDATE SET %s", query, strings.Join(key, ", "), strings.Join(sets, ", ")), args
}

// Catalog bundles the lookup tables of one database.
type Catalog struct {
	DB           *sql.DB
	Dialect      spec.Dialect
	Classes      *Classes
	Measurements *Measurements
}

// NewCatalog migrates db and returns its tables.
func NewCatalog(ctx context.Context, db *sql.DB, dialect spec.Dialect) (*Catalog, error) {
	if err := Migrate(ctx, db, dialect); err != nil {
		return nil, err
	}
	return &Catalog{
		DB:           db,
		Dialect:      dialect,
		Classes:      NewClasses(db, dialect),
		Measurements: NewMeasurements(db, dialect),
	}, nil
}

// Close closes the database handle.
func (c *Catalog) Close() error { return c.DB.Close() }
