package memory

import (
	"context"
	"slices"
	"sync/atomic"

	"ontologycore/internal/catalog"
	"ontologycore/internal/spec"
	"ontologycore/pkg/domain"
)

// Compile-time contract assertions.
var (
	_ domain.ClassWriter       = (*Classes)(nil)
	_ domain.MeasurementWriter = (*Measurements)(nil)
)

// Classes stores ontology classes.
type Classes struct {
	*Table[domain.Class]
	nextID atomic.Int64
}

// NewClasses returns an empty class table.
func NewClasses() *Classes { return &Classes{Table: NewTable[domain.Class]()} }

// InsertClasses implements domain.ClassWriter. A class replaces the stored
// class with the same ontology and CURIE and keeps its ID; new classes
// without an ID are assigned the next sequence value.
func (c *Classes) InsertClasses(ctx context.Context, classes []domain.Class) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, class := range classes {
		c.Put(class.Ontology+"\x00"+class.Curie, func(old domain.Class, found bool) (domain.Class, spec.Values) {
			switch {
			case found:
				class.ID = old.ID
			case class.ID == 0:
				class.ID = c.nextID.Add(1)
			}
			return class, catalog.ClassValues(class)
		})
	}
	return nil
}

// Ontologies returns the abbreviations of the ontologies holding classes.
func (c *Classes) Ontologies(ctx context.Context) ([]string, error) {
	return c.Distinct(ctx, catalog.ClassOntology)
}

// Measurements stores measurements and their sample links.
type Measurements struct {
	*Table[domain.Measurement]
	nextID atomic.Int64
}

// NewMeasurements returns an empty measurement table.
func NewMeasurements() *Measurements {
	return &Measurements{Table: NewTable[domain.Measurement]()}
}

// InsertMeasurement implements domain.MeasurementWriter.
func (m *Measurements) InsertMeasurement(ctx context.Context, measurement domain.Measurement, sampleIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if measurement.Code == "" {
		return domain.ErrMeasurementCodeRequired
	}
	if measurement.ID == 0 {
		measurement.ID = m.nextID.Add(1)
	}
	measurement.RegisteredAt = measurement.RegisteredAt.UTC()
	m.Insert(measurement, catalog.MeasurementValues(measurement, slices.Clone(sampleIDs)))
	return nil
}
