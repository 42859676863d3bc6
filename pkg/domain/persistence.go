package domain

import "context"

// ClassWriter is implemented by backing stores that accept imported
// ontology classes.
type ClassWriter interface {
	InsertClasses(ctx context.Context, classes []Class) error
}

// MeasurementWriter is implemented by backing stores that accept measurement
// registrations together with their sample links.
type MeasurementWriter interface {
	InsertMeasurement(ctx context.Context, m Measurement, sampleIDs []string) error
}
