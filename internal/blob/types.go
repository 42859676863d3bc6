// Package blob is the entry point to the dump file stores. Callers depend
// on Store; only this package imports the infra backends.
package blob

import (
	"ontologycore/internal/blob/core"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// Object describes a stored dump file.
	Object = core.Object
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory driver.
	DriverMemory = core.DriverMemory
)

// ErrNotFound is returned when opening a missing object.
var ErrNotFound = core.ErrNotFound
