package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidSortKey reports a sort key outside the entity's allow-list.
	ErrInvalidSortKey = errors.New("invalid sort key")
	// ErrLookupFailed reports a failed call to the external terminology service.
	ErrLookupFailed = errors.New("terminology lookup failed")
	// ErrMeasurementCodeRequired rejects a measurement registered without a code.
	ErrMeasurementCodeRequired = errors.New("measurement code required")
)

// SortKeyError is returned before query execution when sort instructions
// reference keys the entity does not allow.
type SortKeyError struct {
	Entity EntityType
	Keys   []string
}

func (e *SortKeyError) Error() string {
	return fmt.Sprintf("invalid sort keys for %s: %s", e.Entity, strings.Join(e.Keys, ", "))
}

// Is reports whether target is ErrInvalidSortKey.
func (e *SortKeyError) Is(target error) bool { return target == ErrInvalidSortKey }

// LookupError wraps a transport or decoding failure of the terminology
// service. It is never produced for an empty result.
type LookupError struct {
	Op  string
	Key string
	Err error
}

func (e *LookupError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("terminology %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("terminology %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// Is reports whether target is ErrLookupFailed.
func (e *LookupError) Is(target error) bool { return target == ErrLookupFailed }
