/*
errors.go - Centralized error types for the carbon engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers wrap these with pixel/region context.

ERROR CATEGORIES:
  1. Data errors - a class missing from a parameter table, an unknown decay
     function, an invalid date. Fatal for the pixel or region being booked.
  2. Empty input - nothing left after windowing. Not a fault: the unit has
     no result and callers skip it.
  3. Store errors - run lookups.

POLICY:
  The tracker and aggregator return the first data error for a unit of work
  and never publish a partial collection. A batch driver logs and moves on to
  the next pixel. The reporter never fails on a well-formed collection.
*/
package carbon

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrClassNotFound is returned when a class id is absent from a parameter table.
	ErrClassNotFound = errors.New("class not found in parameter table")

	// ErrEmptyInput is returned when no segment or activity row survives windowing.
	ErrEmptyInput = errors.New("no input within analysis window")

	// ErrInvalidFunction is returned for a decay function name outside the closed set.
	ErrInvalidFunction = errors.New("invalid decay function")

	// ErrInvalidDate is returned for a DOY whose day part does not exist.
	ErrInvalidDate = errors.New("invalid day-of-year date")

	// ErrInvalidPeriod is returned when a report period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidPool is returned when loaded pools break collection invariants.
	ErrInvalidPool = errors.New("invalid pool collection")

	// ErrRunNotFound is returned by a PoolStore for an unknown run id.
	ErrRunNotFound = errors.New("run not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// LookupError names the table and class that could not be resolved.
type LookupError struct {
	Table string // "biomass" or "flux"
	Class ClassID
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("class %d not found in %s table", e.Class, e.Table)
}

func (e *LookupError) Unwrap() error { return ErrClassNotFound }

// InvalidFunctionError carries the rejected decay function name.
type InvalidFunctionError struct {
	Name string
}

func (e *InvalidFunctionError) Error() string {
	return fmt.Sprintf("unsupported decay function %q", e.Name)
}

func (e *InvalidFunctionError) Unwrap() error { return ErrInvalidFunction }

// UnitError attributes a failure to one pixel.
type UnitError struct {
	PX, PY int32
	Err    error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("pixel (%d,%d): %v", e.PX, e.PY, e.Err)
}

func (e *UnitError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsDataError returns true if the error comes from bad parameters or inputs.
// Such errors are not retried.
func IsDataError(err error) bool {
	return errors.Is(err, ErrClassNotFound) ||
		errors.Is(err, ErrInvalidFunction) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrInvalidPool)
}

// IsNotFound returns true if the error indicates a missing run.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}
