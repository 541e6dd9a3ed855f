/*
store.go - Persistence interface for booked collections

PURPOSE:
  A booked Collection is the unit handed from the tracker to reporting and
  to downstream summarisation. The PoolStore keeps runs (one pixel or one
  region each) and the report records computed from them.

APPEND-ONLY CONTRACT:
  Runs are written once. A collection is frozen before it is saved, so a
  stored run is never partial. Reports may be added for a run; saving a
  report for the same run again replaces it (reports are derived data).

IMPLEMENTATIONS:
  - carbon/store/memory.go: in-memory, for tests and the demo server
  - store/sqlite/sqlite.go: SQLite
*/
package carbon

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateRun is returned when a run id is saved twice.
var ErrDuplicateRun = errors.New("duplicate run id")

type RunKind string

const (
	RunPixel  RunKind = "pixel"
	RunRegion RunKind = "region"
)

// Run describes one booked unit of work.
type Run struct {
	ID        string
	Kind      RunKind
	Label     string
	PX, PY    int32
	Width     int
	Pools     int
	CreatedAt time.Time
}

// PoolStore persists booked collections and their reports.
type PoolStore interface {
	// SaveRun persists a frozen collection. Fails with ErrDuplicateRun.
	SaveRun(ctx context.Context, run Run, col *Collection) error

	// LoadRun returns the run and its collection. Fails with ErrRunNotFound.
	LoadRun(ctx context.Context, id string) (Run, *Collection, error)

	// ListRuns returns all runs, oldest first.
	ListRuns(ctx context.Context) ([]Run, error)

	// SaveReport stores the records computed for a run.
	SaveReport(ctx context.Context, runID string, records []Record) error

	// LoadReport returns the stored records of a run.
	LoadReport(ctx context.Context, runID string) ([]Record, error)
}
