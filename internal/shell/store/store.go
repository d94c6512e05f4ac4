package store

import (
	"context"
	"time"
)

// =============================================================================
// Entities
// =============================================================================

// Run is one cleanup run of one project.
type Run struct {
	ID         string     // uuid assigned by the runner
	AccountID  string
	Project    string
	KeepID     string     // retained deployment id, empty when resolution failed
	Outcome    string     // completed | stalled | aborted
	Deleted    int
	Failed     int
	Sweeps     int
	DryRun     bool
	Error      string     // fatal error text, empty on clean runs
	StartedAt  time.Time
	FinishedAt *time.Time // nil while the run is in flight
}

// Deletion is one attempted deployment deletion within a run.
type Deletion struct {
	ID           int64 // assigned by the database
	RunID        string
	DeploymentID string
	Environment  string
	CreatedOn    string // origin timestamp of the deployment, may be empty
	Success      bool
	DeletedAt    time.Time
}

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for the sweep audit trail.
type Store interface {
	// Run lifecycle: created when a sweep starts, finished once with the
	// final totals and outcome.
	CreateRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, opts ListOptions) ([]Run, error)

	// Deletion records, appended as the loop works through batches.
	RecordDeletion(ctx context.Context, deletion *Deletion) error
	ListDeletionsByRun(ctx context.Context, runID string) ([]Deletion, error)

	// Lifecycle
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination options for run listings.
type ListOptions struct {
	Limit   int
	Offset  int
	Project string // filter to one project when set
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  50,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 50
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
