package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JobProgress models the job_progress table for API responses. One row per
// job, updated in place as the hub's store sink flushes batches.
type JobProgress struct {
	// JobID is the logical job identifier shared with workers.
	JobID uuid.UUID
	// Kind is the job family, campaign or import.
	Kind string
	// Stage is the most recent stage label the job reported.
	Stage string
	// RowsDone accumulates successfully processed units.
	RowsDone int64
	// RowsFailed accumulates failed units.
	RowsFailed int64
	// Message optionally carries the job's last status text.
	Message string
	// UpdatedAt captures the timestamp of the most recent event applied.
	UpdatedAt time.Time
}

// ProgressRepository persists incremental job progress.
type ProgressRepository interface {
	// UpsertProgress inserts the row or applies the deltas and the newer
	// stage/message to an existing one.
	UpsertProgress(ctx context.Context, p JobProgress) error
	// GetProgress loads a single job's progress or returns ErrNotFound.
	GetProgress(ctx context.Context, jobID uuid.UUID) (JobProgress, error)
	// ListProgress returns rows filtered by optional kind plus limit/offset.
	ListProgress(ctx context.Context, kind *string, limit, offset int) ([]JobProgress, error)
}
