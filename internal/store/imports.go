package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ImportStatus is the lifecycle state of a subscriber import job.
type ImportStatus string

// Import job statuses.
const (
	ImportPending ImportStatus = "pending"
	ImportRunning ImportStatus = "running"
	ImportDone    ImportStatus = "done"
	ImportFailed  ImportStatus = "failed"
)

// ImportJob is one CSV import. DryRun jobs validate and report without
// writing anything to the platform core.
type ImportJob struct {
	ID           uuid.UUID
	Filename     string
	DryRun       bool
	Status       ImportStatus
	TotalRows    int
	ImportedRows int
	FailedRows   int
	CreatedAt    time.Time
	FinishedAt   *time.Time
}

// ImportRowError records why one CSV row was not imported.
type ImportRowError struct {
	JobID     uuid.UUID
	RowNumber int
	Message   string
}

// ImportRepository persists import jobs and their row errors.
type ImportRepository interface {
	CreateJob(ctx context.Context, job ImportJob) error
	GetJob(ctx context.Context, id uuid.UUID) (ImportJob, error)
	ListJobs(ctx context.Context, limit, offset int) ([]ImportJob, error)

	MarkRunning(ctx context.Context, id uuid.UUID) error
	// AddCounts applies imported/failed deltas from one worker batch.
	AddCounts(ctx context.Context, id uuid.UUID, imported, failed int) error
	CompleteJob(ctx context.Context, id uuid.UUID, status ImportStatus, at time.Time) error

	AddRowErrors(ctx context.Context, errs []ImportRowError) error
	ListRowErrors(ctx context.Context, jobID uuid.UUID, limit, offset int) ([]ImportRowError, error)
}
