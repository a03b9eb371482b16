package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/strataisp/console/internal/store"
)

// ImportStore implements store.ImportRepository.
type ImportStore struct {
	db DB
}

// NewImportStore creates a new ImportStore on the shared pool.
func NewImportStore(db DB) *ImportStore {
	return &ImportStore{db: db}
}

const importColumns = `id, filename, dry_run, status, total_rows,
	imported_rows, failed_rows, created_at, finished_at`

// CreateJob inserts a new import job.
func (s *ImportStore) CreateJob(ctx context.Context, job store.ImportJob) error {
	query := `
		INSERT INTO import_jobs (id, filename, dry_run, status, total_rows, created_at)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err := s.db.Exec(ctx, query, job.ID, job.Filename, job.DryRun, job.Status, job.TotalRows, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert import job: %w", err)
	}
	return nil
}

// GetJob retrieves a single import job by its ID.
func (s *ImportStore) GetJob(ctx context.Context, id uuid.UUID) (store.ImportJob, error) {
	query := `SELECT ` + importColumns + ` FROM import_jobs WHERE id = $1;`
	var job store.ImportJob
	err := s.db.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.Filename, &job.DryRun, &job.Status, &job.TotalRows,
		&job.ImportedRows, &job.FailedRows, &job.CreatedAt, &job.FinishedAt,
	)
	if err != nil {
		return store.ImportJob{}, notFound(err, "get import job")
	}
	return job, nil
}

// ListJobs returns import jobs newest first.
func (s *ImportStore) ListJobs(ctx context.Context, limit, offset int) ([]store.ImportJob, error) {
	query := `
		SELECT ` + importColumns + ` FROM import_jobs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2;
	`
	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list import jobs: %w", err)
	}
	defer rows.Close()

	var jobs []store.ImportJob
	for rows.Next() {
		var job store.ImportJob
		err := rows.Scan(
			&job.ID, &job.Filename, &job.DryRun, &job.Status, &job.TotalRows,
			&job.ImportedRows, &job.FailedRows, &job.CreatedAt, &job.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan import job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// MarkRunning moves the job from pending to running.
func (s *ImportStore) MarkRunning(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE import_jobs SET status = $2 WHERE id = $1 AND status = $3;`
	res, err := s.db.Exec(ctx, query, id, store.ImportRunning, store.ImportPending)
	if err != nil {
		return fmt.Errorf("mark import running: %w", err)
	}
	if res.RowsAffected() == 0 {
		if _, err := s.GetJob(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: import job is not pending", store.ErrConflict)
	}
	return nil
}

// AddCounts applies imported/failed deltas from one worker batch.
func (s *ImportStore) AddCounts(ctx context.Context, id uuid.UUID, imported, failed int) error {
	query := `
		UPDATE import_jobs
		SET imported_rows = imported_rows + $2, failed_rows = failed_rows + $3
		WHERE id = $1;
	`
	res, err := s.db.Exec(ctx, query, id, imported, failed)
	if err != nil {
		return fmt.Errorf("add import counts: %w", err)
	}
	if res.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CompleteJob marks the job finished with the given status.
func (s *ImportStore) CompleteJob(ctx context.Context, id uuid.UUID, status store.ImportStatus, at time.Time) error {
	query := `UPDATE import_jobs SET status = $2, finished_at = $3 WHERE id = $1;`
	res, err := s.db.Exec(ctx, query, id, status, at)
	if err != nil {
		return fmt.Errorf("complete import job: %w", err)
	}
	if res.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AddRowErrors bulk-inserts row errors.
func (s *ImportStore) AddRowErrors(ctx context.Context, errs []store.ImportRowError) error {
	if len(errs) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(errs))
	for _, e := range errs {
		rows = append(rows, []any{e.JobID, e.RowNumber, e.Message})
	}
	_, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"import_row_errors"},
		[]string{"job_id", "row_number", "message"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("insert import row errors: %w", err)
	}
	return nil
}

// ListRowErrors returns a job's row errors in row order.
func (s *ImportStore) ListRowErrors(ctx context.Context, jobID uuid.UUID, limit, offset int) ([]store.ImportRowError, error) {
	query := `
		SELECT job_id, row_number, message
		FROM import_row_errors
		WHERE job_id = $1
		ORDER BY row_number
		LIMIT $2 OFFSET $3;
	`
	rows, err := s.db.Query(ctx, query, jobID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list import row errors: %w", err)
	}
	defer rows.Close()

	var errsOut []store.ImportRowError
	for rows.Next() {
		var e store.ImportRowError
		if err := rows.Scan(&e.JobID, &e.RowNumber, &e.Message); err != nil {
			return nil, fmt.Errorf("scan import row error: %w", err)
		}
		errsOut = append(errsOut, e)
	}
	return errsOut, rows.Err()
}
