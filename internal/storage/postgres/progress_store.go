package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/strataisp/console/internal/store"
)

// ProgressStore implements store.ProgressRepository.
type ProgressStore struct {
	db DB
}

// NewProgressStore creates a new ProgressStore on the shared pool.
func NewProgressStore(db DB) *ProgressStore {
	return &ProgressStore{db: db}
}

// UpsertProgress inserts the job's row or folds the deltas into an
// existing one. Stage and message follow the most recent event; counters
// accumulate.
func (s *ProgressStore) UpsertProgress(ctx context.Context, p store.JobProgress) error {
	query := `
		INSERT INTO job_progress (job_id, kind, stage, rows_done, rows_failed, message, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (job_id) DO UPDATE SET
			stage = EXCLUDED.stage,
			rows_done = job_progress.rows_done + EXCLUDED.rows_done,
			rows_failed = job_progress.rows_failed + EXCLUDED.rows_failed,
			message = CASE WHEN EXCLUDED.message <> '' THEN EXCLUDED.message ELSE job_progress.message END,
			updated_at = GREATEST(job_progress.updated_at, EXCLUDED.updated_at);
	`
	_, err := s.db.Exec(ctx, query, p.JobID, p.Kind, p.Stage, p.RowsDone, p.RowsFailed, p.Message, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert job progress: %w", err)
	}
	return nil
}

// GetProgress loads a single job's progress.
func (s *ProgressStore) GetProgress(ctx context.Context, jobID uuid.UUID) (store.JobProgress, error) {
	query := `
		SELECT job_id, kind, stage, rows_done, rows_failed, message, updated_at
		FROM job_progress
		WHERE job_id = $1;
	`
	var p store.JobProgress
	err := s.db.QueryRow(ctx, query, jobID).Scan(
		&p.JobID, &p.Kind, &p.Stage, &p.RowsDone, &p.RowsFailed, &p.Message, &p.UpdatedAt,
	)
	if err != nil {
		return store.JobProgress{}, notFound(err, "get job progress")
	}
	return p, nil
}

// ListProgress returns rows filtered by optional kind, most recent first.
func (s *ProgressStore) ListProgress(ctx context.Context, kind *string, limit, offset int) ([]store.JobProgress, error) {
	query := `
		SELECT job_id, kind, stage, rows_done, rows_failed, message, updated_at
		FROM job_progress
		WHERE ($1::text IS NULL OR kind = $1)
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3;
	`
	rows, err := s.db.Query(ctx, query, kind, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list job progress: %w", err)
	}
	defer rows.Close()

	var out []store.JobProgress
	for rows.Next() {
		var p store.JobProgress
		err := rows.Scan(&p.JobID, &p.Kind, &p.Stage, &p.RowsDone, &p.RowsFailed, &p.Message, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan job progress: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
