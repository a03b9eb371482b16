package importer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strataisp/console/internal/metrics"
	"github.com/strataisp/console/internal/platform"
	"github.com/strataisp/console/internal/progress"
	"github.com/strataisp/console/internal/store"
)

// batchTask pushes one batch of validated rows to the platform core.
type batchTask struct {
	svc   *Service
	jobID uuid.UUID
	rows  []indexedRow
	state *runState
}

func (t *batchTask) JobID() uuid.UUID { return t.jobID }

func (t *batchTask) Kind() string { return string(progress.KindImport) }

// Run pushes the batch. A core outage fails the whole batch and the job;
// individual row rejections (duplicate phone, dead plan) only fail their
// rows. The last batch to finish closes out the job.
func (t *batchTask) Run(ctx context.Context) error {
	defer func() {
		if t.state.remaining.Add(-1) == 0 {
			t.svc.complete(t.jobID, t.state)
		}
	}()

	if t.state.started.CompareAndSwap(false, true) {
		if err := t.svc.repo.MarkRunning(ctx, t.jobID); err != nil {
			t.svc.logger.Error("import running transition failed",
				zap.String("job_id", t.jobID.String()),
				zap.Error(err))
		}
		t.svc.progress.Emit(progress.Event{
			JobID: t.jobID,
			Kind:  progress.KindImport,
			Stage: progress.StageRunning,
			At:    t.svc.clock.Now(),
		})
	}

	batch := make([]platform.SubscriberUpsert, 0, len(t.rows))
	for _, row := range t.rows {
		batch = append(batch, row.upsert)
	}

	outcomes, err := t.svc.core.UpsertSubscribers(ctx, batch)
	if err != nil {
		t.state.failed.Store(true)
		t.recordBatchFailure(ctx, err)
		return fmt.Errorf("push import batch: %w", err)
	}

	imported := len(t.rows)
	var rowErrs []store.ImportRowError
	for _, outcome := range outcomes {
		if outcome.OK || outcome.Index < 0 || outcome.Index >= len(t.rows) {
			continue
		}
		imported--
		rowErrs = append(rowErrs, store.ImportRowError{
			JobID:     t.jobID,
			RowNumber: t.rows[outcome.Index].rowNumber,
			Message:   outcome.Message,
		})
	}

	if len(rowErrs) > 0 {
		if err := t.svc.repo.AddRowErrors(ctx, rowErrs); err != nil {
			t.svc.logger.Error("row error record failed",
				zap.String("job_id", t.jobID.String()),
				zap.Error(err))
		}
	}
	if err := t.svc.repo.AddCounts(ctx, t.jobID, imported, len(rowErrs)); err != nil {
		t.svc.logger.Error("import count update failed",
			zap.String("job_id", t.jobID.String()),
			zap.Error(err))
	}
	metrics.ObserveImportRows("imported", imported)
	metrics.ObserveImportRows("failed", len(rowErrs))

	t.svc.progress.Emit(progress.Event{
		JobID:      t.jobID,
		Kind:       progress.KindImport,
		Stage:      progress.StageRunning,
		RowsDone:   int64(imported),
		RowsFailed: int64(len(rowErrs)),
		At:         t.svc.clock.Now(),
	})
	return nil
}

// recordBatchFailure marks every row of an unpushable batch failed.
func (t *batchTask) recordBatchFailure(ctx context.Context, cause error) {
	rowErrs := make([]store.ImportRowError, 0, len(t.rows))
	for _, row := range t.rows {
		rowErrs = append(rowErrs, store.ImportRowError{
			JobID:     t.jobID,
			RowNumber: row.rowNumber,
			Message:   fmt.Sprintf("batch push failed: %v", cause),
		})
	}
	if err := t.svc.repo.AddRowErrors(ctx, rowErrs); err != nil {
		t.svc.logger.Error("row error record failed",
			zap.String("job_id", t.jobID.String()),
			zap.Error(err))
	}
	if err := t.svc.repo.AddCounts(ctx, t.jobID, 0, len(t.rows)); err != nil {
		t.svc.logger.Error("import count update failed",
			zap.String("job_id", t.jobID.String()),
			zap.Error(err))
	}
	metrics.ObserveImportRows("failed", len(t.rows))
	t.svc.progress.Emit(progress.Event{
		JobID:      t.jobID,
		Kind:       progress.KindImport,
		Stage:      progress.StageRunning,
		RowsFailed: int64(len(t.rows)),
		Message:    cause.Error(),
		At:         t.svc.clock.Now(),
	})
}
