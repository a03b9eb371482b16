package sinks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strataisp/console/internal/progress"
	"github.com/strataisp/console/internal/store"
)

// StoreSink persists progress deltas via a store.ProgressRepository. It
// collapses each batch to one upsert per job to reduce write
// amplification.
type StoreSink struct {
	repo   store.ProgressRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.ProgressRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume folds the batch per job and forwards one upsert each. It
// respects ctx deadlines and returns repository errors verbatim.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	deltas := make(map[uuid.UUID]*store.JobProgress)
	order := make([]uuid.UUID, 0, len(batch))

	for _, evt := range batch {
		delta := deltas[evt.JobID]
		if delta == nil {
			delta = &store.JobProgress{JobID: evt.JobID, Kind: string(evt.Kind)}
			deltas[evt.JobID] = delta
			order = append(order, evt.JobID)
		}
		delta.RowsDone += evt.RowsDone
		delta.RowsFailed += evt.RowsFailed
		// Later events in a batch supersede stage and message.
		if evt.At.After(delta.UpdatedAt) || delta.UpdatedAt.IsZero() {
			delta.Stage = string(evt.Stage)
			delta.UpdatedAt = evt.At
		}
		if evt.Message != "" {
			delta.Message = evt.Message
		}
	}

	for _, jobID := range order {
		delta := deltas[jobID]
		if delta.UpdatedAt.IsZero() {
			delta.UpdatedAt = time.Now().UTC()
		}
		if err := s.repo.UpsertProgress(ctx, *delta); err != nil {
			return fmt.Errorf("upsert progress for %s: %w", jobID, err)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
