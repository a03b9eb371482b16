package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/strataisp/console/internal/progress"
)

// LogSink emits structured logs for debugging job progress streams. It is
// useful during development or audits where a durable store is unavailable.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.logger.Info("job progress",
			zap.String("job_id", evt.JobID.String()),
			zap.String("kind", string(evt.Kind)),
			zap.String("stage", string(evt.Stage)),
			zap.Int64("rows_done", evt.RowsDone),
			zap.Int64("rows_failed", evt.RowsFailed),
			zap.String("message", evt.Message),
			zap.Time("at", evt.At),
		)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
