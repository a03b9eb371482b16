package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/strataisp/console/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and the running gauge follow the event stream.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	jobID := uuid.New()
	now := time.Now().UTC()
	batch := []progress.Event{
		{JobID: jobID, Kind: progress.KindImport, Stage: progress.StageQueued, At: now},
		{JobID: jobID, Kind: progress.KindImport, Stage: progress.StageRunning, RowsDone: 80, RowsFailed: 3, At: now.Add(time.Second)},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsStarted.WithLabelValues("import")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsRunning))
	require.Equal(t, 80.0, testutil.ToFloat64(sink.rowsDone.WithLabelValues("import")))
	require.Equal(t, 3.0, testutil.ToFloat64(sink.rowsFailed.WithLabelValues("import")))

	done := []progress.Event{
		{JobID: jobID, Kind: progress.KindImport, Stage: progress.StageDone, RowsDone: 17, At: now.Add(2 * time.Second)},
	}
	require.NoError(t, sink.Consume(context.Background(), done))

	require.Equal(t, 0.0, testutil.ToFloat64(sink.jobsRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsFinished.WithLabelValues("import", "done")))
	require.Equal(t, 97.0, testutil.ToFloat64(sink.rowsDone.WithLabelValues("import")))
}

// TestPrometheusSinkRunningGaugeBalanced verifies repeated stage events do not double count.
func TestPrometheusSinkRunningGaugeBalanced(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	jobID := uuid.New()
	now := time.Now().UTC()
	batch := []progress.Event{
		{JobID: jobID, Kind: progress.KindCampaign, Stage: progress.StageRunning, At: now},
		{JobID: jobID, Kind: progress.KindCampaign, Stage: progress.StageRunning, RowsDone: 10, At: now},
		{JobID: jobID, Kind: progress.KindCampaign, Stage: progress.StageCancelled, At: now},
		{JobID: jobID, Kind: progress.KindCampaign, Stage: progress.StageCancelled, At: now},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsStarted.WithLabelValues("campaign")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.jobsRunning))
	require.Equal(t, 2.0, testutil.ToFloat64(sink.jobsFinished.WithLabelValues("campaign", "cancelled")))
}
