package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/strataisp/console/internal/store"
)

func TestUpsertProgressWritesRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	p := store.JobProgress{
		JobID:      uuid.New(),
		Kind:       "import",
		Stage:      "validating",
		RowsDone:   120,
		RowsFailed: 3,
		Message:    "row 87: phone number is not E.164",
		UpdatedAt:  time.Unix(1700000000, 0).UTC(),
	}
	mock.ExpectExec("INSERT INTO job_progress").
		WithArgs(p.JobID, p.Kind, p.Stage, p.RowsDone, p.RowsFailed, p.Message, p.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewProgressStore(mock).UpsertProgress(context.Background(), p)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProgressNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	jobID := uuid.New()
	mock.ExpectQuery("SELECT job_id, kind, stage").
		WithArgs(jobID).
		WillReturnError(pgx.ErrNoRows)

	_, err = NewProgressStore(mock).GetProgress(context.Background(), jobID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestListProgressFiltersByKind(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Unix(1700000000, 0).UTC()
	kind := "campaign"
	jobID := uuid.New()
	mock.ExpectQuery("SELECT job_id, kind, stage").
		WithArgs(&kind, 20, 0).
		WillReturnRows(pgxmock.NewRows([]string{
			"job_id", "kind", "stage", "rows_done", "rows_failed", "message", "updated_at",
		}).AddRow(jobID, "campaign", "sending", int64(80), int64(1), "", now))

	out, err := NewProgressStore(mock).ListProgress(context.Background(), &kind, 20, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, jobID, out[0].JobID)
	require.Equal(t, int64(80), out[0].RowsDone)
}
