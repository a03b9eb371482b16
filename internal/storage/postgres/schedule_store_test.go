package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/strataisp/console/internal/store"
)

func testRule(now time.Time) store.ScheduleRule {
	return store.ScheduleRule{
		ID:           uuid.MustParse("019235aa-0000-7000-8000-000000000001"),
		Name:         "night-boost",
		DayMask:      127,
		StartMinute:  1320,
		EndMinute:    360,
		RateDownKbps: 20480,
		RateUpKbps:   4096,
		TargetGroup:  "residential",
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestCreateRuleInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Unix(1700000000, 0).UTC()
	rule := testRule(now)

	mock.ExpectExec("INSERT INTO schedule_rules").
		WithArgs(rule.ID, rule.Name, rule.DayMask, rule.StartMinute, rule.EndMinute,
			rule.RateDownKbps, rule.RateUpKbps, rule.TargetGroup, rule.Enabled,
			rule.CreatedAt, rule.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewScheduleStore(mock).CreateRule(context.Background(), rule)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRuleDuplicateName(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rule := testRule(time.Now().UTC())
	mock.ExpectExec("INSERT INTO schedule_rules").
		WithArgs(rule.ID, rule.Name, rule.DayMask, rule.StartMinute, rule.EndMinute,
			rule.RateDownKbps, rule.RateUpKbps, rule.TargetGroup, rule.Enabled,
			rule.CreatedAt, rule.UpdatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err = NewScheduleStore(mock).CreateRule(context.Background(), rule)
	require.ErrorIs(t, err, store.ErrConflict)
}

func TestGetRuleNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("SELECT id, name, day_mask").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err = NewScheduleStore(mock).GetRule(context.Background(), id)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSetRuleEnabledReturnsUpdatedRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Unix(1700000000, 0).UTC()
	rule := testRule(now)
	rule.Enabled = false

	mock.ExpectQuery("UPDATE schedule_rules").
		WithArgs(rule.ID, false, now).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "day_mask", "start_minute", "end_minute",
			"rate_down_kbps", "rate_up_kbps", "target_group", "enabled",
			"created_at", "updated_at",
		}).AddRow(rule.ID, rule.Name, rule.DayMask, rule.StartMinute, rule.EndMinute,
			rule.RateDownKbps, rule.RateUpKbps, rule.TargetGroup, rule.Enabled,
			rule.CreatedAt, rule.UpdatedAt))

	got, err := NewScheduleStore(mock).SetRuleEnabled(context.Background(), rule.ID, false, now)
	require.NoError(t, err)
	require.Equal(t, rule, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRuleMissing(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rule := testRule(time.Now().UTC())
	mock.ExpectExec("UPDATE schedule_rules").
		WithArgs(rule.ID, rule.Name, rule.DayMask, rule.StartMinute, rule.EndMinute,
			rule.RateDownKbps, rule.RateUpKbps, rule.TargetGroup, rule.Enabled,
			rule.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = NewScheduleStore(mock).UpdateRule(context.Background(), rule)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestScheduleListRulesScansAll(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Unix(1700000000, 0).UTC()
	rule := testRule(now)

	mock.ExpectQuery("SELECT id, name, day_mask").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "day_mask", "start_minute", "end_minute",
			"rate_down_kbps", "rate_up_kbps", "target_group", "enabled",
			"created_at", "updated_at",
		}).AddRow(rule.ID, rule.Name, rule.DayMask, rule.StartMinute, rule.EndMinute,
			rule.RateDownKbps, rule.RateUpKbps, rule.TargetGroup, rule.Enabled,
			rule.CreatedAt, rule.UpdatedAt))

	rules, err := NewScheduleStore(mock).ListRules(context.Background())
	require.NoError(t, err)
	require.Equal(t, []store.ScheduleRule{rule}, rules)
}
