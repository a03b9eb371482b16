// Package importer turns uploaded subscriber CSVs into platform-core
// upserts: parse and validate synchronously, push in background batches.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strataisp/console/internal/clock"
	"github.com/strataisp/console/internal/id"
	"github.com/strataisp/console/internal/jobs"
	"github.com/strataisp/console/internal/platform"
	"github.com/strataisp/console/internal/progress"
	"github.com/strataisp/console/internal/store"
)

const defaultBatchSize = 100

// Core is the slice of the platform client imports use.
type Core interface {
	PlanExists(ctx context.Context, code string) (bool, error)
	UpsertSubscribers(ctx context.Context, batch []platform.SubscriberUpsert) ([]platform.UpsertOutcome, error)
}

// indexedRow pairs an upsert with its CSV line number for error reports.
type indexedRow struct {
	rowNumber int
	upsert    platform.SubscriberUpsert
}

// DryRunResult reports validation without writing anything.
type DryRunResult struct {
	TotalRows int                    `json:"total_rows"`
	ValidRows int                    `json:"valid_rows"`
	Errors    []store.ImportRowError `json:"errors"`
}

// runState tracks one import across its batch tasks.
type runState struct {
	remaining atomic.Int64
	started   atomic.Bool
	failed    atomic.Bool
}

// Config wires the importer service.
type Config struct {
	Repo      store.ImportRepository
	Core      Core
	Queue     jobs.Queue
	Progress  progress.Emitter
	IDs       id.UUIDGenerator
	Clock     clock.Clock
	BatchSize int
	Logger    *zap.Logger
}

// Service owns the import lifecycle.
type Service struct {
	repo      store.ImportRepository
	core      Core
	queue     jobs.Queue
	progress  progress.Emitter
	ids       id.UUIDGenerator
	clock     clock.Clock
	batchSize int
	validate  *validator.Validate
	logger    *zap.Logger

	mu   sync.Mutex
	runs map[uuid.UUID]*runState
}

// New builds the importer service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Service{
		repo:      cfg.Repo,
		core:      cfg.Core,
		queue:     cfg.Queue,
		progress:  cfg.Progress,
		ids:       cfg.IDs,
		clock:     cfg.Clock,
		batchSize: batchSize,
		validate:  newValidator(),
		logger:    logger,
		runs:      make(map[uuid.UUID]*runState),
	}
}

// parseResult is the outcome of reading one CSV upload.
type parseResult struct {
	totalRows int
	rows      []indexedRow
	errors    []store.ImportRowError
}

// parse reads the CSV, maps headers, validates rows, and checks plan
// codes against the core. Malformed rows become row errors, never a
// parse failure; only an unusable header aborts.
func (s *Service) parse(ctx context.Context, r io.Reader) (parseResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return parseResult{}, fmt.Errorf("%w: cannot read CSV header: %v", store.ErrInvalid, err)
	}
	columns, err := mapHeader(header)
	if err != nil {
		return parseResult{}, err
	}
	width := len(header)

	var result parseResult
	planKnown := make(map[string]bool)
	rowNumber := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNumber++
		if err != nil {
			result.totalRows++
			result.errors = append(result.errors, store.ImportRowError{
				RowNumber: rowNumber,
				Message:   fmt.Sprintf("malformed row: %v", err),
			})
			continue
		}
		result.totalRows++
		if len(record) != width {
			result.errors = append(result.errors, store.ImportRowError{
				RowNumber: rowNumber,
				Message:   fmt.Sprintf("expected %d fields, got %d", width, len(record)),
			})
			continue
		}

		row := Row{
			Name:     cellAt(record, columns, fieldName),
			Phone:    cellAt(record, columns, fieldPhone),
			Email:    cellAt(record, columns, fieldEmail),
			PlanCode: cellAt(record, columns, fieldPlan),
			Address:  cellAt(record, columns, fieldAddress),
		}
		if err := s.validate.Struct(row); err != nil {
			result.errors = append(result.errors, store.ImportRowError{
				RowNumber: rowNumber,
				Message:   describeValidation(err),
			})
			continue
		}

		known, checked := planKnown[row.PlanCode]
		if !checked {
			known, err = s.core.PlanExists(ctx, row.PlanCode)
			if err != nil {
				return parseResult{}, fmt.Errorf("check plan %s: %w", row.PlanCode, err)
			}
			planKnown[row.PlanCode] = known
		}
		if !known {
			result.errors = append(result.errors, store.ImportRowError{
				RowNumber: rowNumber,
				Message:   fmt.Sprintf("unknown plan %q", row.PlanCode),
			})
			continue
		}

		result.rows = append(result.rows, indexedRow{
			rowNumber: rowNumber,
			upsert: platform.SubscriberUpsert{
				Name:     row.Name,
				Phone:    row.Phone,
				Email:    row.Email,
				PlanCode: row.PlanCode,
				Address:  row.Address,
			},
		})
	}
	return result, nil
}

// DryRun validates the upload end to end and reports per-row errors
// without creating a job or touching the core's subscriber data.
func (s *Service) DryRun(ctx context.Context, r io.Reader) (DryRunResult, error) {
	parsed, err := s.parse(ctx, r)
	if err != nil {
		return DryRunResult{}, err
	}
	return DryRunResult{
		TotalRows: parsed.totalRows,
		ValidRows: len(parsed.rows),
		Errors:    parsed.errors,
	}, nil
}

// Submit parses the upload, records the job and its row errors, and
// enqueues the valid rows in batches.
func (s *Service) Submit(ctx context.Context, filename string, r io.Reader) (store.ImportJob, error) {
	parsed, err := s.parse(ctx, r)
	if err != nil {
		return store.ImportJob{}, err
	}
	if parsed.totalRows == 0 {
		return store.ImportJob{}, fmt.Errorf("%w: upload has no data rows", store.ErrInvalid)
	}

	jobID, err := s.ids.NewUUID()
	if err != nil {
		return store.ImportJob{}, fmt.Errorf("mint job id: %w", err)
	}
	now := s.clock.Now()
	job := store.ImportJob{
		ID:        jobID,
		Filename:  filename,
		Status:    store.ImportPending,
		TotalRows: parsed.totalRows,
		CreatedAt: now,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return store.ImportJob{}, err
	}

	if len(parsed.errors) > 0 {
		rowErrs := make([]store.ImportRowError, len(parsed.errors))
		copy(rowErrs, parsed.errors)
		for i := range rowErrs {
			rowErrs[i].JobID = jobID
		}
		if err := s.repo.AddRowErrors(ctx, rowErrs); err != nil {
			return store.ImportJob{}, fmt.Errorf("record row errors: %w", err)
		}
		if err := s.repo.AddCounts(ctx, jobID, 0, len(rowErrs)); err != nil {
			return store.ImportJob{}, fmt.Errorf("record failed rows: %w", err)
		}
	}

	s.progress.Emit(progress.Event{
		JobID:      jobID,
		Kind:       progress.KindImport,
		Stage:      progress.StageQueued,
		RowsFailed: int64(len(parsed.errors)),
		At:         now,
	})

	if len(parsed.rows) == 0 {
		s.complete(jobID, &runState{})
		return s.repo.GetJob(ctx, jobID)
	}

	batches := splitBatches(parsed.rows, s.batchSize)
	state := &runState{}
	state.remaining.Store(int64(len(batches)))
	s.mu.Lock()
	s.runs[jobID] = state
	s.mu.Unlock()

	for _, batch := range batches {
		task := &batchTask{svc: s, jobID: jobID, rows: batch, state: state}
		if err := s.queue.Enqueue(ctx, task); err != nil {
			s.logger.Error("import batch enqueue failed",
				zap.String("job_id", jobID.String()),
				zap.Error(err))
			state.failed.Store(true)
			if state.remaining.Add(-1) == 0 {
				s.complete(jobID, state)
			}
		}
	}

	s.logger.Info("import submitted",
		zap.String("job_id", jobID.String()),
		zap.String("filename", filename),
		zap.Int("rows", parsed.totalRows),
		zap.Int("batches", len(batches)))
	return s.repo.GetJob(ctx, jobID)
}

// GetJob loads one import job.
func (s *Service) GetJob(ctx context.Context, jobID uuid.UUID) (store.ImportJob, error) {
	return s.repo.GetJob(ctx, jobID)
}

// ListJobs pages through import jobs, newest first.
func (s *Service) ListJobs(ctx context.Context, limit, offset int) ([]store.ImportJob, error) {
	return s.repo.ListJobs(ctx, limit, offset)
}

// RowErrors pages through a job's recorded row errors.
func (s *Service) RowErrors(ctx context.Context, jobID uuid.UUID, limit, offset int) ([]store.ImportRowError, error) {
	return s.repo.ListRowErrors(ctx, jobID, limit, offset)
}

// complete records the terminal status once the last batch is done.
func (s *Service) complete(jobID uuid.UUID, state *runState) {
	ctx := context.Background()
	now := s.clock.Now()

	status := store.ImportDone
	stage := progress.StageDone
	if state.failed.Load() {
		status = store.ImportFailed
		stage = progress.StageFailed
	}
	if err := s.repo.CompleteJob(ctx, jobID, status, now); err != nil {
		s.logger.Error("import completion failed",
			zap.String("job_id", jobID.String()),
			zap.Error(err))
	}

	s.mu.Lock()
	delete(s.runs, jobID)
	s.mu.Unlock()

	s.progress.Emit(progress.Event{
		JobID: jobID,
		Kind:  progress.KindImport,
		Stage: stage,
		At:    now,
	})
}

func splitBatches(rows []indexedRow, size int) [][]indexedRow {
	var batches [][]indexedRow
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		batches = append(batches, rows[start:end])
	}
	return batches
}
