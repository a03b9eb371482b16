package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/strataisp/console/internal/importer"
	"github.com/strataisp/console/internal/store"
)

// ImportService is the slice of the importer service the API uses.
type ImportService interface {
	DryRun(ctx context.Context, r io.Reader) (importer.DryRunResult, error)
	Submit(ctx context.Context, filename string, r io.Reader) (store.ImportJob, error)
	GetJob(ctx context.Context, jobID uuid.UUID) (store.ImportJob, error)
	ListJobs(ctx context.Context, limit, offset int) ([]store.ImportJob, error)
	RowErrors(ctx context.Context, jobID uuid.UUID, limit, offset int) ([]store.ImportRowError, error)
}

// multipart parse buffer; larger files spill to disk.
const importMemoryLimit = 8 << 20

type importJobResponse struct {
	ID           uuid.UUID  `json:"id"`
	Filename     string     `json:"filename"`
	Status       string     `json:"status"`
	TotalRows    int        `json:"total_rows"`
	ImportedRows int        `json:"imported_rows"`
	FailedRows   int        `json:"failed_rows"`
	CreatedAt    time.Time  `json:"created_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

type rowErrorResponse struct {
	RowNumber int    `json:"row_number"`
	Message   string `json:"message"`
}

func toImportJobResponse(job store.ImportJob) importJobResponse {
	return importJobResponse{
		ID:           job.ID,
		Filename:     job.Filename,
		Status:       string(job.Status),
		TotalRows:    job.TotalRows,
		ImportedRows: job.ImportedRows,
		FailedRows:   job.FailedRows,
		CreatedAt:    job.CreatedAt,
		FinishedAt:   job.FinishedAt,
	}
}

// submitImport accepts a multipart CSV upload. With ?dry_run=true the
// file is validated and nothing is written.
func (s *Server) submitImport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(importMemoryLimit); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	if r.URL.Query().Get("dry_run") == "true" {
		result, err := s.svc.Imports.DryRun(r.Context(), file)
		if err != nil {
			s.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	job, err := s.svc.Imports.Submit(r.Context(), header.Filename, file)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toImportJobResponse(job))
}

func (s *Server) listImportJobs(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)
	jobs, err := s.svc.Imports.ListJobs(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]importJobResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, toImportJobResponse(job))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

func (s *Server) getImportJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathUUID(r, "job_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	job, err := s.svc.Imports.GetJob(r.Context(), jobID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toImportJobResponse(job))
}

func (s *Server) listImportRowErrors(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathUUID(r, "job_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	limit, offset := parsePage(r)
	rowErrs, err := s.svc.Imports.RowErrors(r.Context(), jobID, limit, offset)
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]rowErrorResponse, 0, len(rowErrs))
	for _, re := range rowErrs {
		out = append(out, rowErrorResponse{RowNumber: re.RowNumber, Message: re.Message})
	}
	writeJSON(w, http.StatusOK, map[string]any{"errors": out})
}
