// Package billing keeps a local invoice read-model synced from the
// platform core and renders invoice PDFs on demand.
package billing

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/strataisp/console/internal/storage"
	"github.com/strataisp/console/internal/store"
)

const syncPageSize = 200

// Core is the slice of the platform client the billing sync pulls from.
type Core interface {
	InvoicesSince(ctx context.Context, since time.Time, limit int) ([]store.Invoice, error)
}

// Renderer turns an invoice into PDF bytes.
type Renderer interface {
	Render(ctx context.Context, inv store.Invoice) ([]byte, error)
}

// SyncResult reports one sync run.
type SyncResult struct {
	Pulled int       `json:"pulled"`
	Cursor time.Time `json:"cursor"`
}

// Config wires the billing service.
type Config struct {
	Repo     store.BillingRepository
	Core     Core
	Renderer Renderer
	Blobs    storage.BlobStore
	Logger   *zap.Logger
}

// Service owns invoice sync, listing, and PDF rendering.
type Service struct {
	repo     store.BillingRepository
	core     Core
	renderer Renderer
	blobs    storage.BlobStore
	logger   *zap.Logger
}

// New builds the billing service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     cfg.Repo,
		core:     cfg.Core,
		renderer: cfg.Renderer,
		blobs:    cfg.Blobs,
		logger:   logger,
	}
}

// Sync pulls invoices changed since the stored cursor, page by page,
// advancing the cursor after each upserted page so an interrupted run
// resumes where it stopped.
func (s *Service) Sync(ctx context.Context) (SyncResult, error) {
	cursor, err := s.repo.GetSyncCursor(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("load sync cursor: %w", err)
	}

	pulled := 0
	for {
		page, err := s.core.InvoicesSince(ctx, cursor, syncPageSize)
		if err != nil {
			return SyncResult{}, fmt.Errorf("pull invoices since %s: %w", cursor.Format(time.RFC3339), err)
		}
		if len(page) == 0 {
			break
		}
		if err := s.repo.UpsertInvoices(ctx, page); err != nil {
			return SyncResult{}, fmt.Errorf("upsert invoice page: %w", err)
		}
		pulled += len(page)
		cursor = page[len(page)-1].SyncedAt
		if err := s.repo.SetSyncCursor(ctx, cursor); err != nil {
			return SyncResult{}, fmt.Errorf("advance sync cursor: %w", err)
		}
		if len(page) < syncPageSize {
			break
		}
	}

	s.logger.Info("invoice sync finished",
		zap.Int("pulled", pulled),
		zap.Time("cursor", cursor))
	return SyncResult{Pulled: pulled, Cursor: cursor}, nil
}

// Get loads one invoice from the read-model.
func (s *Service) Get(ctx context.Context, id string) (store.Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// List returns invoices matching the filter.
func (s *Service) List(ctx context.Context, filter store.InvoiceFilter) ([]store.Invoice, error) {
	if filter.Status != nil {
		switch *filter.Status {
		case store.InvoiceOpen, store.InvoicePaid, store.InvoiceOverdue, store.InvoiceCancelled:
		default:
			return nil, fmt.Errorf("%w: unknown status %q", store.ErrInvalid, *filter.Status)
		}
	}
	return s.repo.ListInvoices(ctx, filter)
}

// GetPDF returns the blob URI of the invoice PDF, rendering and storing
// it on first request. Subsequent calls reuse the stored artifact.
func (s *Service) GetPDF(ctx context.Context, id string) (string, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return "", err
	}
	if inv.PDFURI != nil && *inv.PDFURI != "" {
		return *inv.PDFURI, nil
	}

	pdf, err := s.renderer.Render(ctx, inv)
	if err != nil {
		return "", fmt.Errorf("render invoice %s: %w", id, err)
	}

	path := fmt.Sprintf("invoices/%s/%s.pdf", inv.Period, inv.ID)
	uri, err := s.blobs.PutObject(ctx, path, "application/pdf", bytes.NewReader(pdf))
	if err != nil {
		return "", fmt.Errorf("store invoice pdf %s: %w", id, err)
	}
	if err := s.repo.SetInvoicePDF(ctx, id, uri); err != nil {
		return "", fmt.Errorf("record invoice pdf %s: %w", id, err)
	}
	return uri, nil
}
