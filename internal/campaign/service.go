// Package campaign runs bulk WhatsApp sends: a draft is snapshotted into
// recipients at start time, then delivered in batches by the job pool.
package campaign

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strataisp/console/internal/clock"
	"github.com/strataisp/console/internal/gateway"
	"github.com/strataisp/console/internal/id"
	"github.com/strataisp/console/internal/jobs"
	"github.com/strataisp/console/internal/platform"
	"github.com/strataisp/console/internal/progress"
	"github.com/strataisp/console/internal/store"
)

const defaultBatchSize = 100

// Core is the slice of the platform client campaigns use.
type Core interface {
	QueryAudience(ctx context.Context, filter string) ([]platform.AudienceMember, error)
}

// Templates loads message templates. Satisfied by the notify repository.
type Templates interface {
	GetTemplate(ctx context.Context, id uuid.UUID) (store.Template, error)
}

// CreateInput describes a new draft campaign.
type CreateInput struct {
	Name           string
	TemplateID     uuid.UUID
	AudienceFilter string
}

// runState tracks one running campaign across its batch tasks.
type runState struct {
	remaining atomic.Int64
	cancelled atomic.Bool
}

// Config wires the campaign service.
type Config struct {
	Repo      store.CampaignRepository
	Core      Core
	Templates Templates
	Queue     jobs.Queue
	Sender    gateway.Sender
	Progress  progress.Emitter
	IDs       id.UUIDGenerator
	Clock     clock.Clock
	BatchSize int
	Logger    *zap.Logger
}

// Service owns the campaign lifecycle.
type Service struct {
	repo      store.CampaignRepository
	core      Core
	templates Templates
	queue     jobs.Queue
	sender    gateway.Sender
	progress  progress.Emitter
	ids       id.UUIDGenerator
	clock     clock.Clock
	batchSize int
	logger    *zap.Logger

	mu   sync.Mutex
	runs map[uuid.UUID]*runState
}

// New builds the campaign service.
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
		templates: cfg.Templates,
		queue:     cfg.Queue,
		sender:    cfg.Sender,
		progress:  cfg.Progress,
		ids:       cfg.IDs,
		clock:     cfg.Clock,
		batchSize: batchSize,
		logger:    logger,
		runs:      make(map[uuid.UUID]*runState),
	}
}

// Create stores a draft campaign after checking the template exists.
func (s *Service) Create(ctx context.Context, in CreateInput) (store.Campaign, error) {
	if in.Name == "" {
		return store.Campaign{}, fmt.Errorf("%w: name is required", store.ErrInvalid)
	}
	if in.AudienceFilter == "" {
		return store.Campaign{}, fmt.Errorf("%w: audience filter is required", store.ErrInvalid)
	}
	if _, err := s.templates.GetTemplate(ctx, in.TemplateID); err != nil {
		return store.Campaign{}, fmt.Errorf("%w: template %s: %v", store.ErrInvalid, in.TemplateID, err)
	}

	campaignID, err := s.ids.NewUUID()
	if err != nil {
		return store.Campaign{}, fmt.Errorf("mint campaign id: %w", err)
	}
	c := store.Campaign{
		ID:             campaignID,
		Name:           in.Name,
		TemplateID:     in.TemplateID,
		AudienceFilter: in.AudienceFilter,
		Status:         store.CampaignDraft,
		CreatedAt:      s.clock.Now(),
	}
	if err := s.repo.CreateCampaign(ctx, c); err != nil {
		return store.Campaign{}, err
	}
	return c, nil
}

// Get loads one campaign.
func (s *Service) Get(ctx context.Context, campaignID uuid.UUID) (store.Campaign, error) {
	return s.repo.GetCampaign(ctx, campaignID)
}

// List pages through campaigns, newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]store.Campaign, error) {
	return s.repo.ListCampaigns(ctx, limit, offset)
}

// Recipients pages through a campaign's recipients, optionally by status.
func (s *Service) Recipients(ctx context.Context, campaignID uuid.UUID, status *store.RecipientStatus, limit, offset int) ([]store.CampaignRecipient, error) {
	return s.repo.ListRecipients(ctx, campaignID, status, limit, offset)
}

// Start snapshots the audience, moves the campaign to running, and
// enqueues one task per recipient batch. The audience is resolved once;
// subscribers matching the filter later are not picked up.
func (s *Service) Start(ctx context.Context, campaignID uuid.UUID) (store.Campaign, error) {
	c, err := s.repo.GetCampaign(ctx, campaignID)
	if err != nil {
		return store.Campaign{}, err
	}
	if c.Status != store.CampaignDraft {
		return store.Campaign{}, fmt.Errorf("%w: campaign is %s", store.ErrConflict, c.Status)
	}
	tpl, err := s.templates.GetTemplate(ctx, c.TemplateID)
	if err != nil {
		return store.Campaign{}, fmt.Errorf("load template %s: %w", c.TemplateID, err)
	}

	audience, err := s.core.QueryAudience(ctx, c.AudienceFilter)
	if err != nil {
		return store.Campaign{}, fmt.Errorf("query audience: %w", err)
	}
	if len(audience) == 0 {
		return store.Campaign{}, fmt.Errorf("%w: audience filter matched no subscribers", store.ErrInvalid)
	}

	now := s.clock.Now()
	recipients := make([]store.CampaignRecipient, 0, len(audience))
	for _, member := range audience {
		recipients = append(recipients, store.CampaignRecipient{
			CampaignID:   campaignID,
			SubscriberID: member.SubscriberID,
			Phone:        member.Phone,
			Name:         member.Name,
			Status:       store.RecipientPending,
			UpdatedAt:    now,
		})
	}
	if err := s.repo.AddRecipients(ctx, recipients); err != nil {
		return store.Campaign{}, fmt.Errorf("snapshot audience: %w", err)
	}
	if err := s.repo.MarkStarted(ctx, campaignID, len(recipients), now); err != nil {
		return store.Campaign{}, err
	}

	batches := splitBatches(recipients, s.batchSize)
	state := &runState{}
	state.remaining.Store(int64(len(batches)))
	s.mu.Lock()
	s.runs[campaignID] = state
	s.mu.Unlock()

	s.progress.Emit(progress.Event{
		JobID: campaignID,
		Kind:  progress.KindCampaign,
		Stage: progress.StageQueued,
		At:    now,
	})

	for _, batch := range batches {
		task := &batchTask{
			svc:        s,
			campaignID: campaignID,
			template:   tpl,
			recipients: batch,
			state:      state,
		}
		if err := s.queue.Enqueue(ctx, task); err != nil {
			// Recipients of unqueued batches stay pending; cancel
			// sweeps them to skipped and finishes the campaign.
			s.logger.Error("campaign batch enqueue failed",
				zap.String("campaign_id", campaignID.String()),
				zap.Error(err))
			if state.remaining.Add(-1) == 0 {
				s.finish(campaignID, state)
			}
		}
	}

	s.logger.Info("campaign started",
		zap.String("campaign_id", campaignID.String()),
		zap.Int("recipients", len(recipients)),
		zap.Int("batches", len(batches)))
	return s.repo.GetCampaign(ctx, campaignID)
}

// Cancel stops dispatching. Batches already running finish their sends;
// every still-pending recipient is marked skipped.
func (s *Service) Cancel(ctx context.Context, campaignID uuid.UUID) (store.Campaign, error) {
	c, err := s.repo.GetCampaign(ctx, campaignID)
	if err != nil {
		return store.Campaign{}, err
	}
	if c.Status != store.CampaignRunning {
		return store.Campaign{}, fmt.Errorf("%w: campaign is %s", store.ErrConflict, c.Status)
	}

	s.mu.Lock()
	state := s.runs[campaignID]
	s.mu.Unlock()
	if state != nil {
		state.cancelled.Store(true)
	}

	now := s.clock.Now()
	skipped, err := s.repo.SkipPending(ctx, campaignID, now)
	if err != nil {
		return store.Campaign{}, fmt.Errorf("skip pending recipients: %w", err)
	}
	if skipped > 0 {
		if err := s.repo.AddCounts(ctx, campaignID, 0, 0, int(skipped)); err != nil {
			return store.Campaign{}, fmt.Errorf("record skipped count: %w", err)
		}
	}

	// No live batches means nothing will call finish; close out here.
	if state == nil || state.remaining.Load() == 0 {
		s.finish(campaignID, state)
	}

	s.logger.Info("campaign cancelled",
		zap.String("campaign_id", campaignID.String()),
		zap.Int64("skipped", skipped))
	return s.repo.GetCampaign(ctx, campaignID)
}

// finish records the terminal status once the last batch is done. Runs
// outside request scope, so it carries its own context.
func (s *Service) finish(campaignID uuid.UUID, state *runState) {
	ctx := context.Background()
	now := s.clock.Now()

	status := store.CampaignDone
	stage := progress.StageDone
	if state != nil && state.cancelled.Load() {
		status = store.CampaignCancelled
		stage = progress.StageCancelled
	}
	if err := s.repo.MarkFinished(ctx, campaignID, status, now); err != nil {
		s.logger.Error("campaign finish failed",
			zap.String("campaign_id", campaignID.String()),
			zap.Error(err))
	}

	s.mu.Lock()
	delete(s.runs, campaignID)
	s.mu.Unlock()

	s.progress.Emit(progress.Event{
		JobID: campaignID,
		Kind:  progress.KindCampaign,
		Stage: stage,
		At:    now,
	})
}

func splitBatches(recipients []store.CampaignRecipient, size int) [][]store.CampaignRecipient {
	var batches [][]store.CampaignRecipient
	for start := 0; start < len(recipients); start += size {
		end := start + size
		if end > len(recipients) {
			end = len(recipients)
		}
		batches = append(batches, recipients[start:end])
	}
	return batches
}
