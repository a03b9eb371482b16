package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CampaignStatus is the lifecycle state of a bulk-messaging campaign.
type CampaignStatus string

// Campaign statuses.
const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignRunning   CampaignStatus = "running"
	CampaignDone      CampaignStatus = "done"
	CampaignCancelled CampaignStatus = "cancelled"
)

// RecipientStatus is the per-recipient delivery outcome.
type RecipientStatus string

// Recipient statuses.
const (
	RecipientPending RecipientStatus = "pending"
	RecipientSent    RecipientStatus = "sent"
	RecipientFailed  RecipientStatus = "failed"
	RecipientSkipped RecipientStatus = "skipped"
)

// Campaign is one bulk WhatsApp send. AudienceFilter is the platform-core
// filter expression the audience was snapshotted from.
type Campaign struct {
	ID              uuid.UUID
	Name            string
	TemplateID      uuid.UUID
	AudienceFilter  string
	Status          CampaignStatus
	TotalRecipients int
	SentCount       int
	FailedCount     int
	SkippedCount    int
	CreatedAt       time.Time
	StartedAt       *time.Time
	FinishedAt      *time.Time
}

// CampaignRecipient is one audience member snapshotted at start time.
type CampaignRecipient struct {
	CampaignID   uuid.UUID
	SubscriberID string
	Phone        string
	Name         string
	Status       RecipientStatus
	MessageID    *string
	LastError    *string
	UpdatedAt    time.Time
}

// CampaignRepository persists campaigns and their recipient outcomes.
type CampaignRepository interface {
	CreateCampaign(ctx context.Context, c Campaign) error
	GetCampaign(ctx context.Context, id uuid.UUID) (Campaign, error)
	ListCampaigns(ctx context.Context, limit, offset int) ([]Campaign, error)

	// MarkStarted moves draft to running, recording the audience size.
	// ErrConflict when the campaign is not a draft.
	MarkStarted(ctx context.Context, id uuid.UUID, total int, at time.Time) error
	// MarkFinished moves running to done or cancelled.
	MarkFinished(ctx context.Context, id uuid.UUID, status CampaignStatus, at time.Time) error

	AddRecipients(ctx context.Context, recipients []CampaignRecipient) error
	// UpdateRecipient records one delivery outcome.
	UpdateRecipient(ctx context.Context, campaignID uuid.UUID, subscriberID string,
		status RecipientStatus, messageID, lastError *string, at time.Time) error
	// SkipPending marks every still-pending recipient skipped, returning
	// how many were skipped. Used by cancel.
	SkipPending(ctx context.Context, campaignID uuid.UUID, at time.Time) (int64, error)
	ListRecipients(ctx context.Context, campaignID uuid.UUID, status *RecipientStatus, limit, offset int) ([]CampaignRecipient, error)

	// AddCounts applies delta counters accumulated by a worker batch.
	AddCounts(ctx context.Context, id uuid.UUID, sent, failed, skipped int) error
}
