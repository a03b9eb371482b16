package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/strataisp/console/internal/store"
)

// CampaignStore implements store.CampaignRepository.
type CampaignStore struct {
	db DB
}

// NewCampaignStore creates a new CampaignStore on the shared pool.
func NewCampaignStore(db DB) *CampaignStore {
	return &CampaignStore{db: db}
}

const campaignColumns = `id, name, template_id, audience_filter, status,
	total_recipients, sent_count, failed_count, skipped_count,
	created_at, started_at, finished_at`

// CreateCampaign inserts a new draft campaign.
func (s *CampaignStore) CreateCampaign(ctx context.Context, c store.Campaign) error {
	query := `
		INSERT INTO campaigns (id, name, template_id, audience_filter, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err := s.db.Exec(ctx, query, c.ID, c.Name, c.TemplateID, c.AudienceFilter, c.Status, c.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: template %s does not exist", store.ErrConflict, c.TemplateID)
		}
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

func scanCampaign(row pgx.Row) (store.Campaign, error) {
	var c store.Campaign
	err := row.Scan(
		&c.ID, &c.Name, &c.TemplateID, &c.AudienceFilter, &c.Status,
		&c.TotalRecipients, &c.SentCount, &c.FailedCount, &c.SkippedCount,
		&c.CreatedAt, &c.StartedAt, &c.FinishedAt,
	)
	return c, err
}

// GetCampaign retrieves a single campaign by its ID.
func (s *CampaignStore) GetCampaign(ctx context.Context, id uuid.UUID) (store.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1;`
	c, err := scanCampaign(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return store.Campaign{}, notFound(err, "get campaign")
	}
	return c, nil
}

// ListCampaigns returns campaigns newest first.
func (s *CampaignStore) ListCampaigns(ctx context.Context, limit, offset int) ([]store.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + ` FROM campaigns
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2;
	`
	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []store.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// MarkStarted moves draft to running, recording the audience size.
func (s *CampaignStore) MarkStarted(ctx context.Context, id uuid.UUID, total int, at time.Time) error {
	query := `
		UPDATE campaigns
		SET status = $4, total_recipients = $2, started_at = $3
		WHERE id = $1 AND status = $5;
	`
	res, err := s.db.Exec(ctx, query, id, total, at, store.CampaignRunning, store.CampaignDraft)
	if err != nil {
		return fmt.Errorf("start campaign: %w", err)
	}
	if res.RowsAffected() == 0 {
		if _, err := s.GetCampaign(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: campaign is not a draft", store.ErrConflict)
	}
	return nil
}

// MarkFinished moves running to done or cancelled.
func (s *CampaignStore) MarkFinished(ctx context.Context, id uuid.UUID, status store.CampaignStatus, at time.Time) error {
	query := `
		UPDATE campaigns
		SET status = $2, finished_at = $3
		WHERE id = $1 AND status = $4;
	`
	res, err := s.db.Exec(ctx, query, id, status, at, store.CampaignRunning)
	if err != nil {
		return fmt.Errorf("finish campaign: %w", err)
	}
	if res.RowsAffected() == 0 {
		if _, err := s.GetCampaign(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: campaign is not running", store.ErrConflict)
	}
	return nil
}

// AddRecipients bulk-inserts the audience snapshot.
func (s *CampaignStore) AddRecipients(ctx context.Context, recipients []store.CampaignRecipient) error {
	rows := make([][]any, 0, len(recipients))
	for _, r := range recipients {
		rows = append(rows, []any{r.CampaignID, r.SubscriberID, r.Phone, r.Name, r.Status, r.UpdatedAt})
	}
	_, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"campaign_recipients"},
		[]string{"campaign_id", "subscriber_id", "phone", "name", "status", "updated_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("insert campaign recipients: %w", err)
	}
	return nil
}

// UpdateRecipient records one delivery outcome.
func (s *CampaignStore) UpdateRecipient(ctx context.Context, campaignID uuid.UUID, subscriberID string,
	status store.RecipientStatus, messageID, lastError *string, at time.Time,
) error {
	query := `
		UPDATE campaign_recipients
		SET status = $3, message_id = $4, last_error = $5, updated_at = $6
		WHERE campaign_id = $1 AND subscriber_id = $2;
	`
	res, err := s.db.Exec(ctx, query, campaignID, subscriberID, status, messageID, lastError, at)
	if err != nil {
		return fmt.Errorf("update campaign recipient: %w", err)
	}
	if res.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SkipPending marks every still-pending recipient skipped.
func (s *CampaignStore) SkipPending(ctx context.Context, campaignID uuid.UUID, at time.Time) (int64, error) {
	query := `
		UPDATE campaign_recipients
		SET status = $2, updated_at = $3
		WHERE campaign_id = $1 AND status = $4;
	`
	res, err := s.db.Exec(ctx, query, campaignID, store.RecipientSkipped, at, store.RecipientPending)
	if err != nil {
		return 0, fmt.Errorf("skip pending recipients: %w", err)
	}
	return res.RowsAffected(), nil
}

// ListRecipients returns recipients filtered by optional status.
func (s *CampaignStore) ListRecipients(ctx context.Context, campaignID uuid.UUID,
	status *store.RecipientStatus, limit, offset int,
) ([]store.CampaignRecipient, error) {
	query := `
		SELECT campaign_id, subscriber_id, phone, name, status, message_id, last_error, updated_at
		FROM campaign_recipients
		WHERE campaign_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY subscriber_id
		LIMIT $3 OFFSET $4;
	`
	rows, err := s.db.Query(ctx, query, campaignID, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list campaign recipients: %w", err)
	}
	defer rows.Close()

	var recipients []store.CampaignRecipient
	for rows.Next() {
		var r store.CampaignRecipient
		err := rows.Scan(
			&r.CampaignID, &r.SubscriberID, &r.Phone, &r.Name, &r.Status,
			&r.MessageID, &r.LastError, &r.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan campaign recipient: %w", err)
		}
		recipients = append(recipients, r)
	}
	return recipients, rows.Err()
}

// AddCounts applies delta counters accumulated by a worker batch.
func (s *CampaignStore) AddCounts(ctx context.Context, id uuid.UUID, sent, failed, skipped int) error {
	query := `
		UPDATE campaigns
		SET sent_count = sent_count + $2,
			failed_count = failed_count + $3,
			skipped_count = skipped_count + $4
		WHERE id = $1;
	`
	res, err := s.db.Exec(ctx, query, id, sent, failed, skipped)
	if err != nil {
		return fmt.Errorf("add campaign counts: %w", err)
	}
	if res.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
