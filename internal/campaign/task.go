package campaign

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strataisp/console/internal/gateway"
	"github.com/strataisp/console/internal/metrics"
	"github.com/strataisp/console/internal/notify"
	"github.com/strataisp/console/internal/progress"
	"github.com/strataisp/console/internal/store"
)

const (
	sendAttempts  = 3
	retryInterval = time.Second

	// Campaigns only go out over WhatsApp; notifications pick their
	// channel per rule.
	campaignChannel = "whatsapp"
)

// batchTask delivers one batch of recipients. The pool runs it; progress
// flows through the hub as delta counts per batch.
type batchTask struct {
	svc        *Service
	campaignID uuid.UUID
	template   store.Template
	recipients []store.CampaignRecipient
	state      *runState
}

func (t *batchTask) JobID() uuid.UUID { return t.campaignID }

func (t *batchTask) Kind() string { return string(progress.KindCampaign) }

// Run sends the batch. A cancelled campaign skips its sends; the cancel
// path already marked the rows skipped. The last batch to finish closes
// out the campaign whatever its outcome.
func (t *batchTask) Run(ctx context.Context) error {
	defer func() {
		if t.state.remaining.Add(-1) == 0 {
			t.svc.finish(t.campaignID, t.state)
		}
	}()

	if t.state.cancelled.Load() {
		return nil
	}

	var sent, failed int
	for _, recipient := range t.recipients {
		if t.state.cancelled.Load() || ctx.Err() != nil {
			break
		}
		body := notify.Render(t.template.Body, map[string]string{
			"name":  recipient.Name,
			"phone": recipient.Phone,
		})

		messageID, err := t.send(ctx, recipient.Phone, body)
		now := t.svc.clock.Now()
		if err != nil {
			errText := err.Error()
			failed++
			metrics.ObserveCampaignMessage(campaignChannel, "failed")
			if updateErr := t.svc.repo.UpdateRecipient(ctx, t.campaignID, recipient.SubscriberID,
				store.RecipientFailed, nil, &errText, now); updateErr != nil {
				t.svc.logger.Error("recipient update failed",
					zap.String("campaign_id", t.campaignID.String()),
					zap.String("subscriber_id", recipient.SubscriberID),
					zap.Error(updateErr))
			}
			continue
		}
		sent++
		metrics.ObserveCampaignMessage(campaignChannel, "sent")
		if updateErr := t.svc.repo.UpdateRecipient(ctx, t.campaignID, recipient.SubscriberID,
			store.RecipientSent, &messageID, nil, now); updateErr != nil {
			t.svc.logger.Error("recipient update failed",
				zap.String("campaign_id", t.campaignID.String()),
				zap.String("subscriber_id", recipient.SubscriberID),
				zap.Error(updateErr))
		}
	}

	if sent > 0 || failed > 0 {
		if err := t.svc.repo.AddCounts(ctx, t.campaignID, sent, failed, 0); err != nil {
			t.svc.logger.Error("campaign count update failed",
				zap.String("campaign_id", t.campaignID.String()),
				zap.Error(err))
		}
		t.svc.progress.Emit(progress.Event{
			JobID:      t.campaignID,
			Kind:       progress.KindCampaign,
			Stage:      progress.StageRunning,
			RowsDone:   int64(sent),
			RowsFailed: int64(failed),
			At:         t.svc.clock.Now(),
		})
	}
	return nil
}

// send retries transient gateway failures; rejections are final.
func (t *batchTask) send(ctx context.Context, to, body string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < sendAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryInterval):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		messageID, err := t.svc.sender.Send(ctx, to, body)
		if err == nil {
			return messageID, nil
		}
		if errors.Is(err, gateway.ErrRejected) {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}
