// Package cards issues and redeems prepaid plan cards. Plaintext codes
// exist only in the one-time batch export; the database keeps hashes.
package cards

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strataisp/console/internal/clock"
	"github.com/strataisp/console/internal/hash"
	"github.com/strataisp/console/internal/id"
	"github.com/strataisp/console/internal/platform"
	"github.com/strataisp/console/internal/publisher"
	"github.com/strataisp/console/internal/storage"
	"github.com/strataisp/console/internal/store"
)

const (
	maxBatchCount  = 10000
	redeemedTopic  = "card.redeemed"
	maxPrefixLen   = 8
	publishTimeout = 5 * time.Second
)

var prefixPattern = regexp.MustCompile(`^[A-Z0-9]*$`)

// Core is the slice of the platform client the cards service calls.
type Core interface {
	PlanExists(ctx context.Context, code string) (bool, error)
	NotifyRedemption(ctx context.Context, r platform.Redemption) error
}

// BatchInput describes one batch generation request.
type BatchInput struct {
	PlanID       string
	Count        int
	ValidityDays int
	Prefix       string
}

// RedeemedEvent is the payload published after a successful redemption.
type RedeemedEvent struct {
	CardID       uuid.UUID `json:"card_id"`
	BatchID      uuid.UUID `json:"batch_id"`
	SubscriberID string    `json:"subscriber_id"`
	PlanID       string    `json:"plan_id"`
	RedeemedAt   time.Time `json:"redeemed_at"`
}

// Config wires the cards service.
type Config struct {
	Repo      store.CardRepository
	Core      Core
	Hasher    hash.Hasher
	Blobs     storage.BlobStore
	Publisher publisher.Publisher
	IDs       id.UUIDGenerator
	Clock     clock.Clock
	Logger    *zap.Logger
}

// Service owns card batch issuance, redemption, and voiding.
type Service struct {
	repo   store.CardRepository
	core   Core
	hasher hash.Hasher
	blobs  storage.BlobStore
	pub    publisher.Publisher
	ids    id.UUIDGenerator
	clock  clock.Clock
	logger *zap.Logger
}

// New builds the cards service. A nil Publisher disables event publishing.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = publisher.Nop{}
	}
	return &Service{
		repo:   cfg.Repo,
		core:   cfg.Core,
		hasher: cfg.Hasher,
		blobs:  cfg.Blobs,
		pub:    pub,
		ids:    cfg.IDs,
		clock:  cfg.Clock,
		logger: logger,
	}
}

// CreateBatch generates the cards, writes the one-time CSV export to the
// blob store, and persists batch plus cards in one transaction.
func (s *Service) CreateBatch(ctx context.Context, in BatchInput) (store.CardBatch, error) {
	if err := s.validateBatch(ctx, in); err != nil {
		return store.CardBatch{}, err
	}

	batchID, err := s.ids.NewUUID()
	if err != nil {
		return store.CardBatch{}, fmt.Errorf("mint batch id: %w", err)
	}
	now := s.clock.Now()
	expiresAt := now.AddDate(0, 0, in.ValidityDays)

	codes := make([]string, 0, in.Count)
	cards := make([]store.Card, 0, in.Count)
	seen := make(map[string]struct{}, in.Count)
	for len(cards) < in.Count {
		code, err := newCode(in.Prefix)
		if err != nil {
			return store.CardBatch{}, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}

		digest, err := s.hasher.Hash([]byte(code))
		if err != nil {
			return store.CardBatch{}, fmt.Errorf("hash card code: %w", err)
		}
		cardID, err := s.ids.NewUUID()
		if err != nil {
			return store.CardBatch{}, fmt.Errorf("mint card id: %w", err)
		}
		codes = append(codes, code)
		cards = append(cards, store.Card{
			ID:        cardID,
			BatchID:   batchID,
			CodeHash:  digest,
			Status:    store.CardAvailable,
			ExpiresAt: expiresAt,
			CreatedAt: now,
		})
	}

	exportURI, err := s.writeExport(ctx, batchID, codes, expiresAt)
	if err != nil {
		return store.CardBatch{}, err
	}

	batch := store.CardBatch{
		ID:           batchID,
		PlanID:       in.PlanID,
		Prefix:       in.Prefix,
		Count:        in.Count,
		ValidityDays: in.ValidityDays,
		ExportURI:    exportURI,
		CreatedAt:    now,
	}
	if err := s.repo.CreateBatch(ctx, batch, cards); err != nil {
		return store.CardBatch{}, err
	}

	s.logger.Info("card batch created",
		zap.String("batch_id", batchID.String()),
		zap.String("plan_id", in.PlanID),
		zap.Int("count", in.Count))
	return batch, nil
}

func (s *Service) validateBatch(ctx context.Context, in BatchInput) error {
	if in.PlanID == "" {
		return fmt.Errorf("%w: plan id is required", store.ErrInvalid)
	}
	if in.Count < 1 || in.Count > maxBatchCount {
		return fmt.Errorf("%w: count must be 1..%d", store.ErrInvalid, maxBatchCount)
	}
	if in.ValidityDays < 1 {
		return fmt.Errorf("%w: validity days must be positive", store.ErrInvalid)
	}
	if len(in.Prefix) > maxPrefixLen || !prefixPattern.MatchString(in.Prefix) {
		return fmt.Errorf("%w: prefix must be up to %d uppercase letters or digits", store.ErrInvalid, maxPrefixLen)
	}
	exists, err := s.core.PlanExists(ctx, in.PlanID)
	if err != nil {
		return fmt.Errorf("check plan %s: %w", in.PlanID, err)
	}
	if !exists {
		return fmt.Errorf("%w: unknown plan %q", store.ErrInvalid, in.PlanID)
	}
	return nil
}

// writeExport is the only place plaintext codes leave the process.
func (s *Service) writeExport(ctx context.Context, batchID uuid.UUID, codes []string, expiresAt time.Time) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"code", "expires_at"}); err != nil {
		return "", fmt.Errorf("write export header: %w", err)
	}
	expiry := expiresAt.Format("2006-01-02")
	for _, code := range codes {
		if err := w.Write([]string{code, expiry}); err != nil {
			return "", fmt.Errorf("write export row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush export: %w", err)
	}

	path := fmt.Sprintf("cards/%s.csv", batchID)
	uri, err := s.blobs.PutObject(ctx, path, "text/csv", &buf)
	if err != nil {
		return "", fmt.Errorf("store card export: %w", err)
	}
	return uri, nil
}

// GetBatch loads one batch.
func (s *Service) GetBatch(ctx context.Context, batchID uuid.UUID) (store.CardBatch, error) {
	return s.repo.GetBatch(ctx, batchID)
}

// ListBatches pages through batches, newest first.
func (s *Service) ListBatches(ctx context.Context, limit, offset int) ([]store.CardBatch, error) {
	return s.repo.ListBatches(ctx, limit, offset)
}

// ListBatchCards pages through a batch's cards. Hashes stay internal;
// the API layer serializes only status and timestamps.
func (s *Service) ListBatchCards(ctx context.Context, batchID uuid.UUID, limit, offset int) ([]store.Card, error) {
	return s.repo.ListBatchCards(ctx, batchID, limit, offset)
}

// Redeem applies the card with the given code to a subscriber. The store
// rejects unavailable and expired cards; the core is told afterwards so
// it extends the plan. The published event is best-effort.
func (s *Service) Redeem(ctx context.Context, code, subscriberID string) (store.Card, error) {
	if code == "" || subscriberID == "" {
		return store.Card{}, fmt.Errorf("%w: code and subscriber id are required", store.ErrInvalid)
	}
	digest, err := s.hasher.Hash([]byte(code))
	if err != nil {
		return store.Card{}, fmt.Errorf("hash card code: %w", err)
	}

	now := s.clock.Now()
	card, err := s.repo.RedeemCard(ctx, digest, subscriberID, now)
	if err != nil {
		return store.Card{}, err
	}

	batch, err := s.repo.GetBatch(ctx, card.BatchID)
	if err != nil {
		return store.Card{}, fmt.Errorf("load batch %s: %w", card.BatchID, err)
	}
	if err := s.core.NotifyRedemption(ctx, platform.Redemption{
		SubscriberID: subscriberID,
		PlanID:       batch.PlanID,
		ValidityDays: batch.ValidityDays,
		RedeemedAt:   now,
	}); err != nil {
		return store.Card{}, fmt.Errorf("notify redemption: %w", err)
	}

	s.publishRedeemed(RedeemedEvent{
		CardID:       card.ID,
		BatchID:      card.BatchID,
		SubscriberID: subscriberID,
		PlanID:       batch.PlanID,
		RedeemedAt:   now,
	})
	return card, nil
}

func (s *Service) publishRedeemed(event RedeemedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if _, err := s.pub.Publish(ctx, redeemedTopic, event); err != nil {
		s.logger.Warn("redemption event publish failed",
			zap.String("card_id", event.CardID.String()),
			zap.Error(err))
	}
}

// VoidBatch voids every unredeemed card of the batch and reports the count.
func (s *Service) VoidBatch(ctx context.Context, batchID uuid.UUID) (int64, error) {
	if _, err := s.repo.GetBatch(ctx, batchID); err != nil {
		return 0, err
	}
	voided, err := s.repo.VoidBatch(ctx, batchID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("card batch voided",
		zap.String("batch_id", batchID.String()),
		zap.Int64("voided", voided))
	return voided, nil
}
