package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CardStatus is the lifecycle state of one prepaid card.
type CardStatus string

// Card statuses. Expiry is decided by ExpiresAt at redemption time, not by
// a stored status.
const (
	CardAvailable CardStatus = "available"
	CardRedeemed  CardStatus = "redeemed"
	CardVoid      CardStatus = "void"
)

// CardBatch groups cards generated together. ExportURI points at the
// one-time CSV export in the blob store; the plaintext codes exist nowhere
// else.
type CardBatch struct {
	ID           uuid.UUID
	PlanID       string
	Prefix       string
	Count        int
	ValidityDays int
	ExportURI    string
	CreatedAt    time.Time
}

// Card stores the SHA-256 hash of the code, never the code itself.
type Card struct {
	ID         uuid.UUID
	BatchID    uuid.UUID
	CodeHash   string
	Status     CardStatus
	ExpiresAt  time.Time
	RedeemedBy *string
	RedeemedAt *time.Time
	CreatedAt  time.Time
}

// CardRepository persists card batches and their cards.
type CardRepository interface {
	// CreateBatch inserts the batch and all its cards in one transaction.
	CreateBatch(ctx context.Context, batch CardBatch, cards []Card) error
	GetBatch(ctx context.Context, id uuid.UUID) (CardBatch, error)
	ListBatches(ctx context.Context, limit, offset int) ([]CardBatch, error)
	ListBatchCards(ctx context.Context, batchID uuid.UUID, limit, offset int) ([]Card, error)

	// RedeemCard atomically marks the card with the given hash redeemed.
	// ErrNotFound when no card has the hash; ErrConflict when the card is
	// not available or has expired.
	RedeemCard(ctx context.Context, codeHash, subscriberID string, at time.Time) (Card, error)
	// VoidBatch voids every still-available card of the batch and reports
	// how many it voided.
	VoidBatch(ctx context.Context, batchID uuid.UUID) (int64, error)
}
