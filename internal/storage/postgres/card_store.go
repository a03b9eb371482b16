package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/strataisp/console/internal/store"
)

// CardStore implements store.CardRepository.
type CardStore struct {
	db DB
}

// NewCardStore creates a new CardStore on the shared pool.
func NewCardStore(db DB) *CardStore {
	return &CardStore{db: db}
}

// CreateBatch inserts the batch and all its cards in one transaction.
func (s *CardStore) CreateBatch(ctx context.Context, batch store.CardBatch, cards []store.Card) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin card batch: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	query := `
		INSERT INTO card_batches (id, plan_id, prefix, count, validity_days, export_uri, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	_, err = tx.Exec(ctx, query,
		batch.ID, batch.PlanID, batch.Prefix, batch.Count, batch.ValidityDays,
		batch.ExportURI, batch.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert card batch: %w", err)
	}

	rows := make([][]any, 0, len(cards))
	for _, c := range cards {
		rows = append(rows, []any{c.ID, c.BatchID, c.CodeHash, c.Status, c.ExpiresAt, c.CreatedAt})
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"cards"},
		[]string{"id", "batch_id", "code_hash", "status", "expires_at", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("insert cards: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit card batch: %w", err)
	}
	return nil
}

// GetBatch retrieves a single batch by its ID.
func (s *CardStore) GetBatch(ctx context.Context, id uuid.UUID) (store.CardBatch, error) {
	query := `
		SELECT id, plan_id, prefix, count, validity_days, export_uri, created_at
		FROM card_batches WHERE id = $1;
	`
	var batch store.CardBatch
	err := s.db.QueryRow(ctx, query, id).Scan(
		&batch.ID, &batch.PlanID, &batch.Prefix, &batch.Count, &batch.ValidityDays,
		&batch.ExportURI, &batch.CreatedAt,
	)
	if err != nil {
		return store.CardBatch{}, notFound(err, "get card batch")
	}
	return batch, nil
}

// ListBatches returns batches newest first.
func (s *CardStore) ListBatches(ctx context.Context, limit, offset int) ([]store.CardBatch, error) {
	query := `
		SELECT id, plan_id, prefix, count, validity_days, export_uri, created_at
		FROM card_batches
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2;
	`
	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list card batches: %w", err)
	}
	defer rows.Close()

	var batches []store.CardBatch
	for rows.Next() {
		var batch store.CardBatch
		err := rows.Scan(
			&batch.ID, &batch.PlanID, &batch.Prefix, &batch.Count, &batch.ValidityDays,
			&batch.ExportURI, &batch.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan card batch: %w", err)
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

const cardColumns = `id, batch_id, code_hash, status, expires_at, redeemed_by, redeemed_at, created_at`

// ListBatchCards returns the cards of a batch in creation order.
func (s *CardStore) ListBatchCards(ctx context.Context, batchID uuid.UUID, limit, offset int) ([]store.Card, error) {
	query := `
		SELECT ` + cardColumns + ` FROM cards
		WHERE batch_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3;
	`
	rows, err := s.db.Query(ctx, query, batchID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list batch cards: %w", err)
	}
	defer rows.Close()

	var cards []store.Card
	for rows.Next() {
		var c store.Card
		err := rows.Scan(
			&c.ID, &c.BatchID, &c.CodeHash, &c.Status, &c.ExpiresAt,
			&c.RedeemedBy, &c.RedeemedAt, &c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// RedeemCard atomically marks the card with the given hash redeemed. The
// conditional UPDATE is the only write path, so two concurrent redemptions
// of the same code cannot both succeed.
func (s *CardStore) RedeemCard(ctx context.Context, codeHash, subscriberID string, at time.Time) (store.Card, error) {
	query := `
		UPDATE cards
		SET status = $4, redeemed_by = $2, redeemed_at = $3
		WHERE code_hash = $1 AND status = $5 AND expires_at > $3
		RETURNING ` + cardColumns + `;
	`
	var c store.Card
	err := s.db.QueryRow(ctx, query, codeHash, subscriberID, at, store.CardRedeemed, store.CardAvailable).Scan(
		&c.ID, &c.BatchID, &c.CodeHash, &c.Status, &c.ExpiresAt,
		&c.RedeemedBy, &c.RedeemedAt, &c.CreatedAt,
	)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return store.Card{}, fmt.Errorf("redeem card: %w", err)
	}

	// Nothing matched: distinguish an unknown code from one that is no
	// longer redeemable.
	var status store.CardStatus
	var expiresAt time.Time
	probe := `SELECT status, expires_at FROM cards WHERE code_hash = $1;`
	err = s.db.QueryRow(ctx, probe, codeHash).Scan(&status, &expiresAt)
	if err != nil {
		return store.Card{}, notFound(err, "look up card")
	}
	switch {
	case status == store.CardRedeemed:
		return store.Card{}, fmt.Errorf("%w: card already redeemed", store.ErrConflict)
	case status == store.CardVoid:
		return store.Card{}, fmt.Errorf("%w: card is void", store.ErrConflict)
	default:
		return store.Card{}, fmt.Errorf("%w: card expired %s", store.ErrConflict, expiresAt.Format(time.RFC3339))
	}
}

// VoidBatch voids every still-available card of the batch.
func (s *CardStore) VoidBatch(ctx context.Context, batchID uuid.UUID) (int64, error) {
	query := `UPDATE cards SET status = $2 WHERE batch_id = $1 AND status = $3;`
	res, err := s.db.Exec(ctx, query, batchID, store.CardVoid, store.CardAvailable)
	if err != nil {
		return 0, fmt.Errorf("void card batch: %w", err)
	}
	return res.RowsAffected(), nil
}
