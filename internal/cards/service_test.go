package cards

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	sha256hash "github.com/strataisp/console/internal/hash/sha256"
	"github.com/strataisp/console/internal/platform"
	"github.com/strataisp/console/internal/store"
)

func validBatch() BatchInput {
	return BatchInput{
		PlanID:       "fiber-100",
		Count:        25,
		ValidityDays: 90,
		Prefix:       "FB",
	}
}

func newTestService(repo *fakeRepo, core *fakeCore, blobs *fakeBlobs, pub *fakePublisher) *Service {
	return New(Config{
		Repo:      repo,
		Core:      core,
		Hasher:    sha256hash.New(),
		Blobs:     blobs,
		Publisher: pub,
		IDs:       uuidGen{},
		Clock:     frozenClock{},
	})
}

// TestCreateBatch generates distinct prefixed codes, stores only hashes,
// and writes the plaintext export exactly once.
func TestCreateBatch(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	blobs := &fakeBlobs{}
	svc := newTestService(repo, &fakeCore{planExists: true}, blobs, &fakePublisher{})

	batch, err := svc.CreateBatch(context.Background(), validBatch())
	require.NoError(t, err)
	require.Equal(t, 25, batch.Count)
	require.Equal(t, "memory://cards/"+batch.ID.String()+".csv", batch.ExportURI)
	require.Len(t, repo.cards, 25)

	records, err := csv.NewReader(strings.NewReader(blobs.body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 26)
	require.Equal(t, []string{"code", "expires_at"}, records[0])

	seen := make(map[string]struct{})
	for _, record := range records[1:] {
		code := record[0]
		require.Len(t, code, len("FB")+codeRandomLen)
		require.True(t, strings.HasPrefix(code, "FB"))
		require.NotContains(t, code[2:], "0")
		require.NotContains(t, code[2:], "O")
		require.NotContains(t, code[2:], "1")
		require.NotContains(t, code[2:], "I")
		seen[code] = struct{}{}
	}
	require.Len(t, seen, 25)

	for _, card := range repo.cards {
		require.Equal(t, store.CardAvailable, card.Status)
		require.Len(t, card.CodeHash, 64)
	}
}

// TestCreateBatchValidation covers the input guards.
func TestCreateBatchValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*BatchInput)
	}{
		{"missing plan", func(in *BatchInput) { in.PlanID = "" }},
		{"zero count", func(in *BatchInput) { in.Count = 0 }},
		{"oversized count", func(in *BatchInput) { in.Count = maxBatchCount + 1 }},
		{"zero validity", func(in *BatchInput) { in.ValidityDays = 0 }},
		{"lowercase prefix", func(in *BatchInput) { in.Prefix = "fb" }},
		{"oversized prefix", func(in *BatchInput) { in.Prefix = "TOOLONGPREFIX" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := newTestService(newFakeRepo(), &fakeCore{planExists: true}, &fakeBlobs{}, &fakePublisher{})
			in := validBatch()
			tc.mutate(&in)
			_, err := svc.CreateBatch(context.Background(), in)
			require.ErrorIs(t, err, store.ErrInvalid)
		})
	}
}

// TestCreateBatchUnknownPlan rejects plans the core does not know.
func TestCreateBatchUnknownPlan(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeRepo(), &fakeCore{planExists: false}, &fakeBlobs{}, &fakePublisher{})
	_, err := svc.CreateBatch(context.Background(), validBatch())
	require.ErrorIs(t, err, store.ErrInvalid)
}

// TestRedeem matches by hash, notifies the core, and publishes the event.
func TestRedeem(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	core := &fakeCore{planExists: true}
	blobs := &fakeBlobs{}
	pub := &fakePublisher{}
	svc := newTestService(repo, core, blobs, pub)

	_, err := svc.CreateBatch(context.Background(), validBatch())
	require.NoError(t, err)
	code := firstExportedCode(t, blobs.body)

	card, err := svc.Redeem(context.Background(), code, "sub-9")
	require.NoError(t, err)
	require.Equal(t, store.CardRedeemed, card.Status)
	require.Equal(t, "sub-9", *card.RedeemedBy)

	require.Len(t, core.redemptions, 1)
	require.Equal(t, "fiber-100", core.redemptions[0].PlanID)
	require.Equal(t, 90, core.redemptions[0].ValidityDays)

	require.Len(t, pub.events, 1)
	require.Equal(t, redeemedTopic, pub.events[0].topic)
}

// TestRedeemTwiceConflicts relays the store's conflict on a reused code.
func TestRedeemTwiceConflicts(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	blobs := &fakeBlobs{}
	svc := newTestService(repo, &fakeCore{planExists: true}, blobs, &fakePublisher{})

	_, err := svc.CreateBatch(context.Background(), validBatch())
	require.NoError(t, err)
	code := firstExportedCode(t, blobs.body)

	_, err = svc.Redeem(context.Background(), code, "sub-1")
	require.NoError(t, err)
	_, err = svc.Redeem(context.Background(), code, "sub-2")
	require.ErrorIs(t, err, store.ErrConflict)
}

// TestRedeemUnknownCode maps a miss to not-found.
func TestRedeemUnknownCode(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeRepo(), &fakeCore{planExists: true}, &fakeBlobs{}, &fakePublisher{})
	_, err := svc.Redeem(context.Background(), "FBNOSUCHCODE", "sub-1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

// TestRedeemPublishFailureIsNotFatal keeps the redemption when the broker
// is down.
func TestRedeemPublishFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	blobs := &fakeBlobs{}
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := newTestService(repo, &fakeCore{planExists: true}, blobs, pub)

	_, err := svc.CreateBatch(context.Background(), validBatch())
	require.NoError(t, err)
	code := firstExportedCode(t, blobs.body)

	card, err := svc.Redeem(context.Background(), code, "sub-1")
	require.NoError(t, err)
	require.Equal(t, store.CardRedeemed, card.Status)
}

// TestVoidBatch voids only still-available cards.
func TestVoidBatch(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	blobs := &fakeBlobs{}
	svc := newTestService(repo, &fakeCore{planExists: true}, blobs, &fakePublisher{})

	batch, err := svc.CreateBatch(context.Background(), validBatch())
	require.NoError(t, err)
	code := firstExportedCode(t, blobs.body)
	_, err = svc.Redeem(context.Background(), code, "sub-1")
	require.NoError(t, err)

	voided, err := svc.VoidBatch(context.Background(), batch.ID)
	require.NoError(t, err)
	require.EqualValues(t, 24, voided)
}

func firstExportedCode(t *testing.T, export string) string {
	t.Helper()
	records, err := csv.NewReader(strings.NewReader(export)).ReadAll()
	require.NoError(t, err)
	require.Greater(t, len(records), 1)
	return records[1][0]
}

type uuidGen struct{}

func (uuidGen) NewUUID() (uuid.UUID, error) {
	return uuid.NewV7()
}

type frozenClock struct{}

func (frozenClock) Now() time.Time {
	return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
}

type fakeCore struct {
	planExists  bool
	redemptions []platform.Redemption
}

func (c *fakeCore) PlanExists(context.Context, string) (bool, error) {
	return c.planExists, nil
}

func (c *fakeCore) NotifyRedemption(_ context.Context, r platform.Redemption) error {
	c.redemptions = append(c.redemptions, r)
	return nil
}

type fakeBlobs struct {
	body string
}

func (b *fakeBlobs) PutObject(_ context.Context, path, _ string, data io.Reader) (string, error) {
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	b.body = string(raw)
	return "memory://" + path, nil
}

type publishedEvent struct {
	topic   string
	payload any
}

type fakePublisher struct {
	events []publishedEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.events = append(p.events, publishedEvent{topic: topic, payload: payload})
	return "msg-1", nil
}

type fakeRepo struct {
	batches map[uuid.UUID]store.CardBatch
	cards   map[uuid.UUID]store.Card
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		batches: make(map[uuid.UUID]store.CardBatch),
		cards:   make(map[uuid.UUID]store.Card),
	}
}

func (r *fakeRepo) CreateBatch(_ context.Context, batch store.CardBatch, cards []store.Card) error {
	r.batches[batch.ID] = batch
	for _, card := range cards {
		r.cards[card.ID] = card
	}
	return nil
}

func (r *fakeRepo) GetBatch(_ context.Context, batchID uuid.UUID) (store.CardBatch, error) {
	batch, ok := r.batches[batchID]
	if !ok {
		return store.CardBatch{}, store.ErrNotFound
	}
	return batch, nil
}

func (r *fakeRepo) ListBatches(_ context.Context, _, _ int) ([]store.CardBatch, error) {
	out := make([]store.CardBatch, 0, len(r.batches))
	for _, batch := range r.batches {
		out = append(out, batch)
	}
	return out, nil
}

func (r *fakeRepo) ListBatchCards(_ context.Context, batchID uuid.UUID, _, _ int) ([]store.Card, error) {
	var out []store.Card
	for _, card := range r.cards {
		if card.BatchID == batchID {
			out = append(out, card)
		}
	}
	return out, nil
}

func (r *fakeRepo) RedeemCard(_ context.Context, codeHash, subscriberID string, at time.Time) (store.Card, error) {
	for id, card := range r.cards {
		if card.CodeHash != codeHash {
			continue
		}
		if card.Status != store.CardAvailable || at.After(card.ExpiresAt) {
			return store.Card{}, store.ErrConflict
		}
		card.Status = store.CardRedeemed
		card.RedeemedBy = &subscriberID
		card.RedeemedAt = &at
		r.cards[id] = card
		return card, nil
	}
	return store.Card{}, store.ErrNotFound
}

func (r *fakeRepo) VoidBatch(_ context.Context, batchID uuid.UUID) (int64, error) {
	var voided int64
	for id, card := range r.cards {
		if card.BatchID == batchID && card.Status == store.CardAvailable {
			card.Status = store.CardVoid
			r.cards[id] = card
			voided++
		}
	}
	return voided, nil
}
