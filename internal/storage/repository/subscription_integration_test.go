package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasmartins-br/fitgate/internal/models"
)

func TestStorage_CreateAndGetSubscription(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	pendingAt := time.Now().UTC().Truncate(time.Millisecond)
	seedPending(t, storage, "user-1", "TX123", pendingAt)

	got, err := storage.GetSubscription(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserUID)
	assert.Equal(t, models.StatusPending, got.Status)
	require.NotNil(t, got.LastPaymentRef)
	assert.Equal(t, "TX123", *got.LastPaymentRef)
	require.NotNil(t, got.PendingAt)
	assert.True(t, got.PendingAt.Equal(pendingAt))
	assert.Equal(t, int64(1), got.Version)
}

func TestStorage_GetSubscription_NotFound(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	_, err := storage.GetSubscription(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrSubscriptionNotFound)
}

func TestStorage_CreateSubscription_Duplicate(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	pendingAt := time.Now().UTC()
	seedPending(t, storage, "user-1", "TX123", pendingAt)

	ref := "TX456"
	err := storage.CreateSubscription(context.Background(), &models.SubscriptionRecord{
		UserUID:        "user-1",
		Status:         models.StatusPending,
		PendingAt:      &pendingAt,
		LastPaymentRef: &ref,
	})
	require.ErrorIs(t, err, ErrVersionConflict)
}

func TestStorage_PutSubscription_VersionGate(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()
	rec := seedPending(t, storage, "user-1", "TX123", time.Now().UTC())

	now := time.Now().UTC()
	expires := now.Add(720 * time.Hour)
	next := *rec
	next.Status = models.StatusActive
	next.ActivatedAt = &now
	next.ExpiresAt = &expires
	next.PendingAt = nil

	require.NoError(t, storage.PutSubscription(ctx, 1, &next))

	got, err := storage.GetSubscription(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)
	assert.Equal(t, int64(2), got.Version)

	// Write carrying the stale version loses the race.
	err = storage.PutSubscription(ctx, 1, &next)
	require.ErrorIs(t, err, ErrVersionConflict)

	got, err = storage.GetSubscription(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
}

func TestStorage_ApplyPaymentTransition(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()
	rec := seedPending(t, storage, "user-1", "TX123", time.Now().UTC())

	now := time.Now().UTC()
	expires := now.Add(720 * time.Hour)
	next := *rec
	next.Status = models.StatusActive
	next.ActivatedAt = &now
	next.ExpiresAt = &expires
	next.PendingAt = nil

	conf := &models.PaymentConfirmation{
		IdempotencyKey: "E2E123",
		PaymentRef:     "TX123",
		UserUID:        "user-1",
		AmountCents:    4990,
		Currency:       "BRL",
		ConfirmedAt:    now,
	}

	require.NoError(t, storage.ApplyPaymentTransition(ctx, 1, &next, conf))

	got, err := storage.GetSubscription(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)
	assert.Equal(t, int64(2), got.Version)

	seen, err := storage.HasPaymentEvent(ctx, "E2E123")
	require.NoError(t, err)
	assert.True(t, seen)

	// Redelivery of the same idempotency key must not apply twice.
	err = storage.ApplyPaymentTransition(ctx, 2, &next, conf)
	require.ErrorIs(t, err, ErrDuplicateEvent)

	got, err = storage.GetSubscription(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
}

func TestStorage_ApplyPaymentTransition_VersionConflictKeepsNothing(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()
	rec := seedPending(t, storage, "user-1", "TX123", time.Now().UTC())

	now := time.Now().UTC()
	next := *rec
	next.Status = models.StatusActive
	next.ActivatedAt = &now

	conf := &models.PaymentConfirmation{
		IdempotencyKey: "E2E123",
		PaymentRef:     "TX123",
		UserUID:        "user-1",
		AmountCents:    4990,
		Currency:       "BRL",
		ConfirmedAt:    now,
	}

	err := storage.ApplyPaymentTransition(ctx, 99, &next, conf)
	require.ErrorIs(t, err, ErrVersionConflict)

	// The aborted transaction must not leave the idempotency key behind.
	seen, err := storage.HasPaymentEvent(ctx, "E2E123")
	require.NoError(t, err)
	assert.False(t, seen)

	got, err := storage.GetSubscription(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, int64(1), got.Version)
}

func TestStorage_ListPendingOlderThan(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC()
	seedPending(t, storage, "stale-1", "TX1", now.Add(-2*time.Hour))
	seedPending(t, storage, "stale-2", "TX2", now.Add(-time.Hour))
	seedPending(t, storage, "fresh", "TX3", now.Add(-time.Minute))

	got, err := storage.ListPendingOlderThan(ctx, now.Add(-30*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "stale-1", got[0].UserUID)
	assert.Equal(t, "stale-2", got[1].UserUID)
}

func TestStorage_ListActiveExpiredBefore(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC()

	seedActive := func(userUID string, expiresAt time.Time) {
		activatedAt := expiresAt.Add(-720 * time.Hour)
		require.NoError(t, storage.CreateSubscription(ctx, &models.SubscriptionRecord{
			UserUID:     userUID,
			Status:      models.StatusActive,
			ActivatedAt: &activatedAt,
			ExpiresAt:   &expiresAt,
		}))
	}
	seedActive("lapsed", now.Add(-time.Hour))
	seedActive("current", now.Add(time.Hour))

	got, err := storage.ListActiveExpiredBefore(ctx, now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "lapsed", got[0].UserUID)
}
