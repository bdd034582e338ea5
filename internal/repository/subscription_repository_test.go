package repository

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/pkg/logger"
	"github.com/google/uuid"
)

func testLogger() *logger.Logger {
	log := logger.New(logger.INFO)
	log.SetOutput(io.Discard)
	return log
}

func newActiveSubscription(userID uuid.UUID, periodEnd time.Time) domain.Subscription {
	started := periodEnd.AddDate(0, -1, 0)
	return domain.Subscription{
		ID:               uuid.New(),
		UserID:           userID,
		PlanName:         "premium",
		Price:            199,
		Status:           domain.SubscriptionStatusActive,
		StartedAt:        &started,
		CurrentPeriodEnd: &periodEnd,
	}
}

func TestSubscriptionRepository_GetDue(t *testing.T) {
	repo := NewInMemorySubscriptionRepository(testLogger())
	ctx := context.Background()
	now := time.Now()

	overdue := newActiveSubscription(uuid.New(), now.Add(-time.Hour))
	exactly := newActiveSubscription(uuid.New(), now)
	future := newActiveSubscription(uuid.New(), now.Add(time.Hour))

	expired := newActiveSubscription(uuid.New(), now.Add(-time.Hour))
	expired.Status = domain.SubscriptionStatusExpired

	pending := domain.Subscription{ID: uuid.New(), UserID: uuid.New(), Status: domain.SubscriptionStatusPending}

	for _, sub := range []domain.Subscription{overdue, exactly, future, expired, pending} {
		_, err := repo.Create(ctx, sub)
		require.NoError(t, err)
	}

	due, err := repo.GetDue(ctx, now)
	require.NoError(t, err)

	ids := make([]uuid.UUID, 0, len(due))
	for _, sub := range due {
		ids = append(ids, sub.ID)
	}

	// Попадают только активные с current_period_end <= now
	assert.Len(t, due, 2)
	assert.Contains(t, ids, overdue.ID)
	assert.Contains(t, ids, exactly.ID)
}

func TestSubscriptionRepository_GetExpiredSince(t *testing.T) {
	repo := NewInMemorySubscriptionRepository(testLogger())
	ctx := context.Background()
	cutoff := time.Now().Add(-72 * time.Hour)

	old := newActiveSubscription(uuid.New(), cutoff.Add(-time.Hour))
	old.Status = domain.SubscriptionStatusExpired

	recent := newActiveSubscription(uuid.New(), cutoff.Add(time.Hour))
	recent.Status = domain.SubscriptionStatusExpired

	active := newActiveSubscription(uuid.New(), cutoff.Add(-time.Hour))

	for _, sub := range []domain.Subscription{old, recent, active} {
		_, err := repo.Create(ctx, sub)
		require.NoError(t, err)
	}

	lapsed, err := repo.GetExpiredSince(ctx, cutoff)
	require.NoError(t, err)

	require.Len(t, lapsed, 1)
	assert.Equal(t, old.ID, lapsed[0].ID)
}

func TestSubscriptionRepository_ExtendPeriod(t *testing.T) {
	repo := NewInMemorySubscriptionRepository(testLogger())
	ctx := context.Background()

	periodEnd := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	sub := newActiveSubscription(uuid.New(), periodEnd)
	_, err := repo.Create(ctx, sub)
	require.NoError(t, err)

	next := periodEnd.AddDate(0, 1, 0)
	require.NoError(t, repo.ExtendPeriod(ctx, sub.ID, periodEnd, next))

	got, err := repo.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentPeriodEnd)
	assert.True(t, got.CurrentPeriodEnd.Equal(next))
	assert.Equal(t, domain.SubscriptionStatusActive, got.Status)
}

func TestSubscriptionRepository_ExtendPeriodConflict(t *testing.T) {
	repo := NewInMemorySubscriptionRepository(testLogger())
	ctx := context.Background()

	periodEnd := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	sub := newActiveSubscription(uuid.New(), periodEnd)
	_, err := repo.Create(ctx, sub)
	require.NoError(t, err)

	next := periodEnd.AddDate(0, 1, 0)
	require.NoError(t, repo.ExtendPeriod(ctx, sub.ID, periodEnd, next))

	// Повтор с устаревшим observed не проходит: период уже сдвинут
	err = repo.ExtendPeriod(ctx, sub.ID, periodEnd, next.AddDate(0, 1, 0))
	assert.ErrorIs(t, err, ErrConflict)

	got, err := repo.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentPeriodEnd.Equal(next))
}

func TestSubscriptionRepository_ExtendPeriodMissing(t *testing.T) {
	repo := NewInMemorySubscriptionRepository(testLogger())

	err := repo.ExtendPeriod(context.Background(), uuid.New(), time.Now(), time.Now().AddDate(0, 1, 0))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubscriptionRepository_UpdateStatus(t *testing.T) {
	repo := NewInMemorySubscriptionRepository(testLogger())
	ctx := context.Background()

	sub := newActiveSubscription(uuid.New(), time.Now())
	_, err := repo.Create(ctx, sub)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatus(ctx, sub.ID, domain.SubscriptionStatusSuspended))

	got, err := repo.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusSuspended, got.Status)

	assert.ErrorIs(t, repo.UpdateStatus(ctx, uuid.New(), domain.SubscriptionStatusActive), ErrNotFound)
}
