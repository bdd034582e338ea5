package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/google/uuid"
)

func TestSubscriptionCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t)

	sub, err := f.subscriptions.Create(ctx, domain.SubscriptionRequest{
		UserID:   user.ID.String(),
		PlanName: "premium",
		Price:    199,
	})
	require.NoError(t, err)

	// Новая подписка ждет оплаты
	assert.Equal(t, domain.SubscriptionStatusPending, sub.Status)
	assert.Nil(t, sub.StartedAt)
	assert.Nil(t, sub.CurrentPeriodEnd)
}

func TestSubscriptionCreate_UnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.subscriptions.Create(context.Background(), domain.SubscriptionRequest{
		UserID:   uuid.New().String(),
		PlanName: "premium",
		Price:    199,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSubscriptionActivate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t)
	sub := f.createSubscription(t, user.ID, domain.SubscriptionStatusPending, nil)

	before := time.Now().UTC()
	activated, err := f.subscriptions.Activate(ctx, sub.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.SubscriptionStatusActive, activated.Status)
	require.NotNil(t, activated.StartedAt)
	require.NotNil(t, activated.CurrentPeriodEnd)
	assert.False(t, activated.StartedAt.Before(before))
	assert.True(t, activated.CurrentPeriodEnd.Equal(activated.StartedAt.AddDate(0, 1, 0)))
}

func TestSubscriptionActivate_ActiveIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t)
	periodEnd := time.Now().UTC().AddDate(0, 1, 0)
	sub := f.createSubscription(t, user.ID, domain.SubscriptionStatusActive, &periodEnd)

	activated, err := f.subscriptions.Activate(ctx, sub.ID)
	require.NoError(t, err)

	// Повторная активация не сдвигает расчетный период
	assert.True(t, activated.CurrentPeriodEnd.Equal(periodEnd))
}

func TestSubscriptionActivate_FromSuspended(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t)
	periodEnd := time.Now().UTC().Add(-48 * time.Hour)
	sub := f.createSubscription(t, user.ID, domain.SubscriptionStatusSuspended, &periodEnd)

	activated, err := f.subscriptions.Activate(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, activated.Status)
	assert.True(t, activated.CurrentPeriodEnd.After(time.Now()))
}

func TestSubscriptionActivate_CancelledFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t)
	sub := f.createSubscription(t, user.ID, domain.SubscriptionStatusCancelled, nil)

	_, err := f.subscriptions.Activate(ctx, sub.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	var subErr *domain.SubscriptionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, "INVALID_STATUS_TRANSITION", subErr.Code)
}

func TestSubscriptionCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t)
	periodEnd := time.Now().UTC().AddDate(0, 1, 0)
	sub := f.createSubscription(t, user.ID, domain.SubscriptionStatusActive, &periodEnd)

	cancelled, err := f.subscriptions.Cancel(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusCancelled, cancelled.Status)
	assert.Equal(t, 1, f.notificationCount(t, user.ID))

	// Повторная отмена идемпотентна и не плодит уведомления
	again, err := f.subscriptions.Cancel(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusCancelled, again.Status)
	assert.Equal(t, 1, f.notificationCount(t, user.ID))
}

func TestSubscriptionCancel_ExpiredFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t)
	periodEnd := time.Now().UTC().Add(-time.Hour)
	sub := f.createSubscription(t, user.ID, domain.SubscriptionStatusExpired, &periodEnd)

	_, err := f.subscriptions.Cancel(ctx, sub.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
}

func TestSuspendLapsed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t)
	cutoff := time.Now().UTC().Add(-72 * time.Hour)

	oldEnd := cutoff.Add(-time.Hour)
	lapsed := f.createSubscription(t, user.ID, domain.SubscriptionStatusExpired, &oldEnd)

	recentEnd := cutoff.Add(time.Hour)
	withinGrace := f.createSubscription(t, user.ID, domain.SubscriptionStatusExpired, &recentEnd)

	count, err := f.subscriptions.SuspendLapsed(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := f.subs.GetByID(ctx, lapsed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusSuspended, got.Status)

	// Подписка внутри льготного периода не трогается
	got, err = f.subs.GetByID(ctx, withinGrace.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusExpired, got.Status)

	assert.Equal(t, 1, f.notificationCount(t, user.ID))
}
