package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/google/uuid"
)

func TestNotificationAcknowledge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t)
	notifications := NewNotificationService(f.notes, f.users, testLogger())

	created, err := notifications.Create(ctx, user.ID, nil, "renewal succeeded")
	require.NoError(t, err)
	assert.False(t, created.Acknowledged)

	acked, err := notifications.Acknowledge(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, acked.Acknowledged)

	// Повторное подтверждение возвращает то же состояние
	again, err := notifications.Acknowledge(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, again.Acknowledged)
}

func TestNotificationAcknowledge_Missing(t *testing.T) {
	f := newFixture(t)
	notifications := NewNotificationService(f.notes, f.users, testLogger())

	_, err := notifications.Acknowledge(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNotificationCreateTest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t)
	notifications := NewNotificationService(f.notes, f.users, testLogger())

	created, err := notifications.CreateTest(ctx, domain.NotificationRequest{
		UserID:  user.ID.String(),
		Message: "test delivery",
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, created.UserID)
	assert.Nil(t, created.SubscriptionID)

	// Уведомление для несуществующего пользователя не создается
	_, err = notifications.CreateTest(ctx, domain.NotificationRequest{
		UserID:  uuid.New().String(),
		Message: "test delivery",
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
