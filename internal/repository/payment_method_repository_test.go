package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/google/uuid"
)

func newCardMethod(userID uuid.UUID, isDefault bool) domain.PaymentMethodDetail {
	return domain.PaymentMethodDetail{
		ID:                  uuid.New(),
		UserID:              userID,
		PaymentMethod:       domain.PaymentMethodCard,
		PeachRegistrationID: "reg-" + uuid.New().String(),
		CardLastFour:        "4242",
		CardBrand:           "VISA",
		IsDefault:           isDefault,
		IsActive:            true,
	}
}

func TestPaymentMethodRepository_SingleDefaultPerUser(t *testing.T) {
	repo := NewInMemoryPaymentMethodRepository(testLogger())
	ctx := context.Background()
	userID := uuid.New()

	first, err := repo.Create(ctx, newCardMethod(userID, true))
	require.NoError(t, err)

	second, err := repo.Create(ctx, newCardMethod(userID, true))
	require.NoError(t, err)

	// Новый метод по умолчанию снимает флаг с предыдущего
	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDefault)

	def, err := repo.GetDefaultActive(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, def.ID)
}

func TestPaymentMethodRepository_SetDefault(t *testing.T) {
	repo := NewInMemoryPaymentMethodRepository(testLogger())
	ctx := context.Background()
	userID := uuid.New()

	first, err := repo.Create(ctx, newCardMethod(userID, true))
	require.NoError(t, err)
	second, err := repo.Create(ctx, newCardMethod(userID, false))
	require.NoError(t, err)

	require.NoError(t, repo.SetDefault(ctx, userID, second.ID))

	def, err := repo.GetDefaultActive(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, def.ID)

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDefault)
}

func TestPaymentMethodRepository_SetDefaultErrors(t *testing.T) {
	repo := NewInMemoryPaymentMethodRepository(testLogger())
	ctx := context.Background()
	userID := uuid.New()

	method, err := repo.Create(ctx, newCardMethod(userID, false))
	require.NoError(t, err)

	// Чужой метод выглядит как отсутствующий
	assert.ErrorIs(t, repo.SetDefault(ctx, uuid.New(), method.ID), ErrNotFound)
	assert.ErrorIs(t, repo.SetDefault(ctx, userID, uuid.New()), ErrNotFound)

	require.NoError(t, repo.Deactivate(ctx, method.ID))
	assert.ErrorIs(t, repo.SetDefault(ctx, userID, method.ID), ErrInvalidOperation)
}

func TestPaymentMethodRepository_DeactivateHidesMethod(t *testing.T) {
	repo := NewInMemoryPaymentMethodRepository(testLogger())
	ctx := context.Background()
	userID := uuid.New()

	method, err := repo.Create(ctx, newCardMethod(userID, true))
	require.NoError(t, err)

	require.NoError(t, repo.Deactivate(ctx, method.ID))

	methods, err := repo.GetByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, methods)

	_, err = repo.GetDefaultActive(ctx, userID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, repo.Deactivate(ctx, uuid.New()), ErrNotFound)
}
