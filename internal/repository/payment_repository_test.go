package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/google/uuid"
)

func newPendingPayment(userID uuid.UUID, merchantTransactionID string) domain.Payment {
	return domain.Payment{
		ID:                    uuid.New(),
		UserID:                userID,
		Amount:                199,
		Currency:              domain.DefaultCurrency,
		Status:                domain.PaymentStatusPending,
		PaymentMethod:         domain.PaymentMethodCard,
		MerchantTransactionID: merchantTransactionID,
	}
}

func TestPaymentRepository_CreateDuplicateMerchantTransactionID(t *testing.T) {
	repo := NewInMemoryPaymentRepository(testLogger())
	ctx := context.Background()

	_, err := repo.Create(ctx, newPendingPayment(uuid.New(), "TXN_dup"))
	require.NoError(t, err)

	_, err = repo.Create(ctx, newPendingPayment(uuid.New(), "TXN_dup"))
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestPaymentRepository_GetByMerchantTransactionID(t *testing.T) {
	repo := NewInMemoryPaymentRepository(testLogger())
	ctx := context.Background()

	payment := newPendingPayment(uuid.New(), "TXN_lookup")
	_, err := repo.Create(ctx, payment)
	require.NoError(t, err)

	got, err := repo.GetByMerchantTransactionID(ctx, "TXN_lookup")
	require.NoError(t, err)
	assert.Equal(t, payment.ID, got.ID)

	_, err = repo.GetByMerchantTransactionID(ctx, "TXN_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPaymentRepository_GetByUserIDNewestFirst(t *testing.T) {
	repo := NewInMemoryPaymentRepository(testLogger())
	ctx := context.Background()
	userID := uuid.New()

	first := newPendingPayment(userID, "TXN_1")
	_, err := repo.Create(ctx, first)
	require.NoError(t, err)

	time.Sleep(time.Millisecond)

	second := newPendingPayment(userID, "TXN_2")
	_, err = repo.Create(ctx, second)
	require.NoError(t, err)

	_, err = repo.Create(ctx, newPendingPayment(uuid.New(), "TXN_other"))
	require.NoError(t, err)

	payments, err := repo.GetByUserID(ctx, userID)
	require.NoError(t, err)

	require.Len(t, payments, 2)
	assert.Equal(t, second.ID, payments[0].ID)
	assert.Equal(t, first.ID, payments[1].ID)
}

func TestPaymentRepository_GetLatestBySubscriptionID(t *testing.T) {
	repo := NewInMemoryPaymentRepository(testLogger())
	ctx := context.Background()
	userID := uuid.New()
	subscriptionID := uuid.New()

	first := newPendingPayment(userID, "TXN_sub_1")
	first.SubscriptionID = &subscriptionID
	_, err := repo.Create(ctx, first)
	require.NoError(t, err)

	time.Sleep(time.Millisecond)

	second := newPendingPayment(userID, "RENEWAL_sub_2")
	second.SubscriptionID = &subscriptionID
	second.IsRecurring = true
	_, err = repo.Create(ctx, second)
	require.NoError(t, err)

	latest, err := repo.GetLatestBySubscriptionID(ctx, subscriptionID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	_, err = repo.GetLatestBySubscriptionID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPaymentRepository_StatusAndGatewayFields(t *testing.T) {
	repo := NewInMemoryPaymentRepository(testLogger())
	ctx := context.Background()

	payment := newPendingPayment(uuid.New(), "TXN_flow")
	_, err := repo.Create(ctx, payment)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateCheckoutID(ctx, "TXN_flow", "chk-1"))
	require.NoError(t, repo.UpdatePeachPaymentID(ctx, "TXN_flow", "peach-pay-1"))
	require.NoError(t, repo.UpdateStatus(ctx, "TXN_flow", domain.PaymentStatusCompleted))

	got, err := repo.GetByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "chk-1", got.CheckoutID)
	assert.Equal(t, "peach-pay-1", got.PeachPaymentID)
	assert.Equal(t, domain.PaymentStatusCompleted, got.Status)

	assert.ErrorIs(t, repo.UpdateStatus(ctx, "TXN_missing", domain.PaymentStatusFailed), ErrNotFound)
}
