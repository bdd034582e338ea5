package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhoini/Billing-service/internal/config"
	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/internal/peach"
	"github.com/Dhoini/Billing-service/internal/repository"
	"github.com/Dhoini/Billing-service/pkg/logger"
	"github.com/google/uuid"
)

func testLogger() *logger.Logger {
	log := logger.New(logger.INFO)
	log.SetOutput(io.Discard)
	return log
}

// fakeGateway управляемая замена клиента Peach Payments
type fakeGateway struct {
	mu sync.Mutex

	checkoutResponse *peach.CheckoutResponse
	checkoutErr      error

	chargeResults map[string]*peach.PaymentResult
	chargeErrs    map[string]error
	chargeCalls   []string

	statusResult  *peach.PaymentResult
	detailsResult *peach.PaymentResult
	refundResult  *peach.PaymentResult

	validSignature string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		chargeResults:  make(map[string]*peach.PaymentResult),
		chargeErrs:     make(map[string]error),
		validSignature: "valid-signature",
	}
}

func (f *fakeGateway) InitiateCheckout(ctx context.Context, req peach.CheckoutRequest) (*peach.CheckoutResponse, error) {
	if f.checkoutErr != nil {
		return nil, f.checkoutErr
	}
	// Ваучер исполняется синхронно, как в настоящем клиенте
	if req.PaymentMethod == domain.PaymentMethodVoucher {
		return &peach.CheckoutResponse{
			MerchantTransactionID: req.MerchantTransactionID,
			Result:                peach.ResultCode{Code: peach.CodeSuccess, Description: "Voucher applied"},
		}, nil
	}
	if f.checkoutResponse != nil {
		resp := *f.checkoutResponse
		resp.MerchantTransactionID = req.MerchantTransactionID
		return &resp, nil
	}
	return &peach.CheckoutResponse{
		CheckoutID:            "chk-default",
		MerchantTransactionID: req.MerchantTransactionID,
		Result:                peach.ResultCode{Code: peach.CodeCheckoutCreated},
	}, nil
}

func (f *fakeGateway) GetCheckoutStatus(ctx context.Context, checkoutID string) (*peach.PaymentResult, error) {
	if f.statusResult == nil {
		return nil, domain.ErrExternalServiceUnavailable
	}
	return f.statusResult, nil
}

func (f *fakeGateway) ChargeRecurring(ctx context.Context, registrationID string, amount float64, merchantTransactionID string) (*peach.PaymentResult, error) {
	f.mu.Lock()
	f.chargeCalls = append(f.chargeCalls, registrationID)
	f.mu.Unlock()

	if err, ok := f.chargeErrs[registrationID]; ok {
		return nil, err
	}
	if result, ok := f.chargeResults[registrationID]; ok {
		return result, nil
	}
	return &peach.PaymentResult{
		ID:                    "peach-" + merchantTransactionID,
		MerchantTransactionID: merchantTransactionID,
		Result:                peach.ResultCode{Code: peach.CodeSuccess},
	}, nil
}

func (f *fakeGateway) GetPaymentDetails(ctx context.Context, peachPaymentID string) (*peach.PaymentResult, error) {
	if f.detailsResult == nil {
		return nil, domain.ErrExternalServiceUnavailable
	}
	return f.detailsResult, nil
}

func (f *fakeGateway) Refund(ctx context.Context, peachPaymentID string, amount float64) (*peach.PaymentResult, error) {
	if f.refundResult == nil {
		return nil, domain.ErrExternalServiceUnavailable
	}
	return f.refundResult, nil
}

func (f *fakeGateway) ValidateWebhookSignature(params map[string]string, providedSignature string) bool {
	return providedSignature == f.validSignature
}

func (f *fakeGateway) chargeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.chargeCalls)
}

// fixture собирает сервисы на in-memory репозиториях и фейковом шлюзе
type fixture struct {
	users         *repository.InMemoryUserRepository
	subs          *repository.InMemorySubscriptionRepository
	payments      *repository.InMemoryPaymentRepository
	methods       *repository.InMemoryPaymentMethodRepository
	notes         *repository.InMemoryNotificationRepository
	gateway       *fakeGateway
	service       *PaymentService
	subscriptions *SubscriptionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := testLogger()

	users := repository.NewInMemoryUserRepository(log)
	subs := repository.NewInMemorySubscriptionRepository(log)
	payments := repository.NewInMemoryPaymentRepository(log)
	methods := repository.NewInMemoryPaymentMethodRepository(log)
	notes := repository.NewInMemoryNotificationRepository(log)
	gateway := newFakeGateway()

	notifications := NewNotificationService(notes, users, log)
	subscriptions := NewSubscriptionService(subs, users, notifications, nil, log)
	service := NewPaymentService(
		&config.Config{},
		payments, subs, users, methods,
		subscriptions, notifications, gateway,
		nil, nil, nil,
		log,
	)

	return &fixture{
		users:         users,
		subs:          subs,
		payments:      payments,
		methods:       methods,
		notes:         notes,
		gateway:       gateway,
		service:       service,
		subscriptions: subscriptions,
	}
}

func (f *fixture) createUser(t *testing.T) domain.User {
	t.Helper()
	user, err := f.users.Create(context.Background(), domain.User{
		ID:    uuid.New(),
		Email: uuid.New().String() + "@example.com",
		Name:  "Test User",
	})
	require.NoError(t, err)
	return user
}

func (f *fixture) createSubscription(t *testing.T, userID uuid.UUID, status domain.SubscriptionStatus, periodEnd *time.Time) domain.Subscription {
	t.Helper()
	sub := domain.Subscription{
		ID:               uuid.New(),
		UserID:           userID,
		PlanName:         "premium",
		Price:            199,
		Status:           status,
		CurrentPeriodEnd: periodEnd,
	}
	created, err := f.subs.Create(context.Background(), sub)
	require.NoError(t, err)
	return created
}

func (f *fixture) createCardMethod(t *testing.T, userID uuid.UUID, registrationID string) domain.PaymentMethodDetail {
	t.Helper()
	method, err := f.methods.Create(context.Background(), domain.PaymentMethodDetail{
		ID:                  uuid.New(),
		UserID:              userID,
		PaymentMethod:       domain.PaymentMethodCard,
		PeachRegistrationID: registrationID,
		IsDefault:           true,
		IsActive:            true,
	})
	require.NoError(t, err)
	return method
}

func (f *fixture) notificationCount(t *testing.T, userID uuid.UUID) int {
	t.Helper()
	notifications, err := f.notes.GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	return len(notifications)
}

func TestChargeAndTransition_Renewed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t)
	periodEnd := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	sub := f.createSubscription(t, user.ID, domain.SubscriptionStatusActive, &periodEnd)
	f.createCardMethod(t, user.ID, "reg-1")

	// Первоначальный платеж подписки, на него сошлется платеж продления
	initial, err := f.payments.Create(ctx, domain.Payment{
		ID:                    uuid.New(),
		UserID:                user.ID,
		SubscriptionID:        &sub.ID,
		Amount:                sub.Price,
		Currency:              domain.DefaultCurrency,
		Status:                domain.PaymentStatusCompleted,
		PaymentMethod:         domain.PaymentMethodCard,
		MerchantTransactionID: "TXN_initial",
	})
	require.NoError(t, err)

	outcome, err := f.service.ChargeAndTransition(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRenewed, outcome)

	// Период продлен от прежнего конца, не от текущего момента
	got, err := f.subs.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, got.Status)
	require.NotNil(t, got.CurrentPeriodEnd)
	assert.True(t, got.CurrentPeriodEnd.Equal(periodEnd.AddDate(0, 1, 0)))

	payments, err := f.payments.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)

	var renewal domain.Payment
	for _, payment := range payments {
		if payment.IsRecurring {
			renewal = payment
		}
	}
	assert.Equal(t, domain.PaymentStatusCompleted, renewal.Status)
	assert.Contains(t, renewal.MerchantTransactionID, "RENEWAL_")
	require.NotNil(t, renewal.ParentPaymentID)
	assert.Equal(t, initial.ID, *renewal.ParentPaymentID)

	assert.Equal(t, 1, f.notificationCount(t, user.ID))
}

func TestChargeAndTransition_FirstRenewalWithoutPriorPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t)
	periodEnd := time.Now().UTC().Add(-time.Hour)
	sub := f.createSubscription(t, user.ID, domain.SubscriptionStatusActive, &periodEnd)
	f.createCardMethod(t, user.ID, "reg-1")

	outcome, err := f.service.ChargeAndTransition(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRenewed, outcome)

	payments, err := f.payments.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Nil(t, payments[0].ParentPaymentID)
}

func TestChargeAndTransition_DeclinedExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t)
	periodEnd := time.Now().UTC().Add(-time.Hour)
	sub := f.createSubscription(t, user.ID, domain.SubscriptionStatusActive, &periodEnd)
	f.createCardMethod(t, user.ID, "reg-declined")
	f.gateway.chargeResults["reg-declined"] = &peach.PaymentResult{
		ID:     "peach-declined",
		Result: peach.ResultCode{Code: "800.100.151", Description: "transaction declined"},
	}

	outcome, err := f.service.ChargeAndTransition(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpired, outcome)

	got, err := f.subs.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusExpired, got.Status)

	payments, err := f.payments.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, domain.PaymentStatusFailed, payments[0].Status)
	assert.Equal(t, "peach-declined", payments[0].PeachPaymentID)

	assert.Equal(t, 1, f.notificationCount(t, user.ID))
}

func TestChargeAndTransition_NoMethodSuspends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t)
	periodEnd := time.Now().UTC().Add(-time.Hour)
	sub := f.createSubscription(t, user.ID, domain.SubscriptionStatusActive, &periodEnd)

	outcome, err := f.service.ChargeAndTransition(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuspended, outcome)

	got, err := f.subs.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusSuspended, got.Status)

	// Без метода оплаты списание не создается
	payments, err := f.payments.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)
	assert.Equal(t, 0, f.gateway.chargeCount())

	assert.Equal(t, 1, f.notificationCount(t, user.ID))
}

func TestChargeAndTransition_TokenlessMethodSuspends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t)
	periodEnd := time.Now().UTC().Add(-time.Hour)
	sub := f.createSubscription(t, user.ID, domain.SubscriptionStatusActive, &periodEnd)

	// Метод без регистрационного токена непригоден для автосписания
	f.createCardMethod(t, user.ID, "")

	outcome, err := f.service.ChargeAndTransition(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuspended, outcome)
	assert.Equal(t, 0, f.gateway.chargeCount())
}

func TestChargeAndTransition_ConcurrentExtensionSkips(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t)
	currentEnd := time.Now().UTC()
	sub := f.createSubscription(t, user.ID, domain.SubscriptionStatusActive, &currentEnd)
	f.createCardMethod(t, user.ID, "reg-1")

	// Конкурентный цикл уже продлил подписку: наш снимок устарел
	stale := sub
	staleEnd := currentEnd.Add(-time.Hour)
	stale.CurrentPeriodEnd = &staleEnd

	outcome, err := f.service.ChargeAndTransition(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)

	// Исход skipped не дублирует уведомление о продлении
	assert.Equal(t, 0, f.notificationCount(t, user.ID))

	got, err := f.subs.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentPeriodEnd.Equal(currentEnd))
}

func TestChargeAndTransition_GatewayErrorExpires(t *testing.T) {
	// Недоступность шлюза при списании эквивалентна отклоненному платежу
	for name, chargeErr := range map[string]error{
		"transport": domain.ErrExternalServiceUnavailable,
		"malformed": errors.New("unexpected gateway response"),
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			user := f.createUser(t)
			periodEnd := time.Now().UTC().Add(-time.Hour)
			sub := f.createSubscription(t, user.ID, domain.SubscriptionStatusActive, &periodEnd)
			f.createCardMethod(t, user.ID, "reg-broken")
			f.gateway.chargeErrs["reg-broken"] = chargeErr

			outcome, err := f.service.ChargeAndTransition(ctx, sub)
			require.NoError(t, err)
			assert.Equal(t, OutcomeExpired, outcome)

			// Одна попытка списания, без повторов внутри цикла
			assert.Equal(t, 1, f.gateway.chargeCount())

			got, err := f.subs.GetByID(ctx, sub.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.SubscriptionStatusExpired, got.Status)

			payments, err := f.payments.GetByUserID(ctx, user.ID)
			require.NoError(t, err)
			require.Len(t, payments, 1)
			assert.Equal(t, domain.PaymentStatusFailed, payments[0].Status)

			assert.Equal(t, 1, f.notificationCount(t, user.ID))
		})
	}
}

func TestRenewSubscription_NotRenewable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t)
	sub := f.createSubscription(t, user.ID, domain.SubscriptionStatusPending, nil)

	_, err := f.service.RenewSubscription(ctx, sub.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	_, err = f.service.RenewSubscription(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInitiateCheckout_Voucher(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t)
	sub := f.createSubscription(t, user.ID, domain.SubscriptionStatusPending, nil)

	output, err := f.service.InitiateCheckout(ctx, domain.PaymentRequest{
		UserID:         user.ID.String(),
		SubscriptionID: sub.ID.String(),
		Amount:         50,
		PaymentMethod:  string(domain.PaymentMethodVoucher),
	})
	require.NoError(t, err)

	// Ваучер исполняется сразу, редиректа на платежную форму нет
	assert.Empty(t, output.CheckoutID)
	assert.Equal(t, domain.PaymentStatusCompleted, output.Payment.Status)

	got, err := f.subs.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, got.Status)
	require.NotNil(t, got.CurrentPeriodEnd)

	assert.Equal(t, 1, f.notificationCount(t, user.ID))
}

func TestInitiateCheckout_CardStoresCheckoutID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t)
	sub := f.createSubscription(t, user.ID, domain.SubscriptionStatusPending, nil)
	f.gateway.checkoutResponse = &peach.CheckoutResponse{
		CheckoutID: "chk-777",
		Result:     peach.ResultCode{Code: peach.CodeCheckoutCreated},
	}

	output, err := f.service.InitiateCheckout(ctx, domain.PaymentRequest{
		UserID:         user.ID.String(),
		SubscriptionID: sub.ID.String(),
		Amount:         199,
	})
	require.NoError(t, err)

	assert.Equal(t, "chk-777", output.CheckoutID)
	assert.Equal(t, domain.PaymentStatusPending, output.Payment.Status)
	assert.Contains(t, output.Payment.MerchantTransactionID, "TXN_")

	stored, err := f.payments.GetByID(ctx, output.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "chk-777", stored.CheckoutID)

	// Подписка активируется только после подтверждения оплаты
	got, err := f.subs.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusPending, got.Status)
}

func TestInitiateCheckout_ForeignSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.createUser(t)
	other := f.createUser(t)
	sub := f.createSubscription(t, owner.ID, domain.SubscriptionStatusPending, nil)

	_, err := f.service.InitiateCheckout(ctx, domain.PaymentRequest{
		UserID:         other.ID.String(),
		SubscriptionID: sub.ID.String(),
		Amount:         199,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
}

func TestInitiateCheckout_UnsupportedMethod(t *testing.T) {
	f := newFixture(t)

	user := f.createUser(t)
	sub := f.createSubscription(t, user.ID, domain.SubscriptionStatusPending, nil)

	_, err := f.service.InitiateCheckout(context.Background(), domain.PaymentRequest{
		UserID:         user.ID.String(),
		SubscriptionID: sub.ID.String(),
		Amount:         199,
		PaymentMethod:  "BITCOIN",
	})
	assert.ErrorIs(t, err, domain.ErrUnsupportedPaymentMethod)
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.HandleWebhook(context.Background(), map[string]string{
		"merchantTransactionId": "TXN_x",
		"result.code":           peach.CodeSuccess,
	}, "forged")
	assert.ErrorIs(t, err, domain.ErrWebhookValidationFailed)
}

func TestHandleWebhook_SuccessSettlesPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t)
	sub := f.createSubscription(t, user.ID, domain.SubscriptionStatusPending, nil)

	_, err := f.payments.Create(ctx, domain.Payment{
		ID:                    uuid.New(),
		UserID:                user.ID,
		SubscriptionID:        &sub.ID,
		Amount:                199,
		Currency:              domain.DefaultCurrency,
		Status:                domain.PaymentStatusPending,
		PaymentMethod:         domain.PaymentMethodCard,
		MerchantTransactionID: "TXN_webhook",
	})
	require.NoError(t, err)

	params := map[string]string{
		"id":                    "peach-pay-1",
		"merchantTransactionId": "TXN_webhook",
		"registrationId":        "reg-new",
		"paymentBrand":          "VISA",
		"card.last4Digits":      "4242",
		"result.code":           peach.CodeSuccess,
	}

	settled, err := f.service.HandleWebhook(ctx, params, "valid-signature")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, settled.Status)
	assert.Equal(t, "peach-pay-1", settled.PeachPaymentID)

	// Токен из вебхука сохраняется как метод оплаты по умолчанию
	method, err := f.methods.GetDefaultActive(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "reg-new", method.PeachRegistrationID)
	assert.Equal(t, "4242", method.CardLastFour)

	got, err := f.subs.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, got.Status)

	notesBefore := f.notificationCount(t, user.ID)

	// Повторная доставка вебхука не меняет состояние
	again, err := f.service.HandleWebhook(ctx, params, "valid-signature")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, again.Status)
	assert.Equal(t, notesBefore, f.notificationCount(t, user.ID))
}

func TestHandleWebhook_FailureMarksPaymentFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t)
	_, err := f.payments.Create(ctx, domain.Payment{
		ID:                    uuid.New(),
		UserID:                user.ID,
		Amount:                199,
		Currency:              domain.DefaultCurrency,
		Status:                domain.PaymentStatusPending,
		PaymentMethod:         domain.PaymentMethodCard,
		MerchantTransactionID: "TXN_failed",
	})
	require.NoError(t, err)

	settled, err := f.service.HandleWebhook(ctx, map[string]string{
		"merchantTransactionId": "TXN_failed",
		"result.code":           "800.100.151",
		"result.description":    "transaction declined",
	}, "valid-signature")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, settled.Status)
	assert.Equal(t, 1, f.notificationCount(t, user.ID))
}

func TestHandleWebhook_UnknownPayment(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.HandleWebhook(context.Background(), map[string]string{
		"merchantTransactionId": "TXN_unknown",
		"result.code":           peach.CodeSuccess,
	}, "valid-signature")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t)
	payment, err := f.payments.Create(ctx, domain.Payment{
		ID:                    uuid.New(),
		UserID:                user.ID,
		Amount:                199,
		Currency:              domain.DefaultCurrency,
		Status:                domain.PaymentStatusCompleted,
		PaymentMethod:         domain.PaymentMethodCard,
		MerchantTransactionID: "TXN_refund",
		PeachPaymentID:        "peach-pay-1",
	})
	require.NoError(t, err)

	f.gateway.refundResult = &peach.PaymentResult{Result: peach.ResultCode{Code: peach.CodeSuccess}}

	_, err = f.service.Refund(ctx, payment.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, f.notificationCount(t, user.ID))

	// Сумма возврата не может превышать сумму платежа
	_, err = f.service.Refund(ctx, payment.ID, 500)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRefund_Declined(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t)
	payment, err := f.payments.Create(ctx, domain.Payment{
		ID:                    uuid.New(),
		UserID:                user.ID,
		Amount:                199,
		Currency:              domain.DefaultCurrency,
		Status:                domain.PaymentStatusCompleted,
		PaymentMethod:         domain.PaymentMethodCard,
		MerchantTransactionID: "TXN_refund_declined",
		PeachPaymentID:        "peach-pay-2",
	})
	require.NoError(t, err)

	f.gateway.refundResult = &peach.PaymentResult{
		Result: peach.ResultCode{Code: "700.400.200", Description: "refunds not allowed"},
	}

	_, err = f.service.Refund(ctx, payment.ID, 100)
	assert.ErrorIs(t, err, domain.ErrPaymentFailed)
}

func TestRefund_OnlyCompletedPayments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t)
	payment, err := f.payments.Create(ctx, domain.Payment{
		ID:                    uuid.New(),
		UserID:                user.ID,
		Amount:                199,
		Currency:              domain.DefaultCurrency,
		Status:                domain.PaymentStatusPending,
		PaymentMethod:         domain.PaymentMethodCard,
		MerchantTransactionID: "TXN_pending_refund",
	})
	require.NoError(t, err)

	_, err = f.service.Refund(ctx, payment.ID, 100)
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
}

func TestStorePaymentMethod_RequiresCompletedPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t)
	payment, err := f.payments.Create(ctx, domain.Payment{
		ID:                    uuid.New(),
		UserID:                user.ID,
		Amount:                199,
		Currency:              domain.DefaultCurrency,
		Status:                domain.PaymentStatusPending,
		PaymentMethod:         domain.PaymentMethodCard,
		MerchantTransactionID: "TXN_store",
	})
	require.NoError(t, err)

	_, err = f.service.StorePaymentMethod(ctx, domain.StorePaymentMethodRequest{PaymentID: payment.ID.String()})
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
}

func TestStorePaymentMethod_FromGatewayDetails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t)
	payment, err := f.payments.Create(ctx, domain.Payment{
		ID:                    uuid.New(),
		UserID:                user.ID,
		Amount:                199,
		Currency:              domain.DefaultCurrency,
		Status:                domain.PaymentStatusCompleted,
		PaymentMethod:         domain.PaymentMethodCard,
		MerchantTransactionID: "TXN_store_ok",
		PeachPaymentID:        "peach-pay-3",
	})
	require.NoError(t, err)

	f.gateway.detailsResult = &peach.PaymentResult{
		ID:             "peach-pay-3",
		RegistrationID: "reg-stored",
		PaymentBrand:   "MASTER",
		Card:           peach.CardDetails{Last4Digits: "1111", ExpiryMonth: "09", ExpiryYear: "2031"},
		Result:         peach.ResultCode{Code: peach.CodeSuccess},
	}

	stored, err := f.service.StorePaymentMethod(ctx, domain.StorePaymentMethodRequest{PaymentID: payment.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, "reg-stored", stored.PeachRegistrationID)
	assert.Equal(t, "MASTER", stored.CardBrand)
	assert.True(t, stored.IsDefault)

	def, err := f.methods.GetDefaultActive(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, def.ID)
}
