package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/Billing-service/internal/config"
	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/internal/kafka"
	"github.com/Dhoini/Billing-service/internal/kafka/producer"
	"github.com/Dhoini/Billing-service/internal/metrics"
	"github.com/Dhoini/Billing-service/internal/peach"
	"github.com/Dhoini/Billing-service/internal/repository"
	"github.com/Dhoini/Billing-service/pkg/logger"

	"github.com/google/uuid"
)

// Префиксы merchantTransactionId. По префиксу в выгрузках шлюза видно,
// откуда пришло списание.
const (
	checkoutTxPrefix = "TXN_"
	renewalTxPrefix  = "RENEWAL_"
)

// RenewalOutcome исход попытки продления подписки
type RenewalOutcome string

const (
	// OutcomeRenewed списание прошло, период продлен
	OutcomeRenewed RenewalOutcome = "renewed"
	// OutcomeExpired списание отклонено, подписка истекла
	OutcomeExpired RenewalOutcome = "expired"
	// OutcomeSuspended нет пригодного метода оплаты, подписка приостановлена
	OutcomeSuspended RenewalOutcome = "suspended"
	// OutcomeSkipped подписку успела продлить конкурентная операция
	OutcomeSkipped RenewalOutcome = "skipped"
)

// CheckoutOutput результат инициации платежа
type CheckoutOutput struct {
	Payment    domain.Payment `json:"payment"`
	CheckoutID string         `json:"checkout_id,omitempty"`
}

// PaymentService инкапсулирует бизнес-логику платежей и продления подписок
type PaymentService struct {
	cfg             *config.Config
	paymentRepo     repository.PaymentRepository
	subRepo         repository.SubscriptionRepository
	userRepo        repository.UserRepository
	methodRepo      repository.PaymentMethodRepository
	subscriptions   *SubscriptionService
	notifications   *NotificationService
	peachClient     peach.Client
	kafkaProducer   kafka.Producer            // Может быть nil, если Kafka недоступен
	paymentProducer producer.PaymentProducer  // Может быть nil
	paymentMetrics  metrics.PaymentMetrics    // Может быть nil
	log             *logger.Logger
}

// NewPaymentService конструктор сервиса платежей
func NewPaymentService(
	cfg *config.Config,
	paymentRepo repository.PaymentRepository,
	subRepo repository.SubscriptionRepository,
	userRepo repository.UserRepository,
	methodRepo repository.PaymentMethodRepository,
	subscriptions *SubscriptionService,
	notifications *NotificationService,
	peachClient peach.Client,
	kafkaProducer kafka.Producer,
	paymentProducer producer.PaymentProducer,
	paymentMetrics metrics.PaymentMetrics,
	log *logger.Logger,
) *PaymentService {
	if kafkaProducer == nil {
		log.Warnw("Kafka producer is nil, subscription event publishing will be skipped.")
	}
	if paymentProducer == nil {
		log.Warnw("Payment event producer is nil, payment event publishing will be skipped.")
	}
	return &PaymentService{
		cfg:             cfg,
		paymentRepo:     paymentRepo,
		subRepo:         subRepo,
		userRepo:        userRepo,
		methodRepo:      methodRepo,
		subscriptions:   subscriptions,
		notifications:   notifications,
		peachClient:     peachClient,
		kafkaProducer:   kafkaProducer,
		paymentProducer: paymentProducer,
		paymentMetrics:  paymentMetrics,
		log:             log,
	}
}

// InitiateCheckout создает платеж и инициирует чекаут в шлюзе.
// Ваучерные платежи исполняются немедленно, без редиректа на платежную форму.
func (s *PaymentService) InitiateCheckout(ctx context.Context, input domain.PaymentRequest) (*CheckoutOutput, error) {
	userID, err := uuid.Parse(input.UserID)
	if err != nil {
		return nil, domain.ErrInvalidInput
	}
	subscriptionID, err := uuid.Parse(input.SubscriptionID)
	if err != nil {
		return nil, domain.ErrInvalidInput
	}

	method := domain.PaymentMethod(input.PaymentMethod)
	if input.PaymentMethod == "" {
		method = domain.PaymentMethodCard
	}
	if !method.Valid() {
		return nil, domain.ErrUnsupportedPaymentMethod
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to check user: %w", err)
	}

	subscription, err := s.subRepo.GetByID(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to check subscription: %w", err)
	}
	if subscription.UserID != userID {
		s.log.Warnw("Checkout for subscription of another user", "subscriptionID", subscriptionID, "userID", userID)
		return nil, domain.ErrInvalidOperation
	}

	payment := domain.Payment{
		ID:                    uuid.New(),
		UserID:                userID,
		SubscriptionID:        &subscriptionID,
		Amount:                input.Amount,
		Currency:              domain.DefaultCurrency,
		Status:                domain.PaymentStatusPending,
		PaymentMethod:         method,
		MerchantTransactionID: checkoutTxPrefix + uuid.New().String(),
	}

	payment, err = s.paymentRepo.Create(ctx, payment)
	if err != nil {
		s.log.Errorw("Failed to create payment", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	s.publishPaymentEvent(ctx, payment, producer.TopicPaymentCreated)
	if s.paymentMetrics != nil {
		s.paymentMetrics.IncPaymentCreated(payment.Currency)
	}

	checkout, err := s.peachClient.InitiateCheckout(ctx, peach.CheckoutRequest{
		UserID:                userID,
		SubscriptionID:        subscriptionID,
		Amount:                input.Amount,
		PaymentMethod:         method,
		MerchantTransactionID: payment.MerchantTransactionID,
	})
	if err != nil {
		s.log.Errorw("Failed to initiate checkout", "error", err, "paymentID", payment.ID)
		if updErr := s.paymentRepo.UpdateStatus(ctx, payment.MerchantTransactionID, domain.PaymentStatusFailed); updErr != nil {
			s.log.Errorw("Failed to mark payment as failed", "error", updErr, "paymentID", payment.ID)
		}
		return nil, domain.NewPaymentError("CHECKOUT_FAILED", "failed to initiate checkout", payment.ID.String(), err)
	}

	// Ваучеры исполняются синхронно, результат известен сразу
	if checkout.Result.Succeeded() {
		if err := s.settleSuccessfulPayment(ctx, &payment, nil); err != nil {
			return nil, err
		}
		return &CheckoutOutput{Payment: payment}, nil
	}

	if checkout.CheckoutID != "" {
		if err := s.paymentRepo.UpdateCheckoutID(ctx, payment.MerchantTransactionID, checkout.CheckoutID); err != nil {
			s.log.Errorw("Failed to store checkout id", "error", err, "paymentID", payment.ID)
			return nil, fmt.Errorf("failed to store checkout id: %w", err)
		}
		payment.CheckoutID = checkout.CheckoutID
	}

	s.log.Infow("Checkout initiated",
		"paymentID", payment.ID,
		"checkoutID", checkout.CheckoutID,
		"merchantTransactionID", payment.MerchantTransactionID,
		"method", method)

	return &CheckoutOutput{
		Payment:    payment,
		CheckoutID: checkout.CheckoutID,
	}, nil
}

// CheckStatus запрашивает у шлюза результат чекаута и применяет его к платежу.
// Вызывается после возврата покупателя с платежной формы.
func (s *PaymentService) CheckStatus(ctx context.Context, checkoutID string) (domain.Payment, error) {
	result, err := s.peachClient.GetCheckoutStatus(ctx, checkoutID)
	if err != nil {
		s.log.Errorw("Failed to get checkout status", "error", err, "checkoutID", checkoutID)
		return domain.Payment{}, fmt.Errorf("failed to get checkout status: %w", err)
	}

	payment, err := s.paymentRepo.GetByMerchantTransactionID(ctx, result.MerchantTransactionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Warnw("Checkout status for unknown payment", "merchantTransactionID", result.MerchantTransactionID)
			return domain.Payment{}, domain.ErrNotFound
		}
		return domain.Payment{}, fmt.Errorf("failed to get payment: %w", err)
	}

	if err := s.applyGatewayResult(ctx, &payment, result); err != nil {
		return domain.Payment{}, err
	}
	return payment, nil
}

// HandleWebhook обрабатывает нотификацию шлюза о результате платежа.
// Подпись проверяется до любых обращений к хранилищу.
func (s *PaymentService) HandleWebhook(ctx context.Context, params map[string]string, signature string) (domain.Payment, error) {
	if !s.peachClient.ValidateWebhookSignature(params, signature) {
		s.log.Warnw("Webhook signature validation failed")
		return domain.Payment{}, domain.ErrWebhookValidationFailed
	}

	merchantTransactionID := params["merchantTransactionId"]
	if merchantTransactionID == "" {
		return domain.Payment{}, domain.ErrInvalidInput
	}

	payment, err := s.paymentRepo.GetByMerchantTransactionID(ctx, merchantTransactionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Warnw("Webhook for unknown payment", "merchantTransactionID", merchantTransactionID)
			return domain.Payment{}, domain.ErrNotFound
		}
		return domain.Payment{}, fmt.Errorf("failed to get payment: %w", err)
	}

	result := &peach.PaymentResult{
		ID:                    params["id"],
		MerchantTransactionID: merchantTransactionID,
		RegistrationID:        params["registrationId"],
		PaymentBrand:          params["paymentBrand"],
		Amount:                params["amount"],
		Currency:              params["currency"],
		Result: peach.ResultCode{
			Code:        params["result.code"],
			Description: params["result.description"],
		},
		Card: peach.CardDetails{
			Last4Digits: params["card.last4Digits"],
			ExpiryMonth: params["card.expiryMonth"],
			ExpiryYear:  params["card.expiryYear"],
		},
		BankName: params["bankName"],
	}

	if err := s.applyGatewayResult(ctx, &payment, result); err != nil {
		return domain.Payment{}, err
	}
	return payment, nil
}

// applyGatewayResult переводит платеж в терминальный статус по коду результата.
// Платежи в терминальных статусах не трогаем, вебхуки могут дублироваться.
func (s *PaymentService) applyGatewayResult(ctx context.Context, payment *domain.Payment, result *peach.PaymentResult) error {
	if payment.Status != domain.PaymentStatusPending {
		s.log.Debugw("Gateway result for already settled payment",
			"paymentID", payment.ID, "status", payment.Status)
		return nil
	}

	if result.ID != "" && payment.PeachPaymentID == "" {
		if err := s.paymentRepo.UpdatePeachPaymentID(ctx, payment.MerchantTransactionID, result.ID); err != nil {
			s.log.Errorw("Failed to store peach payment id", "error", err, "paymentID", payment.ID)
		} else {
			payment.PeachPaymentID = result.ID
		}
	}

	switch {
	case result.Succeeded():
		return s.settleSuccessfulPayment(ctx, payment, result)

	case result.Result.Pending():
		s.log.Infow("Payment still pending at gateway", "paymentID", payment.ID, "resultCode", result.Result.Code)
		return nil

	case result.Result.CancelledByShopper():
		if err := s.paymentRepo.UpdateStatus(ctx, payment.MerchantTransactionID, domain.PaymentStatusCancelled); err != nil {
			return fmt.Errorf("failed to update payment status: %w", err)
		}
		payment.Status = domain.PaymentStatusCancelled
		s.log.Infow("Payment cancelled by shopper", "paymentID", payment.ID)
		s.notify(ctx, payment.UserID, payment.SubscriptionID,
			fmt.Sprintf("Your payment of %s %.2f was cancelled.", payment.Currency, payment.Amount))
		return nil

	default:
		if err := s.paymentRepo.UpdateStatus(ctx, payment.MerchantTransactionID, domain.PaymentStatusFailed); err != nil {
			return fmt.Errorf("failed to update payment status: %w", err)
		}
		payment.Status = domain.PaymentStatusFailed
		s.log.Warnw("Payment failed at gateway",
			"paymentID", payment.ID,
			"resultCode", result.Result.Code,
			"resultDescription", result.Result.Description)
		s.publishPaymentEvent(ctx, *payment, producer.TopicPaymentFailed)
		if s.paymentMetrics != nil {
			s.paymentMetrics.IncPaymentFailed(payment.Currency)
			s.paymentMetrics.ObservePaymentAmount(payment.Amount, payment.Currency, "failed")
		}
		s.notify(ctx, payment.UserID, payment.SubscriptionID,
			fmt.Sprintf("Your payment of %s %.2f failed: %s", payment.Currency, payment.Amount, result.Result.Description))
		return nil
	}
}

// settleSuccessfulPayment завершает успешный платеж: сохраняет метод оплаты,
// активирует подписку, рассылает события и уведомление.
func (s *PaymentService) settleSuccessfulPayment(ctx context.Context, payment *domain.Payment, result *peach.PaymentResult) error {
	if err := s.paymentRepo.UpdateStatus(ctx, payment.MerchantTransactionID, domain.PaymentStatusCompleted); err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	payment.Status = domain.PaymentStatusCompleted

	// Токен регистрации приходит только для карточных платежей,
	// сохраняем его для последующих списаний
	if result != nil && result.RegistrationID != "" {
		if err := s.storeMethodFromResult(ctx, payment, result); err != nil {
			s.log.Errorw("Failed to store payment method from gateway result", "error", err, "paymentID", payment.ID)
		}
	}

	if payment.SubscriptionID != nil {
		if _, err := s.subscriptions.Activate(ctx, *payment.SubscriptionID); err != nil {
			s.log.Errorw("Failed to activate subscription after payment", "error", err, "subscriptionID", *payment.SubscriptionID)
		}
	}

	s.log.Infow("Payment completed", "paymentID", payment.ID, "amount", payment.Amount, "currency", payment.Currency)
	s.publishPaymentEvent(ctx, *payment, producer.TopicPaymentComplete)
	if s.paymentMetrics != nil {
		s.paymentMetrics.IncPaymentCompleted(payment.Currency)
		s.paymentMetrics.ObservePaymentAmount(payment.Amount, payment.Currency, "completed")
	}

	s.notify(ctx, payment.UserID, payment.SubscriptionID,
		fmt.Sprintf("Your payment of %s %.2f was successful.", payment.Currency, payment.Amount))

	return nil
}

// storeMethodFromResult сохраняет метод оплаты из ответа шлюза
func (s *PaymentService) storeMethodFromResult(ctx context.Context, payment *domain.Payment, result *peach.PaymentResult) error {
	method := domain.PaymentMethodDetail{
		ID:                  uuid.New(),
		UserID:              payment.UserID,
		PaymentMethod:       payment.PaymentMethod,
		PeachRegistrationID: result.RegistrationID,
		CardLastFour:        result.Card.Last4Digits,
		CardBrand:           result.PaymentBrand,
		ExpiryMonth:         result.Card.ExpiryMonth,
		ExpiryYear:          result.Card.ExpiryYear,
		BankName:            result.BankName,
		IsDefault:           true,
		IsActive:            true,
	}

	stored, err := s.methodRepo.Create(ctx, method)
	if err != nil {
		return fmt.Errorf("failed to store payment method: %w", err)
	}

	s.log.Infow("Payment method stored",
		"methodID", stored.ID,
		"userID", payment.UserID,
		"brand", stored.CardBrand,
		"last4", stored.CardLastFour)
	return nil
}

// StorePaymentMethod сохраняет метод оплаты по завершенному платежу.
// Используется, когда вебхук не донес токен регистрации и клиент
// запрашивает сохранение явно.
func (s *PaymentService) StorePaymentMethod(ctx context.Context, input domain.StorePaymentMethodRequest) (domain.PaymentMethodDetail, error) {
	paymentID, err := uuid.Parse(input.PaymentID)
	if err != nil {
		return domain.PaymentMethodDetail{}, domain.ErrInvalidInput
	}

	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.PaymentMethodDetail{}, domain.ErrNotFound
		}
		return domain.PaymentMethodDetail{}, fmt.Errorf("failed to get payment: %w", err)
	}

	if payment.Status != domain.PaymentStatusCompleted {
		return domain.PaymentMethodDetail{}, domain.NewPaymentError(
			"PAYMENT_NOT_COMPLETED",
			"payment method can only be stored from a completed payment",
			payment.ID.String(),
			domain.ErrInvalidOperation,
		)
	}
	if payment.PeachPaymentID == "" {
		return domain.PaymentMethodDetail{}, domain.NewPaymentError(
			"NO_GATEWAY_PAYMENT",
			"payment has no gateway payment id",
			payment.ID.String(),
			domain.ErrInvalidOperation,
		)
	}

	result, err := s.peachClient.GetPaymentDetails(ctx, payment.PeachPaymentID)
	if err != nil {
		return domain.PaymentMethodDetail{}, fmt.Errorf("failed to get payment details: %w", err)
	}
	if result.RegistrationID == "" {
		return domain.PaymentMethodDetail{}, domain.NewPaymentError(
			"NO_REGISTRATION_TOKEN",
			"gateway did not issue a registration token for this payment",
			payment.ID.String(),
			domain.ErrInvalidOperation,
		)
	}

	isDefault := true
	if input.SetAsDefault != nil {
		isDefault = *input.SetAsDefault
	}

	method := domain.PaymentMethodDetail{
		ID:                  uuid.New(),
		UserID:              payment.UserID,
		PaymentMethod:       payment.PaymentMethod,
		PeachRegistrationID: result.RegistrationID,
		CardLastFour:        result.Card.Last4Digits,
		CardBrand:           result.PaymentBrand,
		ExpiryMonth:         result.Card.ExpiryMonth,
		ExpiryYear:          result.Card.ExpiryYear,
		BankName:            result.BankName,
		IsDefault:           isDefault,
		IsActive:            true,
	}

	stored, err := s.methodRepo.Create(ctx, method)
	if err != nil {
		return domain.PaymentMethodDetail{}, fmt.Errorf("failed to store payment method: %w", err)
	}

	s.log.Infow("Payment method stored", "methodID", stored.ID, "userID", payment.UserID)
	return stored, nil
}

// GetPaymentMethods возвращает активные методы оплаты пользователя
func (s *PaymentService) GetPaymentMethods(ctx context.Context, userID uuid.UUID) ([]domain.PaymentMethodDetail, error) {
	methods, err := s.methodRepo.GetByUserID(ctx, userID)
	if err != nil {
		s.log.Errorw("Failed to get payment methods", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get payment methods: %w", err)
	}
	return methods, nil
}

// SetDefaultPaymentMethod делает метод оплаты методом по умолчанию
func (s *PaymentService) SetDefaultPaymentMethod(ctx context.Context, userID, methodID uuid.UUID) error {
	if err := s.methodRepo.SetDefault(ctx, userID, methodID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrPaymentMethodNotFound
		}
		if errors.Is(err, repository.ErrInvalidOperation) {
			return domain.ErrInvalidOperation
		}
		s.log.Errorw("Failed to set default payment method", "error", err, "methodID", methodID)
		return fmt.Errorf("failed to set default payment method: %w", err)
	}
	return nil
}

// DeactivatePaymentMethod помечает метод оплаты неактивным.
// Деактивированный метод не участвует в автоматических продлениях.
func (s *PaymentService) DeactivatePaymentMethod(ctx context.Context, methodID uuid.UUID) error {
	if err := s.methodRepo.Deactivate(ctx, methodID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrPaymentMethodNotFound
		}
		s.log.Errorw("Failed to deactivate payment method", "error", err, "methodID", methodID)
		return fmt.Errorf("failed to deactivate payment method: %w", err)
	}
	s.log.Infow("Payment method deactivated", "methodID", methodID)
	return nil
}

// GetByID возвращает платеж по ID
func (s *PaymentService) GetByID(ctx context.Context, id uuid.UUID) (domain.Payment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Payment{}, domain.ErrNotFound
		}
		return domain.Payment{}, fmt.Errorf("failed to get payment: %w", err)
	}
	return payment, nil
}

// GetByUser возвращает платежи пользователя
func (s *PaymentService) GetByUser(ctx context.Context, userID uuid.UUID) ([]domain.Payment, error) {
	payments, err := s.paymentRepo.GetByUserID(ctx, userID)
	if err != nil {
		s.log.Errorw("Failed to get payments", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get payments: %w", err)
	}
	return payments, nil
}

// Refund возвращает средства по завершенному платежу
func (s *PaymentService) Refund(ctx context.Context, paymentID uuid.UUID, amount float64) (domain.Payment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Payment{}, domain.ErrNotFound
		}
		return domain.Payment{}, fmt.Errorf("failed to get payment: %w", err)
	}

	if payment.Status != domain.PaymentStatusCompleted {
		return domain.Payment{}, domain.NewPaymentError(
			"REFUND_NOT_ALLOWED",
			"only completed payments can be refunded",
			payment.ID.String(),
			domain.ErrInvalidOperation,
		)
	}
	if amount <= 0 || amount > payment.Amount {
		return domain.Payment{}, domain.ErrInvalidInput
	}
	if payment.PeachPaymentID == "" {
		return domain.Payment{}, domain.NewPaymentError(
			"NO_GATEWAY_PAYMENT",
			"payment has no gateway payment id",
			payment.ID.String(),
			domain.ErrInvalidOperation,
		)
	}

	result, err := s.peachClient.Refund(ctx, payment.PeachPaymentID, amount)
	if err != nil {
		s.log.Errorw("Refund request failed", "error", err, "paymentID", paymentID)
		return domain.Payment{}, fmt.Errorf("refund request failed: %w", err)
	}
	if !result.Succeeded() {
		s.log.Warnw("Refund declined by gateway",
			"paymentID", paymentID,
			"resultCode", result.Result.Code,
			"resultDescription", result.Result.Description)
		return domain.Payment{}, domain.NewPaymentError(
			"REFUND_DECLINED",
			result.Result.Description,
			payment.ID.String(),
			domain.ErrPaymentFailed,
		)
	}

	s.log.Infow("Payment refunded", "paymentID", paymentID, "amount", amount)
	if s.paymentMetrics != nil {
		s.paymentMetrics.IncPaymentRefunded(payment.Currency)
	}
	s.notify(ctx, payment.UserID, payment.SubscriptionID,
		fmt.Sprintf("A refund of %s %.2f has been issued to your account.", payment.Currency, amount))

	return payment, nil
}

// RenewSubscription продлевает подписку вручную по запросу клиента.
// Использует тот же механизм списания, что и фоновое продление.
func (s *PaymentService) RenewSubscription(ctx context.Context, subscriptionID uuid.UUID) (RenewalOutcome, error) {
	subscription, err := s.subRepo.GetByID(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("failed to get subscription: %w", err)
	}

	if subscription.Status != domain.SubscriptionStatusActive || subscription.CurrentPeriodEnd == nil {
		return "", domain.NewSubscriptionError(
			"NOT_RENEWABLE",
			fmt.Sprintf("subscription in status %s cannot be renewed", subscription.Status),
			subscriptionID.String(),
			domain.ErrInvalidOperation,
		)
	}

	return s.ChargeAndTransition(ctx, subscription)
}

// ChargeAndTransition списывает стоимость подписки по сохраненному методу
// оплаты и переводит подписку в следующий статус. Ровно одно уведомление
// на каждый терминальный исход.
func (s *PaymentService) ChargeAndTransition(ctx context.Context, subscription domain.Subscription) (RenewalOutcome, error) {
	method, err := s.methodRepo.GetDefaultActive(ctx, subscription.UserID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("failed to get payment method: %w", err)
	}
	if errors.Is(err, repository.ErrNotFound) || !method.CanCharge() {
		return s.suspendSubscription(ctx, subscription)
	}

	// Новый платеж продления ссылается на последний платеж подписки
	var parentPaymentID *uuid.UUID
	prior, err := s.paymentRepo.GetLatestBySubscriptionID(ctx, subscription.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("failed to get latest subscription payment: %w", err)
	}
	if err == nil {
		parentPaymentID = &prior.ID
	}

	payment := domain.Payment{
		ID:                    uuid.New(),
		UserID:                subscription.UserID,
		SubscriptionID:        &subscription.ID,
		ParentPaymentID:       parentPaymentID,
		Amount:                subscription.Price,
		Currency:              domain.DefaultCurrency,
		Status:                domain.PaymentStatusPending,
		PaymentMethod:         method.PaymentMethod,
		MerchantTransactionID: renewalTxPrefix + uuid.New().String(),
		IsRecurring:           true,
	}

	payment, err = s.paymentRepo.Create(ctx, payment)
	if err != nil {
		return "", fmt.Errorf("failed to create renewal payment: %w", err)
	}
	s.publishPaymentEvent(ctx, payment, producer.TopicPaymentCreated)
	if s.paymentMetrics != nil {
		s.paymentMetrics.IncPaymentCreated(payment.Currency)
	}

	result, err := s.peachClient.ChargeRecurring(ctx, method.PeachRegistrationID, payment.Amount, payment.MerchantTransactionID)
	if err != nil {
		// Сбой шлюза (сеть, таймаут) считается неуспешным продлением
		// наравне с отклоненным списанием
		s.log.Errorw("Recurring charge failed",
			"error", err, "subscriptionID", subscription.ID, "paymentID", payment.ID)
		return s.expireSubscription(ctx, subscription, payment, err.Error())
	}

	if result.ID != "" {
		if updErr := s.paymentRepo.UpdatePeachPaymentID(ctx, payment.MerchantTransactionID, result.ID); updErr != nil {
			s.log.Errorw("Failed to store peach payment id", "error", updErr, "paymentID", payment.ID)
		} else {
			payment.PeachPaymentID = result.ID
		}
	}

	if !result.Succeeded() {
		reason := result.Result.Description
		if reason == "" {
			reason = result.Result.Code
		}
		return s.expireSubscription(ctx, subscription, payment, reason)
	}

	if err := s.paymentRepo.UpdateStatus(ctx, payment.MerchantTransactionID, domain.PaymentStatusCompleted); err != nil {
		return "", fmt.Errorf("failed to update payment status: %w", err)
	}
	payment.Status = domain.PaymentStatusCompleted
	s.publishPaymentEvent(ctx, payment, producer.TopicPaymentComplete)
	if s.paymentMetrics != nil {
		s.paymentMetrics.IncPaymentCompleted(payment.Currency)
		s.paymentMetrics.ObservePaymentAmount(payment.Amount, payment.Currency, "completed")
	}

	nextEnd := subscription.NextPeriodEnd()
	err = s.subRepo.ExtendPeriod(ctx, subscription.ID, *subscription.CurrentPeriodEnd, nextEnd)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Подписку успела продлить конкурентная операция, уведомление
			// уже создано там
			s.log.Warnw("Subscription was extended concurrently", "subscriptionID", subscription.ID)
			return OutcomeSkipped, nil
		}
		return "", fmt.Errorf("failed to extend subscription period: %w", err)
	}

	subscription.Status = domain.SubscriptionStatusActive
	subscription.CurrentPeriodEnd = &nextEnd

	s.log.Infow("Subscription renewed",
		"subscriptionID", subscription.ID,
		"userID", subscription.UserID,
		"nextPeriodEnd", nextEnd)
	s.publishSubscriptionEvent(ctx, kafka.TopicSubscriptionRenewed, subscription)
	s.notify(ctx, subscription.UserID, &subscription.ID,
		fmt.Sprintf("Your subscription to %s has been renewed. Next billing date: %s.",
			subscription.PlanName, nextEnd.Format("2006-01-02")))

	return OutcomeRenewed, nil
}

// suspendSubscription приостанавливает подписку без пригодного метода оплаты
func (s *PaymentService) suspendSubscription(ctx context.Context, subscription domain.Subscription) (RenewalOutcome, error) {
	if err := s.subRepo.UpdateStatus(ctx, subscription.ID, domain.SubscriptionStatusSuspended); err != nil {
		return "", fmt.Errorf("failed to suspend subscription: %w", err)
	}
	subscription.Status = domain.SubscriptionStatusSuspended

	s.log.Warnw("Subscription suspended, no chargeable payment method",
		"subscriptionID", subscription.ID, "userID", subscription.UserID)
	s.publishSubscriptionEvent(ctx, kafka.TopicSubscriptionSuspended, subscription)
	s.notify(ctx, subscription.UserID, &subscription.ID,
		fmt.Sprintf("Your subscription to %s has been suspended: no active payment method on file.", subscription.PlanName))

	return OutcomeSuspended, nil
}

// expireSubscription переводит подписку в Expired после неуспешного списания
func (s *PaymentService) expireSubscription(ctx context.Context, subscription domain.Subscription, payment domain.Payment, reason string) (RenewalOutcome, error) {
	if err := s.paymentRepo.UpdateStatus(ctx, payment.MerchantTransactionID, domain.PaymentStatusFailed); err != nil {
		return "", fmt.Errorf("failed to update payment status: %w", err)
	}
	payment.Status = domain.PaymentStatusFailed
	s.publishPaymentEvent(ctx, payment, producer.TopicPaymentFailed)
	if s.paymentMetrics != nil {
		s.paymentMetrics.IncPaymentFailed(payment.Currency)
		s.paymentMetrics.ObservePaymentAmount(payment.Amount, payment.Currency, "failed")
	}

	if err := s.subRepo.UpdateStatus(ctx, subscription.ID, domain.SubscriptionStatusExpired); err != nil {
		return "", fmt.Errorf("failed to expire subscription: %w", err)
	}
	subscription.Status = domain.SubscriptionStatusExpired

	s.log.Warnw("Subscription expired, renewal charge unsuccessful",
		"subscriptionID", subscription.ID,
		"reason", reason)
	s.publishSubscriptionEvent(ctx, kafka.TopicSubscriptionExpired, subscription)
	s.notify(ctx, subscription.UserID, &subscription.ID,
		fmt.Sprintf("Your subscription to %s has expired, renewal failed: %s.", subscription.PlanName, reason))

	return OutcomeExpired, nil
}

// notify создает уведомление, ошибки доставки не прерывают основной поток
func (s *PaymentService) notify(ctx context.Context, userID uuid.UUID, subscriptionID *uuid.UUID, message string) {
	if _, err := s.notifications.Create(ctx, userID, subscriptionID, message); err != nil {
		s.log.Errorw("Failed to create notification", "error", err, "userID", userID)
	}
}

// publishPaymentEvent асинхронно публикует событие платежа
func (s *PaymentService) publishPaymentEvent(ctx context.Context, payment domain.Payment, topic string) {
	if s.paymentProducer == nil {
		return
	}

	go func(ctx context.Context) {
		kafkaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		var err error
		switch topic {
		case producer.TopicPaymentCreated:
			err = s.paymentProducer.PublishPaymentCreated(kafkaCtx, payment)
		case producer.TopicPaymentComplete:
			err = s.paymentProducer.PublishPaymentCompleted(kafkaCtx, payment)
		case producer.TopicPaymentFailed:
			err = s.paymentProducer.PublishPaymentFailed(kafkaCtx, payment)
		}
		if err != nil {
			s.log.Errorw("Failed to publish payment event", "error", err, "topic", topic, "paymentID", payment.ID)
		}
	}(context.WithoutCancel(ctx))
}

// publishSubscriptionEvent асинхронно публикует событие подписки
func (s *PaymentService) publishSubscriptionEvent(ctx context.Context, topic string, subscription domain.Subscription) {
	if s.kafkaProducer == nil {
		return
	}

	go func(ctx context.Context) {
		kafkaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if err := s.kafkaProducer.PublishSubscriptionEvent(kafkaCtx, topic, subscription); err != nil {
			s.log.Errorw("Failed to publish subscription event", "error", err, "topic", topic, "subscriptionID", subscription.ID)
		}
	}(context.WithoutCancel(ctx))
}
