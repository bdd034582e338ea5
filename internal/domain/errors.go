package domain

import (
	"errors"
	"fmt"
)

// Application errors
var (
	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate дубликат записи
	ErrDuplicate = errors.New("duplicate record")

	// ErrInvalidInput неверные входные данные
	ErrInvalidInput = errors.New("invalid input data")

	// ErrConflict запись изменена конкурентной операцией
	ErrConflict = errors.New("record was modified concurrently")

	// ErrInvalidOperation неверная операция
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrInternal внутренняя ошибка
	ErrInternal = errors.New("internal error")

	// ErrExternalServiceUnavailable внешний сервис недоступен
	ErrExternalServiceUnavailable = errors.New("external service unavailable")

	// ErrPaymentFailed платеж не прошел
	ErrPaymentFailed = errors.New("payment failed")

	// ErrPaymentMethodNotFound метод оплаты не найден
	ErrPaymentMethodNotFound = errors.New("payment method not found")

	// ErrNoPaymentMethod у пользователя нет активного метода оплаты с токеном
	ErrNoPaymentMethod = errors.New("no payment method available")

	// ErrWebhookValidationFailed не удалось проверить подпись вебхука
	ErrWebhookValidationFailed = errors.New("webhook validation failed")

	// ErrUnsupportedPaymentMethod неподдерживаемый метод оплаты
	ErrUnsupportedPaymentMethod = errors.New("unsupported payment method")
)

// PaymentError представляет ошибку платежа
type PaymentError struct {
	Code        string
	Message     string
	PaymentID   string
	OriginalErr error
}

// Error реализует интерфейс error
func (e *PaymentError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("payment error [%s]: %s: %v (payment_id: %s)", e.Code, e.Message, e.OriginalErr, e.PaymentID)
	}
	return fmt.Sprintf("payment error [%s]: %s (payment_id: %s)", e.Code, e.Message, e.PaymentID)
}

// Unwrap возвращает оригинальную ошибку
func (e *PaymentError) Unwrap() error {
	return e.OriginalErr
}

// NewPaymentError создает новую ошибку платежа
func NewPaymentError(code, message, paymentID string, err error) *PaymentError {
	return &PaymentError{
		Code:        code,
		Message:     message,
		PaymentID:   paymentID,
		OriginalErr: err,
	}
}

// SubscriptionError представляет ошибку подписки
type SubscriptionError struct {
	Code           string
	Message        string
	SubscriptionID string
	OriginalErr    error
}

// Error реализует интерфейс error
func (e *SubscriptionError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("subscription error [%s]: %s: %v (subscription_id: %s)", e.Code, e.Message, e.OriginalErr, e.SubscriptionID)
	}
	return fmt.Sprintf("subscription error [%s]: %s (subscription_id: %s)", e.Code, e.Message, e.SubscriptionID)
}

// Unwrap возвращает оригинальную ошибку
func (e *SubscriptionError) Unwrap() error {
	return e.OriginalErr
}

// NewSubscriptionError создает новую ошибку подписки
func NewSubscriptionError(code, message, subscriptionID string, err error) *SubscriptionError {
	return &SubscriptionError{
		Code:           code,
		Message:        message,
		SubscriptionID: subscriptionID,
		OriginalErr:    err,
	}
}
