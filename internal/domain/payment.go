package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultCurrency валюта всех платежей (Peach Payments обслуживает ZA регион)
const DefaultCurrency = "ZAR"

// PaymentStatus статус платежа
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "Pending"
	PaymentStatusCompleted PaymentStatus = "Completed"
	PaymentStatusFailed    PaymentStatus = "Failed"
	PaymentStatusCancelled PaymentStatus = "Cancelled"
)

// Valid проверяет, что статус входит в закрытое множество значений
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled:
		return true
	}
	return false
}

// PaymentMethod способ оплаты
type PaymentMethod string

const (
	PaymentMethodCard      PaymentMethod = "CARD"
	PaymentMethodEFT       PaymentMethod = "EFT"
	PaymentMethodVoucher   PaymentMethod = "VOUCHER"
	PaymentMethodScanToPay PaymentMethod = "SCAN_TO_PAY"
)

// Valid проверяет, что способ оплаты поддерживается
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodEFT, PaymentMethodVoucher, PaymentMethodScanToPay:
		return true
	}
	return false
}

// Payment представляет собой модель платежа
type Payment struct {
	ID                    uuid.UUID     `json:"id"`
	UserID                uuid.UUID     `json:"user_id"`
	SubscriptionID        *uuid.UUID    `json:"subscription_id,omitempty"`
	Amount                float64       `json:"amount"`
	Currency              string        `json:"currency"`
	Status                PaymentStatus `json:"status"`
	PaymentMethod         PaymentMethod `json:"payment_method"`
	MerchantTransactionID string        `json:"merchant_transaction_id"`
	CheckoutID            string        `json:"checkout_id,omitempty"`
	PeachPaymentID        string        `json:"peach_payment_id,omitempty"`
	IsRecurring           bool          `json:"is_recurring"`
	ParentPaymentID       *uuid.UUID    `json:"parent_payment_id,omitempty"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}

// PaymentRequest представляет запрос на инициацию платежа (checkout)
type PaymentRequest struct {
	UserID         string  `json:"user_id" validate:"required,uuid4"`
	SubscriptionID string  `json:"subscription_id" validate:"required,uuid4"`
	Amount         float64 `json:"amount" validate:"required,gt=0"`
	PaymentMethod  string  `json:"payment_method" validate:"omitempty,oneof=CARD EFT VOUCHER SCAN_TO_PAY"`
}

// RecurringPaymentRequest представляет запрос на списание по сохраненному методу
type RecurringPaymentRequest struct {
	UserID                string  `json:"user_id" validate:"required,uuid4"`
	SubscriptionID        string  `json:"subscription_id" validate:"required,uuid4"`
	PaymentMethodDetailID string  `json:"payment_method_detail_id" validate:"required,uuid4"`
	Amount                float64 `json:"amount" validate:"required,gt=0"`
}
