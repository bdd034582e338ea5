package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentMethodDetail представляет собой сохраненный метод оплаты пользователя.
// PeachRegistrationID - регистрационный токен шлюза, по нему выполняются
// повторные списания без повторного ввода реквизитов. Ваучеры одноразовые
// и токена не получают.
type PaymentMethodDetail struct {
	ID                  uuid.UUID     `json:"id"`
	UserID              uuid.UUID     `json:"user_id"`
	PaymentMethod       PaymentMethod `json:"payment_method"`
	PeachRegistrationID string        `json:"peach_registration_id,omitempty"`
	CardLastFour        string        `json:"card_last_four,omitempty"`
	CardBrand           string        `json:"card_brand,omitempty"`
	ExpiryMonth         string        `json:"expiry_month,omitempty"`
	ExpiryYear          string        `json:"expiry_year,omitempty"`
	BankName            string        `json:"bank_name,omitempty"`
	IsDefault           bool          `json:"is_default"`
	IsActive            bool          `json:"is_active"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// CanCharge сообщает, пригоден ли метод для автоматического списания
func (d *PaymentMethodDetail) CanCharge() bool {
	return d.IsActive && d.PeachRegistrationID != ""
}

// StorePaymentMethodRequest представляет запрос на сохранение метода оплаты
// после успешного платежа
type StorePaymentMethodRequest struct {
	PaymentID    string `json:"payment_id" validate:"required,uuid4"`
	SetAsDefault *bool  `json:"set_as_default,omitempty"`
}
