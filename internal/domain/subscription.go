package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus статус подписки.
// Строковые значения совпадают с токенами, которые видят клиенты API.
type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "Pending"
	SubscriptionStatusActive    SubscriptionStatus = "Active"
	SubscriptionStatusExpired   SubscriptionStatus = "Expired"
	SubscriptionStatusCancelled SubscriptionStatus = "Cancelled"
	SubscriptionStatusSuspended SubscriptionStatus = "Suspended"
)

// Valid проверяет, что статус входит в закрытое множество значений
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionStatusPending, SubscriptionStatusActive, SubscriptionStatusExpired,
		SubscriptionStatusCancelled, SubscriptionStatusSuspended:
		return true
	}
	return false
}

// Subscription представляет собой модель подписки
type Subscription struct {
	ID               uuid.UUID          `json:"id"`
	UserID           uuid.UUID          `json:"user_id"`
	PlanName         string             `json:"plan_name"`
	Price            float64            `json:"price"`
	Status           SubscriptionStatus `json:"status"`
	StartedAt        *time.Time         `json:"started_at,omitempty"`
	CurrentPeriodEnd *time.Time         `json:"current_period_end,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// NextPeriodEnd возвращает конец следующего расчетного периода.
// Якорь - предыдущий current_period_end, а не текущее время, иначе
// дата списания дрейфует при каждом продлении.
func (s *Subscription) NextPeriodEnd() time.Time {
	if s.CurrentPeriodEnd == nil {
		return time.Now().UTC().AddDate(0, 1, 0)
	}
	return s.CurrentPeriodEnd.AddDate(0, 1, 0)
}

// SubscriptionRequest представляет запрос на создание подписки
type SubscriptionRequest struct {
	UserID   string  `json:"user_id" validate:"required,uuid4"`
	PlanName string  `json:"plan_name" validate:"required"`
	Price    float64 `json:"price" validate:"required,gt=0"`
}
