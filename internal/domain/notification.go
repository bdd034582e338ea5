package domain

import (
	"time"

	"github.com/google/uuid"
)

// Notification представляет собой уведомление пользователя об исходе
// продления или другом событии подписки. Уведомления никогда не удаляются,
// единственная мутация - подтверждение прочтения.
type Notification struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	SubscriptionID *uuid.UUID `json:"subscription_id,omitempty"`
	Message        string     `json:"message"`
	Acknowledged   bool       `json:"acknowledged"`
	CreatedAt      time.Time  `json:"created_at"`
}

// NotificationRequest представляет запрос на создание тестового уведомления
type NotificationRequest struct {
	UserID  string `json:"user_id" validate:"required,uuid4"`
	Message string `json:"message" validate:"required"`
}
