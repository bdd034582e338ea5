package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/internal/repository"
	"github.com/Dhoini/Billing-service/pkg/logger"
	"github.com/google/uuid"
)

// NotificationService инкапсулирует бизнес-логику работы с уведомлениями
type NotificationService struct {
	notificationRepo repository.NotificationRepository
	userRepo         repository.UserRepository
	log              *logger.Logger
}

// NewNotificationService конструктор сервиса уведомлений
func NewNotificationService(
	notificationRepo repository.NotificationRepository,
	userRepo repository.UserRepository,
	log *logger.Logger,
) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		log:              log,
	}
}

// Create создает уведомление для пользователя
func (s *NotificationService) Create(ctx context.Context, userID uuid.UUID, subscriptionID *uuid.UUID, message string) (domain.Notification, error) {
	notification := domain.Notification{
		ID:             uuid.New(),
		UserID:         userID,
		SubscriptionID: subscriptionID,
		Message:        message,
		Acknowledged:   false,
		CreatedAt:      time.Now(),
	}

	created, err := s.notificationRepo.Create(ctx, notification)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Notification{}, domain.ErrNotFound
		}
		s.log.Errorw("Failed to create notification", "error", err, "userID", userID)
		return domain.Notification{}, fmt.Errorf("failed to create notification: %w", err)
	}

	return created, nil
}

// CreateTest создает уведомление по запросу из API. Используется для проверки
// доставки уведомлений в тестовых окружениях.
func (s *NotificationService) CreateTest(ctx context.Context, input domain.NotificationRequest) (domain.Notification, error) {
	userID, err := uuid.Parse(input.UserID)
	if err != nil {
		return domain.Notification{}, domain.ErrInvalidInput
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Notification{}, domain.ErrNotFound
		}
		return domain.Notification{}, fmt.Errorf("failed to check user: %w", err)
	}

	return s.Create(ctx, userID, nil, input.Message)
}

// GetByUser возвращает уведомления пользователя, новые первыми
func (s *NotificationService) GetByUser(ctx context.Context, userID uuid.UUID) ([]domain.Notification, error) {
	notifications, err := s.notificationRepo.GetByUserID(ctx, userID)
	if err != nil {
		s.log.Errorw("Failed to get notifications", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}
	return notifications, nil
}

// Acknowledge помечает уведомление прочитанным. Операция идемпотентна:
// повторное подтверждение уже прочитанного уведомления не считается ошибкой.
func (s *NotificationService) Acknowledge(ctx context.Context, id uuid.UUID) (domain.Notification, error) {
	if err := s.notificationRepo.Acknowledge(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Notification{}, domain.ErrNotFound
		}
		s.log.Errorw("Failed to acknowledge notification", "error", err, "notificationID", id)
		return domain.Notification{}, fmt.Errorf("failed to acknowledge notification: %w", err)
	}

	notification, err := s.notificationRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Notification{}, domain.ErrNotFound
		}
		return domain.Notification{}, fmt.Errorf("failed to get notification: %w", err)
	}

	return notification, nil
}
