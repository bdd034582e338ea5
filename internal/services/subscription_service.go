package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/internal/kafka"
	"github.com/Dhoini/Billing-service/internal/repository"
	"github.com/Dhoini/Billing-service/pkg/logger"
	"github.com/google/uuid"
)

// SubscriptionService инкапсулирует бизнес-логику жизненного цикла подписок
type SubscriptionService struct {
	subRepo       repository.SubscriptionRepository
	userRepo      repository.UserRepository
	notifications *NotificationService
	kafkaProducer kafka.Producer // Может быть nil, если Kafka недоступен
	log           *logger.Logger
}

// NewSubscriptionService конструктор сервиса подписок
func NewSubscriptionService(
	subRepo repository.SubscriptionRepository,
	userRepo repository.UserRepository,
	notifications *NotificationService,
	kafkaProducer kafka.Producer,
	log *logger.Logger,
) *SubscriptionService {
	if kafkaProducer == nil {
		log.Warnw("Kafka producer is nil, subscription event publishing will be skipped.")
	}
	return &SubscriptionService{
		subRepo:       subRepo,
		userRepo:      userRepo,
		notifications: notifications,
		kafkaProducer: kafkaProducer,
		log:           log,
	}
}

// Create создает подписку в статусе Pending. Подписка становится активной
// только после успешной оплаты.
func (s *SubscriptionService) Create(ctx context.Context, input domain.SubscriptionRequest) (domain.Subscription, error) {
	userID, err := uuid.Parse(input.UserID)
	if err != nil {
		return domain.Subscription{}, domain.ErrInvalidInput
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Warnw("Attempt to create subscription for unknown user", "userID", userID)
			return domain.Subscription{}, domain.ErrNotFound
		}
		return domain.Subscription{}, fmt.Errorf("failed to check user: %w", err)
	}

	subscription := domain.Subscription{
		ID:        uuid.New(),
		UserID:    userID,
		PlanName:  input.PlanName,
		Price:     input.Price,
		Status:    domain.SubscriptionStatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	created, err := s.subRepo.Create(ctx, subscription)
	if err != nil {
		s.log.Errorw("Failed to create subscription", "error", err, "userID", userID)
		return domain.Subscription{}, fmt.Errorf("failed to create subscription: %w", err)
	}

	s.log.Infow("Subscription created", "subscriptionID", created.ID, "userID", userID, "plan", created.PlanName)
	s.publishEvent(ctx, kafka.TopicSubscriptionCreated, created)

	return created, nil
}

// GetByID возвращает подписку по ID
func (s *SubscriptionService) GetByID(ctx context.Context, id uuid.UUID) (domain.Subscription, error) {
	subscription, err := s.subRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Subscription{}, domain.ErrNotFound
		}
		s.log.Errorw("Failed to get subscription", "error", err, "subscriptionID", id)
		return domain.Subscription{}, fmt.Errorf("failed to get subscription: %w", err)
	}
	return subscription, nil
}

// GetByUser возвращает подписки пользователя
func (s *SubscriptionService) GetByUser(ctx context.Context, userID uuid.UUID) ([]domain.Subscription, error) {
	subscriptions, err := s.subRepo.GetByUserID(ctx, userID)
	if err != nil {
		s.log.Errorw("Failed to get user subscriptions", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get user subscriptions: %w", err)
	}
	return subscriptions, nil
}

// Activate переводит подписку в Active после успешной оплаты.
// Запускает расчетный период: started_at = now, current_period_end = now + месяц.
func (s *SubscriptionService) Activate(ctx context.Context, id uuid.UUID) (domain.Subscription, error) {
	subscription, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.Subscription{}, err
	}

	switch subscription.Status {
	case domain.SubscriptionStatusPending, domain.SubscriptionStatusSuspended:
		// Допустимые исходные статусы
	case domain.SubscriptionStatusActive:
		// Повторная активация не меняет состояние
		return subscription, nil
	default:
		s.log.Warnw("Attempt to activate subscription in invalid status", "subscriptionID", id, "status", subscription.Status)
		return domain.Subscription{}, domain.NewSubscriptionError(
			"INVALID_STATUS_TRANSITION",
			fmt.Sprintf("cannot activate subscription in status %s", subscription.Status),
			id.String(),
			domain.ErrInvalidOperation,
		)
	}

	now := time.Now().UTC()
	periodEnd := now.AddDate(0, 1, 0)
	subscription.Status = domain.SubscriptionStatusActive
	subscription.StartedAt = &now
	subscription.CurrentPeriodEnd = &periodEnd
	subscription.UpdatedAt = now

	if err := s.subRepo.Update(ctx, subscription); err != nil {
		s.log.Errorw("Failed to activate subscription", "error", err, "subscriptionID", id)
		return domain.Subscription{}, fmt.Errorf("failed to activate subscription: %w", err)
	}

	s.log.Infow("Subscription activated", "subscriptionID", id, "periodEnd", periodEnd)
	return subscription, nil
}

// Cancel отменяет подписку. Отмена - терминальное состояние, продление
// отмененной подписки невозможно.
func (s *SubscriptionService) Cancel(ctx context.Context, id uuid.UUID) (domain.Subscription, error) {
	subscription, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.Subscription{}, err
	}

	switch subscription.Status {
	case domain.SubscriptionStatusCancelled:
		// Повторная отмена не меняет состояние
		return subscription, nil
	case domain.SubscriptionStatusExpired:
		return domain.Subscription{}, domain.NewSubscriptionError(
			"INVALID_STATUS_TRANSITION",
			"cannot cancel an expired subscription",
			id.String(),
			domain.ErrInvalidOperation,
		)
	}

	if err := s.subRepo.UpdateStatus(ctx, id, domain.SubscriptionStatusCancelled); err != nil {
		s.log.Errorw("Failed to cancel subscription", "error", err, "subscriptionID", id)
		return domain.Subscription{}, fmt.Errorf("failed to cancel subscription: %w", err)
	}

	subscription.Status = domain.SubscriptionStatusCancelled
	subscription.UpdatedAt = time.Now()

	s.log.Infow("Subscription cancelled", "subscriptionID", id, "userID", subscription.UserID)
	s.publishEvent(ctx, kafka.TopicSubscriptionCancelled, subscription)

	if _, err := s.notifications.Create(ctx, subscription.UserID, &subscription.ID,
		fmt.Sprintf("Your subscription to %s has been cancelled.", subscription.PlanName)); err != nil {
		s.log.Errorw("Failed to create cancellation notification", "error", err, "subscriptionID", id)
	}

	return subscription, nil
}

// SuspendLapsed приостанавливает подписки, истекшие раньше cutoff и так и
// не оплаченные за льготный период. Возвращает число приостановленных подписок.
func (s *SubscriptionService) SuspendLapsed(ctx context.Context, cutoff time.Time) (int, error) {
	lapsed, err := s.subRepo.GetExpiredSince(ctx, cutoff)
	if err != nil {
		s.log.Errorw("Failed to select lapsed subscriptions", "error", err)
		return 0, fmt.Errorf("failed to select lapsed subscriptions: %w", err)
	}

	suspended := 0
	for _, subscription := range lapsed {
		if err := s.subRepo.UpdateStatus(ctx, subscription.ID, domain.SubscriptionStatusSuspended); err != nil {
			s.log.Errorw("Failed to suspend lapsed subscription", "error", err, "subscriptionID", subscription.ID)
			continue
		}
		subscription.Status = domain.SubscriptionStatusSuspended
		suspended++

		s.log.Infow("Lapsed subscription suspended", "subscriptionID", subscription.ID, "userID", subscription.UserID)
		s.publishEvent(ctx, kafka.TopicSubscriptionSuspended, subscription)

		if _, err := s.notifications.Create(ctx, subscription.UserID, &subscription.ID,
			fmt.Sprintf("Your subscription to %s has been suspended after the grace period ended.", subscription.PlanName)); err != nil {
			s.log.Errorw("Failed to create suspension notification", "error", err, "subscriptionID", subscription.ID)
		}
	}

	return suspended, nil
}

// publishEvent асинхронно публикует событие подписки в Kafka
func (s *SubscriptionService) publishEvent(ctx context.Context, topic string, subscription domain.Subscription) {
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
