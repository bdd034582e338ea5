package repository

import (
	"context"
	"time"

	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/pkg/logger"
	"github.com/google/uuid"
)

// CachedSubscriptionRepository реализует SubscriptionRepository с кешированием
type CachedSubscriptionRepository struct {
	repo  SubscriptionRepository
	cache *RedisCacheRepository
	log   *logger.Logger
}

// NewCachedSubscriptionRepository создает новый репозиторий с кешированием
func NewCachedSubscriptionRepository(
	repo SubscriptionRepository,
	cache *RedisCacheRepository,
	log *logger.Logger,
) SubscriptionRepository {
	return &CachedSubscriptionRepository{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// Create сохраняет подписку в БД и кеширует ее
func (r *CachedSubscriptionRepository) Create(ctx context.Context, subscription domain.Subscription) (domain.Subscription, error) {
	created, err := r.repo.Create(ctx, subscription)
	if err != nil {
		return domain.Subscription{}, err
	}

	if err := r.cache.CacheSubscription(ctx, created); err != nil {
		r.log.Warnw("Failed to cache subscription after creation", "error", err, "subscriptionID", created.ID)
		// Продолжаем выполнение, несмотря на ошибку кеширования
	}

	if err := r.cache.InvalidateUserSubscriptionsCache(ctx, created.UserID); err != nil {
		r.log.Warnw("Failed to invalidate user subscriptions cache", "error", err, "userID", created.UserID)
	}

	return created, nil
}

// GetByID получает подписку по ID (сначала из кеша, потом из БД)
func (r *CachedSubscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Subscription, error) {
	cached, err := r.cache.GetCachedSubscription(ctx, id)
	if err != nil {
		r.log.Warnw("Error getting subscription from cache", "error", err, "subscriptionID", id)
		// Продолжаем выполнение при ошибке кеша
	}

	if cached != nil {
		r.log.Debugw("Subscription found in cache", "subscriptionID", id)
		return *cached, nil
	}

	subscription, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Subscription{}, err
	}

	if err := r.cache.CacheSubscription(ctx, subscription); err != nil {
		r.log.Warnw("Failed to cache subscription after fetching", "error", err, "subscriptionID", id)
	}

	return subscription, nil
}

// GetByUserID возвращает подписки пользователя (сначала из кеша, потом из БД)
func (r *CachedSubscriptionRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Subscription, error) {
	cached, err := r.cache.GetCachedUserSubscriptions(ctx, userID)
	if err != nil {
		r.log.Warnw("Error getting user subscriptions from cache", "error", err, "userID", userID)
	}

	if len(cached) > 0 {
		r.log.Debugw("User subscriptions found in cache", "userID", userID, "count", len(cached))
		return cached, nil
	}

	subscriptions, err := r.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if len(subscriptions) > 0 {
		if err := r.cache.CacheUserSubscriptions(ctx, userID, subscriptions); err != nil {
			r.log.Warnw("Failed to cache user subscriptions", "error", err, "userID", userID)
		}
	}

	return subscriptions, nil
}

// Update обновляет подписку в БД и кеше
func (r *CachedSubscriptionRepository) Update(ctx context.Context, subscription domain.Subscription) error {
	if err := r.repo.Update(ctx, subscription); err != nil {
		return err
	}

	if err := r.cache.CacheSubscription(ctx, subscription); err != nil {
		r.log.Warnw("Failed to update subscription in cache", "error", err, "subscriptionID", subscription.ID)
	}

	if err := r.cache.InvalidateUserSubscriptionsCache(ctx, subscription.UserID); err != nil {
		r.log.Warnw("Failed to invalidate user subscriptions cache after update", "error", err, "userID", subscription.UserID)
	}

	return nil
}

// UpdateStatus меняет статус подписки и инвалидирует кеш
func (r *CachedSubscriptionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SubscriptionStatus) error {
	if err := r.repo.UpdateStatus(ctx, id, status); err != nil {
		return err
	}

	r.invalidateSubscription(ctx, id)
	return nil
}

// GetDue возвращает активные подписки с истекшим периодом, без кеша
func (r *CachedSubscriptionRepository) GetDue(ctx context.Context, moment time.Time) ([]domain.Subscription, error) {
	// Выборка для продления всегда идет в основное хранилище
	return r.repo.GetDue(ctx, moment)
}

// GetExpiredSince возвращает давно истекшие подписки, без кеша
func (r *CachedSubscriptionRepository) GetExpiredSince(ctx context.Context, cutoff time.Time) ([]domain.Subscription, error) {
	return r.repo.GetExpiredSince(ctx, cutoff)
}

// ExtendPeriod продлевает период подписки и инвалидирует кеш
func (r *CachedSubscriptionRepository) ExtendPeriod(ctx context.Context, id uuid.UUID, observed, next time.Time) error {
	if err := r.repo.ExtendPeriod(ctx, id, observed, next); err != nil {
		return err
	}

	r.invalidateSubscription(ctx, id)
	return nil
}

// invalidateSubscription сбрасывает кеш подписки и списка подписок ее владельца
func (r *CachedSubscriptionRepository) invalidateSubscription(ctx context.Context, id uuid.UUID) {
	if err := r.cache.DeleteCachedSubscription(ctx, id); err != nil {
		r.log.Warnw("Failed to delete subscription from cache", "error", err, "subscriptionID", id)
	}

	subscription, err := r.repo.GetByID(ctx, id)
	if err != nil {
		r.log.Warnw("Failed to load subscription for cache invalidation", "error", err, "subscriptionID", id)
		return
	}

	if err := r.cache.InvalidateUserSubscriptionsCache(ctx, subscription.UserID); err != nil {
		r.log.Warnw("Failed to invalidate user subscriptions cache", "error", err, "userID", subscription.UserID)
	}
}
