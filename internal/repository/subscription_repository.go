package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/pkg/logger"
	"github.com/google/uuid"
)

// SubscriptionRepository определяет операции хранилища подписок
type SubscriptionRepository interface {
	Create(ctx context.Context, subscription domain.Subscription) (domain.Subscription, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Subscription, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Subscription, error)
	Update(ctx context.Context, subscription domain.Subscription) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SubscriptionStatus) error

	// GetDue возвращает активные подписки, чей расчетный период истек к moment
	GetDue(ctx context.Context, moment time.Time) ([]domain.Subscription, error)

	// GetExpiredSince возвращает истекшие подписки, чей период закончился до cutoff
	GetExpiredSince(ctx context.Context, cutoff time.Time) ([]domain.Subscription, error)

	// ExtendPeriod продлевает период подписки условным обновлением:
	// запись меняется только если current_period_end все еще равен observed.
	// Возвращает ErrConflict, если период уже сдвинут конкурентным циклом.
	ExtendPeriod(ctx context.Context, id uuid.UUID, observed, next time.Time) error
}

// InMemorySubscriptionRepository реализация репозитория подписок в памяти
type InMemorySubscriptionRepository struct {
	subscriptions map[uuid.UUID]domain.Subscription
	mutex         sync.RWMutex
	log           *logger.Logger
}

// NewInMemorySubscriptionRepository создает новый репозиторий подписок в памяти
func NewInMemorySubscriptionRepository(log *logger.Logger) *InMemorySubscriptionRepository {
	return &InMemorySubscriptionRepository{
		subscriptions: make(map[uuid.UUID]domain.Subscription),
		log:           log,
	}
}

// Create создает новую подписку
func (r *InMemorySubscriptionRepository) Create(ctx context.Context, subscription domain.Subscription) (domain.Subscription, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	subscription.CreatedAt = time.Now()
	subscription.UpdatedAt = time.Now()
	r.subscriptions[subscription.ID] = subscription

	return subscription, nil
}

// GetByID возвращает подписку по ID
func (r *InMemorySubscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	subscription, exists := r.subscriptions[id]
	if !exists {
		return domain.Subscription{}, ErrNotFound
	}

	return subscription, nil
}

// GetByUserID возвращает подписки пользователя
func (r *InMemorySubscriptionRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var subscriptions []domain.Subscription
	for _, subscription := range r.subscriptions {
		if subscription.UserID == userID {
			subscriptions = append(subscriptions, subscription)
		}
	}

	return subscriptions, nil
}

// Update обновляет существующую подписку
func (r *InMemorySubscriptionRepository) Update(ctx context.Context, subscription domain.Subscription) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.subscriptions[subscription.ID]; !exists {
		return ErrNotFound
	}

	subscription.UpdatedAt = time.Now()
	r.subscriptions[subscription.ID] = subscription

	return nil
}

// UpdateStatus меняет статус подписки
func (r *InMemorySubscriptionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SubscriptionStatus) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	subscription, exists := r.subscriptions[id]
	if !exists {
		return ErrNotFound
	}

	subscription.Status = status
	subscription.UpdatedAt = time.Now()
	r.subscriptions[id] = subscription

	return nil
}

// GetDue возвращает активные подписки с истекшим периодом
func (r *InMemorySubscriptionRepository) GetDue(ctx context.Context, moment time.Time) ([]domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var due []domain.Subscription
	for _, subscription := range r.subscriptions {
		if subscription.Status != domain.SubscriptionStatusActive {
			continue
		}
		if subscription.CurrentPeriodEnd == nil {
			continue
		}
		if !subscription.CurrentPeriodEnd.After(moment) {
			due = append(due, subscription)
		}
	}

	return due, nil
}

// GetExpiredSince возвращает истекшие подписки старше cutoff
func (r *InMemorySubscriptionRepository) GetExpiredSince(ctx context.Context, cutoff time.Time) ([]domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var expired []domain.Subscription
	for _, subscription := range r.subscriptions {
		if subscription.Status != domain.SubscriptionStatusExpired {
			continue
		}
		if subscription.CurrentPeriodEnd == nil {
			continue
		}
		if !subscription.CurrentPeriodEnd.After(cutoff) {
			expired = append(expired, subscription)
		}
	}

	return expired, nil
}

// ExtendPeriod продлевает период подписки, если он не был сдвинут конкурентно
func (r *InMemorySubscriptionRepository) ExtendPeriod(ctx context.Context, id uuid.UUID, observed, next time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	subscription, exists := r.subscriptions[id]
	if !exists {
		return ErrNotFound
	}

	if subscription.CurrentPeriodEnd == nil || !subscription.CurrentPeriodEnd.Equal(observed) {
		return ErrConflict
	}

	periodEnd := next
	subscription.CurrentPeriodEnd = &periodEnd
	subscription.Status = domain.SubscriptionStatusActive
	subscription.UpdatedAt = time.Now()
	r.subscriptions[id] = subscription

	return nil
}

// PostgresSubscriptionRepository реализация репозитория подписок через PostgreSQL
type PostgresSubscriptionRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresSubscriptionRepository создает новый репозиторий подписок через PostgreSQL
func NewPostgresSubscriptionRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{
		db:  db,
		log: log,
	}
}

const subscriptionColumns = `
	id, user_id, plan_name, price, status,
	started_at, current_period_end, created_at, updated_at
`

// scanSubscription читает одну строку подписки
func scanSubscription(row pgx.Row) (domain.Subscription, error) {
	var subscription domain.Subscription
	var startedAt, currentPeriodEnd *time.Time

	err := row.Scan(
		&subscription.ID,
		&subscription.UserID,
		&subscription.PlanName,
		&subscription.Price,
		&subscription.Status,
		&startedAt,
		&currentPeriodEnd,
		&subscription.CreatedAt,
		&subscription.UpdatedAt,
	)
	if err != nil {
		return domain.Subscription{}, err
	}

	subscription.StartedAt = startedAt
	subscription.CurrentPeriodEnd = currentPeriodEnd
	return subscription, nil
}

// Create создает новую подписку в базе данных
func (r *PostgresSubscriptionRepository) Create(ctx context.Context, subscription domain.Subscription) (domain.Subscription, error) {
	query := `
		INSERT INTO subscriptions (
			id, user_id, plan_name, price, status,
			started_at, current_period_end, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx,
		query,
		subscription.ID,
		subscription.UserID,
		subscription.PlanName,
		subscription.Price,
		subscription.Status,
		subscription.StartedAt,
		subscription.CurrentPeriodEnd,
		time.Now(),
		time.Now(),
	).Scan(
		&subscription.ID,
		&subscription.CreatedAt,
		&subscription.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			// Нарушение внешнего ключа: пользователь не существует
			if pgErr.Code == "23503" {
				return domain.Subscription{}, ErrNotFound
			}
		}
		return domain.Subscription{}, fmt.Errorf("failed to create subscription: %w", err)
	}

	return subscription, nil
}

// GetByID возвращает подписку по ID из базы данных
func (r *PostgresSubscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`

	subscription, err := scanSubscription(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Subscription{}, ErrNotFound
		}
		return domain.Subscription{}, fmt.Errorf("failed to get subscription: %w", err)
	}

	return subscription, nil
}

// GetByUserID возвращает подписки пользователя из базы данных
func (r *PostgresSubscriptionRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	return collectSubscriptions(rows)
}

// Update обновляет существующую подписку в базе данных
func (r *PostgresSubscriptionRepository) Update(ctx context.Context, subscription domain.Subscription) error {
	query := `
		UPDATE subscriptions
		SET
			plan_name = $1,
			price = $2,
			status = $3,
			started_at = $4,
			current_period_end = $5,
			updated_at = $6
		WHERE id = $7
	`

	result, err := r.db.Exec(
		ctx,
		query,
		subscription.PlanName,
		subscription.Price,
		subscription.Status,
		subscription.StartedAt,
		subscription.CurrentPeriodEnd,
		time.Now(),
		subscription.ID,
	)

	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdateStatus меняет статус подписки в базе данных
func (r *PostgresSubscriptionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SubscriptionStatus) error {
	query := `UPDATE subscriptions SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.Exec(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update subscription status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// GetDue возвращает активные подписки с истекшим периодом из базы данных
func (r *PostgresSubscriptionRepository) GetDue(ctx context.Context, moment time.Time) ([]domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = $1 AND current_period_end IS NOT NULL AND current_period_end <= $2
		ORDER BY current_period_end ASC
	`

	rows, err := r.db.Query(ctx, query, domain.SubscriptionStatusActive, moment)
	if err != nil {
		return nil, fmt.Errorf("failed to query due subscriptions: %w", err)
	}
	defer rows.Close()

	return collectSubscriptions(rows)
}

// GetExpiredSince возвращает истекшие подписки старше cutoff из базы данных
func (r *PostgresSubscriptionRepository) GetExpiredSince(ctx context.Context, cutoff time.Time) ([]domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = $1 AND current_period_end IS NOT NULL AND current_period_end <= $2
		ORDER BY current_period_end ASC
	`

	rows, err := r.db.Query(ctx, query, domain.SubscriptionStatusExpired, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired subscriptions: %w", err)
	}
	defer rows.Close()

	return collectSubscriptions(rows)
}

// ExtendPeriod продлевает период условным обновлением по наблюдавшемуся значению
func (r *PostgresSubscriptionRepository) ExtendPeriod(ctx context.Context, id uuid.UUID, observed, next time.Time) error {
	query := `
		UPDATE subscriptions
		SET current_period_end = $1, status = $2, updated_at = $3
		WHERE id = $4 AND current_period_end = $5
	`

	result, err := r.db.Exec(ctx, query, next, domain.SubscriptionStatusActive, time.Now(), id, observed)
	if err != nil {
		return fmt.Errorf("failed to extend subscription period: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Либо подписки нет, либо период уже сдвинут другим циклом
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return ErrConflict
	}

	return nil
}

// collectSubscriptions читает все строки результата
func collectSubscriptions(rows pgx.Rows) ([]domain.Subscription, error) {
	var subscriptions []domain.Subscription
	for rows.Next() {
		subscription, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subscriptions = append(subscriptions, subscription)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriptions: %w", err)
	}

	return subscriptions, nil
}
