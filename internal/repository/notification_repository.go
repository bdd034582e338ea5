package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/pkg/logger"
	"github.com/google/uuid"
)

// NotificationRepository определяет операции хранилища уведомлений
type NotificationRepository interface {
	Create(ctx context.Context, notification domain.Notification) (domain.Notification, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Notification, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Notification, error)

	// Acknowledge помечает уведомление прочитанным, повторный вызов не ошибка
	Acknowledge(ctx context.Context, id uuid.UUID) error
}

// InMemoryNotificationRepository реализация репозитория уведомлений в памяти
type InMemoryNotificationRepository struct {
	notifications map[uuid.UUID]domain.Notification
	mutex         sync.RWMutex
	log           *logger.Logger
}

// NewInMemoryNotificationRepository создает новый репозиторий уведомлений в памяти
func NewInMemoryNotificationRepository(log *logger.Logger) *InMemoryNotificationRepository {
	return &InMemoryNotificationRepository{
		notifications: make(map[uuid.UUID]domain.Notification),
		log:           log,
	}
}

// Create создает новое уведомление
func (r *InMemoryNotificationRepository) Create(ctx context.Context, notification domain.Notification) (domain.Notification, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	notification.CreatedAt = time.Now()
	r.notifications[notification.ID] = notification

	return notification, nil
}

// GetByID возвращает уведомление по ID
func (r *InMemoryNotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Notification, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	notification, exists := r.notifications[id]
	if !exists {
		return domain.Notification{}, ErrNotFound
	}

	return notification, nil
}

// GetByUserID возвращает уведомления пользователя, новые первыми
func (r *InMemoryNotificationRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Notification, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var notifications []domain.Notification
	for _, notification := range r.notifications {
		if notification.UserID == userID {
			notifications = append(notifications, notification)
		}
	}

	sort.Slice(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})

	return notifications, nil
}

// Acknowledge помечает уведомление прочитанным
func (r *InMemoryNotificationRepository) Acknowledge(ctx context.Context, id uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	notification, exists := r.notifications[id]
	if !exists {
		return ErrNotFound
	}

	notification.Acknowledged = true
	r.notifications[id] = notification

	return nil
}

// PostgresNotificationRepository реализация репозитория уведомлений через PostgreSQL
type PostgresNotificationRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresNotificationRepository создает новый репозиторий уведомлений через PostgreSQL
func NewPostgresNotificationRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{
		db:  db,
		log: log,
	}
}

// Create создает новое уведомление в базе данных
func (r *PostgresNotificationRepository) Create(ctx context.Context, notification domain.Notification) (domain.Notification, error) {
	query := `
		INSERT INTO notifications (id, user_id, subscription_id, message, acknowledged, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(
		ctx,
		query,
		notification.ID,
		notification.UserID,
		notification.SubscriptionID,
		notification.Message,
		notification.Acknowledged,
		time.Now(),
	).Scan(
		&notification.ID,
		&notification.CreatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return domain.Notification{}, ErrNotFound
		}
		return domain.Notification{}, fmt.Errorf("failed to create notification: %w", err)
	}

	return notification, nil
}

// GetByID возвращает уведомление по ID из базы данных
func (r *PostgresNotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Notification, error) {
	query := `
		SELECT id, user_id, subscription_id, message, acknowledged, created_at
		FROM notifications
		WHERE id = $1
	`

	var notification domain.Notification
	err := r.db.QueryRow(ctx, query, id).Scan(
		&notification.ID,
		&notification.UserID,
		&notification.SubscriptionID,
		&notification.Message,
		&notification.Acknowledged,
		&notification.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Notification{}, ErrNotFound
		}
		return domain.Notification{}, fmt.Errorf("failed to get notification: %w", err)
	}

	return notification, nil
}

// GetByUserID возвращает уведомления пользователя из базы данных
func (r *PostgresNotificationRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Notification, error) {
	query := `
		SELECT id, user_id, subscription_id, message, acknowledged, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []domain.Notification
	for rows.Next() {
		var notification domain.Notification
		err := rows.Scan(
			&notification.ID,
			&notification.UserID,
			&notification.SubscriptionID,
			&notification.Message,
			&notification.Acknowledged,
			&notification.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, notification)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return notifications, nil
}

// Acknowledge помечает уведомление прочитанным в базе данных
func (r *PostgresNotificationRepository) Acknowledge(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE notifications SET acknowledged = TRUE WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to acknowledge notification: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
