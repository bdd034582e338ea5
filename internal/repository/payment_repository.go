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

// PaymentRepository определяет операции хранилища платежей
type PaymentRepository interface {
	Create(ctx context.Context, payment domain.Payment) (domain.Payment, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Payment, error)
	GetByMerchantTransactionID(ctx context.Context, merchantTransactionID string) (domain.Payment, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Payment, error)

	// GetLatestBySubscriptionID возвращает самый свежий платеж подписки
	GetLatestBySubscriptionID(ctx context.Context, subscriptionID uuid.UUID) (domain.Payment, error)

	UpdateStatus(ctx context.Context, merchantTransactionID string, status domain.PaymentStatus) error
	UpdateCheckoutID(ctx context.Context, merchantTransactionID, checkoutID string) error
	UpdatePeachPaymentID(ctx context.Context, merchantTransactionID, peachPaymentID string) error
}

// InMemoryPaymentRepository реализация репозитория платежей в памяти
type InMemoryPaymentRepository struct {
	payments map[uuid.UUID]domain.Payment
	mutex    sync.RWMutex
	log      *logger.Logger
}

// NewInMemoryPaymentRepository создает новый репозиторий платежей в памяти
func NewInMemoryPaymentRepository(log *logger.Logger) *InMemoryPaymentRepository {
	return &InMemoryPaymentRepository{
		payments: make(map[uuid.UUID]domain.Payment),
		log:      log,
	}
}

// Create создает новый платеж
func (r *InMemoryPaymentRepository) Create(ctx context.Context, payment domain.Payment) (domain.Payment, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	// merchant_transaction_id - уникальный ключ корреляции со шлюзом
	for _, existing := range r.payments {
		if existing.MerchantTransactionID == payment.MerchantTransactionID {
			return domain.Payment{}, ErrDuplicate
		}
	}

	payment.CreatedAt = time.Now()
	payment.UpdatedAt = time.Now()
	r.payments[payment.ID] = payment

	return payment, nil
}

// GetByID возвращает платеж по ID
func (r *InMemoryPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Payment, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	payment, exists := r.payments[id]
	if !exists {
		return domain.Payment{}, ErrNotFound
	}

	return payment, nil
}

// GetByMerchantTransactionID возвращает платеж по ключу корреляции
func (r *InMemoryPaymentRepository) GetByMerchantTransactionID(ctx context.Context, merchantTransactionID string) (domain.Payment, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, payment := range r.payments {
		if payment.MerchantTransactionID == merchantTransactionID {
			return payment, nil
		}
	}

	return domain.Payment{}, ErrNotFound
}

// GetByUserID возвращает платежи пользователя, новые первыми
func (r *InMemoryPaymentRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Payment, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var payments []domain.Payment
	for _, payment := range r.payments {
		if payment.UserID == userID {
			payments = append(payments, payment)
		}
	}

	sort.Slice(payments, func(i, j int) bool {
		return payments[i].CreatedAt.After(payments[j].CreatedAt)
	})

	return payments, nil
}

// GetLatestBySubscriptionID возвращает самый свежий платеж подписки
func (r *InMemoryPaymentRepository) GetLatestBySubscriptionID(ctx context.Context, subscriptionID uuid.UUID) (domain.Payment, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var latest *domain.Payment
	for _, payment := range r.payments {
		if payment.SubscriptionID == nil || *payment.SubscriptionID != subscriptionID {
			continue
		}
		if latest == nil || payment.CreatedAt.After(latest.CreatedAt) {
			p := payment
			latest = &p
		}
	}

	if latest == nil {
		return domain.Payment{}, ErrNotFound
	}

	return *latest, nil
}

// UpdateStatus меняет статус платежа
func (r *InMemoryPaymentRepository) UpdateStatus(ctx context.Context, merchantTransactionID string, status domain.PaymentStatus) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for id, payment := range r.payments {
		if payment.MerchantTransactionID == merchantTransactionID {
			payment.Status = status
			payment.UpdatedAt = time.Now()
			r.payments[id] = payment
			return nil
		}
	}

	return ErrNotFound
}

// UpdateCheckoutID сохраняет ID чекаута шлюза
func (r *InMemoryPaymentRepository) UpdateCheckoutID(ctx context.Context, merchantTransactionID, checkoutID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for id, payment := range r.payments {
		if payment.MerchantTransactionID == merchantTransactionID {
			payment.CheckoutID = checkoutID
			payment.UpdatedAt = time.Now()
			r.payments[id] = payment
			return nil
		}
	}

	return ErrNotFound
}

// UpdatePeachPaymentID сохраняет внешний ID платежа в шлюзе
func (r *InMemoryPaymentRepository) UpdatePeachPaymentID(ctx context.Context, merchantTransactionID, peachPaymentID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for id, payment := range r.payments {
		if payment.MerchantTransactionID == merchantTransactionID {
			payment.PeachPaymentID = peachPaymentID
			payment.UpdatedAt = time.Now()
			r.payments[id] = payment
			return nil
		}
	}

	return ErrNotFound
}

// PostgresPaymentRepository реализация репозитория платежей через PostgreSQL
type PostgresPaymentRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresPaymentRepository создает новый репозиторий платежей через PostgreSQL
func NewPostgresPaymentRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{
		db:  db,
		log: log,
	}
}

const paymentColumns = `
	id, user_id, subscription_id, amount, currency, status, payment_method,
	merchant_transaction_id, checkout_id, peach_payment_id,
	is_recurring, parent_payment_id, created_at, updated_at
`

// scanPayment читает одну строку платежа
func scanPayment(row pgx.Row) (domain.Payment, error) {
	var payment domain.Payment
	var subscriptionID, parentPaymentID *uuid.UUID
	var checkoutID, peachPaymentID *string

	err := row.Scan(
		&payment.ID,
		&payment.UserID,
		&subscriptionID,
		&payment.Amount,
		&payment.Currency,
		&payment.Status,
		&payment.PaymentMethod,
		&payment.MerchantTransactionID,
		&checkoutID,
		&peachPaymentID,
		&payment.IsRecurring,
		&parentPaymentID,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return domain.Payment{}, err
	}

	payment.SubscriptionID = subscriptionID
	payment.ParentPaymentID = parentPaymentID
	if checkoutID != nil {
		payment.CheckoutID = *checkoutID
	}
	if peachPaymentID != nil {
		payment.PeachPaymentID = *peachPaymentID
	}
	return payment, nil
}

// Create создает новый платеж в базе данных
func (r *PostgresPaymentRepository) Create(ctx context.Context, payment domain.Payment) (domain.Payment, error) {
	query := `
		INSERT INTO payments (
			id, user_id, subscription_id, amount, currency, status, payment_method,
			merchant_transaction_id, checkout_id, peach_payment_id,
			is_recurring, parent_payment_id, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
		RETURNING id, created_at, updated_at
	`

	var checkoutID, peachPaymentID *string
	if payment.CheckoutID != "" {
		checkoutID = &payment.CheckoutID
	}
	if payment.PeachPaymentID != "" {
		peachPaymentID = &payment.PeachPaymentID
	}

	err := r.db.QueryRow(
		ctx,
		query,
		payment.ID,
		payment.UserID,
		payment.SubscriptionID,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.PaymentMethod,
		payment.MerchantTransactionID,
		checkoutID,
		peachPaymentID,
		payment.IsRecurring,
		payment.ParentPaymentID,
		time.Now(),
		time.Now(),
	).Scan(
		&payment.ID,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" {
				return domain.Payment{}, ErrDuplicate
			}
			if pgErr.Code == "23503" {
				return domain.Payment{}, ErrNotFound
			}
		}
		return domain.Payment{}, fmt.Errorf("failed to create payment: %w", err)
	}

	return payment, nil
}

// GetByID возвращает платеж по ID из базы данных
func (r *PostgresPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	payment, err := scanPayment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Payment{}, ErrNotFound
		}
		return domain.Payment{}, fmt.Errorf("failed to get payment: %w", err)
	}

	return payment, nil
}

// GetByMerchantTransactionID возвращает платеж по ключу корреляции из базы данных
func (r *PostgresPaymentRepository) GetByMerchantTransactionID(ctx context.Context, merchantTransactionID string) (domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE merchant_transaction_id = $1`

	payment, err := scanPayment(r.db.QueryRow(ctx, query, merchantTransactionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Payment{}, ErrNotFound
		}
		return domain.Payment{}, fmt.Errorf("failed to get payment by merchant transaction id: %w", err)
	}

	return payment, nil
}

// GetByUserID возвращает платежи пользователя из базы данных
func (r *PostgresPaymentRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, payment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}

	return payments, nil
}

// GetLatestBySubscriptionID возвращает самый свежий платеж подписки из базы данных
func (r *PostgresPaymentRepository) GetLatestBySubscriptionID(ctx context.Context, subscriptionID uuid.UUID) (domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE subscription_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	payment, err := scanPayment(r.db.QueryRow(ctx, query, subscriptionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Payment{}, ErrNotFound
		}
		return domain.Payment{}, fmt.Errorf("failed to get latest payment: %w", err)
	}

	return payment, nil
}

// UpdateStatus меняет статус платежа в базе данных
func (r *PostgresPaymentRepository) UpdateStatus(ctx context.Context, merchantTransactionID string, status domain.PaymentStatus) error {
	query := `UPDATE payments SET status = $1, updated_at = $2 WHERE merchant_transaction_id = $3`

	result, err := r.db.Exec(ctx, query, status, time.Now(), merchantTransactionID)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdateCheckoutID сохраняет ID чекаута шлюза в базе данных
func (r *PostgresPaymentRepository) UpdateCheckoutID(ctx context.Context, merchantTransactionID, checkoutID string) error {
	query := `UPDATE payments SET checkout_id = $1, updated_at = $2 WHERE merchant_transaction_id = $3`

	result, err := r.db.Exec(ctx, query, checkoutID, time.Now(), merchantTransactionID)
	if err != nil {
		return fmt.Errorf("failed to update payment checkout id: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdatePeachPaymentID сохраняет внешний ID платежа в базе данных
func (r *PostgresPaymentRepository) UpdatePeachPaymentID(ctx context.Context, merchantTransactionID, peachPaymentID string) error {
	query := `UPDATE payments SET peach_payment_id = $1, updated_at = $2 WHERE merchant_transaction_id = $3`

	result, err := r.db.Exec(ctx, query, peachPaymentID, time.Now(), merchantTransactionID)
	if err != nil {
		return fmt.Errorf("failed to update peach payment id: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
