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

// PaymentMethodRepository определяет операции хранилища сохраненных способов оплаты
type PaymentMethodRepository interface {
	Create(ctx context.Context, method domain.PaymentMethodDetail) (domain.PaymentMethodDetail, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.PaymentMethodDetail, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.PaymentMethodDetail, error)

	// GetDefaultActive возвращает способ оплаты по умолчанию, пригодный для списания
	GetDefaultActive(ctx context.Context, userID uuid.UUID) (domain.PaymentMethodDetail, error)

	SetDefault(ctx context.Context, userID, methodID uuid.UUID) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// InMemoryPaymentMethodRepository реализация репозитория способов оплаты в памяти
type InMemoryPaymentMethodRepository struct {
	methods map[uuid.UUID]domain.PaymentMethodDetail
	mutex   sync.RWMutex
	log     *logger.Logger
}

// NewInMemoryPaymentMethodRepository создает новый репозиторий способов оплаты в памяти
func NewInMemoryPaymentMethodRepository(log *logger.Logger) *InMemoryPaymentMethodRepository {
	return &InMemoryPaymentMethodRepository{
		methods: make(map[uuid.UUID]domain.PaymentMethodDetail),
		log:     log,
	}
}

// Create сохраняет новый способ оплаты
func (r *InMemoryPaymentMethodRepository) Create(ctx context.Context, method domain.PaymentMethodDetail) (domain.PaymentMethodDetail, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Способ по умолчанию у пользователя всегда один
	if method.IsDefault {
		for id, existing := range r.methods {
			if existing.UserID == method.UserID && existing.IsDefault {
				existing.IsDefault = false
				existing.UpdatedAt = time.Now()
				r.methods[id] = existing
			}
		}
	}

	method.CreatedAt = time.Now()
	method.UpdatedAt = time.Now()
	r.methods[method.ID] = method

	return method, nil
}

// GetByID возвращает способ оплаты по ID
func (r *InMemoryPaymentMethodRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.PaymentMethodDetail, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	method, exists := r.methods[id]
	if !exists {
		return domain.PaymentMethodDetail{}, ErrNotFound
	}

	return method, nil
}

// GetByUserID возвращает активные способы оплаты пользователя
func (r *InMemoryPaymentMethodRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.PaymentMethodDetail, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var methods []domain.PaymentMethodDetail
	for _, method := range r.methods {
		if method.UserID == userID && method.IsActive {
			methods = append(methods, method)
		}
	}

	return methods, nil
}

// GetDefaultActive возвращает способ оплаты по умолчанию, пригодный для списания
func (r *InMemoryPaymentMethodRepository) GetDefaultActive(ctx context.Context, userID uuid.UUID) (domain.PaymentMethodDetail, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, method := range r.methods {
		if method.UserID == userID && method.IsDefault && method.IsActive {
			return method, nil
		}
	}

	return domain.PaymentMethodDetail{}, ErrNotFound
}

// SetDefault делает способ оплаты способом по умолчанию
func (r *InMemoryPaymentMethodRepository) SetDefault(ctx context.Context, userID, methodID uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	target, exists := r.methods[methodID]
	if !exists || target.UserID != userID {
		return ErrNotFound
	}
	if !target.IsActive {
		return ErrInvalidOperation
	}

	for id, method := range r.methods {
		if method.UserID == userID && method.IsDefault {
			method.IsDefault = false
			method.UpdatedAt = time.Now()
			r.methods[id] = method
		}
	}

	target.IsDefault = true
	target.UpdatedAt = time.Now()
	r.methods[methodID] = target

	return nil
}

// Deactivate помечает способ оплаты неактивным
func (r *InMemoryPaymentMethodRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	method, exists := r.methods[id]
	if !exists {
		return ErrNotFound
	}

	method.IsActive = false
	method.IsDefault = false
	method.UpdatedAt = time.Now()
	r.methods[id] = method

	return nil
}

// PostgresPaymentMethodRepository реализация репозитория способов оплаты через PostgreSQL
type PostgresPaymentMethodRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresPaymentMethodRepository создает новый репозиторий способов оплаты через PostgreSQL
func NewPostgresPaymentMethodRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresPaymentMethodRepository {
	return &PostgresPaymentMethodRepository{
		db:  db,
		log: log,
	}
}

const paymentMethodColumns = `
	id, user_id, payment_method, peach_registration_id,
	card_last_four, card_brand, expiry_month, expiry_year, bank_name,
	is_default, is_active, created_at, updated_at
`

// scanPaymentMethod читает одну строку способа оплаты
func scanPaymentMethod(row pgx.Row) (domain.PaymentMethodDetail, error) {
	var method domain.PaymentMethodDetail
	var cardLastFour, cardBrand, expiryMonth, expiryYear, bankName *string

	err := row.Scan(
		&method.ID,
		&method.UserID,
		&method.PaymentMethod,
		&method.PeachRegistrationID,
		&cardLastFour,
		&cardBrand,
		&expiryMonth,
		&expiryYear,
		&bankName,
		&method.IsDefault,
		&method.IsActive,
		&method.CreatedAt,
		&method.UpdatedAt,
	)
	if err != nil {
		return domain.PaymentMethodDetail{}, err
	}

	if cardLastFour != nil {
		method.CardLastFour = *cardLastFour
	}
	if cardBrand != nil {
		method.CardBrand = *cardBrand
	}
	if expiryMonth != nil {
		method.ExpiryMonth = *expiryMonth
	}
	if expiryYear != nil {
		method.ExpiryYear = *expiryYear
	}
	if bankName != nil {
		method.BankName = *bankName
	}
	return method, nil
}

// Create сохраняет новый способ оплаты в базе данных
func (r *PostgresPaymentMethodRepository) Create(ctx context.Context, method domain.PaymentMethodDetail) (domain.PaymentMethodDetail, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.PaymentMethodDetail{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if method.IsDefault {
		_, err = tx.Exec(
			ctx,
			`UPDATE payment_methods SET is_default = FALSE, updated_at = $1 WHERE user_id = $2 AND is_default = TRUE`,
			time.Now(),
			method.UserID,
		)
		if err != nil {
			return domain.PaymentMethodDetail{}, fmt.Errorf("failed to reset default payment method: %w", err)
		}
	}

	query := `
		INSERT INTO payment_methods (
			id, user_id, payment_method, peach_registration_id,
			card_last_four, card_brand, expiry_month, expiry_year, bank_name,
			is_default, is_active, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
		RETURNING id, created_at, updated_at
	`

	err = tx.QueryRow(
		ctx,
		query,
		method.ID,
		method.UserID,
		method.PaymentMethod,
		method.PeachRegistrationID,
		nullableString(method.CardLastFour),
		nullableString(method.CardBrand),
		nullableString(method.ExpiryMonth),
		nullableString(method.ExpiryYear),
		nullableString(method.BankName),
		method.IsDefault,
		method.IsActive,
		time.Now(),
		time.Now(),
	).Scan(
		&method.ID,
		&method.CreatedAt,
		&method.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return domain.PaymentMethodDetail{}, ErrNotFound
		}
		return domain.PaymentMethodDetail{}, fmt.Errorf("failed to create payment method: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.PaymentMethodDetail{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return method, nil
}

// GetByID возвращает способ оплаты по ID из базы данных
func (r *PostgresPaymentMethodRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.PaymentMethodDetail, error) {
	query := `SELECT ` + paymentMethodColumns + ` FROM payment_methods WHERE id = $1`

	method, err := scanPaymentMethod(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PaymentMethodDetail{}, ErrNotFound
		}
		return domain.PaymentMethodDetail{}, fmt.Errorf("failed to get payment method: %w", err)
	}

	return method, nil
}

// GetByUserID возвращает активные способы оплаты пользователя из базы данных
func (r *PostgresPaymentMethodRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.PaymentMethodDetail, error) {
	query := `SELECT ` + paymentMethodColumns + ` FROM payment_methods WHERE user_id = $1 AND is_active = TRUE ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment methods: %w", err)
	}
	defer rows.Close()

	var methods []domain.PaymentMethodDetail
	for rows.Next() {
		method, err := scanPaymentMethod(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment method: %w", err)
		}
		methods = append(methods, method)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment methods: %w", err)
	}

	return methods, nil
}

// GetDefaultActive возвращает способ оплаты по умолчанию из базы данных
func (r *PostgresPaymentMethodRepository) GetDefaultActive(ctx context.Context, userID uuid.UUID) (domain.PaymentMethodDetail, error) {
	query := `SELECT ` + paymentMethodColumns + ` FROM payment_methods WHERE user_id = $1 AND is_default = TRUE AND is_active = TRUE`

	method, err := scanPaymentMethod(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PaymentMethodDetail{}, ErrNotFound
		}
		return domain.PaymentMethodDetail{}, fmt.Errorf("failed to get default payment method: %w", err)
	}

	return method, nil
}

// SetDefault делает способ оплаты способом по умолчанию в базе данных
func (r *PostgresPaymentMethodRepository) SetDefault(ctx context.Context, userID, methodID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var isActive bool
	err = tx.QueryRow(
		ctx,
		`SELECT is_active FROM payment_methods WHERE id = $1 AND user_id = $2`,
		methodID,
		userID,
	).Scan(&isActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to check payment method: %w", err)
	}
	if !isActive {
		return ErrInvalidOperation
	}

	_, err = tx.Exec(
		ctx,
		`UPDATE payment_methods SET is_default = FALSE, updated_at = $1 WHERE user_id = $2 AND is_default = TRUE`,
		time.Now(),
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to reset default payment method: %w", err)
	}

	_, err = tx.Exec(
		ctx,
		`UPDATE payment_methods SET is_default = TRUE, updated_at = $1 WHERE id = $2`,
		time.Now(),
		methodID,
	)
	if err != nil {
		return fmt.Errorf("failed to set default payment method: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Deactivate помечает способ оплаты неактивным в базе данных
func (r *PostgresPaymentMethodRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE payment_methods SET is_active = FALSE, is_default = FALSE, updated_at = $1 WHERE id = $2`

	result, err := r.db.Exec(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate payment method: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// nullableString превращает пустую строку в NULL
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
