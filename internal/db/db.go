package db

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/Dhoini/Billing-service/pkg/logger"
)

// DBClient представляет клиент для работы с базой данных.
type DBClient struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewDBClient создает новый экземпляр DBClient с повторными попытками подключения.
func NewDBClient(dsn string, log *logger.Logger) (*DBClient, error) {
	var db *sqlx.DB

	operation := func() error {
		var err error
		db, err = sqlx.Connect("pgx", dsn)
		if err != nil {
			log.Warnw("Failed to connect to database, retrying", "error", err)
			return err
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 1 * time.Second
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 1 * time.Minute

	if err := backoff.Retry(operation, bo); err != nil {
		log.Errorw("Failed to connect to database", "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		log.Errorw("Failed to ping database", "error", err)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Infow("Connected to database successfully")
	return &DBClient{db: db, log: log}, nil
}

// Close закрывает соединение с базой данных.
func (dc *DBClient) Close() error {
	err := dc.db.Close()
	if err != nil {
		dc.log.Errorw("Failed to close database connection", "error", err)
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}

// Migrate создает схему биллинга, если ее еще нет.
func (dc *DBClient) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id),
			plan_name TEXT NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			status TEXT NOT NULL,
			started_at TIMESTAMPTZ,
			current_period_end TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_user_id ON subscriptions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_due ON subscriptions(status, current_period_end)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id),
			subscription_id UUID REFERENCES subscriptions(id),
			amount DOUBLE PRECISION NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL,
			payment_method TEXT NOT NULL,
			merchant_transaction_id TEXT NOT NULL UNIQUE,
			checkout_id TEXT,
			peach_payment_id TEXT,
			is_recurring BOOLEAN NOT NULL DEFAULT FALSE,
			parent_payment_id UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_user_id ON payments(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_subscription_id ON payments(subscription_id)`,
		`CREATE TABLE IF NOT EXISTS payment_methods (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id),
			payment_method TEXT NOT NULL,
			peach_registration_id TEXT NOT NULL,
			card_last_four TEXT,
			card_brand TEXT,
			expiry_month TEXT,
			expiry_year TEXT,
			bank_name TEXT,
			is_default BOOLEAN NOT NULL DEFAULT FALSE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payment_methods_user_id ON payment_methods(user_id)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id),
			subscription_id UUID REFERENCES subscriptions(id),
			message TEXT NOT NULL,
			acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user_id ON notifications(user_id)`,
	}

	for _, stmt := range statements {
		if _, err := dc.db.ExecContext(ctx, stmt); err != nil {
			dc.log.Errorw("Failed to apply migration statement", "error", err)
			return fmt.Errorf("failed to apply migration: %w", err)
		}
	}

	dc.log.Infow("Database schema is up to date")
	return nil
}

// NewPgxPool создает пул соединений pgx для репозиториев.
func NewPgxPool(ctx context.Context, dsn string, log *logger.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour

	var pool *pgxpool.Pool

	operation := func() error {
		pool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			log.Warnw("Failed to create connection pool, retrying", "error", err)
			return err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			log.Warnw("Failed to ping connection pool, retrying", "error", err)
			return err
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 1 * time.Second
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 1 * time.Minute

	if err := backoff.Retry(operation, bo); err != nil {
		log.Errorw("Failed to create connection pool", "error", err)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	log.Infow("Connection pool created successfully")
	return pool, nil
}
