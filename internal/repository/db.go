package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// NewDB creates a new PostgreSQL connection pool.
func NewDB(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// RunMigrations executes the initial schema migration.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS users (
			id               TEXT PRIMARY KEY,
			email            TEXT NOT NULL UNIQUE,
			first_name       TEXT NOT NULL,
			last_name        TEXT NOT NULL,
			password         TEXT NOT NULL,
			role             TEXT NOT NULL DEFAULT 'CUSTOMER',
			telegram_chat_id TEXT,
			is_deleted       BOOLEAN NOT NULL DEFAULT FALSE,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

		CREATE TABLE IF NOT EXISTS cars (
			id         BIGSERIAL PRIMARY KEY,
			model      TEXT NOT NULL,
			brand      TEXT NOT NULL,
			type       TEXT NOT NULL,
			inventory  INTEGER NOT NULL CHECK (inventory >= 0),
			daily_fee  NUMERIC(10, 2) NOT NULL,
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS rentals (
			id                 BIGSERIAL PRIMARY KEY,
			rental_date        DATE NOT NULL,
			return_date        DATE NOT NULL,
			actual_return_date DATE,
			car_id             BIGINT NOT NULL REFERENCES cars(id),
			user_id            TEXT NOT NULL REFERENCES users(id),
			is_deleted         BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE INDEX IF NOT EXISTS idx_rentals_user_id ON rentals(user_id);
		CREATE INDEX IF NOT EXISTS idx_rentals_return_date ON rentals(return_date);

		CREATE TABLE IF NOT EXISTS payments (
			id            BIGSERIAL PRIMARY KEY,
			rental_id     BIGINT NOT NULL REFERENCES rentals(id),
			type          TEXT NOT NULL,
			status        TEXT NOT NULL,
			session_url   TEXT NOT NULL,
			session_id    TEXT NOT NULL UNIQUE,
			amount_to_pay NUMERIC(10, 2) NOT NULL,
			is_deleted    BOOLEAN NOT NULL DEFAULT FALSE,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_payments_rental_id ON payments(rental_id);
	`
	_, err := pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// NUMERIC columns are read as text and parsed so no precision is lost.
func parseMoney(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse amount %q: %w", raw, err)
	}
	return d, nil
}
