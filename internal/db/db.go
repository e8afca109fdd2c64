// Package db provides database connection and access functions.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	config.ConnConfig.Tracer = newQueryTracer()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price NUMERIC(10,2) NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		brand TEXT NOT NULL DEFAULT '',
		stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		image_url TEXT NOT NULL DEFAULT '',
		rating NUMERIC(3,2) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		id UUID PRIMARY KEY,
		user_id UUID REFERENCES users(id),
		session_id TEXT,
		product_id TEXT NOT NULL REFERENCES products(id),
		quantity INTEGER NOT NULL DEFAULT 1 CHECK (quantity > 0)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY,
		user_id UUID REFERENCES users(id),
		session_id TEXT,
		customer_name TEXT NOT NULL,
		customer_email TEXT NOT NULL,
		customer_phone TEXT NOT NULL DEFAULT '',
		shipping_address JSONB,
		items JSONB NOT NULL,
		total NUMERIC(10,2) NOT NULL,
		payment_method TEXT NOT NULL DEFAULT 'cod',
		status TEXT NOT NULL,
		refund_reason TEXT,
		refund_amount NUMERIC(10,2),
		refunded_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		paid_at TIMESTAMPTZ,
		delivered_at TIMESTAMPTZ,
		received_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
	`CREATE TABLE IF NOT EXISTS ratings (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id),
		order_id UUID NOT NULL REFERENCES orders(id),
		product_id TEXT NOT NULL REFERENCES products(id),
		rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
		review TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, order_id, product_id)
	)`,
}

// Migrate creates missing tables. Statements are idempotent, so running it
// on every startup is safe.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
