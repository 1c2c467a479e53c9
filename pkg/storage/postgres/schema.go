package postgres

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS swaps (
		id TEXT PRIMARY KEY,
		swap_id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		sell_asset JSONB NOT NULL,
		buy_asset JSONB NOT NULL,
		sell_amount_crypto_base_unit TEXT NOT NULL DEFAULT '',
		expected_buy_amount_crypto_base_unit TEXT NOT NULL DEFAULT '',
		sell_amount_crypto_precision TEXT NOT NULL DEFAULT '',
		expected_buy_amount_crypto_precision TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'IDLE',
		status_message TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		swapper_name TEXT NOT NULL,
		sell_account_id TEXT NOT NULL,
		buy_account_id TEXT NOT NULL DEFAULT '',
		receive_address TEXT NOT NULL DEFAULT '',
		sell_tx_hash TEXT NOT NULL DEFAULT '',
		buy_tx_hash TEXT NOT NULL DEFAULT '',
		tx_link TEXT NOT NULL DEFAULT '',
		is_streaming BOOLEAN NOT NULL DEFAULT FALSE,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS swaps_status_idx ON swaps (status)`,
	`CREATE INDEX IF NOT EXISTS swaps_user_idx ON swaps (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS swaps_sell_account_idx ON swaps (sell_account_id)`,
	`CREATE INDEX IF NOT EXISTS swaps_buy_account_idx ON swaps (buy_account_id)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		type TEXT NOT NULL,
		swap_id TEXT NOT NULL DEFAULT '',
		device_id TEXT NOT NULL DEFAULT '',
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		sent_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		delivered_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS notifications_user_idx ON notifications (user_id, sent_at DESC)`,
	`CREATE TABLE IF NOT EXISTS devices (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		device_token TEXT NOT NULL UNIQUE,
		device_type TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS devices_user_idx ON devices (user_id) WHERE is_active`,
}

// Migrate ensures the schema exists. Statements are idempotent so repeated
// startups are safe.
func Migrate(ctx context.Context, pool *Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}
