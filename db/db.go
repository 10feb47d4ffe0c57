package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB represents the database connection
type DB struct {
	*sql.DB
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Initialize creates the necessary tables if they don't exist. All money
// columns are INTEGER minor units; decimal strings never reach storage.
func (db *DB) Initialize() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sales (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			org_id TEXT NOT NULL,
			source_label TEXT,
			marketplace TEXT,
			external_order_id TEXT,
			title TEXT,
			occurred_at TEXT NOT NULL,
			payout_at TEXT,
			currency TEXT NOT NULL,
			sale_price INTEGER NOT NULL,
			shipping_charged INTEGER NOT NULL DEFAULT 0,
			shipping_cost INTEGER NOT NULL DEFAULT 0,
			platform_fees INTEGER NOT NULL DEFAULT 0,
			discounts INTEGER NOT NULL DEFAULT 0,
			refunds INTEGER NOT NULL DEFAULT 0,
			chargebacks INTEGER NOT NULL DEFAULT 0,
			tax_collected INTEGER NOT NULL DEFAULT 0,
			purchase_price INTEGER NOT NULL DEFAULT 0,
			idempotency_key TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(org_id, idempotency_key)
		)`,
		`CREATE TABLE IF NOT EXISTS extra_costs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sale_id INTEGER NOT NULL REFERENCES sales(id),
			label TEXT,
			amount INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS expenses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			org_id TEXT NOT NULL,
			source_label TEXT,
			marketplace TEXT,
			external_order_id TEXT,
			description TEXT,
			category TEXT,
			occurred_at TEXT NOT NULL,
			currency TEXT NOT NULL,
			amount INTEGER NOT NULL,
			idempotency_key TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(org_id, idempotency_key)
		)`,
		`CREATE TABLE IF NOT EXISTS account_mappings (
			org_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			bucket TEXT NOT NULL,
			external_account_id TEXT NOT NULL,
			external_display_name TEXT,
			PRIMARY KEY (org_id, provider, bucket)
		)`,
		`CREATE TABLE IF NOT EXISTS journal_exports (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			period_start TEXT,
			period_end TEXT,
			status TEXT NOT NULL,
			preview_payload TEXT,
			sent_payload TEXT,
			external_id TEXT,
			error_reason TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS diagnostics_status (
			org_id TEXT PRIMARY KEY,
			provider TEXT NOT NULL,
			overall TEXT NOT NULL,
			connected BOOLEAN NOT NULL,
			expires_in_sec INTEGER NOT NULL DEFAULT 0,
			mappings_complete BOOLEAN NOT NULL,
			warnings_count INTEGER NOT NULL,
			missing TEXT,
			warnings TEXT,
			last_test_forward_id TEXT,
			last_test_reverse_id TEXT,
			last_verified_at TEXT,
			evaluated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS alert_events (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			prev_status TEXT NOT NULL,
			next_status TEXT NOT NULL,
			kind TEXT NOT NULL,
			recipients TEXT,
			reason TEXT,
			created_at TEXT NOT NULL
		)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}
