package database

import (
	"database/sql"
	"fmt"
	"time"
)

var tables = []string{
	`CREATE TABLE IF NOT EXISTS widget_sessions (
		widget_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS widgets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		config_payload TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		widget_id TEXT NOT NULL REFERENCES widgets(id),
		external_id TEXT,
		email TEXT,
		phone TEXT,
		session_id TEXT,
		name TEXT NOT NULL,
		avatar_url TEXT NOT NULL DEFAULT '',
		is_email_verified BOOLEAN NOT NULL DEFAULT 0,
		is_email_primary BOOLEAN NOT NULL DEFAULT 0,
		role TEXT NOT NULL,
		traits_payload TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS email_identities (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers(id),
		email TEXT NOT NULL,
		is_verified BOOLEAN NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS threads (
		id TEXT PRIMARY KEY,
		widget_id TEXT NOT NULL REFERENCES widgets(id),
		customer_id TEXT NOT NULL REFERENCES customers(id),
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		replied BOOLEAN NOT NULL DEFAULT 0,
		priority TEXT NOT NULL,
		channel TEXT NOT NULL,
		preview_text TEXT NOT NULL DEFAULT '',
		inbound_first_seq TEXT,
		inbound_last_seq TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS chats (
		id TEXT PRIMARY KEY,
		thread_id TEXT NOT NULL REFERENCES threads(id),
		body TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		customer_id TEXT REFERENCES customers(id),
		member_id TEXT,
		member_name TEXT,
		is_head BOOLEAN NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
}

var indexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_customers_widget_external ON customers(widget_id, external_id) WHERE external_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_customers_widget_email ON customers(widget_id, email) WHERE email IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_customers_widget_phone ON customers(widget_id, phone) WHERE phone IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_customers_widget_session ON customers(widget_id, session_id) WHERE session_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_threads_customer ON threads(widget_id, customer_id, updated_at)`,
	`CREATE INDEX IF NOT EXISTS idx_chats_thread ON chats(thread_id, sequence)`,
}

// TableCreator handles the creation of the database schema.
type TableCreator struct{}

// NewTableCreator creates a new TableCreator.
func NewTableCreator() *TableCreator {
	return &TableCreator{}
}

// CreateSchema executes all necessary queries to build the tables and indexes.
func (tc *TableCreator) CreateSchema(db *sql.DB) error {
	for _, tableSQL := range tables {
		if _, err := db.Exec(tableSQL); err != nil {
			return fmt.Errorf("failed to create table for query [%s]: %w", tableSQL, err)
		}
	}

	for _, indexSQL := range indexes {
		if _, err := db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index for query [%s]: %w", indexSQL, err)
		}
	}
	return nil
}

// SeedWidget idempotently creates a widget with the given display configuration payload.
func (tc *TableCreator) SeedWidget(db *sql.DB, widgetID, name, configPayload string) error {
	var exists bool
	if err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM widgets WHERE id = ?)", widgetID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check for widget existence: %w", err)
	}
	if exists {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := db.Exec(`INSERT INTO widgets (id, name, config_payload, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		widgetID, name, configPayload, now, now); err != nil {
		return fmt.Errorf("failed to insert default widget: %w", err)
	}
	return nil
}
