package database

import (
	"database/sql"
	"fmt"
	"log"
)

// InitSchema creates the marketplace tables if they do not exist yet.
// Balances and prices are stored in cents; the users.version column backs
// optimistic locking on balance updates.
func InitSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id    SERIAL PRIMARY KEY,
			username   TEXT UNIQUE NOT NULL,
			password   TEXT NOT NULL,
			role       TEXT NOT NULL DEFAULT 'member',
			contact    TEXT,
			balance    BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
			version    INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS goods (
			goods_id     SERIAL PRIMARY KEY,
			name         TEXT NOT NULL,
			category     TEXT NOT NULL,
			price        BIGINT NOT NULL CHECK (price > 0),
			description  TEXT,
			seller_id    INTEGER NOT NULL REFERENCES users (user_id) ON DELETE CASCADE,
			status       TEXT NOT NULL DEFAULT 'available',
			publish_time TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			order_id    TEXT PRIMARY KEY,
			goods_id    INTEGER NOT NULL,
			buyer_id    INTEGER NOT NULL,
			seller_id   INTEGER NOT NULL,
			price       BIGINT NOT NULL,
			status      TEXT NOT NULL DEFAULT 'pending',
			create_time TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_goods_status ON goods (status)`,
		`CREATE INDEX IF NOT EXISTS idx_goods_seller ON goods (seller_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_buyer ON orders (buyer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_seller ON orders (seller_id)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("schema init failed: %w", err)
		}
	}

	log.Println("[DB] Schema ensured")
	return nil
}

// EnsureAdmin seeds the default administrator account on first startup.
// The check and insert run in one transaction so concurrent startups
// cannot create two admins.
func EnsureAdmin(db *sql.DB, passwordHash string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM users WHERE role = 'admin'`).Scan(&count); err != nil {
		return fmt.Errorf("admin check failed: %w", err)
	}
	if count > 0 {
		return tx.Commit()
	}

	_, err = tx.Exec(
		`INSERT INTO users (username, password, role, contact, balance) VALUES ($1, $2, 'admin', $3, $4)`,
		"admin", passwordHash, "admin@campus.com", int64(100000),
	)
	if err != nil {
		return fmt.Errorf("admin bootstrap failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	log.Println("[DB] Default admin account created")
	return nil
}
