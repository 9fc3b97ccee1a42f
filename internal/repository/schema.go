package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Column types differ slightly between Postgres and SQLite; amounts are kept
// as NUMERIC in Postgres and TEXT in SQLite so no precision is lost.
var schemas = map[string][]string{
	"postgres": {
		`CREATE TABLE IF NOT EXISTS loans (
			id UUID PRIMARY KEY,
			user_id TEXT NOT NULL,
			source TEXT NOT NULL,
			loan_type TEXT NOT NULL,
			total_amount NUMERIC(14,2) NOT NULL CHECK (total_amount > 0),
			tenure_months INTEGER NOT NULL CHECK (tenure_months > 0),
			monthly_payment NUMERIC(14,2) NOT NULL CHECK (monthly_payment > 0),
			paid_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
			remaining_amount NUMERIC(14,2) NOT NULL,
			is_fully_paid BOOLEAN NOT NULL DEFAULT FALSE,
			first_payment_date DATE NOT NULL,
			next_payment_date DATE NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			created_date TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_loans_user ON loans (user_id, created_date)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id UUID PRIMARY KEY,
			loan_id UUID NOT NULL,
			amount NUMERIC(14,2) NOT NULL CHECK (amount > 0),
			notes TEXT,
			payment_date TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_loan ON payments (loan_id, payment_date)`,
	},
	"sqlite3": {
		`CREATE TABLE IF NOT EXISTS loans (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			source TEXT NOT NULL,
			loan_type TEXT NOT NULL,
			total_amount TEXT NOT NULL,
			tenure_months INTEGER NOT NULL,
			monthly_payment TEXT NOT NULL,
			paid_amount TEXT NOT NULL DEFAULT '0',
			remaining_amount TEXT NOT NULL,
			is_fully_paid BOOLEAN NOT NULL DEFAULT 0,
			first_payment_date TEXT NOT NULL,
			next_payment_date TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			created_date DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_loans_user ON loans (user_id, created_date)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id TEXT PRIMARY KEY,
			loan_id TEXT NOT NULL,
			amount TEXT NOT NULL,
			notes TEXT,
			payment_date DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_loan ON payments (loan_id, payment_date)`,
	},
}

// Migrate creates the loan and payment tables when they do not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	statements, ok := schemas[db.DriverName()]
	if !ok {
		return fmt.Errorf("no schema for driver %q", db.DriverName())
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
