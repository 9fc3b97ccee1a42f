package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/loan-tracker/internal/domain"
)

const loanColumns = `id, user_id, source, loan_type, total_amount, tenure_months, monthly_payment,
	paid_amount, remaining_amount, is_fully_paid, first_payment_date, next_payment_date,
	version, created_date, updated_at`

type loanRepository struct {
	db *sqlx.DB
}

// NewLoanRepository returns a LoanRepository over db. Queries are written
// with '?' placeholders and rebound for the driver, so the same code serves
// Postgres and SQLite.
func NewLoanRepository(db *sqlx.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (` + loanColumns + `)
		VALUES (:id, :user_id, :source, :loan_type, :total_amount, :tenure_months, :monthly_payment,
			:paid_amount, :remaining_amount, :is_fully_paid, :first_payment_date, :next_payment_date,
			:version, :created_date, :updated_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, loan)
	return err
}

func (r *loanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	query := r.db.Rebind(`SELECT ` + loanColumns + ` FROM loans WHERE id = ?`)

	var loan domain.Loan
	err := r.db.GetContext(ctx, &loan, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &loan, nil
}

func (r *loanRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Loan, error) {
	query := r.db.Rebind(`
		SELECT ` + loanColumns + `
		FROM loans
		WHERE user_id = ?
		ORDER BY created_date, id
	`)

	loans := []*domain.Loan{}
	if err := r.db.SelectContext(ctx, &loans, query, userID); err != nil {
		return nil, err
	}

	return loans, nil
}

func (r *loanRepository) ListUsers(ctx context.Context) ([]string, error) {
	users := []string{}
	if err := r.db.SelectContext(ctx, &users, `SELECT DISTINCT user_id FROM loans ORDER BY user_id`); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *loanRepository) ApplyPayment(ctx context.Context, loan *domain.Loan, payment *domain.Payment, expectedVersion int) error {
	update := r.db.Rebind(`
		UPDATE loans
		SET paid_amount = ?, remaining_amount = ?, is_fully_paid = ?, next_payment_date = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`)

	insert := `
		INSERT INTO payments (id, loan_id, amount, notes, payment_date)
		VALUES (:id, :loan_id, :amount, :notes, :payment_date)
	`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, update,
		loan.PaidAmount,
		loan.RemainingAmount,
		loan.IsFullyPaid,
		loan.NextPaymentDate,
		loan.Version,
		loan.UpdatedAt,
		loan.ID,
		expectedVersion,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists int
		err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT COUNT(*) FROM loans WHERE id = ?`), loan.ID)
		if err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}

	if _, err = tx.NamedExecContext(ctx, insert, payment); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	return tx.Commit()
}

func (r *loanRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM loans WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// DeleteLoanCascade removes the loan's payments and then the loan inside one
// transaction.
func (r *loanRepository) DeleteLoanCascade(ctx context.Context, loanID uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM payments WHERE loan_id = ?`), loanID); err != nil {
		return fmt.Errorf("delete payments: %w", err)
	}

	result, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM loans WHERE id = ?`), loanID)
	if err != nil {
		return fmt.Errorf("delete loan: %w", err)
	}
	if err := expectAffected(result); err != nil {
		return err
	}

	return tx.Commit()
}

func expectAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
