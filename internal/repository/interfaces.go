package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/segyhp/loan-tracker/internal/domain"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrVersionConflict is returned when a conditional update lost the race
	// against another writer.
	ErrVersionConflict = errors.New("record version conflict")
)

// LoanRepository defines the interface for loan data operations
type LoanRepository interface {
	// Create persists a fully initialised loan
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByID retrieves a loan by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error)

	// ListByUser retrieves a user's loans ordered by creation time
	ListByUser(ctx context.Context, userID string) ([]*domain.Loan, error)

	// ListUsers returns every user that owns at least one loan
	ListUsers(ctx context.Context) ([]string, error)

	// ApplyPayment stores the updated loan and the new payment together,
	// provided the stored loan is still at expectedVersion
	ApplyPayment(ctx context.Context, loan *domain.Loan, payment *domain.Payment, expectedVersion int) error

	// Delete removes the loan record only
	Delete(ctx context.Context, id uuid.UUID) error
}

// PaymentRepository defines the interface for payment data operations
type PaymentRepository interface {
	// GetByLoanID retrieves all payments for a loan, oldest first
	GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Payment, error)

	// DeleteByID removes a single payment
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

// Cascader is implemented by stores that can delete a loan together with its
// payments in a single transaction.
type Cascader interface {
	DeleteLoanCascade(ctx context.Context, loanID uuid.UUID) error
}

// ChangeSource is implemented by stores that push a notification whenever a
// user's loans or payments change.
type ChangeSource interface {
	Subscribe(ctx context.Context, userID string) (<-chan struct{}, error)
}
