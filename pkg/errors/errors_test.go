package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestBusinessErrorMatching(t *testing.T) {
	loanID := uuid.New()

	tests := []struct {
		name     string
		err      error
		sentinel error
		code     string
	}{
		{"validation", WrapValidation("source is required"), ErrValidation, ErrCodeValidation},
		{"not found", WrapLoanNotFound(loanID), ErrLoanNotFound, ErrCodeLoanNotFound},
		{"fully paid is validation", WrapLoanFullyPaid(loanID), ErrValidation, ErrCodeLoanFullyPaid},
		{"invalid payment is validation", WrapInvalidPayment("10", "5"), ErrValidation, ErrCodeInvalidPayment},
		{"transport", WrapTransport(errors.New("connection refused")), ErrTransport, ErrCodeTransport},
		{"conflict", WrapConcurrentUpdate(loanID), ErrConcurrentUpdate, ErrCodeConcurrentUpdate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("handler: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
			assert.Equal(t, tt.code, CodeOf(wrapped))
		})
	}
}

func TestPartialCascadeError(t *testing.T) {
	loanID := uuid.New()
	paymentID := uuid.New()
	cause := errors.New("redis: connection reset")

	err := error(&PartialCascadeError{
		LoanID:           loanID,
		FailedPaymentIDs: []uuid.UUID{paymentID},
		Err:              cause,
	})

	assert.ErrorIs(t, err, ErrPartialCascade)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrCodePartialCascade, CodeOf(err))
	assert.Contains(t, err.Error(), paymentID.String())
	assert.Contains(t, err.Error(), "deleted=false")
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Empty(t, CodeOf(errors.New("boom")))
}
