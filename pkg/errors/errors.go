package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Domain errors
var (
	ErrValidation        = errors.New("validation failed")
	ErrLoanNotFound      = errors.New("loan not found")
	ErrLoanFullyPaid     = errors.New("loan is already fully paid")
	ErrInvalidPayment    = errors.New("invalid payment amount")
	ErrTransport         = errors.New("persistence operation failed")
	ErrConcurrentUpdate  = errors.New("loan was modified concurrently")
	ErrPartialCascade    = errors.New("loan deletion cascade incomplete")
	ErrUserNotIdentified = errors.New("user not identified")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeLoanNotFound      = "LOAN_NOT_FOUND"
	ErrCodeLoanFullyPaid     = "LOAN_FULLY_PAID"
	ErrCodeInvalidPayment    = "INVALID_PAYMENT_AMOUNT"
	ErrCodeTransport         = "TRANSPORT_ERROR"
	ErrCodeConcurrentUpdate  = "CONCURRENT_UPDATE"
	ErrCodePartialCascade    = "PARTIAL_CASCADE"
	ErrCodeUserNotIdentified = "USER_NOT_IDENTIFIED"
)

// WrapValidation marks malformed or out-of-range input.
func WrapValidation(reason string) *BusinessError {
	return NewBusinessError(ErrCodeValidation, reason, ErrValidation)
}

func WrapLoanNotFound(loanID uuid.UUID) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %s not found", loanID),
		ErrLoanNotFound,
	)
}

// WrapLoanFullyPaid and WrapInvalidPayment are validation failures as well,
// so they chain ErrValidation under their specific sentinel.
func WrapLoanFullyPaid(loanID uuid.UUID) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanFullyPaid,
		fmt.Sprintf("Loan with ID %s is already fully paid", loanID),
		fmt.Errorf("%w: %w", ErrLoanFullyPaid, ErrValidation),
	)
}

func WrapInvalidPayment(amount, remaining string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidPayment,
		fmt.Sprintf("Payment amount %s must be greater than 0 and at most the remaining %s", amount, remaining),
		fmt.Errorf("%w: %w", ErrInvalidPayment, ErrValidation),
	)
}

func WrapTransport(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeTransport,
		"persistence operation failed",
		fmt.Errorf("%w: %w", ErrTransport, err),
	)
}

func WrapConcurrentUpdate(loanID uuid.UUID) *BusinessError {
	return NewBusinessError(
		ErrCodeConcurrentUpdate,
		fmt.Sprintf("Loan with ID %s was updated by another request, reload and retry", loanID),
		ErrConcurrentUpdate,
	)
}

func WrapUserNotIdentified() *BusinessError {
	return NewBusinessError(ErrCodeUserNotIdentified, "X-User-ID header is required", ErrUserNotIdentified)
}

// PartialCascadeError reports a loan deletion whose payment cascade could not
// be completed. LoanDeleted tells whether the loan record itself is gone. The
// ledger removes payments before the loan, so it always reports false; the
// field is set only by stores that delete the loan record first.
type PartialCascadeError struct {
	LoanID           uuid.UUID
	FailedPaymentIDs []uuid.UUID
	LoanDeleted      bool
	Err              error
}

func (e *PartialCascadeError) Error() string {
	ids := make([]string, 0, len(e.FailedPaymentIDs))
	for _, id := range e.FailedPaymentIDs {
		ids = append(ids, id.String())
	}
	msg := fmt.Sprintf("%s: loan %s deleted=%t, %d payment(s) not removed [%s]",
		ErrCodePartialCascade, e.LoanID, e.LoanDeleted, len(ids), strings.Join(ids, ","))
	if e.Err != nil {
		msg += fmt.Sprintf(" (%v)", e.Err)
	}
	return msg
}

func (e *PartialCascadeError) Is(target error) bool {
	return target == ErrPartialCascade
}

func (e *PartialCascadeError) Unwrap() error {
	return e.Err
}

// CodeOf returns the error code carried by err, or an empty string.
func CodeOf(err error) string {
	var pce *PartialCascadeError
	if errors.As(err, &pce) {
		return ErrCodePartialCascade
	}
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}
