package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	customError "github.com/segyhp/loan-tracker/pkg/errors"
)

// Payment is an immutable record of funds applied against a loan.
type Payment struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	LoanID      uuid.UUID       `json:"loan_id" db:"loan_id"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Notes       *string         `json:"notes" db:"notes"`
	PaymentDate time.Time       `json:"payment_date" db:"payment_date"`
}

type ApplyPaymentRequest struct {
	LoanID uuid.UUID       `json:"loan_id"`
	Amount decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Notes  *string         `json:"notes" validate:"omitempty,max=500"`
}

// Validate checks the request shape; balance checks happen against the loan.
func (r ApplyPaymentRequest) Validate() error {
	if r.LoanID == uuid.Nil {
		return customError.WrapValidation("loan_id is required")
	}
	if err := ValidateStruct(validate, r); err != nil {
		return err
	}
	return checkMoney("amount", r.Amount)
}

type ApplyPaymentResponse struct {
	Loan    LoanResponse `json:"loan"`
	Payment *Payment     `json:"payment"`
}
