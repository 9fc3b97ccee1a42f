package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	customError "github.com/segyhp/loan-tracker/pkg/errors"
	"github.com/segyhp/loan-tracker/pkg/utils"
)

// DefaultPaymentIntervalDays is how far next_payment_date moves after a
// payment that does not settle the loan.
const DefaultPaymentIntervalDays = 30

const (
	LoanStatusActive    = "Active"
	LoanStatusCompleted = "Completed"
)

// Loan represents a loan entity
type Loan struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	UserID           string          `json:"user_id" db:"user_id"`
	Source           string          `json:"source" db:"source"`
	LoanType         string          `json:"loan_type" db:"loan_type"`
	TotalAmount      decimal.Decimal `json:"total_amount" db:"total_amount"`
	TenureMonths     int             `json:"tenure_months" db:"tenure_months"`
	MonthlyPayment   decimal.Decimal `json:"monthly_payment" db:"monthly_payment"`
	PaidAmount       decimal.Decimal `json:"paid_amount" db:"paid_amount"`
	RemainingAmount  decimal.Decimal `json:"remaining_amount" db:"remaining_amount"`
	IsFullyPaid      bool            `json:"is_fully_paid" db:"is_fully_paid"`
	FirstPaymentDate Date            `json:"first_payment_date" db:"first_payment_date"`
	NextPaymentDate  Date            `json:"next_payment_date" db:"next_payment_date"`
	Version          int             `json:"version" db:"version"`
	CreatedDate      time.Time       `json:"created_date" db:"created_date"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// DTOs for requests and responses

type CreateLoanRequest struct {
	Source           string           `json:"source" validate:"required,max=200"`
	LoanType         string           `json:"loan_type" validate:"required,max=200"`
	TotalAmount      decimal.Decimal  `json:"total_amount" validate:"required,gt=0"`
	TenureMonths     int              `json:"tenure_months" validate:"required,gt=0"`
	MonthlyPayment   *decimal.Decimal `json:"monthly_payment" validate:"omitempty,gt=0"`
	FirstPaymentDate *Date            `json:"first_payment_date"`
}

type LoanResponse struct {
	*Loan
	Status                string          `json:"status"`
	ProgressPercent       decimal.Decimal `json:"progress_percent"`
	RemainingInstallments int             `json:"remaining_installments"`
}

// NewLoan builds a fully initialised loan for userID. The first payment date
// defaults to today in loc.
func NewLoan(userID string, req CreateLoanRequest, now time.Time, loc *time.Location) (*Loan, error) {
	req.Source = strings.TrimSpace(req.Source)
	req.LoanType = strings.TrimSpace(req.LoanType)

	if err := ValidateStruct(validate, req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(userID) == "" {
		return nil, customError.WrapUserNotIdentified()
	}

	if err := checkMoney("total_amount", req.TotalAmount); err != nil {
		return nil, err
	}

	monthly := utils.SuggestMonthlyPayment(req.TotalAmount, req.TenureMonths)
	if req.MonthlyPayment != nil {
		if err := checkMoney("monthly_payment", *req.MonthlyPayment); err != nil {
			return nil, err
		}
		monthly = *req.MonthlyPayment
	}
	if !monthly.IsPositive() {
		return nil, customError.WrapValidation("monthly_payment must be greater than 0")
	}

	if loc == nil {
		loc = time.UTC
	}
	first := DateOf(now.In(loc))
	if req.FirstPaymentDate != nil && !req.FirstPaymentDate.IsZero() {
		first = *req.FirstPaymentDate
	}

	created := now.UTC()
	return &Loan{
		ID:               uuid.New(),
		UserID:           userID,
		Source:           req.Source,
		LoanType:         req.LoanType,
		TotalAmount:      req.TotalAmount,
		TenureMonths:     req.TenureMonths,
		MonthlyPayment:   monthly,
		PaidAmount:       decimal.Zero,
		RemainingAmount:  req.TotalAmount,
		IsFullyPaid:      false,
		FirstPaymentDate: first,
		NextPaymentDate:  first,
		Version:          1,
		CreatedDate:      created,
		UpdatedAt:        created,
	}, nil
}

// WithPayment returns the loan as it stands after amount is applied, along
// with the payment record. The receiver is left untouched.
func (l *Loan) WithPayment(amount decimal.Decimal, notes *string, now time.Time, intervalDays int) (*Loan, *Payment, error) {
	if l.IsFullyPaid {
		return nil, nil, customError.WrapLoanFullyPaid(l.ID)
	}
	if !amount.IsPositive() || amount.GreaterThan(l.RemainingAmount) || !amount.Equal(amount.Round(MoneyPlaces)) {
		return nil, nil, customError.WrapInvalidPayment(amount.String(), l.RemainingAmount.String())
	}
	if intervalDays <= 0 {
		intervalDays = DefaultPaymentIntervalDays
	}

	next := *l
	next.PaidAmount = l.PaidAmount.Add(amount)
	next.RemainingAmount = utils.NonNegative(l.TotalAmount.Sub(next.PaidAmount))
	next.IsFullyPaid = !next.RemainingAmount.IsPositive()
	if !next.IsFullyPaid {
		next.NextPaymentDate = l.NextPaymentDate.AddDays(intervalDays)
	}
	next.Version = l.Version + 1
	next.UpdatedAt = now.UTC()

	payment := &Payment{
		ID:          uuid.New(),
		LoanID:      l.ID,
		Amount:      amount,
		Notes:       normalizeNotes(notes),
		PaymentDate: now.UTC(),
	}

	return &next, payment, nil
}

// Status is the label shown in listings and reports.
func (l *Loan) Status() string {
	if l.IsFullyPaid {
		return LoanStatusCompleted
	}
	return LoanStatusActive
}

// Response decorates the loan with its derived progress fields.
func (l *Loan) Response() LoanResponse {
	return LoanResponse{
		Loan:                  l,
		Status:                l.Status(),
		ProgressPercent:       utils.ProgressPercent(l.PaidAmount, l.TotalAmount),
		RemainingInstallments: utils.RemainingInstallments(l.RemainingAmount, l.MonthlyPayment),
	}
}

func normalizeNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*notes)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
