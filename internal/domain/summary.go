package domain

import (
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-tracker/pkg/utils"
)

// Summary is the aggregate view across a user's loans.
type Summary struct {
	TotalBorrowed     decimal.Decimal `json:"total_borrowed"`
	TotalPaid         decimal.Decimal `json:"total_paid"`
	TotalRemaining    decimal.Decimal `json:"total_remaining"`
	MonthlyPaymentDue decimal.Decimal `json:"monthly_payment_due"`
	PaidPercent       decimal.Decimal `json:"paid_percent"`
	ActiveLoans       int             `json:"active_loans"`
	CompletedLoans    int             `json:"completed_loans"`
	TotalLoans        int             `json:"total_loans"`
}

// Summarize computes the aggregate view over loans.
func Summarize(loans []*Loan) Summary {
	s := Summary{
		TotalBorrowed:     decimal.Zero,
		TotalPaid:         decimal.Zero,
		TotalRemaining:    decimal.Zero,
		MonthlyPaymentDue: decimal.Zero,
		TotalLoans:        len(loans),
	}

	for _, loan := range loans {
		s.TotalBorrowed = s.TotalBorrowed.Add(loan.TotalAmount)
		s.TotalPaid = s.TotalPaid.Add(loan.PaidAmount)
		s.TotalRemaining = s.TotalRemaining.Add(loan.RemainingAmount)
		if loan.IsFullyPaid {
			s.CompletedLoans++
			continue
		}
		s.ActiveLoans++
		s.MonthlyPaymentDue = s.MonthlyPaymentDue.Add(loan.MonthlyPayment)
	}

	s.PaidPercent = utils.ProgressPercent(s.TotalPaid, s.TotalBorrowed)
	return s
}
