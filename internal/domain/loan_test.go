package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	customError "github.com/segyhp/loan-tracker/pkg/errors"
)

var testNow = time.Date(2023, 12, 20, 15, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func datePtr(s string) *Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func newTestLoan(t *testing.T) *Loan {
	t.Helper()
	loan, err := NewLoan("user-1", CreateLoanRequest{
		Source:           "HDFC Bank",
		LoanType:         "Personal",
		TotalAmount:      dec("50000"),
		TenureMonths:     24,
		MonthlyPayment:   decPtr("2083.33"),
		FirstPaymentDate: datePtr("2024-01-01"),
	}, testNow, time.UTC)
	require.NoError(t, err)
	return loan
}

func TestNewLoan(t *testing.T) {
	loan := newTestLoan(t)

	assert.Equal(t, "user-1", loan.UserID)
	assert.True(t, loan.PaidAmount.IsZero())
	assert.True(t, loan.RemainingAmount.Equal(dec("50000")))
	assert.False(t, loan.IsFullyPaid)
	assert.Equal(t, "2024-01-01", loan.NextPaymentDate.String())
	assert.Equal(t, loan.FirstPaymentDate, loan.NextPaymentDate)
	assert.Equal(t, 1, loan.Version)
	assert.Equal(t, testNow, loan.CreatedDate)
}

func TestNewLoan_Defaults(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	// 20:00 UTC is already the next day in India.
	now := time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)
	loan, err := NewLoan("user-1", CreateLoanRequest{
		Source:       "  SBI ",
		LoanType:     "Car",
		TotalAmount:  dec("1000"),
		TenureMonths: 6,
	}, now, loc)
	require.NoError(t, err)

	assert.Equal(t, "SBI", loan.Source)
	assert.True(t, loan.MonthlyPayment.Equal(dec("166.67")), "got %s", loan.MonthlyPayment)
	assert.Equal(t, "2024-03-11", loan.NextPaymentDate.String())
}

func TestNewLoan_Validation(t *testing.T) {
	valid := func() CreateLoanRequest {
		return CreateLoanRequest{
			Source:       "HDFC",
			LoanType:     "Personal",
			TotalAmount:  dec("1000"),
			TenureMonths: 10,
		}
	}

	tests := []struct {
		name          string
		mutate        func(*CreateLoanRequest)
		errorContains string
	}{
		{"blank source", func(r *CreateLoanRequest) { r.Source = "   " }, "source is required"},
		{"missing type", func(r *CreateLoanRequest) { r.LoanType = "" }, "loan_type is required"},
		{"zero amount", func(r *CreateLoanRequest) { r.TotalAmount = decimal.Zero }, "total_amount is required"},
		{"negative amount", func(r *CreateLoanRequest) { r.TotalAmount = dec("-10") }, "total_amount must be greater than 0"},
		{"zero tenure", func(r *CreateLoanRequest) { r.TenureMonths = 0 }, "tenure_months is required"},
		{"negative tenure", func(r *CreateLoanRequest) { r.TenureMonths = -3 }, "tenure_months must be greater than 0"},
		{"negative monthly payment", func(r *CreateLoanRequest) { r.MonthlyPayment = decPtr("-1") }, "monthly_payment must be greater than 0"},
		{"sub-cent total", func(r *CreateLoanRequest) { r.TotalAmount = dec("100.005") }, "total_amount must have at most 2 decimal places"},
		{"sub-cent monthly payment", func(r *CreateLoanRequest) { r.MonthlyPayment = decPtr("83.333") }, "monthly_payment must have at most 2 decimal places"},
		{"suggested payment rounds to zero", func(r *CreateLoanRequest) {
			r.TotalAmount = dec("0.01")
			r.TenureMonths = 24
		}, "monthly_payment must be greater than 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)

			loan, err := NewLoan("user-1", req, testNow, time.UTC)

			assert.Nil(t, loan)
			require.Error(t, err)
			assert.ErrorIs(t, err, customError.ErrValidation)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestNewLoan_RequiresUser(t *testing.T) {
	_, err := NewLoan("", CreateLoanRequest{
		Source:       "HDFC",
		LoanType:     "Personal",
		TotalAmount:  dec("1000"),
		TenureMonths: 10,
	}, testNow, time.UTC)

	assert.ErrorIs(t, err, customError.ErrUserNotIdentified)
}

func TestWithPayment_Partial(t *testing.T) {
	loan := newTestLoan(t)
	paidAt := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	notes := "  January EMI "

	updated, payment, err := loan.WithPayment(dec("2083.33"), &notes, paidAt, DefaultPaymentIntervalDays)
	require.NoError(t, err)

	assert.True(t, updated.PaidAmount.Equal(dec("2083.33")))
	assert.True(t, updated.RemainingAmount.Equal(dec("47916.67")))
	assert.Equal(t, "2024-01-31", updated.NextPaymentDate.String())
	assert.False(t, updated.IsFullyPaid)
	assert.Equal(t, 2, updated.Version)

	assert.Equal(t, loan.ID, payment.LoanID)
	assert.True(t, payment.Amount.Equal(dec("2083.33")))
	require.NotNil(t, payment.Notes)
	assert.Equal(t, "January EMI", *payment.Notes)
	assert.Equal(t, paidAt, payment.PaymentDate)

	// The original value is not modified.
	assert.True(t, loan.PaidAmount.IsZero())
	assert.Equal(t, "2024-01-01", loan.NextPaymentDate.String())
}

func TestWithPayment_Settles(t *testing.T) {
	loan := newTestLoan(t)
	afterFirst, _, err := loan.WithPayment(dec("2083.33"), nil, testNow, DefaultPaymentIntervalDays)
	require.NoError(t, err)

	settled, payment, err := afterFirst.WithPayment(dec("47916.67"), nil, testNow, DefaultPaymentIntervalDays)
	require.NoError(t, err)

	assert.True(t, settled.RemainingAmount.IsZero())
	assert.True(t, settled.PaidAmount.Equal(settled.TotalAmount))
	assert.True(t, settled.IsFullyPaid)
	assert.Equal(t, "2024-01-31", settled.NextPaymentDate.String())
	assert.Nil(t, payment.Notes)
	assert.Equal(t, LoanStatusCompleted, settled.Status())
}

func TestWithPayment_Rejects(t *testing.T) {
	loan := newTestLoan(t)
	settled, _, err := loan.WithPayment(dec("50000"), nil, testNow, DefaultPaymentIntervalDays)
	require.NoError(t, err)

	tests := []struct {
		name     string
		loan     *Loan
		amount   decimal.Decimal
		sentinel error
	}{
		{"zero amount", loan, decimal.Zero, customError.ErrInvalidPayment},
		{"negative amount", loan, dec("-1"), customError.ErrInvalidPayment},
		{"above remaining", loan, dec("50000.01"), customError.ErrInvalidPayment},
		{"sub-cent amount", loan, dec("0.001"), customError.ErrInvalidPayment},
		{"already settled", settled, dec("1"), customError.ErrLoanFullyPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updated, payment, err := tt.loan.WithPayment(tt.amount, nil, testNow, DefaultPaymentIntervalDays)

			assert.Nil(t, updated)
			assert.Nil(t, payment)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.ErrorIs(t, err, customError.ErrValidation)
		})
	}
}

func TestWithPayment_RemainingNeverNegative(t *testing.T) {
	loan := newTestLoan(t)
	amounts := []string{"0.01", "2083.33", "12345.67", "1000", "34570.99"}

	current := loan
	for _, a := range amounts {
		next, _, err := current.WithPayment(dec(a), nil, testNow, DefaultPaymentIntervalDays)
		require.NoError(t, err)

		expected := next.TotalAmount.Sub(next.PaidAmount)
		if expected.IsNegative() {
			expected = decimal.Zero
		}
		assert.True(t, next.RemainingAmount.Equal(expected))
		assert.Equal(t, next.RemainingAmount.IsZero(), next.IsFullyPaid)
		current = next
	}
	assert.True(t, current.IsFullyPaid)
}

func TestLoanResponse(t *testing.T) {
	loan := newTestLoan(t)
	updated, _, err := loan.WithPayment(dec("2083.33"), nil, testNow, DefaultPaymentIntervalDays)
	require.NoError(t, err)

	resp := updated.Response()

	assert.Equal(t, LoanStatusActive, resp.Status)
	assert.True(t, resp.ProgressPercent.Equal(dec("4.2")))
	assert.Equal(t, 24, resp.RemainingInstallments)
	assert.Equal(t, updated.ID, resp.ID)
}
