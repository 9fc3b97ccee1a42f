package utils

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// SuggestMonthlyPayment returns the installment that spreads the principal
// evenly over the tenure.
// Formula: Total / Tenure, rounded to 2 decimal places
func SuggestMonthlyPayment(total decimal.Decimal, tenureMonths int) decimal.Decimal {
	if tenureMonths <= 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(tenureMonths))).Round(2)
}

// NonNegative clamps d to zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ProgressPercent returns paid/total as a percentage with one decimal.
func ProgressPercent(paid, total decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() {
		return decimal.Zero
	}
	return paid.Div(total).Mul(hundred).Round(1)
}

// RemainingInstallments counts the installments still needed to settle
// remaining, rounding a final partial installment up.
func RemainingInstallments(remaining, installment decimal.Decimal) int {
	if !remaining.IsPositive() || !installment.IsPositive() {
		return 0
	}
	return int(remaining.Div(installment).Ceil().IntPart())
}
