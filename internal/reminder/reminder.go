package reminder

import (
	"cmp"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-tracker/internal/domain"
	customError "github.com/segyhp/loan-tracker/pkg/errors"
)

// DefaultWindowDays is how far ahead a payment must fall to be reminded of.
const DefaultWindowDays = 7

type Urgency string

const (
	UrgencyOverdue     Urgency = "overdue"
	UrgencyDueTomorrow Urgency = "due_tomorrow"
	UrgencyHigh        Urgency = "high"
	UrgencyMedium      Urgency = "medium"
	UrgencyLow         Urgency = "low"
)

// Reminder flags an upcoming or overdue installment of one loan.
type Reminder struct {
	LoanID           uuid.UUID       `json:"loan_id"`
	Source           string          `json:"source"`
	LoanType         string          `json:"loan_type"`
	MonthlyPayment   decimal.Decimal `json:"monthly_payment"`
	NextPaymentDate  domain.Date     `json:"next_payment_date"`
	DaysUntilPayment int             `json:"days_until_payment"`
	Urgency          Urgency         `json:"urgency"`
}

// Classify maps days until payment to an urgency level.
func Classify(days int) Urgency {
	switch {
	case days <= 0:
		return UrgencyOverdue
	case days == 1:
		return UrgencyDueTomorrow
	case days <= 3:
		return UrgencyHigh
	case days <= 7:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// List is an ordered set of reminders, most urgent first.
type List []Reminder

// All iterates the reminders in order. The sequence can be ranged over any
// number of times.
func (l List) All() iter.Seq[Reminder] {
	return func(yield func(Reminder) bool) {
		for _, r := range l {
			if !yield(r) {
				return
			}
		}
	}
}

// Overdue counts reminders whose payment date has passed or is today.
func (l List) Overdue() int {
	n := 0
	for _, r := range l {
		if r.Urgency == UrgencyOverdue {
			n++
		}
	}
	return n
}

// Engine derives reminders for a fixed window and time zone.
type Engine struct {
	windowDays int
	location   *time.Location
}

func NewEngine(windowDays int, loc *time.Location) *Engine {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{windowDays: windowDays, location: loc}
}

// In returns a copy of the engine that evaluates "today" in loc.
func (e *Engine) In(loc *time.Location) *Engine {
	return NewEngine(e.windowDays, loc)
}

func (e *Engine) Location() *time.Location {
	return e.location
}

// Compute returns reminders for the unpaid loans whose next payment falls
// within the window of now, inclusive of overdue ones. Loans keep their input
// order when they are equally urgent.
func (e *Engine) Compute(loans []*domain.Loan, now time.Time) (List, error) {
	today := domain.DateOf(now.In(e.location))

	out := make(List, 0, len(loans))
	for _, loan := range loans {
		if loan.IsFullyPaid {
			continue
		}
		if loan.NextPaymentDate.IsZero() {
			return nil, customError.WrapValidation(
				fmt.Sprintf("loan %s has no valid next_payment_date", loan.ID))
		}

		days := loan.NextPaymentDate.DaysSince(today)
		if days > e.windowDays {
			continue
		}

		out = append(out, Reminder{
			LoanID:           loan.ID,
			Source:           loan.Source,
			LoanType:         loan.LoanType,
			MonthlyPayment:   loan.MonthlyPayment,
			NextPaymentDate:  loan.NextPaymentDate,
			DaysUntilPayment: days,
			Urgency:          Classify(days),
		})
	}

	slices.SortStableFunc(out, func(a, b Reminder) int {
		return cmp.Compare(a.DaysUntilPayment, b.DaysUntilPayment)
	})
	return out, nil
}

// Compute is Engine.Compute with the default window.
func Compute(loans []*domain.Loan, now time.Time, loc *time.Location) (List, error) {
	return NewEngine(DefaultWindowDays, loc).Compute(loans, now)
}
