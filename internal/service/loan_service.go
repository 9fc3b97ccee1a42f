package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/segyhp/loan-tracker/internal/config"
	"github.com/segyhp/loan-tracker/internal/domain"
	"github.com/segyhp/loan-tracker/internal/reminder"
	"github.com/segyhp/loan-tracker/internal/repository"
	customError "github.com/segyhp/loan-tracker/pkg/errors"
)

// LoanService holds what every ledger shares: the stores, per-loan locks,
// the clock and business settings. It keeps no loan state of its own.
type LoanService struct {
	LoanRepo    repository.LoanRepository
	PaymentRepo repository.PaymentRepository

	locks    *keyedMutex
	business config.BusinessConfig
	location *time.Location
	logger   zerolog.Logger
	now      func() time.Time
}

func NewLoanService(
	loanRepo repository.LoanRepository,
	paymentRepo repository.PaymentRepository,
	cfg *config.Config,
	logger zerolog.Logger,
) *LoanService {
	return &LoanService{
		LoanRepo:    loanRepo,
		PaymentRepo: paymentRepo,
		locks:       newKeyedMutex(),
		business:    cfg.Business,
		location:    cfg.GetLocation(),
		logger:      logger.With().Str("component", "loan_service").Logger(),
		now:         time.Now,
	}
}

// WithClock replaces the time source. Intended for tests and replays.
func (s *LoanService) WithClock(now func() time.Time) *LoanService {
	s.now = now
	return s
}

// Now returns the service clock's current time.
func (s *LoanService) Now() time.Time {
	return s.now()
}

// Location is the default zone used to decide what "today" is.
func (s *LoanService) Location() *time.Location {
	return s.location
}

// Reminders returns a reminder engine configured with the business window.
func (s *LoanService) Reminders() *reminder.Engine {
	return reminder.NewEngine(s.business.ReminderWindowDays, s.location)
}

// Ledger loads userID's loans and returns a ledger bound to them.
func (s *LoanService) Ledger(ctx context.Context, userID string) (*Ledger, error) {
	if userID == "" {
		return nil, customError.WrapUserNotIdentified()
	}

	l := &Ledger{
		svc:      s,
		userID:   userID,
		payments: make(map[uuid.UUID][]*domain.Payment),
	}
	if err := l.Refresh(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// Users lists every user that owns at least one loan.
func (s *LoanService) Users(ctx context.Context) ([]string, error) {
	users, err := s.LoanRepo.ListUsers(ctx)
	if err != nil {
		return nil, customError.WrapTransport(err)
	}
	return users, nil
}

// loadOwned fetches the current stored loan and hides loans of other users.
func (s *LoanService) loadOwned(ctx context.Context, userID string, id uuid.UUID) (*domain.Loan, error) {
	loan, err := s.LoanRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, customError.WrapLoanNotFound(id)
	}
	if err != nil {
		return nil, customError.WrapTransport(err)
	}
	if loan.UserID != userID {
		return nil, customError.WrapLoanNotFound(id)
	}
	return loan, nil
}

// withRetry runs fn up to 1+retries times, stopping at the first success or
// the first ErrNotFound.
func withRetry(retries int, fn func() error) error {
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		err = fn()
		if err == nil || errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}
	return err
}
