package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/segyhp/loan-tracker/internal/domain"
	"github.com/segyhp/loan-tracker/internal/reminder"
	"github.com/segyhp/loan-tracker/internal/repository"
	customError "github.com/segyhp/loan-tracker/pkg/errors"
)

// Ledger is one user's view of their loans. It holds a snapshot loaded from
// the store, updates it after each successful write and can be resynced with
// Refresh. A Ledger is safe for concurrent use.
type Ledger struct {
	svc    *LoanService
	userID string

	mu       sync.RWMutex
	loans    []*domain.Loan
	payments map[uuid.UUID][]*domain.Payment
}

func (l *Ledger) UserID() string {
	return l.userID
}

// CreateLoan validates req, persists the new loan and adds it to the
// snapshot.
func (l *Ledger) CreateLoan(ctx context.Context, req domain.CreateLoanRequest) (*domain.Loan, error) {
	loan, err := domain.NewLoan(l.userID, req, l.svc.now(), l.svc.location)
	if err != nil {
		return nil, err
	}

	if err := l.svc.LoanRepo.Create(ctx, loan); err != nil {
		l.svc.logger.Error().Err(err).Str("user_id", l.userID).Msg("failed to create loan")
		return nil, customError.WrapTransport(err)
	}

	l.mu.Lock()
	l.loans = append(l.loans, loan)
	l.mu.Unlock()

	l.svc.logger.Info().
		Str("user_id", l.userID).
		Str("loan_id", loan.ID.String()).
		Str("total_amount", loan.TotalAmount.String()).
		Msg("loan created")

	out := *loan
	return &out, nil
}

// ApplyPayment records a payment against one of the user's loans. The loan
// is re-read from the store under the per-loan lock so the balance check
// sees the latest state.
func (l *Ledger) ApplyPayment(ctx context.Context, req domain.ApplyPaymentRequest) (*domain.Loan, *domain.Payment, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	unlock := l.svc.locks.Lock(req.LoanID)
	defer unlock()

	current, err := l.svc.loadOwned(ctx, l.userID, req.LoanID)
	if err != nil {
		if errors.Is(err, customError.ErrLoanNotFound) {
			l.forget(req.LoanID)
		}
		return nil, nil, err
	}

	updated, payment, err := current.WithPayment(req.Amount, req.Notes, l.svc.now(), l.svc.business.PaymentIntervalDays)
	if err != nil {
		return nil, nil, err
	}

	err = l.svc.LoanRepo.ApplyPayment(ctx, updated, payment, current.Version)
	switch {
	case errors.Is(err, repository.ErrVersionConflict):
		l.svc.logger.Warn().Str("loan_id", req.LoanID.String()).Int("version", current.Version).Msg("payment lost update race")
		return nil, nil, customError.WrapConcurrentUpdate(req.LoanID)
	case errors.Is(err, repository.ErrNotFound):
		l.forget(req.LoanID)
		return nil, nil, customError.WrapLoanNotFound(req.LoanID)
	case err != nil:
		l.svc.logger.Error().Err(err).Str("loan_id", req.LoanID.String()).Msg("failed to apply payment")
		return nil, nil, customError.WrapTransport(err)
	}

	l.mu.Lock()
	l.replace(updated)
	if cached, ok := l.payments[updated.ID]; ok {
		l.payments[updated.ID] = append(cached, payment)
	}
	l.mu.Unlock()

	l.svc.logger.Info().
		Str("user_id", l.userID).
		Str("loan_id", updated.ID.String()).
		Str("amount", payment.Amount.String()).
		Str("remaining_amount", updated.RemainingAmount.String()).
		Bool("fully_paid", updated.IsFullyPaid).
		Msg("payment applied")

	out := *updated
	return &out, payment, nil
}

// DeleteLoan removes a loan and all of its payments. Stores implementing
// repository.Cascader do this in one transaction; otherwise payments are
// removed one by one, then the loan. When that cannot be completed the loan is
// left in place and a *customError.PartialCascadeError is returned.
func (l *Ledger) DeleteLoan(ctx context.Context, id uuid.UUID) error {
	unlock := l.svc.locks.Lock(id)
	defer unlock()

	if _, err := l.svc.loadOwned(ctx, l.userID, id); err != nil {
		if errors.Is(err, customError.ErrLoanNotFound) {
			l.forget(id)
		}
		return err
	}

	if cascader, ok := l.svc.LoanRepo.(repository.Cascader); ok {
		err := cascader.DeleteLoanCascade(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			l.forget(id)
			return customError.WrapLoanNotFound(id)
		}
		if err != nil {
			l.svc.logger.Error().Err(err).Str("loan_id", id.String()).Msg("failed to delete loan")
			return customError.WrapTransport(err)
		}
	} else if err := l.cascade(ctx, id); err != nil {
		return err
	}

	l.forget(id)
	l.svc.logger.Info().Str("user_id", l.userID).Str("loan_id", id.String()).Msg("loan deleted")
	return nil
}

func (l *Ledger) cascade(ctx context.Context, id uuid.UUID) error {
	retries := l.svc.business.CascadeRetries

	payments, err := l.svc.PaymentRepo.GetByLoanID(ctx, id)
	if err != nil {
		return customError.WrapTransport(err)
	}

	var failed []uuid.UUID
	var lastErr error
	for _, p := range payments {
		err := withRetry(retries, func() error {
			return l.svc.PaymentRepo.DeleteByID(ctx, p.ID)
		})
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			failed = append(failed, p.ID)
			lastErr = err
		}
	}

	if len(failed) > 0 {
		l.invalidatePayments(id)
		return l.partial(&customError.PartialCascadeError{
			LoanID:           id,
			FailedPaymentIDs: failed,
			Err:              lastErr,
		})
	}

	err = withRetry(retries, func() error {
		return l.svc.LoanRepo.Delete(ctx, id)
	})
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		l.invalidatePayments(id)
		return l.partial(&customError.PartialCascadeError{LoanID: id, Err: err})
	}
	return nil
}

func (l *Ledger) partial(err *customError.PartialCascadeError) error {
	failed := make([]string, 0, len(err.FailedPaymentIDs))
	for _, id := range err.FailedPaymentIDs {
		failed = append(failed, id.String())
	}

	l.svc.logger.Error().
		Err(err.Err).
		Str("user_id", l.userID).
		Str("loan_id", err.LoanID.String()).
		Strs("failed_payment_ids", failed).
		Bool("loan_deleted", err.LoanDeleted).
		Msg("loan deletion left orphaned records")
	return err
}

// Loans returns the snapshot in creation order.
func (l *Ledger) Loans() []*domain.Loan {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*domain.Loan, len(l.loans))
	for i, loan := range l.loans {
		c := *loan
		out[i] = &c
	}
	return out
}

// Loan returns one loan from the snapshot.
func (l *Ledger) Loan(id uuid.UUID) (*domain.Loan, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if i := l.indexOf(id); i >= 0 {
		c := *l.loans[i]
		return &c, nil
	}
	return nil, customError.WrapLoanNotFound(id)
}

// Payments returns the loan's payments, oldest first. Loans that are not in
// the ledger, including deleted ones, have no payments. Results are cached
// until the next Refresh.
func (l *Ledger) Payments(ctx context.Context, id uuid.UUID) ([]*domain.Payment, error) {
	l.mu.RLock()
	known := l.indexOf(id) >= 0
	cached, ok := l.payments[id]
	l.mu.RUnlock()

	if !known {
		return []*domain.Payment{}, nil
	}
	if ok {
		return slices.Clone(cached), nil
	}

	payments, err := l.svc.PaymentRepo.GetByLoanID(ctx, id)
	if err != nil {
		return nil, customError.WrapTransport(err)
	}

	l.mu.Lock()
	l.payments[id] = payments
	l.mu.Unlock()

	return slices.Clone(payments), nil
}

// Summary aggregates the snapshot.
func (l *Ledger) Summary() domain.Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return domain.Summarize(l.loans)
}

// Reminders lists payments due within the configured window as of now in the
// service's default zone.
func (l *Ledger) Reminders(now time.Time) (reminder.List, error) {
	return l.RemindersIn(now, l.svc.location)
}

// RemindersIn is Reminders evaluated in loc.
func (l *Ledger) RemindersIn(now time.Time, loc *time.Location) (reminder.List, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.svc.Reminders().In(loc).Compute(l.loans, now)
}

// Refresh replaces the snapshot with the store's current contents.
func (l *Ledger) Refresh(ctx context.Context) error {
	loans, err := l.svc.LoanRepo.ListByUser(ctx, l.userID)
	if err != nil {
		return customError.WrapTransport(err)
	}

	l.mu.Lock()
	l.loans = loans
	l.payments = make(map[uuid.UUID][]*domain.Payment)
	l.mu.Unlock()
	return nil
}

// Watch calls fn with the current snapshot once subscribed, then refreshes
// the ledger and calls fn again every time source reports a change for the
// user. It returns when ctx is done or the feed closes. Refresh failures are
// logged and the ledger keeps its previous snapshot.
func (l *Ledger) Watch(ctx context.Context, source repository.ChangeSource, fn func(*Ledger)) error {
	changes, err := source.Subscribe(ctx, l.userID)
	if err != nil {
		return customError.WrapTransport(err)
	}
	fn(l)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-changes:
			if !ok {
				return ctx.Err()
			}
			if err := l.Refresh(ctx); err != nil {
				l.svc.logger.Warn().Err(err).Str("user_id", l.userID).Msg("ledger refresh failed")
				continue
			}
			fn(l)
		}
	}
}

// callers must hold l.mu
func (l *Ledger) indexOf(id uuid.UUID) int {
	return slices.IndexFunc(l.loans, func(loan *domain.Loan) bool { return loan.ID == id })
}

// callers must hold l.mu
func (l *Ledger) replace(loan *domain.Loan) {
	if i := l.indexOf(loan.ID); i >= 0 {
		l.loans[i] = loan
		return
	}
	l.loans = append(l.loans, loan)
}

func (l *Ledger) forget(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.loans = slices.DeleteFunc(l.loans, func(loan *domain.Loan) bool { return loan.ID == id })
	delete(l.payments, id)
}

func (l *Ledger) invalidatePayments(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.payments, id)
}
