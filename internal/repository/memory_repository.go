package repository

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/segyhp/loan-tracker/internal/domain"
)

// MemoryStore is an in-memory implementation of LoanRepository,
// PaymentRepository and ChangeSource. Records are copied on the way in and
// out so callers never share state with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	loans       map[uuid.UUID]*domain.Loan
	order       []uuid.UUID
	payments    map[uuid.UUID]*domain.Payment
	byLoan      map[uuid.UUID][]uuid.UUID
	subscribers map[string][]chan struct{}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		loans:       make(map[uuid.UUID]*domain.Loan),
		payments:    make(map[uuid.UUID]*domain.Payment),
		byLoan:      make(map[uuid.UUID][]uuid.UUID),
		subscribers: make(map[string][]chan struct{}),
	}
}

func (m *MemoryStore) Create(ctx context.Context, loan *domain.Loan) error {
	m.mu.Lock()
	stored := *loan
	m.loans[loan.ID] = &stored
	m.order = append(m.order, loan.ID)
	m.mu.Unlock()

	m.notify(loan.UserID)
	return nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	loan, ok := m.loans[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *loan
	return &out, nil
}

func (m *MemoryStore) ListByUser(ctx context.Context, userID string) ([]*domain.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	loans := []*domain.Loan{}
	for _, id := range m.order {
		loan, ok := m.loans[id]
		if !ok || loan.UserID != userID {
			continue
		}
		out := *loan
		loans = append(loans, &out)
	}
	sortByCreation(loans)
	return loans, nil
}

// sortByCreation orders loans by creation time, then id, matching the SQL
// and Redis stores.
func sortByCreation(loans []*domain.Loan) {
	slices.SortStableFunc(loans, func(a, b *domain.Loan) int {
		if c := a.CreatedDate.Compare(b.CreatedDate); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
}

func (m *MemoryStore) ListUsers(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	users := []string{}
	for _, loan := range m.loans {
		if !seen[loan.UserID] {
			seen[loan.UserID] = true
			users = append(users, loan.UserID)
		}
	}
	sort.Strings(users)
	return users, nil
}

func (m *MemoryStore) ApplyPayment(ctx context.Context, loan *domain.Loan, payment *domain.Payment, expectedVersion int) error {
	m.mu.Lock()
	current, ok := m.loans[loan.ID]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if current.Version != expectedVersion {
		m.mu.Unlock()
		return ErrVersionConflict
	}

	stored := *loan
	m.loans[loan.ID] = &stored
	p := *payment
	m.payments[payment.ID] = &p
	m.byLoan[loan.ID] = append(m.byLoan[loan.ID], payment.ID)
	m.mu.Unlock()

	m.notify(loan.UserID)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	loan, ok := m.loans[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.loans, id)
	m.order = slices.DeleteFunc(m.order, func(other uuid.UUID) bool { return other == id })
	m.mu.Unlock()

	m.notify(loan.UserID)
	return nil
}

func (m *MemoryStore) GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	payments := []*domain.Payment{}
	for _, id := range m.byLoan[loanID] {
		if p, ok := m.payments[id]; ok {
			out := *p
			payments = append(payments, &out)
		}
	}
	return payments, nil
}

func (m *MemoryStore) DeleteByID(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.payments, id)
	m.byLoan[p.LoanID] = slices.DeleteFunc(m.byLoan[p.LoanID], func(other uuid.UUID) bool { return other == id })
	if len(m.byLoan[p.LoanID]) == 0 {
		delete(m.byLoan, p.LoanID)
	}
	return nil
}

// Subscribe returns a channel that receives a signal after every change to
// userID's data. The channel is closed when ctx is done.
func (m *MemoryStore) Subscribe(ctx context.Context, userID string) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	m.mu.Lock()
	m.subscribers[userID] = append(m.subscribers[userID], ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		m.subscribers[userID] = slices.DeleteFunc(m.subscribers[userID], func(other chan struct{}) bool { return other == ch })
		m.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

func (m *MemoryStore) notify(userID string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, ch := range m.subscribers[userID] {
		select {
		case ch <- struct{}{}:
		default:
			// a signal is already pending
		}
	}
}
