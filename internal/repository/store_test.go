package repository

import (
	"context"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/loan-tracker/internal/domain"
)

type store interface {
	LoanRepository
	PaymentRepository
}

var baseTime = time.Date(2024, 1, 20, 10, 30, 0, 0, time.UTC)

func newSQLiteDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Connect("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(context.Background(), db))
	return db
}

func newSQLiteStore(t *testing.T) store {
	db := newSQLiteDB(t)
	return struct {
		LoanRepository
		PaymentRepository
	}{NewLoanRepository(db), NewPaymentRepository(db)}
}

func newRedisStore(t *testing.T) store {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client)
}

func newMemoryStore(t *testing.T) store {
	return NewMemoryStore()
}

var stores = map[string]func(t *testing.T) store{
	"sqlite": newSQLiteStore,
	"redis":  newRedisStore,
	"memory": newMemoryStore,
}

func newTestLoan(t *testing.T, userID, source string, created time.Time) *domain.Loan {
	t.Helper()

	loan, err := domain.NewLoan(userID, domain.CreateLoanRequest{
		Source:       source,
		LoanType:     "Personal",
		TotalAmount:  decimal.NewFromInt(1000),
		TenureMonths: 10,
	}, created, time.UTC)
	require.NoError(t, err)
	return loan
}

func assertSameLoan(t *testing.T, expected, actual *domain.Loan) {
	t.Helper()

	assert.Equal(t, expected.ID, actual.ID)
	assert.Equal(t, expected.UserID, actual.UserID)
	assert.Equal(t, expected.Source, actual.Source)
	assert.Equal(t, expected.LoanType, actual.LoanType)
	assert.True(t, expected.TotalAmount.Equal(actual.TotalAmount), "total %s != %s", expected.TotalAmount, actual.TotalAmount)
	assert.True(t, expected.PaidAmount.Equal(actual.PaidAmount), "paid %s != %s", expected.PaidAmount, actual.PaidAmount)
	assert.True(t, expected.RemainingAmount.Equal(actual.RemainingAmount), "remaining %s != %s", expected.RemainingAmount, actual.RemainingAmount)
	assert.True(t, expected.MonthlyPayment.Equal(actual.MonthlyPayment))
	assert.Equal(t, expected.TenureMonths, actual.TenureMonths)
	assert.Equal(t, expected.IsFullyPaid, actual.IsFullyPaid)
	assert.Equal(t, expected.FirstPaymentDate, actual.FirstPaymentDate)
	assert.Equal(t, expected.NextPaymentDate, actual.NextPaymentDate)
	assert.Equal(t, expected.Version, actual.Version)
	assert.True(t, expected.CreatedDate.Equal(actual.CreatedDate))
}

func TestStore_CreateAndGet(t *testing.T) {
	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)
			loan := newTestLoan(t, "user-1", "HDFC Bank", baseTime)

			require.NoError(t, s.Create(ctx, loan))

			got, err := s.GetByID(ctx, loan.ID)
			require.NoError(t, err)
			assertSameLoan(t, loan, got)

			_, err = s.GetByID(ctx, uuid.New())
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_ListByUser(t *testing.T) {
	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			second := newTestLoan(t, "user-1", "Second", baseTime.Add(time.Hour))
			first := newTestLoan(t, "user-1", "First", baseTime)
			other := newTestLoan(t, "user-2", "Other", baseTime)
			for _, l := range []*domain.Loan{second, first, other} {
				require.NoError(t, s.Create(ctx, l))
			}

			loans, err := s.ListByUser(ctx, "user-1")
			require.NoError(t, err)
			require.Len(t, loans, 2)
			assert.Equal(t, "First", loans[0].Source)
			assert.Equal(t, "Second", loans[1].Source)

			empty, err := s.ListByUser(ctx, "nobody")
			require.NoError(t, err)
			assert.NotNil(t, empty)
			assert.Empty(t, empty)

			users, err := s.ListUsers(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"user-1", "user-2"}, users)
		})
	}
}

func TestStore_ListByUserBreaksTiesByID(t *testing.T) {
	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			created := make([]*domain.Loan, 0, 5)
			for range 5 {
				l := newTestLoan(t, "user-1", "Same instant", baseTime)
				require.NoError(t, s.Create(ctx, l))
				created = append(created, l)
			}
			slices.SortFunc(created, func(a, b *domain.Loan) int {
				return strings.Compare(a.ID.String(), b.ID.String())
			})

			loans, err := s.ListByUser(ctx, "user-1")
			require.NoError(t, err)
			require.Len(t, loans, len(created))
			for i := range created {
				assert.Equal(t, created[i].ID, loans[i].ID)
			}
		})
	}
}

func TestStore_ApplyPayment(t *testing.T) {
	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)
			loan := newTestLoan(t, "user-1", "HDFC Bank", baseTime)
			require.NoError(t, s.Create(ctx, loan))

			notes := "January"
			updated, payment, err := loan.WithPayment(decimal.NewFromInt(100), &notes, baseTime.Add(24*time.Hour), 30)
			require.NoError(t, err)

			require.NoError(t, s.ApplyPayment(ctx, updated, payment, loan.Version))

			got, err := s.GetByID(ctx, loan.ID)
			require.NoError(t, err)
			assertSameLoan(t, updated, got)

			payments, err := s.GetByLoanID(ctx, loan.ID)
			require.NoError(t, err)
			require.Len(t, payments, 1)
			assert.Equal(t, payment.ID, payments[0].ID)
			assert.True(t, payment.Amount.Equal(payments[0].Amount))
			require.NotNil(t, payments[0].Notes)
			assert.Equal(t, "January", *payments[0].Notes)

			// replaying against the old version loses
			_, stale, err := loan.WithPayment(decimal.NewFromInt(50), nil, baseTime.Add(48*time.Hour), 30)
			require.NoError(t, err)
			err = s.ApplyPayment(ctx, updated, stale, loan.Version)
			assert.ErrorIs(t, err, ErrVersionConflict)

			payments, err = s.GetByLoanID(ctx, loan.ID)
			require.NoError(t, err)
			assert.Len(t, payments, 1)
		})
	}
}

func TestStore_ApplyPaymentMissingLoan(t *testing.T) {
	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			loan := newTestLoan(t, "user-1", "Ghost", baseTime)
			updated, payment, err := loan.WithPayment(decimal.NewFromInt(10), nil, baseTime, 30)
			require.NoError(t, err)

			err = s.ApplyPayment(context.Background(), updated, payment, loan.Version)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)
			loan := newTestLoan(t, "user-1", "HDFC Bank", baseTime)
			require.NoError(t, s.Create(ctx, loan))

			updated, payment, err := loan.WithPayment(decimal.NewFromInt(100), nil, baseTime, 30)
			require.NoError(t, err)
			require.NoError(t, s.ApplyPayment(ctx, updated, payment, loan.Version))

			require.NoError(t, s.DeleteByID(ctx, payment.ID))
			assert.ErrorIs(t, s.DeleteByID(ctx, payment.ID), ErrNotFound)

			payments, err := s.GetByLoanID(ctx, loan.ID)
			require.NoError(t, err)
			assert.Empty(t, payments)

			require.NoError(t, s.Delete(ctx, loan.ID))
			assert.ErrorIs(t, s.Delete(ctx, loan.ID), ErrNotFound)

			_, err = s.GetByID(ctx, loan.ID)
			assert.ErrorIs(t, err, ErrNotFound)

			loans, err := s.ListByUser(ctx, "user-1")
			require.NoError(t, err)
			assert.Empty(t, loans)
		})
	}
}

func TestLoanRepository_DeleteLoanCascade(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	loans := NewLoanRepository(db)
	payments := NewPaymentRepository(db)
	loan := newTestLoan(t, "user-1", "HDFC Bank", baseTime)
	require.NoError(t, loans.Create(ctx, loan))

	current := loan
	for i := 0; i < 3; i++ {
		next, payment, err := current.WithPayment(decimal.NewFromInt(100), nil, baseTime.Add(time.Duration(i)*time.Hour), 30)
		require.NoError(t, err)
		require.NoError(t, loans.ApplyPayment(ctx, next, payment, current.Version))
		current = next
	}

	cascader, ok := loans.(Cascader)
	require.True(t, ok, "sql loan repository should support cascades")

	require.NoError(t, cascader.DeleteLoanCascade(ctx, loan.ID))

	_, err := loans.GetByID(ctx, loan.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	remaining, err := payments.GetByLoanID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	assert.ErrorIs(t, cascader.DeleteLoanCascade(ctx, loan.ID), ErrNotFound)
}

func TestChangeSource_Subscribe(t *testing.T) {
	sources := map[string]func(t *testing.T) store{
		"redis":  newRedisStore,
		"memory": newMemoryStore,
	}

	for name, newStore := range sources {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			s := newStore(t)
			source, ok := s.(ChangeSource)
			require.True(t, ok)

			changes, err := source.Subscribe(ctx, "user-1")
			require.NoError(t, err)

			require.NoError(t, s.Create(ctx, newTestLoan(t, "user-2", "Not mine", baseTime)))
			require.NoError(t, s.Create(ctx, newTestLoan(t, "user-1", "Mine", baseTime)))

			select {
			case <-changes:
			case <-time.After(2 * time.Second):
				t.Fatal("expected a change notification")
			}

			cancel()
			assert.Eventually(t, func() bool {
				select {
				case _, open := <-changes:
					return !open
				default:
					return false
				}
			}, 2*time.Second, 10*time.Millisecond)
		})
	}
}
