package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/loan-tracker/internal/config"
	"github.com/segyhp/loan-tracker/internal/domain"
	"github.com/segyhp/loan-tracker/internal/notify"
	"github.com/segyhp/loan-tracker/internal/repository"
	"github.com/segyhp/loan-tracker/internal/service"
)

type recordingNotifier struct {
	mu      sync.Mutex
	digests []notify.Digest
	failFor string
}

func (n *recordingNotifier) Notify(ctx context.Context, digest notify.Digest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if digest.UserID == n.failFor {
		return errors.New("mailbox full")
	}
	n.digests = append(n.digests, digest)
	return nil
}

func testService(t *testing.T, now time.Time) *service.LoanService {
	t.Helper()
	store := repository.NewMemoryStore()
	cfg := &config.Config{Business: config.BusinessConfig{
		ReminderWindowDays:  7,
		PaymentIntervalDays: 30,
		CascadeRetries:      1,
		DefaultTimezone:     "UTC",
	}}
	return service.NewLoanService(store, store, cfg, zerolog.Nop()).WithClock(func() time.Time { return now })
}

func addLoan(t *testing.T, svc *service.LoanService, userID string, next domain.Date) {
	t.Helper()
	ledger, err := svc.Ledger(context.Background(), userID)
	require.NoError(t, err)
	_, err = ledger.CreateLoan(context.Background(), domain.CreateLoanRequest{
		Source:           userID + " bank",
		LoanType:         "Personal",
		TotalAmount:      decimal.NewFromInt(1200),
		TenureMonths:     12,
		FirstPaymentDate: &next,
	})
	require.NoError(t, err)
}

func TestReminderJob_Run(t *testing.T) {
	now := time.Date(2024, 1, 25, 9, 0, 0, 0, time.UTC)
	svc := testService(t, now)

	addLoan(t, svc, "alice", domain.NewDate(2024, time.January, 20)) // overdue
	addLoan(t, svc, "alice", domain.NewDate(2024, time.January, 28)) // in 3 days
	addLoan(t, svc, "bob", domain.NewDate(2024, time.March, 1))      // outside the window
	addLoan(t, svc, "carol", domain.NewDate(2024, time.January, 26))

	notifier := &recordingNotifier{failFor: "carol"}
	result, err := NewReminderJob(svc, notifier, zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, RunResult{Users: 3, Notified: 1, Reminders: 2, Failed: 1}, result)

	require.Len(t, notifier.digests, 1)
	digest := notifier.digests[0]
	assert.Equal(t, "alice", digest.UserID)
	assert.Equal(t, 1, digest.Overdue)
	require.Len(t, digest.Reminders, 2)
	assert.Equal(t, -5, digest.Reminders[0].DaysUntilPayment)
	assert.Equal(t, 3, digest.Reminders[1].DaysUntilPayment)
}

func TestNew_RejectsBadSpec(t *testing.T) {
	svc := testService(t, time.Now())
	job := NewReminderJob(svc, &recordingNotifier{}, zerolog.Nop())

	_, err := New("every tuesday", time.UTC, time.Second, job, zerolog.Nop())
	assert.Error(t, err)

	s, err := New("0 0 9 * * *", time.UTC, time.Second, job, zerolog.Nop())
	require.NoError(t, err)
	s.Start()
	<-s.Stop().Done()
}
