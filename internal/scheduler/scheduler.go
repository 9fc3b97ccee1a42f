package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/segyhp/loan-tracker/internal/notify"
	"github.com/segyhp/loan-tracker/internal/service"
)

// ReminderJob builds a reminder digest for every user and hands the non-empty
// ones to the notifier.
type ReminderJob struct {
	svc      *service.LoanService
	notifier notify.Notifier
	logger   zerolog.Logger
}

func NewReminderJob(svc *service.LoanService, notifier notify.Notifier, logger zerolog.Logger) *ReminderJob {
	return &ReminderJob{
		svc:      svc,
		notifier: notifier,
		logger:   logger.With().Str("job", "payment_reminders").Logger(),
	}
}

// RunResult counts what a single run did.
type RunResult struct {
	Users     int
	Notified  int
	Reminders int
	Failed    int
}

// Run processes every user once. A failure for one user is logged and does
// not stop the others; only failing to list users aborts the run.
func (j *ReminderJob) Run(ctx context.Context) (RunResult, error) {
	var result RunResult

	users, err := j.svc.Users(ctx)
	if err != nil {
		return result, err
	}
	result.Users = len(users)
	now := j.svc.Now()

	for _, userID := range users {
		log := j.logger.With().Str("user_id", userID).Logger()

		ledger, err := j.svc.Ledger(ctx, userID)
		if err != nil {
			log.Error().Err(err).Msg("failed to load ledger")
			result.Failed++
			continue
		}

		list, err := ledger.Reminders(now)
		if err != nil {
			log.Error().Err(err).Msg("failed to compute reminders")
			result.Failed++
			continue
		}
		if len(list) == 0 {
			continue
		}

		digest := notify.Digest{
			UserID:      userID,
			GeneratedAt: now.UTC(),
			Overdue:     list.Overdue(),
			Reminders:   list,
		}
		if err := j.notifier.Notify(ctx, digest); err != nil {
			log.Error().Err(err).Msg("failed to deliver reminders")
			result.Failed++
			continue
		}

		result.Notified++
		result.Reminders += len(list)
	}

	return result, nil
}

// Scheduler runs the reminder job on a cron schedule with seconds precision.
type Scheduler struct {
	cron    *cron.Cron
	job     *ReminderJob
	timeout time.Duration
	logger  zerolog.Logger
}

// New registers job under spec, evaluated in loc. Each run is bounded by
// timeout.
func New(spec string, loc *time.Location, timeout time.Duration, job *ReminderJob, logger zerolog.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	s := &Scheduler{
		cron:    cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		job:     job,
		timeout: timeout,
		logger:  logger,
	}

	if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.logger.Info().Msg("running payment reminder job")
	result, err := s.job.Run(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("payment reminder job failed")
		return
	}
	s.logger.Info().
		Int("users", result.Users).
		Int("notified", result.Notified).
		Int("reminders", result.Reminders).
		Int("failed", result.Failed).
		Msg("payment reminder job finished")
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and returns a context that is done once a running
// job has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
