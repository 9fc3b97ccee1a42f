package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/segyhp/loan-tracker/internal/reminder"
)

// Digest is the set of reminders delivered to one user in a scheduler run.
type Digest struct {
	UserID      string        `json:"user_id"`
	GeneratedAt time.Time     `json:"generated_at"`
	Overdue     int           `json:"overdue"`
	Reminders   reminder.List `json:"reminders"`
}

// Notifier delivers reminder digests.
type Notifier interface {
	Notify(ctx context.Context, digest Digest) error
}

// LogNotifier writes each digest to the log. Used when no Redis is
// configured.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, digest Digest) error {
	for r := range digest.Reminders.All() {
		n.logger.Info().
			Str("user_id", digest.UserID).
			Str("loan_id", r.LoanID.String()).
			Str("source", r.Source).
			Str("monthly_payment", r.MonthlyPayment.String()).
			Str("next_payment_date", r.NextPaymentDate.String()).
			Int("days_until_payment", r.DaysUntilPayment).
			Str("urgency", string(r.Urgency)).
			Msg("payment reminder")
	}
	return nil
}

// RedisNotifier publishes digests as JSON on reminders:{user_id}.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

// Channel returns the pub/sub channel a user's digests are published on.
func Channel(userID string) string {
	return "reminders:" + userID
}

func (n *RedisNotifier) Notify(ctx context.Context, digest Digest) error {
	payload, err := json.Marshal(digest)
	if err != nil {
		return fmt.Errorf("encode digest: %w", err)
	}
	if err := n.client.Publish(ctx, Channel(digest.UserID), payload).Err(); err != nil {
		return fmt.Errorf("publish digest for %s: %w", digest.UserID, err)
	}
	return nil
}
