package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/segyhp/loan-tracker/internal/domain"
)

// Key layout:
//
//	loan:{id}              JSON encoded loan
//	payment:{id}           JSON encoded payment
//	user:{uid}:loans       sorted set of loan ids scored by creation time
//	loan:{id}:payments     sorted set of payment ids scored by payment time
//	loan-users             set of user ids owning at least one loan
//	loans:changed:{uid}    pub/sub channel signalled after every write
const (
	loanUsersKey = "loan-users"
)

func loanKey(id uuid.UUID) string { return "loan:" + id.String() }
func paymentKey(id uuid.UUID) string { return "payment:" + id.String() }
func userLoansKey(userID string) string { return "user:" + userID + ":loans" }
func loanPaymentsKey(id uuid.UUID) string { return "loan:" + id.String() + ":payments" }
func changeChannel(userID string) string { return "loans:changed:" + userID }

// RedisStore keeps loans and payments in Redis and publishes a change
// notification on every write. It does not implement Cascader: deleting a
// loan and its payments happens as separate commands.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an already connected client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Create(ctx context.Context, loan *domain.Loan) error {
	data, err := json.Marshal(loan)
	if err != nil {
		return fmt.Errorf("encode loan: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, loanKey(loan.ID), data, 0)
		pipe.ZAdd(ctx, userLoansKey(loan.UserID), redis.Z{
			Score:  float64(loan.CreatedDate.UnixMilli()),
			Member: loan.ID.String(),
		})
		pipe.SAdd(ctx, loanUsersKey, loan.UserID)
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, loan.UserID)
	return nil
}

func (s *RedisStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	return getLoan(ctx, s.client, id)
}

func (s *RedisStore) ListByUser(ctx context.Context, userID string) ([]*domain.Loan, error) {
	ids, err := s.client.ZRange(ctx, userLoansKey(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	loans := []*domain.Loan{}
	if len(ids) == 0 {
		return loans, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = "loan:" + id
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// index entry outlived its record
			continue
		}
		var loan domain.Loan
		if err := json.Unmarshal([]byte(raw), &loan); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		loans = append(loans, &loan)
	}
	return loans, nil
}

func (s *RedisStore) ListUsers(ctx context.Context) ([]string, error) {
	users, err := s.client.SMembers(ctx, loanUsersKey).Result()
	if err != nil {
		return nil, err
	}
	slices.Sort(users)
	return users, nil
}

// ApplyPayment writes the loan and payment in one MULTI block guarded by
// WATCH on the loan key.
func (s *RedisStore) ApplyPayment(ctx context.Context, loan *domain.Loan, payment *domain.Payment, expectedVersion int) error {
	loanData, err := json.Marshal(loan)
	if err != nil {
		return fmt.Errorf("encode loan: %w", err)
	}
	paymentData, err := json.Marshal(payment)
	if err != nil {
		return fmt.Errorf("encode payment: %w", err)
	}

	key := loanKey(loan.ID)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := getLoan(ctx, tx, loan.ID)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return ErrVersionConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, loanData, 0)
			pipe.Set(ctx, paymentKey(payment.ID), paymentData, 0)
			pipe.ZAdd(ctx, loanPaymentsKey(loan.ID), redis.Z{
				Score:  float64(payment.PaymentDate.UnixMilli()),
				Member: payment.ID.String(),
			})
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrVersionConflict
	}
	if err != nil {
		return err
	}

	s.publish(ctx, loan.UserID)
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	loan, err := getLoan(ctx, s.client, id)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, loanKey(id))
		pipe.ZRem(ctx, userLoansKey(loan.UserID), id.String())
		return nil
	})
	if err != nil {
		return err
	}

	remaining, err := s.client.ZCard(ctx, userLoansKey(loan.UserID)).Result()
	if err == nil && remaining == 0 {
		s.client.SRem(ctx, loanUsersKey, loan.UserID)
	}

	s.publish(ctx, loan.UserID)
	return nil
}

func (s *RedisStore) GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Payment, error) {
	ids, err := s.client.ZRange(ctx, loanPaymentsKey(loanID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	payments := []*domain.Payment{}
	for _, id := range ids {
		raw, err := s.client.Get(ctx, "payment:"+id).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var p domain.Payment
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode payment %s: %w", id, err)
		}
		payments = append(payments, &p)
	}
	return payments, nil
}

func (s *RedisStore) DeleteByID(ctx context.Context, id uuid.UUID) error {
	raw, err := s.client.Get(ctx, paymentKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	var p domain.Payment
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("decode payment %s: %w", id, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, paymentKey(id))
		pipe.ZRem(ctx, loanPaymentsKey(p.LoanID), id.String())
		return nil
	})
	return err
}

// Subscribe relays loans:changed:{uid} messages as empty signals until ctx
// is done.
func (s *RedisStore) Subscribe(ctx context.Context, userID string) (<-chan struct{}, error) {
	pubsub := s.client.Subscribe(ctx, changeChannel(userID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-messages:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	return out, nil
}

func (s *RedisStore) publish(ctx context.Context, userID string) {
	// Subscribers resync from the store, so a lost signal only delays them.
	s.client.Publish(ctx, changeChannel(userID), "changed")
}

// stringGetter is satisfied by both *redis.Client and *redis.Tx.
type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getLoan(ctx context.Context, c stringGetter, id uuid.UUID) (*domain.Loan, error) {
	raw, err := c.Get(ctx, loanKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var loan domain.Loan
	if err := json.Unmarshal(raw, &loan); err != nil {
		return nil, fmt.Errorf("decode loan %s: %w", id, err)
	}
	return &loan, nil
}
