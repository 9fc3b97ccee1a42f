package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"

	"github.com/segyhp/loan-tracker/internal/config"
)

// Store bundles the repositories selected by DATABASE_DRIVER together with
// the connections behind them.
type Store struct {
	Loans    LoanRepository
	Payments PaymentRepository
	// Changes is nil when the store cannot push updates.
	Changes ChangeSource

	DB    *sqlx.DB
	Redis *redis.Client
}

// Open connects to the configured store, creating the SQL schema if needed.
// A Redis client is also opened for the other drivers when REDIS_HOST is set.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	s := &Store{}

	if cfg.UsesRedis() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		s.Redis = client
	}

	switch cfg.Database.Driver {
	case config.DriverPostgres, config.DriverSQLite:
		db, err := sqlx.ConnectContext(ctx, cfg.Database.Driver, cfg.Database.DSN())
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect %s: %w", cfg.Database.Driver, err)
		}
		if cfg.Database.Driver == config.DriverSQLite {
			// SQLite allows a single writer.
			db.SetMaxOpenConns(1)
		} else {
			db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
			db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
			db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
		}
		s.DB = db

		if err := Migrate(ctx, db); err != nil {
			s.Close()
			return nil, err
		}
		s.Loans = NewLoanRepository(db)
		s.Payments = NewPaymentRepository(db)

	case config.DriverRedis:
		rs := NewRedisStore(s.Redis)
		s.Loans, s.Payments, s.Changes = rs, rs, rs

	case config.DriverMemory:
		ms := NewMemoryStore()
		s.Loans, s.Payments, s.Changes = ms, ms, ms

	default:
		s.Close()
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	return s, nil
}

func (s *Store) Close() error {
	var errs []error
	if s.DB != nil {
		errs = append(errs, s.DB.Close())
	}
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	return errors.Join(errs...)
}
