package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/icebreaker-scheduler/internal/persistence"
)

// Store implements persistence.Store on a database/sql handle.
type Store struct {
	db      *sql.DB
	dialect Dialect
	retry   *RetryHelper
	now     func() time.Time
}

var _ persistence.Store = (*Store)(nil)

// Option customises a Store.
type Option func(*Store)

// WithRetryConfig overrides the retry policy for transient errors.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(s *Store) {
		s.retry = NewRetryHelper(cfg, s.dialect.Retryable)
	}
}

// WithNow overrides the clock used for bookkeeping timestamps.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New wraps db. The caller keeps ownership of schema migrations.
func New(db *sql.DB, dialect Dialect, opts ...Option) *Store {
	s := &Store{db: db, dialect: dialect, now: time.Now}
	s.retry = NewRetryHelper(DefaultRetryConfig(), dialect.Retryable)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// TransactionFunc runs inside a transaction.
type TransactionFunc func(tx *sql.Tx) error

// WithTransaction runs fn in a transaction, committing when it returns nil
// and rolling back otherwise. Transient failures retry the whole function.
func (s *Store) WithTransaction(ctx context.Context, fn TransactionFunc) error {
	return s.retry.WithRetry(ctx, func() error {
		return s.runTransaction(ctx, fn)
	})
}

func (s *Store) runTransaction(ctx context.Context, fn TransactionFunc) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.dialect.mapError(fmt.Errorf("begin transaction: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return s.dialect.mapError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

func (s *Store) exec(ctx context.Context, tx *sql.Tx, query string, args ...any) (sql.Result, error) {
	query = s.dialect.rebind(query)
	var (
		result sql.Result
		err    error
	)
	if tx != nil {
		result, err = tx.ExecContext(ctx, query, args...)
	} else {
		result, err = s.db.ExecContext(ctx, query, args...)
	}
	return result, s.dialect.mapError(err)
}

func (s *Store) queryRow(ctx context.Context, tx *sql.Tx, query string, args ...any) *sql.Row {
	query = s.dialect.rebind(query)
	if tx != nil {
		return tx.QueryRowContext(ctx, query, args...)
	}
	return s.db.QueryRowContext(ctx, query, args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	return rows, s.dialect.mapError(err)
}
