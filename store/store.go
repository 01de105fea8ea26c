// Package store is the only code that touches persistent tables. All mutations go through
// RunTransaction, which re-runs the whole callback when a concurrent writer got there first.
package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned by lookups that match no row.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict means a row read by the transaction changed before it could be written.
	ErrConflict = errors.New("store: concurrent modification")
	// ErrContention is returned when every attempt of a transaction hit a conflict.
	ErrContention = errors.New("store: transaction retries exhausted")
)

const (
	defaultMaxAttempts = 5
	defaultBaseBackoff = 10 * time.Millisecond
)

// Store wraps the GORM handle with the retry-on-conflict transaction primitive.
type Store struct {
	db          *gorm.DB
	maxAttempts int
	baseBackoff time.Duration
	onRetry     func(attempt int, err error)
}

// Option customizes a Store.
type Option func(*Store)

// WithMaxAttempts bounds how many times a conflicting transaction is re-run.
func WithMaxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithBackoff sets the base delay between attempts. Zero disables waiting.
func WithBackoff(d time.Duration) Option {
	return func(s *Store) { s.baseBackoff = d }
}

// WithRetryObserver registers a callback invoked before each retry.
func WithRetryObserver(fn func(attempt int, err error)) Option {
	return func(s *Store) { s.onRetry = fn }
}

// New builds a Store over an opened database.
func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{db: db, maxAttempts: defaultMaxAttempts, baseBackoff: defaultBaseBackoff}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB exposes the underlying handle for reads that need no transaction.
func (s *Store) DB(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// RunTransaction runs fn inside one database transaction. fn must do all of its reads through
// tx and keep its results in variables it resets on entry: when a write loses a race the
// transaction is rolled back and fn runs again from scratch. Errors that are not conflicts are
// returned unchanged after rollback.
func (s *Store) RunTransaction(ctx context.Context, fn func(tx *Tx) error) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
			return fn(&Tx{db: gtx})
		})
		if err == nil || !IsRetryable(err) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if attempt == s.maxAttempts {
			break
		}
		if s.onRetry != nil {
			s.onRetry(attempt, err)
		}
		if wait := s.backoff(attempt); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrContention, s.maxAttempts, err)
}

func (s *Store) backoff(attempt int) time.Duration {
	if s.baseBackoff <= 0 {
		return 0
	}
	d := s.baseBackoff << (attempt - 1)
	return d/2 + time.Duration(rand.Int63n(int64(d)))
}

// IsRetryable reports whether err means the transaction lost a race and may succeed if re-run.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConflict) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062, 1205, 1213: // duplicate entry, lock wait timeout, deadlock
			return true
		}
		return false
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return true
		}
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return true
		}
	}
	return false
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
