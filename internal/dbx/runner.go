package dbx

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
)

// SQLSTATE codes treated as transient: the transaction lost a race and can
// simply be replayed.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// Runner executes fn inside a transaction. Implementations hide transient
// storage failures from callers.
type Runner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error
}

// SQLRunner runs transactions on a *sql.DB and replays them with exponential
// backoff when PostgreSQL reports lock contention or a serialization failure.
type SQLRunner struct {
	db         *sql.DB
	opts       *sql.TxOptions
	base       time.Duration
	maxRetries uint64
}

// NewSQLRunner returns a runner with a 20ms base backoff and 5 retries.
func NewSQLRunner(db *sql.DB, opts *sql.TxOptions) *SQLRunner {
	return &SQLRunner{db: db, opts: opts, base: 20 * time.Millisecond, maxRetries: 5}
}

// WithBackoff overrides the base delay and retry budget.
func (r *SQLRunner) WithBackoff(base time.Duration, maxRetries uint64) *SQLRunner {
	r.base = base
	r.maxRetries = maxRetries
	return r
}

func (r *SQLRunner) WithTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	b := retry.WithMaxRetries(r.maxRetries, retry.NewExponential(r.base))

	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := WithTx(ctx, r.db, r.opts, fn)
		if IsTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// IsTransient reports whether err is a PostgreSQL error worth replaying.
func IsTransient(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return true
	}
	return false
}
