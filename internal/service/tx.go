package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/Eursukkul/token-bidding/internal/metrics"
)

// Postgres SQLSTATEs that mean "try again".
const (
	pgLockNotAvailable     = "55P03"
	pgQueryCanceled        = "57014"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

type TxOptions struct {
	LockTimeout      time.Duration
	StatementTimeout time.Duration
	MaxRetries       int
	Backoff          time.Duration
}

// TxRunner runs each service operation as one database transaction, with
// per-transaction timeouts on Postgres and bounded retries on transient
// failures. Every attempt either commits or rolls back in full.
type TxRunner struct {
	db     *gorm.DB
	opts   TxOptions
	logger *slog.Logger
}

func NewTxRunner(db *gorm.DB, opts TxOptions, logger *slog.Logger) *TxRunner {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 50 * time.Millisecond
	}
	return &TxRunner{db: db, opts: opts, logger: logger.With("component", "tx")}
}

// DB returns the handle for reads that need no transaction.
func (r *TxRunner) DB() *gorm.DB {
	return r.db
}

// Run executes fn in a transaction. Errors are returned as *Error: business
// errors raised inside fn pass through, store errors are classified, and
// StoreUnavailable failures are retried up to MaxRetries times.
func (r *TxRunner) Run(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	delay := r.opts.Backoff
	for attempt := 0; ; attempt++ {
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := r.setTimeouts(tx); err != nil {
				return err
			}
			return fn(tx)
		})
		if err == nil {
			return nil
		}

		classified, retryable := classify(err)
		if !retryable || attempt >= r.opts.MaxRetries || ctx.Err() != nil {
			metrics.Errors.WithLabelValues(op, string(classified.Kind)).Inc()
			return classified
		}

		metrics.TxRetries.WithLabelValues(op).Inc()
		r.logger.Warn("retrying transaction", "op", op, "attempt", attempt+1, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			metrics.Errors.WithLabelValues(op, string(KindStoreUnavailable)).Inc()
			return newError(KindStoreUnavailable, "operation canceled", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (r *TxRunner) setTimeouts(tx *gorm.DB) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	if r.opts.LockTimeout > 0 {
		if err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = %d", r.opts.LockTimeout.Milliseconds())).Error; err != nil {
			return err
		}
	}
	if r.opts.StatementTimeout > 0 {
		if err := tx.Exec(fmt.Sprintf("SET LOCAL statement_timeout = %d", r.opts.StatementTimeout.Milliseconds())).Error; err != nil {
			return err
		}
	}
	return nil
}

// classify maps an error out of a transaction onto an *Error and reports
// whether another attempt may succeed.
func classify(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newError(KindStoreUnavailable, "operation canceled", err), false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, gorm.ErrForeignKeyViolated) || errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return newError(KindIntegrityViolation, "constraint violated", err), false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgQueryCanceled, pgSerializationFailure, pgDeadlockDetected:
			return newError(KindStoreUnavailable, "transient store failure", err), true
		}
		if len(pgErr.Code) == 5 && pgErr.Code[:2] == "23" {
			return newError(KindIntegrityViolation, "constraint violated", err), false
		}
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return newError(KindStoreUnavailable, "database is busy", err), true
		case sqlite3.ErrConstraint:
			return newError(KindIntegrityViolation, "constraint violated", err), false
		}
	}

	return newError(KindStoreUnavailable, "store error", err), false
}

// isDuplicate reports whether err is a unique-key violation.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	var liteErr sqlite3.Error
	return errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
