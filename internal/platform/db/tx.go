package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Beginner starts transactions; *pgxpool.Pool satisfies it.
type Beginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// TxOptions tunes a single transaction.
type TxOptions struct {
	IsoLevel pgx.TxIsoLevel
	// StatementTimeout is applied with SET LOCAL when positive.
	StatementTimeout time.Duration
	// LockTimeout is applied with SET LOCAL when positive.
	LockTimeout time.Duration
}

// WithTx executes a function within a transaction. RepeatableRead is used
// when no isolation level is given. Errors are passed through Classify.
func WithTx(ctx context.Context, db Beginner, opts TxOptions, fn func(pgx.Tx) error) error {
	iso := opts.IsoLevel
	if iso == "" {
		iso = pgx.RepeatableRead
	}
	tx, err := db.BeginTx(ctx, pgx.TxOptions{IsoLevel: iso})
	if err != nil {
		return Classify("platform/db: begin tx", err)
	}

	defer func() {
		// Rollback on a fresh context so a cancelled request still releases locks.
		rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = tx.Rollback(rbCtx)
	}()

	if opts.StatementTimeout > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", opts.StatementTimeout.Milliseconds())); err != nil {
			return Classify("platform/db: statement timeout", err)
		}
	}
	if opts.LockTimeout > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", opts.LockTimeout.Milliseconds())); err != nil {
			return Classify("platform/db: lock timeout", err)
		}
	}

	if err := fn(tx); err != nil {
		return Classify("platform/db: tx", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Classify("platform/db: commit tx", err)
	}

	return nil
}
