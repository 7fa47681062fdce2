package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

// PostgreSQL error codes the platform reacts to.
const (
	CodeUniqueViolation      = "23505"
	CodeForeignKeyViolation  = "23503"
	CodeCheckViolation       = "23514"
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
	CodeLockNotAvailable     = "55P03"
	CodeQueryCanceled        = "57014"
)

// Classify maps driver errors onto the shared error taxonomy. Errors that
// already belong to the taxonomy are returned untouched.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &shared.TransientError{Op: op, Err: err}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, shared.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case CodeSerializationFailure, CodeDeadlockDetected, CodeLockNotAvailable, CodeQueryCanceled:
			return &shared.TransientError{Op: op, Err: err}
		case CodeForeignKeyViolation:
			return fmt.Errorf("%s: %s: %w", op, pgErr.ConstraintName, shared.ErrNotFound)
		case CodeUniqueViolation:
			return fmt.Errorf("%s: %s: %w", op, pgErr.ConstraintName, shared.ErrConflict)
		case CodeCheckViolation:
			return fmt.Errorf("%s: %s: %w", op, pgErr.ConstraintName, shared.ErrValidation)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsCode reports whether err wraps a PgError with the given code.
func IsCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func isDomainError(err error) bool {
	for _, target := range []error{
		shared.ErrNotFound,
		shared.ErrValidation,
		shared.ErrConflict,
		shared.ErrEmptyCart,
		shared.ErrInsufficientStock,
		shared.ErrPricing,
		shared.ErrTransient,
		shared.ErrForbidden,
		shared.ErrUnauthorized,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
