package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

func TestClassifyTransientCodes(t *testing.T) {
	for _, code := range []string{CodeSerializationFailure, CodeDeadlockDetected, CodeLockNotAvailable, CodeQueryCanceled} {
		err := Classify("checkout", &pgconn.PgError{Code: code})
		require.ErrorIs(t, err, shared.ErrTransient, code)
	}
	require.ErrorIs(t, Classify("checkout", fmt.Errorf("wait: %w", context.DeadlineExceeded)), shared.ErrTransient)
}

func TestClassifyConstraintViolations(t *testing.T) {
	require.ErrorIs(t, Classify("insert", &pgconn.PgError{Code: CodeForeignKeyViolation, ConstraintName: "inventory_variant_id_fkey"}), shared.ErrNotFound)
	require.ErrorIs(t, Classify("insert", &pgconn.PgError{Code: CodeUniqueViolation}), shared.ErrConflict)
	require.ErrorIs(t, Classify("insert", &pgconn.PgError{Code: CodeCheckViolation}), shared.ErrValidation)
	require.ErrorIs(t, Classify("get", pgx.ErrNoRows), shared.ErrNotFound)
}

func TestClassifyKeepsDomainErrors(t *testing.T) {
	stock := &shared.InsufficientStockError{SKU: "A"}
	require.Same(t, stock, Classify("checkout", stock))

	plain := errors.New("boom")
	err := Classify("checkout", plain)
	require.ErrorIs(t, err, plain)
	require.NotErrorIs(t, err, shared.ErrTransient)
	require.Nil(t, Classify("noop", nil))
}

func TestIsCodeMatchesWrappedPgError(t *testing.T) {
	err := fmt.Errorf("insert variant: %w", &pgconn.PgError{Code: CodeUniqueViolation})
	require.True(t, IsCode(err, CodeUniqueViolation))
	require.False(t, IsCode(err, CodeForeignKeyViolation))
	require.False(t, IsCode(errors.New("plain"), CodeUniqueViolation))
	require.False(t, IsCode(nil, CodeUniqueViolation))
}
