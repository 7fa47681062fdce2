package shared

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	stock := fmt.Errorf("checkout: %w", &InsufficientStockError{SKU: "TS-001-BL-M", Requested: 2, Available: 0})
	require.ErrorIs(t, stock, ErrInsufficientStock)
	require.NotErrorIs(t, stock, ErrPricing)

	var typed *InsufficientStockError
	require.True(t, errors.As(stock, &typed))
	require.Equal(t, "TS-001-BL-M", typed.SKU)
	require.Equal(t, "insufficient stock for SKU TS-001-BL-M", UserSafeMessage(stock))

	pricing := &PricingError{SKU: "TS-002"}
	require.ErrorIs(t, pricing, ErrPricing)
	require.Equal(t, "no price available for SKU TS-002", pricing.Error())

	transient := &TransientError{Op: "checkout", Err: context.DeadlineExceeded}
	require.ErrorIs(t, transient, ErrTransient)
	require.ErrorIs(t, transient, context.DeadlineExceeded)
	require.Equal(t, "temporarily unavailable, please retry", UserSafeMessage(transient))
}

func TestValidationErrorSortsFields(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"quantity": "must be >= 0", "location": "too long"}}
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, "validation failed: location: too long; quantity: must be >= 0", err.Error())
}

func TestUserSafeMessageHidesInternals(t *testing.T) {
	require.Equal(t, "internal error", UserSafeMessage(errors.New("pq: relation missing")))
	require.Equal(t, "", UserSafeMessage(nil))
}

func TestIdentityAccess(t *testing.T) {
	owner := Identity{UserID: 7, Role: RoleCustomer}
	require.True(t, owner.CanAccess(7))
	require.False(t, owner.CanAccess(8))
	require.True(t, Identity{UserID: 1, Role: RoleAdmin}.CanAccess(8))

	_, ok := IdentityFromContext(context.Background())
	require.False(t, ok)
	got, ok := IdentityFromContext(ContextWithIdentity(context.Background(), owner))
	require.True(t, ok)
	require.Equal(t, owner, got)
}

func TestPageRequestNormalize(t *testing.T) {
	req := PageRequest{Page: 0, Limit: 500}.Normalize()
	require.Equal(t, 1, req.Page)
	require.Equal(t, 100, req.Limit)
	require.Equal(t, 40, PageRequest{Page: 3, Limit: 20}.Offset())

	meta := NewPagination(PageRequest{Page: 2, Limit: 10}, 25)
	require.Equal(t, 3, meta.TotalPages)
}
