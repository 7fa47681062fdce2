package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

func TestCheckStock(t *testing.T) {
	lvl := newLevel(1, "TS-001-BL-M", 5)
	require.NoError(t, CheckStock("TS-001-BL-M", 5, &lvl))
	require.NoError(t, CheckStock("TS-001-BL-M", 2, &lvl))

	err := CheckStock("TS-001-BL-M", 6, &lvl)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	var stock *shared.InsufficientStockError
	require.ErrorAs(t, err, &stock)
	require.Equal(t, 5, stock.Available)
	require.Equal(t, 6, stock.Requested)
}

func TestCheckStockUntrackedIsZero(t *testing.T) {
	err := CheckStock("TS-404", 1, nil)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	empty := newLevel(2, "TS-002", 0)
	require.False(t, empty.Available)
	require.ErrorIs(t, CheckStock("TS-002", 1, &empty), shared.ErrInsufficientStock)
}
