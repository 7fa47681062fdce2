package inventory

import "github.com/odyssey-erp/odyssey-commerce/internal/shared"

// CheckStock confirms that level covers requested units. A nil level is an
// untracked variant and counts as zero stock.
func CheckStock(sku string, requested int, level *Level) error {
	available := 0
	if level != nil {
		available = level.Quantity
	}
	if available < requested {
		return &shared.InsufficientStockError{SKU: sku, Requested: requested, Available: available}
	}
	return nil
}
