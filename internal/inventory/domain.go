package inventory

import "time"

// Level is the stock position of a single variant.
type Level struct {
	VariantID   int64     `json:"variant_id"`
	SKU         string    `json:"sku"`
	Quantity    int       `json:"quantity"`
	Available   bool      `json:"available"`
	Location    string    `json:"warehouse_location,omitempty"`
	LastUpdated time.Time `json:"last_updated,omitempty"`
	// Tracked is false when the variant has no inventory row yet.
	Tracked bool `json:"tracked"`
}

func newLevel(variantID int64, sku string, quantity int) Level {
	return Level{VariantID: variantID, SKU: sku, Quantity: quantity, Available: quantity > 0, Tracked: true}
}

// AdjustInput overwrites the stock of a variant. A nil Location keeps the
// stored location.
type AdjustInput struct {
	Quantity *int    `json:"quantity" validate:"required,gte=0"`
	Location *string `json:"location" validate:"omitempty,max=100"`
}

// LowStockItem is a variant at or below the alert threshold.
type LowStockItem struct {
	VariantID int64  `json:"variant_id"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
}
