package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is the single active cart of a user.
type Cart struct {
	ID        int64
	UserID    int64
	Items     []Item
	UpdatedAt time.Time
}

// Item is a cart line; (cart, variant) pairs are unique.
type Item struct {
	ID          int64
	CartID      int64
	VariantID   int64
	SKU         string
	ProductName string
	Color       string
	Size        string
	Quantity    int
	// UnitPrice is the current resolved price, nil when the variant has none.
	UnitPrice *decimal.Decimal
	Currency  string
}

// Subtotal returns the sum of priced lines.
func (c Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		if item.UnitPrice == nil {
			continue
		}
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total.Round(2)
}

// AddItemInput is the add-to-cart contract. Quantity defaults to 1.
type AddItemInput struct {
	VariantID int64 `json:"variant_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"omitempty,gte=1,lte=1000"`
}

// UpdateItemInput replaces the quantity of a cart line.
type UpdateItemInput struct {
	Quantity int `json:"quantity" validate:"required,gte=1,lte=1000"`
}
