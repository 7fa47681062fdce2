package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

// ProductStatus enumerates product lifecycle states.
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "ACTIVE"
	ProductStatusInactive ProductStatus = "INACTIVE"
	ProductStatusArchived ProductStatus = "ARCHIVED"
)

// Valid reports whether s is a known status.
func (s ProductStatus) Valid() bool {
	switch s {
	case ProductStatusActive, ProductStatusInactive, ProductStatusArchived:
		return true
	}
	return false
}

// Product is a catalog entry owning purchasable variants.
type Product struct {
	ID          int64
	Name        string
	Description string
	Brand       string
	Category    string
	Status      ProductStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Variants    []Variant
}

// Variant is a concrete purchasable unit identified by SKU.
type Variant struct {
	ID        int64
	ProductID int64
	SKU       string
	Color     string
	Size      string
	CreatedAt time.Time
	Prices    []Price
	// Stock is nil when the variant has no inventory row.
	Stock *int
}

// Price is one entry of a variant's price history.
type Price struct {
	ID        int64
	VariantID int64
	Amount    decimal.Decimal
	Currency  string
	ValidFrom *time.Time
	ValidTo   *time.Time
	CreatedAt time.Time
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	Search string
	Brand  string
	Status ProductStatus
	Page   shared.PageRequest
}

// ProductInput is the contract for creating or replacing a product.
type ProductInput struct {
	Name        string        `json:"name" validate:"required,max=255"`
	Description string        `json:"description" validate:"max=4000"`
	Brand       string        `json:"brand" validate:"max=100"`
	Category    string        `json:"category" validate:"max=100"`
	Status      ProductStatus `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE ARCHIVED"`
}

// VariantInput is the contract for adding a variant to a product.
type VariantInput struct {
	SKU   string `json:"sku" validate:"required,max=100"`
	Color string `json:"color" validate:"max=50"`
	Size  string `json:"size" validate:"max=20"`
}

// PriceInput is the contract for appending a price to a variant's history.
type PriceInput struct {
	Amount    string     `json:"amount" validate:"required"`
	Currency  string     `json:"currency" validate:"omitempty,len=3"`
	ValidFrom *time.Time `json:"valid_from"`
	ValidTo   *time.Time `json:"valid_to"`
}
