package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, int, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	CreateProduct(ctx context.Context, in ProductInput) (Product, error)
	UpdateProduct(ctx context.Context, id int64, in ProductInput) (Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	ListVariants(ctx context.Context, productID int64) ([]Variant, error)
	CreateVariant(ctx context.Context, productID int64, in VariantInput) (Variant, error)
	InsertPrice(ctx context.Context, p Price) (Price, error)
	PricesForVariants(ctx context.Context, variantIDs []int64) (map[int64][]Price, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	DefaultCurrency string
}

// Service coordinates catalog reads and admin writes.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	currency string
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, cfg ServiceConfig) *Service {
	currency := strings.ToUpper(strings.TrimSpace(cfg.DefaultCurrency))
	if currency == "" {
		currency = "BDT"
	}
	return &Service{repo: repo, audit: audit, currency: currency}
}

// ListProducts returns a page of products and its pagination metadata.
func (s *Service) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, shared.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, shared.Pagination{}, shared.NewValidationError("status", "unknown status")
	}
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Brand = strings.TrimSpace(filter.Brand)
	filter.Page = filter.Page.Normalize()
	products, total, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return products, shared.NewPagination(filter.Page, total), nil
}

// GetProduct returns a product with variants.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// CreateProduct validates and inserts a product.
func (s *Service) CreateProduct(ctx context.Context, actor shared.Identity, in ProductInput) (Product, error) {
	in, err := normalizeProduct(in)
	if err != nil {
		return Product{}, err
	}
	p, err := s.repo.CreateProduct(ctx, in)
	if err != nil {
		return Product{}, err
	}
	s.record(ctx, actor, "product.created", p.ID, map[string]any{"name": p.Name})
	return p, nil
}

// UpdateProduct validates and replaces a product.
func (s *Service) UpdateProduct(ctx context.Context, actor shared.Identity, id int64, in ProductInput) (Product, error) {
	in, err := normalizeProduct(in)
	if err != nil {
		return Product{}, err
	}
	p, err := s.repo.UpdateProduct(ctx, id, in)
	if err != nil {
		return Product{}, err
	}
	s.record(ctx, actor, "product.updated", p.ID, map[string]any{"status": string(p.Status)})
	return p, nil
}

// DeleteProduct removes a product.
func (s *Service) DeleteProduct(ctx context.Context, actor shared.Identity, id int64) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "product.deleted", id, nil)
	return nil
}

// ListVariants returns variants of a product.
func (s *Service) ListVariants(ctx context.Context, productID int64) ([]Variant, error) {
	return s.repo.ListVariants(ctx, productID)
}

// CreateVariant adds a variant; SKUs are unique across the catalog.
func (s *Service) CreateVariant(ctx context.Context, actor shared.Identity, productID int64, in VariantInput) (Variant, error) {
	in.SKU = strings.ToUpper(strings.TrimSpace(in.SKU))
	if in.SKU == "" {
		return Variant{}, shared.NewValidationError("sku", "is required")
	}
	v, err := s.repo.CreateVariant(ctx, productID, in)
	if err != nil {
		return Variant{}, err
	}
	s.record(ctx, actor, "variant.created", productID, map[string]any{"variant_id": v.ID, "sku": v.SKU})
	return v, nil
}

// AddPrice appends a price to the variant's history. Existing order items
// keep their captured price.
func (s *Service) AddPrice(ctx context.Context, actor shared.Identity, variantID int64, in PriceInput) (Price, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(in.Amount))
	if err != nil {
		return Price{}, shared.NewValidationError("amount", "must be a decimal number")
	}
	if !amount.IsPositive() {
		return Price{}, shared.NewValidationError("amount", "must be greater than 0")
	}
	if amount.Exponent() < -2 {
		return Price{}, shared.NewValidationError("amount", "at most 2 decimal places")
	}
	if in.ValidFrom != nil && in.ValidTo != nil && !in.ValidTo.After(*in.ValidFrom) {
		return Price{}, shared.NewValidationError("valid_to", "must be after valid_from")
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.currency
	}
	p, err := s.repo.InsertPrice(ctx, Price{
		VariantID: variantID,
		Amount:    amount,
		Currency:  currency,
		ValidFrom: in.ValidFrom,
		ValidTo:   in.ValidTo,
	})
	if err != nil {
		return Price{}, err
	}
	s.record(ctx, actor, "price.added", variantID, map[string]any{"price_id": p.ID, "amount": p.Amount.StringFixed(2), "currency": p.Currency})
	return p, nil
}

// CurrentPrices resolves the current price of each variant. Variants without
// a price are absent from the result.
func (s *Service) CurrentPrices(ctx context.Context, variantIDs []int64) (map[int64]Price, error) {
	histories, err := s.repo.PricesForVariants(ctx, variantIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]Price, len(histories))
	for id, history := range histories {
		p, err := ResolvePrice(strconv.FormatInt(id, 10), history)
		if err != nil {
			continue
		}
		out[id] = p
	}
	return out, nil
}

func (s *Service) record(ctx context.Context, actor shared.Identity, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   shared.AuditEntityProduct,
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
}

func normalizeProduct(in ProductInput) (ProductInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, shared.NewValidationError("name", "is required")
	}
	if in.Status == "" {
		in.Status = ProductStatusActive
	}
	if !in.Status.Valid() {
		return in, shared.NewValidationError("status", fmt.Sprintf("unknown status %q", in.Status))
	}
	return in, nil
}
