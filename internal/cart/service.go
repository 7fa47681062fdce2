package cart

import (
	"context"

	"github.com/odyssey-erp/odyssey-commerce/internal/catalog"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	GetCart(ctx context.Context, userID int64) (Cart, error)
	AddItem(ctx context.Context, userID, variantID int64, quantity int) (Item, error)
	UpdateItem(ctx context.Context, userID, itemID int64, quantity int) error
	RemoveItem(ctx context.Context, userID, itemID int64) error
	Clear(ctx context.Context, userID int64) error
}

// PricePort resolves the current price of variants for cart display.
type PricePort interface {
	CurrentPrices(ctx context.Context, variantIDs []int64) (map[int64]catalog.Price, error)
}

// Service coordinates cart operations for the calling user.
type Service struct {
	repo   RepositoryPort
	prices PricePort
}

// NewService builds Service. prices may be nil, leaving lines unpriced.
func NewService(repo RepositoryPort, prices PricePort) *Service {
	return &Service{repo: repo, prices: prices}
}

// Get returns the caller's cart with current prices.
func (s *Service) Get(ctx context.Context, caller shared.Identity) (Cart, error) {
	if caller.UserID <= 0 {
		return Cart{}, shared.ErrUnauthorized
	}
	c, err := s.repo.GetCart(ctx, caller.UserID)
	if err != nil {
		return Cart{}, err
	}
	if s.prices == nil || len(c.Items) == 0 {
		return c, nil
	}
	ids := make([]int64, 0, len(c.Items))
	for _, it := range c.Items {
		ids = append(ids, it.VariantID)
	}
	current, err := s.prices.CurrentPrices(ctx, ids)
	if err != nil {
		return Cart{}, err
	}
	for i := range c.Items {
		if p, ok := current[c.Items[i].VariantID]; ok {
			amount := p.Amount
			c.Items[i].UnitPrice = &amount
			c.Items[i].Currency = p.Currency
		}
	}
	return c, nil
}

// AddItem adds units of a variant; repeated adds increment the same line.
func (s *Service) AddItem(ctx context.Context, caller shared.Identity, in AddItemInput) (Item, error) {
	if caller.UserID <= 0 {
		return Item{}, shared.ErrUnauthorized
	}
	if in.VariantID <= 0 {
		return Item{}, shared.NewValidationError("variant_id", "is required")
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if in.Quantity < 0 {
		return Item{}, shared.NewValidationError("quantity", "must be at least 1")
	}
	return s.repo.AddItem(ctx, caller.UserID, in.VariantID, in.Quantity)
}

// UpdateItem replaces the quantity of one of the caller's lines.
func (s *Service) UpdateItem(ctx context.Context, caller shared.Identity, itemID int64, in UpdateItemInput) error {
	if caller.UserID <= 0 {
		return shared.ErrUnauthorized
	}
	if in.Quantity < 1 {
		return shared.NewValidationError("quantity", "must be at least 1")
	}
	return s.repo.UpdateItem(ctx, caller.UserID, itemID, in.Quantity)
}

// RemoveItem deletes one of the caller's lines.
func (s *Service) RemoveItem(ctx context.Context, caller shared.Identity, itemID int64) error {
	if caller.UserID <= 0 {
		return shared.ErrUnauthorized
	}
	return s.repo.RemoveItem(ctx, caller.UserID, itemID)
}

// Clear empties the caller's cart.
func (s *Service) Clear(ctx context.Context, caller shared.Identity) error {
	if caller.UserID <= 0 {
		return shared.ErrUnauthorized
	}
	return s.repo.Clear(ctx, caller.UserID)
}
