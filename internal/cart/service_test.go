package cart

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-commerce/internal/catalog"
	"github.com/odyssey-erp/odyssey-commerce/internal/rbac"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

type memoryRepo struct {
	carts  map[int64]int64 // user -> cart
	items  map[int64]Item
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{carts: map[int64]int64{}, items: map[int64]Item{}}
}

func (r *memoryRepo) GetCart(ctx context.Context, userID int64) (Cart, error) {
	c := Cart{UserID: userID, ID: r.carts[userID]}
	for id := int64(1); id <= r.nextID; id++ {
		if it, ok := r.items[id]; ok && it.CartID == c.ID && c.ID != 0 {
			c.Items = append(c.Items, it)
		}
	}
	return c, nil
}

func (r *memoryRepo) AddItem(ctx context.Context, userID, variantID int64, quantity int) (Item, error) {
	if variantID > 100 {
		return Item{}, shared.ErrNotFound
	}
	cartID, ok := r.carts[userID]
	if !ok {
		r.nextID++
		cartID = r.nextID
		r.carts[userID] = cartID
	}
	for id, it := range r.items {
		if it.CartID == cartID && it.VariantID == variantID {
			it.Quantity += quantity
			r.items[id] = it
			return it, nil
		}
	}
	r.nextID++
	it := Item{ID: r.nextID, CartID: cartID, VariantID: variantID, SKU: "SKU", Quantity: quantity}
	r.items[it.ID] = it
	return it, nil
}

func (r *memoryRepo) owned(userID, itemID int64) (Item, bool) {
	it, ok := r.items[itemID]
	return it, ok && r.carts[userID] == it.CartID
}

func (r *memoryRepo) UpdateItem(ctx context.Context, userID, itemID int64, quantity int) error {
	it, ok := r.owned(userID, itemID)
	if !ok {
		return shared.ErrNotFound
	}
	it.Quantity = quantity
	r.items[itemID] = it
	return nil
}

func (r *memoryRepo) RemoveItem(ctx context.Context, userID, itemID int64) error {
	if _, ok := r.owned(userID, itemID); !ok {
		return shared.ErrNotFound
	}
	delete(r.items, itemID)
	return nil
}

func (r *memoryRepo) Clear(ctx context.Context, userID int64) error {
	for id, it := range r.items {
		if it.CartID == r.carts[userID] {
			delete(r.items, id)
		}
	}
	return nil
}

type fixedPrices map[int64]catalog.Price

func (p fixedPrices) CurrentPrices(ctx context.Context, ids []int64) (map[int64]catalog.Price, error) {
	return p, nil
}

var (
	alice = shared.Identity{UserID: 1, Role: shared.RoleCustomer}
	bob   = shared.Identity{UserID: 2, Role: shared.RoleCustomer}
)

func TestAddItemIncrementsExistingLine(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, fixedPrices{10: {VariantID: 10, Amount: decimal.RequireFromString("1299.00"), Currency: "BDT"}})
	ctx := context.Background()

	first, err := svc.AddItem(ctx, alice, AddItemInput{VariantID: 10})
	require.NoError(t, err)
	require.Equal(t, 1, first.Quantity)
	second, err := svc.AddItem(ctx, alice, AddItemInput{VariantID: 10, Quantity: 2})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 3, second.Quantity)

	c, err := svc.Get(ctx, alice)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	require.Equal(t, "3897.00", c.Subtotal().StringFixed(2))
	require.Equal(t, "BDT", c.Items[0].Currency)
}

func TestCartOwnershipIsEnforced(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	it, err := svc.AddItem(ctx, alice, AddItemInput{VariantID: 10})
	require.NoError(t, err)

	require.ErrorIs(t, svc.UpdateItem(ctx, bob, it.ID, UpdateItemInput{Quantity: 5}), shared.ErrNotFound)
	require.ErrorIs(t, svc.RemoveItem(ctx, bob, it.ID), shared.ErrNotFound)
	require.ErrorIs(t, svc.UpdateItem(ctx, alice, it.ID, UpdateItemInput{Quantity: 0}), shared.ErrValidation)
	require.NoError(t, svc.UpdateItem(ctx, alice, it.ID, UpdateItemInput{Quantity: 5}))
	require.NoError(t, svc.RemoveItem(ctx, alice, it.ID))

	c, err := svc.Get(ctx, alice)
	require.NoError(t, err)
	require.Empty(t, c.Items)
}

func TestGetWithoutCartIsEmpty(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	c, err := svc.Get(context.Background(), bob)
	require.NoError(t, err)
	require.Zero(t, c.ID)
	require.Empty(t, c.Items)
	require.True(t, c.Subtotal().IsZero())

	_, err = svc.Get(context.Background(), shared.Identity{})
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestCartHandler(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	mw := rbac.Middleware{}
	r := chi.NewRouter()
	r.Use(mw.Authenticate)
	r.Route("/cart", NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, mw).MountRoutes)

	do := func(method, path, body, user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if user != "" {
			req.Header.Set(rbac.HeaderUserID, user)
		}
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr
	}

	require.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/cart", "", "").Code)
	require.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/cart/items", `{"quantity":1}`, "1").Code)
	require.Equal(t, http.StatusNotFound, do(http.MethodPost, "/cart/items", `{"variant_id":500}`, "1").Code)
	require.Equal(t, http.StatusCreated, do(http.MethodPost, "/cart/items", `{"variant_id":10,"quantity":2}`, "1").Code)

	rr := do(http.MethodGet, "/cart", "", "1")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"quantity":2`)

	require.Equal(t, http.StatusNoContent, do(http.MethodDelete, "/cart", "", "1").Code)
	rr = do(http.MethodGet, "/cart", "", "1")
	require.Contains(t, rr.Body.String(), `"items":[]`)
}
