package inventory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-commerce/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-commerce/internal/rbac"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

type memoryRepo struct {
	skus     map[int64]string
	levels   map[int64]Level
	getCalls int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		skus:   map[int64]string{1: "TS-001-BL-M", 2: "TS-002-RD-L"},
		levels: map[int64]Level{},
	}
}

func (r *memoryRepo) GetLevel(ctx context.Context, variantID int64) (Level, error) {
	r.getCalls++
	sku, ok := r.skus[variantID]
	if !ok {
		return Level{}, shared.ErrNotFound
	}
	if lvl, ok := r.levels[variantID]; ok {
		return lvl, nil
	}
	return Level{VariantID: variantID, SKU: sku}, nil
}

func (r *memoryRepo) Upsert(ctx context.Context, variantID int64, quantity int, location *string) (Level, error) {
	sku, ok := r.skus[variantID]
	if !ok {
		return Level{}, shared.ErrNotFound
	}
	prev := r.levels[variantID]
	lvl := newLevel(variantID, sku, quantity)
	lvl.Location = prev.Location
	if location != nil {
		lvl.Location = *location
	}
	r.levels[variantID] = lvl
	return lvl, nil
}

func (r *memoryRepo) LowStock(ctx context.Context, threshold, limit int) ([]LowStockItem, error) {
	var out []LowStockItem
	for id, lvl := range r.levels {
		if lvl.Quantity <= threshold {
			out = append(out, LowStockItem{VariantID: id, SKU: lvl.SKU, Quantity: lvl.Quantity})
		}
	}
	return out, nil
}

func intPtr(v int) *int { return &v }
func strPtr(v string) *string { return &v }
func admin() shared.Identity { return shared.Identity{UserID: 1, Role: shared.RoleAdmin} }
func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newCache(t *testing.T) (*cache.JSONCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewJSONCache(client, time.Minute), mr
}

func TestAdjustUpsertsAndKeepsLocation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	lvl, err := svc.Adjust(ctx, admin(), 1, AdjustInput{Quantity: intPtr(5), Location: strPtr("DHK-A1")})
	require.NoError(t, err)
	require.Equal(t, 5, lvl.Quantity)
	require.True(t, lvl.Available)
	require.Equal(t, "DHK-A1", lvl.Location)

	lvl, err = svc.Adjust(ctx, admin(), 1, AdjustInput{Quantity: intPtr(0)})
	require.NoError(t, err)
	require.Equal(t, 0, lvl.Quantity)
	require.False(t, lvl.Available)
	require.Equal(t, "DHK-A1", lvl.Location)
}

type failingCache struct{ err error }

func (c failingCache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	return c.err
}

func (c failingCache) Delete(ctx context.Context, keys ...string) error { return c.err }

type failingAudit struct{ err error }

func (a failingAudit) Record(ctx context.Context, log shared.AuditLog) error { return a.err }

func TestAdjustLogsSideEffectFailures(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	svc := NewService(newMemoryRepo(), failingCache{err: errors.New("redis down")}, failingAudit{err: errors.New("audit down")}).WithLogger(logger)

	lvl, err := svc.Adjust(context.Background(), admin(), 1, AdjustInput{Quantity: intPtr(3)})
	require.NoError(t, err)
	require.Equal(t, 3, lvl.Quantity)

	out := buf.String()
	require.Contains(t, out, "inventory cache invalidation")
	require.Contains(t, out, "redis down")
	require.Contains(t, out, "inventory audit")
	require.Contains(t, out, "audit down")
	require.Contains(t, out, "variant_id=1")
}

func TestAdjustValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	_, err := svc.Adjust(ctx, admin(), 1, AdjustInput{Quantity: intPtr(-1)})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Adjust(ctx, admin(), 1, AdjustInput{})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Adjust(ctx, admin(), 99, AdjustInput{Quantity: intPtr(1)})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGetLevelUntrackedVariantIsUnavailable(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)

	lvl, err := svc.GetLevel(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, 0, lvl.Quantity)
	require.False(t, lvl.Available)
	require.False(t, lvl.Tracked)

	_, err = svc.GetLevel(context.Background(), 404)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGetLevelIsCachedUntilAdjusted(t *testing.T) {
	repo := newMemoryRepo()
	c, mr := newCache(t)
	svc := NewService(repo, c, nil)
	ctx := context.Background()

	_, err := svc.Adjust(ctx, admin(), 1, AdjustInput{Quantity: intPtr(3)})
	require.NoError(t, err)

	lvl, err := svc.GetLevel(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 3, lvl.Quantity)
	lvl, err = svc.GetLevel(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 3, lvl.Quantity)
	require.Equal(t, 1, repo.getCalls)
	require.True(t, mr.Exists(shared.InventoryLevelKey(1)))

	_, err = svc.Adjust(ctx, admin(), 1, AdjustInput{Quantity: intPtr(9)})
	require.NoError(t, err)
	require.False(t, mr.Exists(shared.InventoryLevelKey(1)))

	lvl, err = svc.GetLevel(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 9, lvl.Quantity)
	require.Equal(t, 2, repo.getCalls)
}

func TestHandlerRoutes(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	mw := rbac.Middleware{}
	r := chi.NewRouter()
	r.Use(mw.Authenticate)
	r.Route("/inventory", NewHandler(quietLogger(), svc, mw).MountRoutes)

	put := func(role, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/inventory/1", strings.NewReader(body))
		req.Header.Set(rbac.HeaderUserID, "1")
		req.Header.Set(rbac.HeaderUserRole, role)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr
	}

	require.Equal(t, http.StatusForbidden, put("customer", `{"quantity":5}`).Code)
	require.Equal(t, http.StatusBadRequest, put("admin", `{"quantity":-2}`).Code)
	require.Equal(t, http.StatusBadRequest, put("admin", `{}`).Code)
	require.Equal(t, http.StatusOK, put("admin", `{"quantity":5,"location":"DHK-A1"}`).Code)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/inventory/1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"variant_id":1,"sku":"TS-001-BL-M","quantity":5,"available":true,"warehouse_location":"DHK-A1"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/inventory/404", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}
