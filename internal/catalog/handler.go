package catalog

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-commerce/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-commerce/internal/rbac"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

// Handler wires HTTP endpoints for the catalog module.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs catalog handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.handleListProducts)
		r.Get("/{productID}", h.handleGetProduct)
		r.Get("/{productID}/variants", h.handleListVariants)
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAny(shared.RoleAdmin))
			r.Post("/", h.handleCreateProduct)
			r.Put("/{productID}", h.handleUpdateProduct)
			r.Delete("/{productID}", h.handleDeleteProduct)
			r.Post("/{productID}/variants", h.handleCreateVariant)
		})
	})
	r.With(h.rbac.RequireAny(shared.RoleAdmin)).Post("/variants/{variantID}/prices", h.handleAddPrice)
}

type priceResponse struct {
	ID        int64      `json:"id"`
	Amount    string     `json:"amount"`
	Currency  string     `json:"currency"`
	ValidFrom *time.Time `json:"valid_from,omitempty"`
	ValidTo   *time.Time `json:"valid_to,omitempty"`
}

type variantResponse struct {
	ID           int64           `json:"id"`
	ProductID    int64           `json:"product_id"`
	SKU          string          `json:"sku"`
	Color        string          `json:"color,omitempty"`
	Size         string          `json:"size,omitempty"`
	Stock        int             `json:"stock"`
	CurrentPrice *priceResponse  `json:"current_price,omitempty"`
	Prices       []priceResponse `json:"prices"`
}

type productResponse struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Brand       string            `json:"brand,omitempty"`
	Category    string            `json:"category,omitempty"`
	Status      ProductStatus     `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Variants    []variantResponse `json:"variants"`
}

func toPriceResponse(p Price) priceResponse {
	return priceResponse{ID: p.ID, Amount: p.Amount.StringFixed(2), Currency: p.Currency, ValidFrom: p.ValidFrom, ValidTo: p.ValidTo}
}

func toVariantResponse(v Variant) variantResponse {
	out := variantResponse{ID: v.ID, ProductID: v.ProductID, SKU: v.SKU, Color: v.Color, Size: v.Size, Prices: []priceResponse{}}
	if v.Stock != nil {
		out.Stock = *v.Stock
	}
	for _, p := range v.Prices {
		out.Prices = append(out.Prices, toPriceResponse(p))
	}
	if current, err := ResolvePrice(v.SKU, v.Prices); err == nil {
		resp := toPriceResponse(current)
		out.CurrentPrice = &resp
	}
	return out
}

func toProductResponse(p Product) productResponse {
	out := productResponse{
		ID: p.ID, Name: p.Name, Description: p.Description, Brand: p.Brand, Category: p.Category,
		Status: p.Status, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt, Variants: []variantResponse{},
	}
	for _, v := range p.Variants {
		out.Variants = append(out.Variants, toVariantResponse(v))
	}
	return out
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	products, meta, err := h.service.ListProducts(r.Context(), ProductFilter{
		Search: q.Get("search"),
		Brand:  q.Get("brand"),
		Status: ProductStatus(q.Get("status")),
		Page:   shared.PageRequest{Page: page, Limit: limit},
	})
	if err != nil {
		h.fail(w, "list products", err)
		return
	}
	data := make([]productResponse, 0, len(products))
	for _, p := range products {
		data = append(data, toProductResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": data, "pagination": meta})
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.fail(w, "get product", err, slog.Int64("product_id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, toProductResponse(p))
}

func (h *Handler) handleListVariants(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	variants, err := h.service.ListVariants(r.Context(), id)
	if err != nil {
		h.fail(w, "list variants", err, slog.Int64("product_id", id))
		return
	}
	out := make([]variantResponse, 0, len(variants))
	for _, v := range variants {
		out = append(out, toVariantResponse(v))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in ProductInput
	if err := httpx.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.IdentityFromContext(r.Context())
	p, err := h.service.CreateProduct(r.Context(), actor, in)
	if err != nil {
		h.fail(w, "create product", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toProductResponse(p))
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in ProductInput
	if err := httpx.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.IdentityFromContext(r.Context())
	p, err := h.service.UpdateProduct(r.Context(), actor, id, in)
	if err != nil {
		h.fail(w, "update product", err, slog.Int64("product_id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, toProductResponse(p))
}

func (h *Handler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.IdentityFromContext(r.Context())
	if err := h.service.DeleteProduct(r.Context(), actor, id); err != nil {
		h.fail(w, "delete product", err, slog.Int64("product_id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCreateVariant(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in VariantInput
	if err := httpx.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.IdentityFromContext(r.Context())
	v, err := h.service.CreateVariant(r.Context(), actor, id, in)
	if err != nil {
		h.fail(w, "create variant", err, slog.Int64("product_id", id))
		return
	}
	httpx.JSON(w, http.StatusCreated, toVariantResponse(v))
}

func (h *Handler) handleAddPrice(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "variantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in PriceInput
	if err := httpx.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.IdentityFromContext(r.Context())
	p, err := h.service.AddPrice(r.Context(), actor, id, in)
	if err != nil {
		h.fail(w, "add price", err, slog.Int64("variant_id", id))
		return
	}
	httpx.JSON(w, http.StatusCreated, toPriceResponse(p))
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error, attrs ...any) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError && h.logger != nil {
		h.logger.Error("catalog "+op, append(attrs, slog.Any("error", err))...)
	}
	httpx.RespondError(w, err)
}
