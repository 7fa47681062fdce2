package cart

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-commerce/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-commerce/internal/rbac"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

// Handler wires HTTP endpoints for the cart module.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs cart handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers cart routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireIdentity)
		r.Get("/", h.handleGet)
		r.Delete("/", h.handleClear)
		r.Post("/items", h.handleAddItem)
		r.Put("/items/{itemID}", h.handleUpdateItem)
		r.Delete("/items/{itemID}", h.handleRemoveItem)
	})
}

type itemResponse struct {
	ID          int64   `json:"id"`
	VariantID   int64   `json:"variant_id"`
	SKU         string  `json:"sku"`
	ProductName string  `json:"product_name,omitempty"`
	Color       string  `json:"color,omitempty"`
	Size        string  `json:"size,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   *string `json:"unit_price"`
	Currency    string  `json:"currency,omitempty"`
}

type cartResponse struct {
	ID       int64          `json:"id,omitempty"`
	Items    []itemResponse `json:"items"`
	Subtotal string         `json:"subtotal"`
}

func toCartResponse(c Cart) cartResponse {
	out := cartResponse{ID: c.ID, Items: make([]itemResponse, 0, len(c.Items)), Subtotal: c.Subtotal().StringFixed(2)}
	for _, it := range c.Items {
		resp := itemResponse{ID: it.ID, VariantID: it.VariantID, SKU: it.SKU, ProductName: it.ProductName, Color: it.Color, Size: it.Size, Quantity: it.Quantity, Currency: it.Currency}
		if it.UnitPrice != nil {
			price := it.UnitPrice.StringFixed(2)
			resp.UnitPrice = &price
		}
		out.Items = append(out.Items, resp)
	}
	return out
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	caller, _ := shared.IdentityFromContext(r.Context())
	c, err := h.service.Get(r.Context(), caller)
	if err != nil {
		h.fail(w, "get", caller, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	caller, _ := shared.IdentityFromContext(r.Context())
	var in AddItemInput
	if err := httpx.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	it, err := h.service.AddItem(r.Context(), caller, in)
	if err != nil {
		h.fail(w, "add item", caller, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"id": it.ID, "variant_id": it.VariantID, "quantity": it.Quantity})
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	caller, _ := shared.IdentityFromContext(r.Context())
	itemID, err := httpx.URLParamInt64(r, "itemID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in UpdateItemInput
	if err := httpx.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.UpdateItem(r.Context(), caller, itemID, in); err != nil {
		h.fail(w, "update item", caller, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	caller, _ := shared.IdentityFromContext(r.Context())
	itemID, err := httpx.URLParamInt64(r, "itemID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.RemoveItem(r.Context(), caller, itemID); err != nil {
		h.fail(w, "remove item", caller, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	caller, _ := shared.IdentityFromContext(r.Context())
	if err := h.service.Clear(r.Context(), caller); err != nil {
		h.fail(w, "clear", caller, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, caller shared.Identity, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error("cart "+op, slog.Int64("user_id", caller.UserID), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
