package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-commerce/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-commerce/internal/rbac"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{variantID}", h.handleGetLevel)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.RoleAdmin))
		r.Put("/{variantID}", h.handleAdjust)
	})
}

type levelResponse struct {
	VariantID int64  `json:"variant_id"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	Available bool   `json:"available"`
	Location  string `json:"warehouse_location,omitempty"`
}

func toLevelResponse(l Level) levelResponse {
	return levelResponse{VariantID: l.VariantID, SKU: l.SKU, Quantity: l.Quantity, Available: l.Available, Location: l.Location}
}

func (h *Handler) handleGetLevel(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "variantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lvl, err := h.service.GetLevel(r.Context(), id)
	if err != nil {
		if httpx.StatusFor(err) >= http.StatusInternalServerError {
			h.logger.Error("inventory get level", slog.Int64("variant_id", id), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toLevelResponse(lvl))
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "variantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in AdjustInput
	if err := httpx.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.IdentityFromContext(r.Context())
	lvl, err := h.service.Adjust(r.Context(), actor, id, in)
	if err != nil {
		if httpx.StatusFor(err) >= http.StatusInternalServerError {
			h.logger.Error("inventory adjust", slog.Int64("variant_id", id), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("inventory adjusted", slog.Int64("variant_id", id), slog.Int("quantity", lvl.Quantity), slog.Int64("actor_id", actor.UserID))
	httpx.JSON(w, http.StatusOK, toLevelResponse(lvl))
}
