package orders

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

// HeaderIdempotencyKey lets clients retry checkout safely.
const HeaderIdempotencyKey = "Idempotency-Key"

// Handler wires HTTP endpoints for orders, payments and shipments.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs orders handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers /orders, /payments and /shipments.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireIdentity)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.handlePlaceOrder)
			r.Get("/", h.handleListOrders)
			r.Get("/{orderID}", h.handleGetOrder)
			r.With(h.rbac.RequireAny(shared.RoleAdmin)).Put("/{orderID}/status", h.handleUpdateOrderStatus)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", h.handleMarkPaid)
			// GET takes an order id, PUT a payment id.
			r.Get("/{id}", h.handleGetPayment)
			r.With(h.rbac.RequireAny(shared.RoleAdmin)).Put("/{id}/status", h.handleUpdatePaymentStatus)
		})

		r.Route("/shipments", func(r chi.Router) {
			// GET takes an order id, PUT a shipment id.
			r.Get("/{id}", h.handleGetShipment)
			r.Group(func(r chi.Router) {
				r.Use(h.rbac.RequireAny(shared.RoleAdmin))
				r.Post("/", h.handleCreateShipment)
				r.Put("/{id}", h.handleShipmentEvent)
			})
		})
	})
}

type itemResponse struct {
	ID        int64  `json:"id"`
	VariantID int64  `json:"variant_id"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
	Subtotal  string `json:"subtotal"`
}

type paymentResponse struct {
	ID            int64         `json:"id"`
	OrderID       int64         `json:"order_id"`
	Amount        string        `json:"amount"`
	Currency      string        `json:"currency"`
	Status        PaymentStatus `json:"status"`
	Provider      string        `json:"provider,omitempty"`
	TransactionID string        `json:"transaction_id,omitempty"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type shipmentResponse struct {
	ID             int64          `json:"id"`
	OrderID        int64          `json:"order_id"`
	Address        string         `json:"address"`
	City           string         `json:"city"`
	PostalCode     string         `json:"postal_code"`
	Country        string         `json:"country"`
	Phone          string         `json:"phone"`
	TrackingNumber string         `json:"tracking_number,omitempty"`
	Status         ShipmentStatus `json:"status"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type orderResponse struct {
	ID          int64             `json:"id"`
	UserID      int64             `json:"user_id"`
	Status      Status            `json:"status"`
	TotalAmount string            `json:"total_amount"`
	Currency    string            `json:"currency"`
	CreatedAt   time.Time         `json:"created_at"`
	Items       []itemResponse    `json:"items"`
	Payment     *paymentResponse  `json:"payment,omitempty"`
	Shipment    *shipmentResponse `json:"shipment,omitempty"`
}

func toPaymentResponse(p Payment) paymentResponse {
	return paymentResponse{
		ID: p.ID, OrderID: p.OrderID, Amount: p.Amount.StringFixed(2), Currency: p.Currency,
		Status: p.Status, Provider: p.Provider, TransactionID: p.TransactionID, UpdatedAt: p.UpdatedAt,
	}
}

func toShipmentResponse(s Shipment) shipmentResponse {
	return shipmentResponse{
		ID: s.ID, OrderID: s.OrderID, Address: s.Address, City: s.City, PostalCode: s.PostalCode,
		Country: s.Country, Phone: s.Phone, TrackingNumber: s.TrackingNumber, Status: s.Status, UpdatedAt: s.UpdatedAt,
	}
}

func toOrderResponse(o Order) orderResponse {
	out := orderResponse{
		ID: o.ID, UserID: o.UserID, Status: o.Status, TotalAmount: o.TotalAmount.StringFixed(2),
		Currency: o.Currency, CreatedAt: o.CreatedAt, Items: make([]itemResponse, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		out.Items = append(out.Items, itemResponse{
			ID: it.ID, VariantID: it.VariantID, SKU: it.SKU, Quantity: it.Quantity,
			Price: it.Price.StringFixed(2), Subtotal: it.Subtotal().StringFixed(2),
		})
	}
	if o.Payment != nil {
		p := toPaymentResponse(*o.Payment)
		out.Payment = &p
	}
	if o.Shipment != nil {
		s := toShipmentResponse(*o.Shipment)
		out.Shipment = &s
	}
	return out
}

func (h *Handler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	caller, _ := shared.IdentityFromContext(r.Context())
	placed, err := h.service.PlaceOrder(r.Context(), caller, r.Header.Get(HeaderIdempotencyKey))
	if err != nil {
		h.fail(w, "place order", err, slog.Int64("user_id", caller.UserID))
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"order_id": placed.Order.ID,
		"order":    toOrderResponse(placed.Order),
	})
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	caller, _ := shared.IdentityFromContext(r.Context())
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	orders, meta, err := h.service.ListOrders(r.Context(), caller, shared.PageRequest{Page: page, Limit: limit}, Status(q.Get("status")))
	if err != nil {
		h.fail(w, "list orders", err, slog.Int64("user_id", caller.UserID))
		return
	}
	data := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		data = append(data, toOrderResponse(o))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": data, "pagination": meta})
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "orderID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	caller, _ := shared.IdentityFromContext(r.Context())
	order, err := h.service.GetOrder(r.Context(), caller, id)
	if err != nil {
		h.fail(w, "get order", err, slog.Int64("order_id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "orderID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in OrderStatusInput
	if err := httpx.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	caller, _ := shared.IdentityFromContext(r.Context())
	order, err := h.service.UpdateOrderStatus(r.Context(), caller, id, in.Status)
	if err != nil {
		h.fail(w, "update order status", err, slog.Int64("order_id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": order.ID, "status": order.Status})
}

func (h *Handler) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	var in MarkPaidInput
	if err := httpx.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	caller, _ := shared.IdentityFromContext(r.Context())
	payment, err := h.service.MarkPaid(r.Context(), caller, in)
	if err != nil {
		h.fail(w, "mark paid", err, slog.Int64("order_id", in.OrderID))
		return
	}
	h.logger.Info("payment completed", slog.Int64("order_id", payment.OrderID), slog.String("provider", payment.Provider))
	httpx.JSON(w, http.StatusOK, toPaymentResponse(payment))
}

func (h *Handler) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	orderID, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	caller, _ := shared.IdentityFromContext(r.Context())
	payment, err := h.service.GetPayment(r.Context(), caller, orderID)
	if err != nil {
		h.fail(w, "get payment", err, slog.Int64("order_id", orderID))
		return
	}
	httpx.JSON(w, http.StatusOK, toPaymentResponse(payment))
}

func (h *Handler) handleUpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in PaymentStatusInput
	if err := httpx.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	caller, _ := shared.IdentityFromContext(r.Context())
	payment, err := h.service.UpdatePaymentStatus(r.Context(), caller, id, in.Status)
	if err != nil {
		h.fail(w, "update payment status", err, slog.Int64("payment_id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, toPaymentResponse(payment))
}

func (h *Handler) handleGetShipment(w http.ResponseWriter, r *http.Request) {
	orderID, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	caller, _ := shared.IdentityFromContext(r.Context())
	shipment, err := h.service.GetShipment(r.Context(), caller, orderID)
	if err != nil {
		h.fail(w, "get shipment", err, slog.Int64("order_id", orderID))
		return
	}
	httpx.JSON(w, http.StatusOK, toShipmentResponse(shipment))
}

func (h *Handler) handleCreateShipment(w http.ResponseWriter, r *http.Request) {
	var in CreateShipmentInput
	if err := httpx.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	caller, _ := shared.IdentityFromContext(r.Context())
	shipment, err := h.service.CreateShipment(r.Context(), caller, in)
	if err != nil {
		h.fail(w, "create shipment", err, slog.Int64("order_id", in.OrderID))
		return
	}
	httpx.JSON(w, http.StatusCreated, toShipmentResponse(shipment))
}

func (h *Handler) handleShipmentEvent(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in ShipmentEventInput
	if err := httpx.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	caller, _ := shared.IdentityFromContext(r.Context())
	shipment, err := h.service.RecordShipmentEvent(r.Context(), caller, id, in)
	if err != nil {
		h.fail(w, "shipment event", err, slog.Int64("shipment_id", id))
		return
	}
	h.logger.Info("shipment updated", slog.Int64("shipment_id", id), slog.String("status", string(shipment.Status)))
	httpx.JSON(w, http.StatusOK, toShipmentResponse(shipment))
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error, attrs ...any) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError && h.logger != nil {
		h.logger.Error("orders "+op, append(attrs, slog.Any("error", err))...)
	}
	httpx.RespondError(w, err)
}
