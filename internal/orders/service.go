package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-commerce/internal/catalog"
	"github.com/odyssey-erp/odyssey-commerce/internal/inventory"
	"github.com/odyssey-erp/odyssey-commerce/internal/observability"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

const idempotencyModule = "checkout"

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CountCartItems(ctx context.Context, userID int64) (int, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]Order, int, error)
	GetOrder(ctx context.Context, id int64) (Order, error)
}

// TxRepository exposes the statements executed inside one transaction.
type TxRepository interface {
	LockCart(ctx context.Context, userID int64) (int64, error)
	ListCartLines(ctx context.Context, cartID int64) ([]CartLine, error)
	LockInventory(ctx context.Context, variantIDs []int64) (map[int64]inventory.Level, error)
	ListPrices(ctx context.Context, variantIDs []int64) (map[int64][]catalog.Price, error)
	DecrementInventory(ctx context.Context, variantID int64, quantity int) (bool, error)
	InsertOrder(ctx context.Context, o Order) (Order, error)
	InsertItems(ctx context.Context, orderID int64, items []Item) ([]Item, error)
	ClearCart(ctx context.Context, cartID int64) error
	InsertPayment(ctx context.Context, p Payment) (Payment, error)
	InsertShipment(ctx context.Context, s Shipment) (Shipment, error)

	GetOrderForUpdate(ctx context.Context, id int64) (Order, error)
	SetOrderStatus(ctx context.Context, id int64, status Status) error
	GetPaymentForUpdate(ctx context.Context, id int64) (Payment, error)
	GetPaymentByOrderForUpdate(ctx context.Context, orderID int64) (Payment, error)
	UpdatePayment(ctx context.Context, p Payment) (Payment, error)
	GetShipmentForUpdate(ctx context.Context, id int64) (Shipment, error)
	GetShipmentByOrderForUpdate(ctx context.Context, orderID int64) (Shipment, error)
	UpdateShipment(ctx context.Context, s Shipment) (Shipment, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort claims and releases request keys.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Notifier is told about committed orders.
type Notifier interface {
	OrderPlaced(ctx context.Context, order Order) error
}

// StockInvalidator drops cached stock levels.
type StockInvalidator interface {
	Invalidate(ctx context.Context, variantIDs ...int64) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// CheckoutTimeout bounds the whole PlaceOrder transaction.
	CheckoutTimeout time.Duration
	// DefaultCurrency is used when prices carry none.
	DefaultCurrency string
}

// Hooks are post-commit collaborators. Every field is optional.
type Hooks struct {
	Notifier Notifier
	Stock    StockInvalidator
	Metrics  *observability.CheckoutMetrics
	Logger   *slog.Logger
}

// Service implements checkout and the order, payment and shipment records.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency IdempotencyPort
	cfg         ServiceConfig
	hooks       Hooks
	now         func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort, cfg ServiceConfig, hooks Hooks) *Service {
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "BDT"
	}
	if hooks.Logger == nil {
		hooks.Logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, idempotency: idem, cfg: cfg, hooks: hooks, now: time.Now}
}

// PlaceOrder converts the caller's cart into an order with its payment and
// shipment placeholders. Either everything commits or nothing does.
func (s *Service) PlaceOrder(ctx context.Context, caller shared.Identity, idempotencyKey string) (Placed, error) {
	start := s.now()
	placed, err := s.placeOrder(ctx, caller, idempotencyKey)
	s.hooks.Metrics.ObserveCheckout(checkoutOutcome(err), s.now().Sub(start))
	return placed, err
}

func (s *Service) placeOrder(ctx context.Context, caller shared.Identity, idempotencyKey string) (Placed, error) {
	if caller.UserID == 0 {
		return Placed{}, shared.ErrUnauthorized
	}
	count, err := s.repo.CountCartItems(ctx, caller.UserID)
	if err != nil {
		return Placed{}, err
	}
	if count == 0 {
		return Placed{}, shared.ErrEmptyCart
	}

	if idempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idempotencyKey, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Placed{}, fmt.Errorf("orders: idempotency key %q already used: %w", idempotencyKey, shared.ErrConflict)
			}
			return Placed{}, err
		}
	}

	txCtx := ctx
	if s.cfg.CheckoutTimeout > 0 {
		var cancel context.CancelFunc
		txCtx, cancel = context.WithTimeout(ctx, s.cfg.CheckoutTimeout)
		defer cancel()
	}

	var placed Placed
	err = s.repo.WithTx(txCtx, func(ctx context.Context, tx TxRepository) error {
		var err error
		placed, err = s.checkout(ctx, tx, caller.UserID)
		return err
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, shared.ErrTransient) {
			err = &shared.TransientError{Op: "orders: place order", Err: err}
		}
		if idempotencyKey != "" && s.idempotency != nil {
			if delErr := s.idempotency.Delete(context.WithoutCancel(ctx), idempotencyKey, idempotencyModule); delErr != nil {
				s.hooks.Logger.Warn("release idempotency key", slog.String("key", idempotencyKey), slog.Any("error", delErr))
			}
		}
		return Placed{}, err
	}

	s.afterCheckout(ctx, caller, placed)
	return placed, nil
}

// checkout runs inside the transaction. The cart row is locked first, then
// the inventory rows in variant order, so concurrent checkouts touching the
// same variants queue instead of deadlocking.
func (s *Service) checkout(ctx context.Context, tx TxRepository, userID int64) (Placed, error) {
	cartID, err := tx.LockCart(ctx, userID)
	if errors.Is(err, shared.ErrNotFound) {
		return Placed{}, shared.ErrEmptyCart
	}
	if err != nil {
		return Placed{}, err
	}
	lines, err := tx.ListCartLines(ctx, cartID)
	if err != nil {
		return Placed{}, err
	}
	if len(lines) == 0 {
		return Placed{}, shared.ErrEmptyCart
	}

	variantIDs := distinctVariants(lines)
	levels, err := tx.LockInventory(ctx, variantIDs)
	if err != nil {
		return Placed{}, err
	}
	history, err := tx.ListPrices(ctx, variantIDs)
	if err != nil {
		return Placed{}, err
	}

	total := decimal.Zero
	currency := ""
	items := make([]Item, 0, len(lines))
	for _, line := range lines {
		var level *inventory.Level
		if l, ok := levels[line.VariantID]; ok {
			level = &l
		}
		if err := inventory.CheckStock(line.SKU, line.Quantity, level); err != nil {
			return Placed{}, err
		}
		price, err := catalog.ResolvePrice(line.SKU, history[line.VariantID])
		if err != nil {
			return Placed{}, err
		}
		lineCurrency := price.Currency
		if lineCurrency == "" {
			lineCurrency = s.cfg.DefaultCurrency
		}
		if currency == "" {
			currency = lineCurrency
		} else if lineCurrency != currency {
			return Placed{}, &shared.PricingError{SKU: line.SKU, Reason: fmt.Sprintf("currency %s differs from order currency %s", lineCurrency, currency)}
		}
		item := Item{VariantID: line.VariantID, SKU: line.SKU, Quantity: line.Quantity, Price: price.Amount.Round(2)}
		total = total.Add(item.Subtotal())
		items = append(items, item)
	}

	for _, item := range items {
		ok, err := tx.DecrementInventory(ctx, item.VariantID, item.Quantity)
		if err != nil {
			return Placed{}, err
		}
		if !ok {
			return Placed{}, &shared.InsufficientStockError{SKU: item.SKU, Requested: item.Quantity, Available: levels[item.VariantID].Quantity}
		}
	}

	order, err := tx.InsertOrder(ctx, Order{UserID: userID, Status: StatusPending, TotalAmount: total.Round(2), Currency: currency})
	if err != nil {
		return Placed{}, err
	}
	order.Items, err = tx.InsertItems(ctx, order.ID, items)
	if err != nil {
		return Placed{}, err
	}
	if err := tx.ClearCart(ctx, cartID); err != nil {
		return Placed{}, err
	}
	payment, err := tx.InsertPayment(ctx, Payment{OrderID: order.ID, Amount: order.TotalAmount, Currency: currency, Status: PaymentPending})
	if err != nil {
		return Placed{}, err
	}
	shipment, err := tx.InsertShipment(ctx, Shipment{
		OrderID:    order.ID,
		Address:    PlaceholderAddress,
		City:       PlaceholderAddress,
		PostalCode: PlaceholderAddress,
		Country:    PlaceholderAddress,
		Phone:      PlaceholderAddress,
		Status:     ShipmentPending,
	})
	if err != nil {
		return Placed{}, err
	}
	order.Payment = &payment
	order.Shipment = &shipment
	return Placed{Order: order, Payment: payment, Shipment: shipment}, nil
}

func (s *Service) afterCheckout(ctx context.Context, caller shared.Identity, placed Placed) {
	logger := s.hooks.Logger.With(slog.Int64("order_id", placed.Order.ID), slog.Int64("user_id", caller.UserID))
	variantIDs := make([]int64, 0, len(placed.Order.Items))
	for _, it := range placed.Order.Items {
		variantIDs = append(variantIDs, it.VariantID)
	}
	if s.hooks.Stock != nil {
		if err := s.hooks.Stock.Invalidate(ctx, variantIDs...); err != nil {
			logger.Warn("invalidate stock cache", slog.Any("error", err))
		}
	}
	if s.hooks.Notifier != nil {
		if err := s.hooks.Notifier.OrderPlaced(ctx, placed.Order); err != nil {
			logger.Warn("enqueue order placed", slog.Any("error", err))
		}
	}
	s.recordAudit(ctx, caller, "order.placed", shared.AuditEntityOrder, placed.Order.ID, map[string]any{
		"total":    placed.Order.TotalAmount.StringFixed(2),
		"currency": placed.Order.Currency,
		"items":    len(placed.Order.Items),
	})
	logger.Info("order placed", slog.String("total", placed.Order.TotalAmount.StringFixed(2)), slog.Int("items", len(placed.Order.Items)))
}

// ListOrders returns the caller's orders newest first. Admins see every order.
func (s *Service) ListOrders(ctx context.Context, caller shared.Identity, page shared.PageRequest, status Status) ([]Order, shared.Pagination, error) {
	if caller.UserID == 0 {
		return nil, shared.Pagination{}, shared.ErrUnauthorized
	}
	if status != "" && !status.Valid() {
		return nil, shared.Pagination{}, shared.NewValidationError("status", "is not a valid order status")
	}
	page = page.Normalize()
	filter := ListFilter{Status: status, Limit: page.Limit, Offset: page.Offset()}
	if !caller.IsAdmin() {
		filter.UserID = caller.UserID
	}
	orders, total, err := s.repo.ListOrders(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return orders, shared.NewPagination(page, total), nil
}

// GetOrder returns one order with items, payment and shipment.
func (s *Service) GetOrder(ctx context.Context, caller shared.Identity, id int64) (Order, error) {
	if caller.UserID == 0 {
		return Order{}, shared.ErrUnauthorized
	}
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !caller.CanAccess(order.UserID) {
		return Order{}, shared.ErrForbidden
	}
	return order, nil
}

// GetPayment returns the payment of an order.
func (s *Service) GetPayment(ctx context.Context, caller shared.Identity, orderID int64) (Payment, error) {
	order, err := s.GetOrder(ctx, caller, orderID)
	if err != nil {
		return Payment{}, err
	}
	if order.Payment == nil {
		return Payment{}, fmt.Errorf("orders: payment for order %d: %w", orderID, shared.ErrNotFound)
	}
	return *order.Payment, nil
}

// GetShipment returns the shipment of an order.
func (s *Service) GetShipment(ctx context.Context, caller shared.Identity, orderID int64) (Shipment, error) {
	order, err := s.GetOrder(ctx, caller, orderID)
	if err != nil {
		return Shipment{}, err
	}
	if order.Shipment == nil {
		return Shipment{}, fmt.Errorf("orders: shipment for order %d: %w", orderID, shared.ErrNotFound)
	}
	return *order.Shipment, nil
}

// UpdateOrderStatus overwrites the order status. No transition table applies.
func (s *Service) UpdateOrderStatus(ctx context.Context, caller shared.Identity, id int64, status Status) (Order, error) {
	if !caller.IsAdmin() {
		return Order{}, shared.ErrForbidden
	}
	if !status.Valid() {
		return Order{}, shared.NewValidationError("status", "is not a valid order status")
	}
	var updated Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.SetOrderStatus(ctx, id, status); err != nil {
			return err
		}
		order.Status = status
		updated = order
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, caller, "order.status_updated", shared.AuditEntityOrder, id, map[string]any{"status": string(status)})
	return updated, nil
}

// MarkPaid completes the order's payment and moves the order to PAID. The
// prior payment status is not checked; a missing payment row is created.
func (s *Service) MarkPaid(ctx context.Context, caller shared.Identity, in MarkPaidInput) (Payment, error) {
	if caller.UserID == 0 {
		return Payment{}, shared.ErrUnauthorized
	}
	if in.OrderID <= 0 {
		return Payment{}, shared.NewValidationError("order_id", "is required")
	}
	if in.Provider == "" {
		return Payment{}, shared.NewValidationError("provider", "is required")
	}
	if in.TransactionID == "" {
		return Payment{}, shared.NewValidationError("transaction_id", "is required")
	}

	var paid Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if !caller.CanAccess(order.UserID) {
			return shared.ErrForbidden
		}
		payment, err := tx.GetPaymentByOrderForUpdate(ctx, order.ID)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			paid, err = tx.InsertPayment(ctx, Payment{
				OrderID:       order.ID,
				Amount:        order.TotalAmount,
				Currency:      order.Currency,
				Status:        PaymentCompleted,
				Provider:      in.Provider,
				TransactionID: in.TransactionID,
			})
		case err != nil:
			return err
		default:
			payment.Status = PaymentCompleted
			payment.Provider = in.Provider
			payment.TransactionID = in.TransactionID
			paid, err = tx.UpdatePayment(ctx, payment)
		}
		if err != nil {
			return err
		}
		return tx.SetOrderStatus(ctx, order.ID, StatusPaid)
	})
	if err != nil {
		return Payment{}, err
	}
	s.recordAudit(ctx, caller, "payment.completed", shared.AuditEntityPayment, paid.ID, map[string]any{
		"order_id":       paid.OrderID,
		"provider":       paid.Provider,
		"transaction_id": paid.TransactionID,
		"amount":         paid.Amount.StringFixed(2),
	})
	return paid, nil
}

// UpdatePaymentStatus overwrites a payment status without touching the order.
func (s *Service) UpdatePaymentStatus(ctx context.Context, caller shared.Identity, paymentID int64, status PaymentStatus) (Payment, error) {
	if !caller.IsAdmin() {
		return Payment{}, shared.ErrForbidden
	}
	if !status.Valid() {
		return Payment{}, shared.NewValidationError("status", "is not a valid payment status")
	}
	var updated Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		payment, err := tx.GetPaymentForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		payment.Status = status
		updated, err = tx.UpdatePayment(ctx, payment)
		return err
	})
	if err != nil {
		return Payment{}, err
	}
	s.recordAudit(ctx, caller, "payment.status_updated", shared.AuditEntityPayment, paymentID, map[string]any{"status": string(status)})
	return updated, nil
}

// CreateShipment stores the shipping address of an order, replacing the
// checkout placeholder. The shipment goes back to PENDING.
func (s *Service) CreateShipment(ctx context.Context, caller shared.Identity, in CreateShipmentInput) (Shipment, error) {
	if !caller.IsAdmin() {
		return Shipment{}, shared.ErrForbidden
	}
	if in.OrderID <= 0 {
		return Shipment{}, shared.NewValidationError("order_id", "is required")
	}
	var saved Shipment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetOrderForUpdate(ctx, in.OrderID); err != nil {
			return err
		}
		shipment, err := tx.GetShipmentByOrderForUpdate(ctx, in.OrderID)
		missing := errors.Is(err, shared.ErrNotFound)
		if err != nil && !missing {
			return err
		}
		shipment.OrderID = in.OrderID
		shipment.Address = in.Address
		shipment.City = in.City
		shipment.PostalCode = in.PostalCode
		shipment.Country = in.Country
		shipment.Phone = in.Phone
		shipment.TrackingNumber = in.TrackingNumber
		shipment.Status = ShipmentPending
		if missing {
			saved, err = tx.InsertShipment(ctx, shipment)
		} else {
			saved, err = tx.UpdateShipment(ctx, shipment)
		}
		return err
	})
	if err != nil {
		return Shipment{}, err
	}
	s.recordAudit(ctx, caller, "shipment.created", shared.AuditEntityShipment, saved.ID, map[string]any{"order_id": saved.OrderID})
	return saved, nil
}

// RecordShipmentEvent updates shipment status and tracking number. SHIPPED
// and DELIVERED are mirrored onto the parent order.
func (s *Service) RecordShipmentEvent(ctx context.Context, caller shared.Identity, shipmentID int64, in ShipmentEventInput) (Shipment, error) {
	if !caller.IsAdmin() {
		return Shipment{}, shared.ErrForbidden
	}
	if in.Status == "" && in.TrackingNumber == nil {
		return Shipment{}, shared.NewValidationError("status", "status or tracking_number is required")
	}
	if in.Status != "" && !in.Status.Valid() {
		return Shipment{}, shared.NewValidationError("status", "is not a valid shipment status")
	}
	var updated Shipment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		shipment, err := tx.GetShipmentForUpdate(ctx, shipmentID)
		if err != nil {
			return err
		}
		if in.Status != "" {
			shipment.Status = in.Status
		}
		if in.TrackingNumber != nil {
			shipment.TrackingNumber = *in.TrackingNumber
		}
		updated, err = tx.UpdateShipment(ctx, shipment)
		if err != nil {
			return err
		}
		switch in.Status {
		case ShipmentShipped:
			return tx.SetOrderStatus(ctx, shipment.OrderID, StatusShipped)
		case ShipmentDelivered:
			return tx.SetOrderStatus(ctx, shipment.OrderID, StatusDelivered)
		}
		return nil
	})
	if err != nil {
		return Shipment{}, err
	}
	s.recordAudit(ctx, caller, "shipment.event", shared.AuditEntityShipment, shipmentID, map[string]any{
		"order_id":        updated.OrderID,
		"status":          string(updated.Status),
		"tracking_number": updated.TrackingNumber,
	})
	return updated, nil
}

func (s *Service) recordAudit(ctx context.Context, caller shared.Identity, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  caller.UserID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
	if err != nil {
		s.hooks.Logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}

func distinctVariants(lines []CartLine) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.VariantID]; ok {
			continue
		}
		seen[l.VariantID] = struct{}{}
		ids = append(ids, l.VariantID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func checkoutOutcome(err error) string {
	switch {
	case err == nil:
		return observability.OutcomePlaced
	case errors.Is(err, shared.ErrEmptyCart):
		return observability.OutcomeEmptyCart
	case errors.Is(err, shared.ErrInsufficientStock):
		return observability.OutcomeInsufficientStock
	case errors.Is(err, shared.ErrPricing):
		return observability.OutcomePricing
	case errors.Is(err, shared.ErrTransient):
		return observability.OutcomeTransient
	case errors.Is(err, shared.ErrUnauthorized), errors.Is(err, shared.ErrConflict), errors.Is(err, shared.ErrValidation):
		return observability.OutcomeRejected
	default:
		return observability.OutcomeError
	}
}
