package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates order lifecycle states.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// Valid reports whether s is a known order status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// PaymentStatus enumerates payment states.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// ShipmentStatus enumerates shipment states.
type ShipmentStatus string

const (
	ShipmentPending   ShipmentStatus = "PENDING"
	ShipmentShipped   ShipmentStatus = "SHIPPED"
	ShipmentDelivered ShipmentStatus = "DELIVERED"
	ShipmentReturned  ShipmentStatus = "RETURNED"
)

// Valid reports whether s is a known shipment status.
func (s ShipmentStatus) Valid() bool {
	switch s {
	case ShipmentPending, ShipmentShipped, ShipmentDelivered, ShipmentReturned:
		return true
	}
	return false
}

// PlaceholderAddress fills the shipment address columns at checkout until
// CreateShipment supplies the real address.
const PlaceholderAddress = "TBD"

// Order is the header of a placed order.
type Order struct {
	ID          int64
	UserID      int64
	Status      Status
	TotalAmount decimal.Decimal
	Currency    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Items       []Item
	Payment     *Payment
	Shipment    *Shipment
}

// Item is an order line. Price is the unit price captured at checkout.
type Item struct {
	ID        int64
	OrderID   int64
	VariantID int64
	SKU       string
	Quantity  int
	Price     decimal.Decimal
}

// Subtotal returns Price * Quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Payment is the one-to-one payment record of an order.
type Payment struct {
	ID            int64
	OrderID       int64
	Amount        decimal.Decimal
	Currency      string
	Status        PaymentStatus
	Provider      string
	TransactionID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Shipment is the one-to-one shipment record of an order.
type Shipment struct {
	ID             int64
	OrderID        int64
	Address        string
	City           string
	PostalCode     string
	Country        string
	Phone          string
	TrackingNumber string
	Status         ShipmentStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CartLine is a cart item as seen by checkout.
type CartLine struct {
	ItemID    int64
	VariantID int64
	SKU       string
	Quantity  int
}

// Placed is the outcome of a successful checkout.
type Placed struct {
	Order    Order
	Payment  Payment
	Shipment Shipment
}

// ListFilter narrows ListOrders. UserID zero lists every user.
type ListFilter struct {
	UserID int64
	Status Status
	Limit  int
	Offset int
}

// MarkPaidInput is the body of POST /payments.
type MarkPaidInput struct {
	OrderID       int64  `json:"order_id" validate:"required,gt=0"`
	Provider      string `json:"provider" validate:"required,max=64"`
	TransactionID string `json:"transaction_id" validate:"required,max=128"`
}

// CreateShipmentInput is the body of POST /shipments.
type CreateShipmentInput struct {
	OrderID        int64  `json:"order_id" validate:"required,gt=0"`
	Address        string `json:"address" validate:"required,max=255"`
	City           string `json:"city" validate:"required,max=100"`
	PostalCode     string `json:"postal_code" validate:"required,max=20"`
	Country        string `json:"country" validate:"required,max=100"`
	Phone          string `json:"phone" validate:"required,max=32"`
	TrackingNumber string `json:"tracking_number" validate:"omitempty,max=100"`
}

// ShipmentEventInput is the body of PUT /shipments/{id}. At least one field
// must be set.
type ShipmentEventInput struct {
	Status         ShipmentStatus `json:"status" validate:"omitempty,oneof=PENDING SHIPPED DELIVERED RETURNED"`
	TrackingNumber *string        `json:"tracking_number" validate:"omitempty,max=100"`
}

// OrderStatusInput is the body of PUT /orders/{id}/status.
type OrderStatusInput struct {
	Status Status `json:"status" validate:"required,oneof=PENDING PAID SHIPPED DELIVERED CANCELLED"`
}

// PaymentStatusInput is the body of PUT /payments/{id}/status.
type PaymentStatusInput struct {
	Status PaymentStatus `json:"status" validate:"required,oneof=PENDING COMPLETED FAILED REFUNDED"`
}
