package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-commerce/internal/platform/db"
)

// Repository persists orders, payments and shipments in PostgreSQL.
type Repository struct {
	pool             *pgxpool.Pool
	statementTimeout time.Duration
	lockTimeout      time.Duration
}

// RepositoryConfig tunes transactions opened by the repository.
type RepositoryConfig struct {
	// StatementTimeout is applied with SET LOCAL inside every transaction.
	StatementTimeout time.Duration
	// LockTimeout bounds each wait for a row lock. A checkout stuck behind
	// a locked cart or inventory row fails fast as a transient error.
	LockTimeout time.Duration
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, cfg RepositoryConfig) *Repository {
	return &Repository{pool: pool, statementTimeout: cfg.StatementTimeout, lockTimeout: cfg.LockTimeout}
}

// WithTx executes the callback inside a read-committed transaction. Row locks
// taken by the callback plus the guarded inventory decrement provide the
// isolation checkout needs.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, r.txOptions(), func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (r *Repository) txOptions() db.TxOptions {
	return db.TxOptions{
		IsoLevel:         pgx.ReadCommitted,
		StatementTimeout: r.statementTimeout,
		LockTimeout:      r.lockTimeout,
	}
}

// CountCartItems counts the lines in the user's cart.
func (r *Repository) CountCartItems(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM cart_items ci
		JOIN carts c ON c.id = ci.cart_id
		WHERE c.user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, db.Classify("orders: count cart items", err)
	}
	return n, nil
}

const orderColumns = `o.id, o.user_id, o.status, o.total_amount::text, o.currency, o.created_at, o.updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner, extra ...any) (Order, error) {
	var (
		o     Order
		total string
	)
	dest := append([]any{&o.ID, &o.UserID, &o.Status, &total, &o.Currency, &o.CreatedAt, &o.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return Order{}, err
	}
	amount, err := decimal.NewFromString(total)
	if err != nil {
		return Order{}, fmt.Errorf("orders: order %d total %q: %w", o.ID, total, err)
	}
	o.TotalAmount = amount
	return o, nil
}

// ListOrders returns a page of orders newest first plus the total count.
func (r *Repository) ListOrders(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`, COUNT(*) OVER()
		FROM orders o
		WHERE ($1::bigint = 0 OR o.user_id = $1)
		  AND ($2::text = '' OR o.status = $2)
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $3 OFFSET $4`, filter.UserID, string(filter.Status), filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, db.Classify("orders: list", err)
	}
	total := 0
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Order, error) {
		return scanOrder(row, &total)
	})
	if err != nil {
		return nil, 0, db.Classify("orders: list", err)
	}
	if err := r.attach(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// GetOrder loads one order with its items, payment and shipment.
func (r *Repository) GetOrder(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, id))
	if err != nil {
		return Order{}, db.Classify(fmt.Sprintf("orders: get %d", id), err)
	}
	list := []Order{o}
	if err := r.attach(ctx, list); err != nil {
		return Order{}, err
	}
	return list[0], nil
}

func (r *Repository) attach(ctx context.Context, orders []Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids = append(ids, o.ID)
		index[o.ID] = i
	}

	items, err := r.pool.Query(ctx, `
		SELECT oi.id, oi.order_id, oi.variant_id, COALESCE(v.sku, ''), oi.quantity, oi.price::text
		FROM order_items oi
		LEFT JOIN variants v ON v.id = oi.variant_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.order_id, oi.id`, ids)
	if err != nil {
		return db.Classify("orders: load items", err)
	}
	lines, err := pgx.CollectRows(items, func(row pgx.CollectableRow) (Item, error) {
		var (
			it    Item
			price string
		)
		if err := row.Scan(&it.ID, &it.OrderID, &it.VariantID, &it.SKU, &it.Quantity, &price); err != nil {
			return Item{}, err
		}
		amount, err := decimal.NewFromString(price)
		if err != nil {
			return Item{}, fmt.Errorf("orders: item %d price %q: %w", it.ID, price, err)
		}
		it.Price = amount
		return it, nil
	})
	if err != nil {
		return db.Classify("orders: load items", err)
	}
	for _, it := range lines {
		o := &orders[index[it.OrderID]]
		o.Items = append(o.Items, it)
	}

	payments, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = ANY($1)`, ids)
	if err != nil {
		return db.Classify("orders: load payments", err)
	}
	paid, err := pgx.CollectRows(payments, func(row pgx.CollectableRow) (Payment, error) {
		return scanPayment(row)
	})
	if err != nil {
		return db.Classify("orders: load payments", err)
	}
	for i := range paid {
		orders[index[paid[i].OrderID]].Payment = &paid[i]
	}

	shipments, err := r.pool.Query(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE order_id = ANY($1)`, ids)
	if err != nil {
		return db.Classify("orders: load shipments", err)
	}
	shipped, err := pgx.CollectRows(shipments, func(row pgx.CollectableRow) (Shipment, error) {
		return scanShipment(row)
	})
	if err != nil {
		return db.Classify("orders: load shipments", err)
	}
	for i := range shipped {
		orders[index[shipped[i].OrderID]].Shipment = &shipped[i]
	}
	return nil
}

const paymentColumns = `id, order_id, amount::text, currency, status, COALESCE(provider, ''), COALESCE(transaction_id, ''), created_at, updated_at`

func scanPayment(row scanner) (Payment, error) {
	var (
		p      Payment
		amount string
	)
	if err := row.Scan(&p.ID, &p.OrderID, &amount, &p.Currency, &p.Status, &p.Provider, &p.TransactionID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Payment{}, err
	}
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return Payment{}, fmt.Errorf("orders: payment %d amount %q: %w", p.ID, amount, err)
	}
	p.Amount = value
	return p, nil
}

const shipmentColumns = `id, order_id, address, city, postal_code, country, phone, COALESCE(tracking_number, ''), status, created_at, updated_at`

func scanShipment(row scanner) (Shipment, error) {
	var s Shipment
	err := row.Scan(&s.ID, &s.OrderID, &s.Address, &s.City, &s.PostalCode, &s.Country, &s.Phone, &s.TrackingNumber, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}
