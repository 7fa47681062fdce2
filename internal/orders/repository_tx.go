package orders

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-commerce/internal/catalog"
	"github.com/odyssey-erp/odyssey-commerce/internal/inventory"
	"github.com/odyssey-erp/odyssey-commerce/internal/platform/db"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) LockCart(ctx context.Context, userID int64) (int64, error) {
	var id int64
	if err := t.tx.QueryRow(ctx, `SELECT id FROM carts WHERE user_id = $1 FOR UPDATE`, userID).Scan(&id); err != nil {
		return 0, db.Classify("orders: lock cart", err)
	}
	return id, nil
}

func (t *txRepo) ListCartLines(ctx context.Context, cartID int64) ([]CartLine, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT ci.id, ci.variant_id, v.sku, ci.quantity
		FROM cart_items ci
		JOIN variants v ON v.id = ci.variant_id
		WHERE ci.cart_id = $1
		ORDER BY ci.id`, cartID)
	if err != nil {
		return nil, db.Classify("orders: cart lines", err)
	}
	lines, err := pgx.CollectRows(rows, pgx.RowToStructByPos[CartLine])
	if err != nil {
		return nil, db.Classify("orders: cart lines", err)
	}
	return lines, nil
}

func (t *txRepo) LockInventory(ctx context.Context, variantIDs []int64) (map[int64]inventory.Level, error) {
	return inventory.LockLevels(ctx, t.tx, variantIDs)
}

func (t *txRepo) ListPrices(ctx context.Context, variantIDs []int64) (map[int64][]catalog.Price, error) {
	return catalog.LoadPrices(ctx, t.tx, variantIDs)
}

func (t *txRepo) DecrementInventory(ctx context.Context, variantID int64, quantity int) (bool, error) {
	return inventory.Decrement(ctx, t.tx, variantID, quantity)
}

func (t *txRepo) InsertOrder(ctx context.Context, o Order) (Order, error) {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders (user_id, status, total_amount, currency)
		VALUES ($1, $2, $3::numeric, $4)
		RETURNING id, created_at, updated_at`,
		o.UserID, string(o.Status), o.TotalAmount.StringFixed(2), o.Currency).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, db.Classify("orders: insert order", err)
	}
	return o, nil
}

func (t *txRepo) InsertItems(ctx context.Context, orderID int64, items []Item) ([]Item, error) {
	out := make([]Item, len(items))
	batch := &pgx.Batch{}
	for i, it := range items {
		it.OrderID = orderID
		out[i] = it
		batch.Queue(`
			INSERT INTO order_items (order_id, variant_id, quantity, price)
			VALUES ($1, $2, $3, $4::numeric)
			RETURNING id`, orderID, it.VariantID, it.Quantity, it.Price.StringFixed(2))
	}
	results := t.tx.SendBatch(ctx, batch)
	for i := range out {
		if err := results.QueryRow().Scan(&out[i].ID); err != nil {
			_ = results.Close()
			return nil, db.Classify("orders: insert item", err)
		}
	}
	if err := results.Close(); err != nil {
		return nil, db.Classify("orders: insert items", err)
	}
	return out, nil
}

func (t *txRepo) ClearCart(ctx context.Context, cartID int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return db.Classify("orders: clear cart", err)
	}
	if _, err := t.tx.Exec(ctx, `UPDATE carts SET updated_at = NOW() WHERE id = $1`, cartID); err != nil {
		return db.Classify("orders: touch cart", err)
	}
	return nil
}

func (t *txRepo) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO payments (order_id, amount, currency, status, provider, transaction_id)
		VALUES ($1, $2::numeric, $3, $4, NULLIF($5, ''), NULLIF($6, ''))
		RETURNING id, created_at, updated_at`,
		p.OrderID, p.Amount.StringFixed(2), p.Currency, string(p.Status), p.Provider, p.TransactionID).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Payment{}, db.Classify("orders: insert payment", err)
	}
	return p, nil
}

func (t *txRepo) InsertShipment(ctx context.Context, s Shipment) (Shipment, error) {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO shipments (order_id, address, city, postal_code, country, phone, tracking_number, status)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
		RETURNING id, created_at, updated_at`,
		s.OrderID, s.Address, s.City, s.PostalCode, s.Country, s.Phone, s.TrackingNumber, string(s.Status)).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return Shipment{}, db.Classify("orders: insert shipment", err)
	}
	return s, nil
}

func (t *txRepo) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1 FOR UPDATE`, id))
	if err != nil {
		return Order{}, db.Classify(fmt.Sprintf("orders: lock order %d", id), err)
	}
	return o, nil
}

func (t *txRepo) SetOrderStatus(ctx context.Context, id int64, status Status) error {
	tag, err := t.tx.Exec(ctx, `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return db.Classify("orders: set status", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("orders: order %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (t *txRepo) GetPaymentForUpdate(ctx context.Context, id int64) (Payment, error) {
	p, err := scanPayment(t.tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Payment{}, db.Classify(fmt.Sprintf("orders: lock payment %d", id), err)
	}
	return p, nil
}

func (t *txRepo) GetPaymentByOrderForUpdate(ctx context.Context, orderID int64) (Payment, error) {
	p, err := scanPayment(t.tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = $1 FOR UPDATE`, orderID))
	if err != nil {
		return Payment{}, db.Classify(fmt.Sprintf("orders: lock payment of order %d", orderID), err)
	}
	return p, nil
}

func (t *txRepo) UpdatePayment(ctx context.Context, p Payment) (Payment, error) {
	err := t.tx.QueryRow(ctx, `
		UPDATE payments
		SET status = $2, provider = NULLIF($3, ''), transaction_id = NULLIF($4, ''), updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, string(p.Status), p.Provider, p.TransactionID).Scan(&p.UpdatedAt)
	if err != nil {
		return Payment{}, db.Classify("orders: update payment", err)
	}
	return p, nil
}

func (t *txRepo) GetShipmentForUpdate(ctx context.Context, id int64) (Shipment, error) {
	s, err := scanShipment(t.tx.QueryRow(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Shipment{}, db.Classify(fmt.Sprintf("orders: lock shipment %d", id), err)
	}
	return s, nil
}

func (t *txRepo) GetShipmentByOrderForUpdate(ctx context.Context, orderID int64) (Shipment, error) {
	s, err := scanShipment(t.tx.QueryRow(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE order_id = $1 FOR UPDATE`, orderID))
	if err != nil {
		return Shipment{}, db.Classify(fmt.Sprintf("orders: lock shipment of order %d", orderID), err)
	}
	return s, nil
}

func (t *txRepo) UpdateShipment(ctx context.Context, s Shipment) (Shipment, error) {
	err := t.tx.QueryRow(ctx, `
		UPDATE shipments
		SET address = $2, city = $3, postal_code = $4, country = $5, phone = $6,
		    tracking_number = NULLIF($7, ''), status = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		s.ID, s.Address, s.City, s.PostalCode, s.Country, s.Phone, s.TrackingNumber, string(s.Status)).Scan(&s.UpdatedAt)
	if err != nil {
		return Shipment{}, db.Classify("orders: update shipment", err)
	}
	return s, nil
}
