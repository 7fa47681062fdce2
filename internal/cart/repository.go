package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-commerce/internal/platform/db"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

// Repository persists carts in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetCart loads the user's cart. Users without a cart get an empty one.
func (r *Repository) GetCart(ctx context.Context, userID int64) (Cart, error) {
	c := Cart{UserID: userID}
	err := r.pool.QueryRow(ctx, `SELECT id, updated_at FROM carts WHERE user_id = $1`, userID).Scan(&c.ID, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, nil
	}
	if err != nil {
		return Cart{}, db.Classify("cart: get", err)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT ci.id, ci.cart_id, ci.variant_id, v.sku, p.name, v.color, v.size, ci.quantity
		FROM cart_items ci
		JOIN variants v ON v.id = ci.variant_id
		JOIN products p ON p.id = v.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.id`, c.ID)
	if err != nil {
		return Cart{}, db.Classify("cart: list items", err)
	}
	c.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Item, error) {
		var it Item
		err := row.Scan(&it.ID, &it.CartID, &it.VariantID, &it.SKU, &it.ProductName, &it.Color, &it.Size, &it.Quantity)
		return it, err
	})
	if err != nil {
		return Cart{}, db.Classify("cart: list items", err)
	}
	return c, nil
}

// AddItem creates the cart lazily and adds quantity to the variant's line,
// inserting the line when absent.
func (r *Repository) AddItem(ctx context.Context, userID, variantID int64, quantity int) (Item, error) {
	it := Item{VariantID: variantID}
	err := r.pool.QueryRow(ctx, `
		WITH c AS (
			INSERT INTO carts (user_id) VALUES ($1)
			ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
			RETURNING id
		)
		INSERT INTO cart_items (cart_id, variant_id, quantity)
		SELECT c.id, $2, $3 FROM c
		ON CONFLICT (cart_id, variant_id) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING id, cart_id, quantity`,
		userID, variantID, quantity).Scan(&it.ID, &it.CartID, &it.Quantity)
	if err != nil {
		return Item{}, db.Classify("cart: add item", err)
	}
	return it, nil
}

// UpdateItem sets the quantity of a line owned by userID.
func (r *Repository) UpdateItem(ctx context.Context, userID, itemID int64, quantity int) error {
	return r.withCartLock(ctx, "cart: update item", userID, func(tx pgx.Tx, cartID int64) error {
		tag, err := tx.Exec(ctx, `UPDATE cart_items SET quantity = $3 WHERE id = $2 AND cart_id = $1`, cartID, itemID, quantity)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("cart: item %d: %w", itemID, shared.ErrNotFound)
		}
		return nil
	})
}

// RemoveItem deletes a line owned by userID.
func (r *Repository) RemoveItem(ctx context.Context, userID, itemID int64) error {
	return r.withCartLock(ctx, "cart: remove item", userID, func(tx pgx.Tx, cartID int64) error {
		tag, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE id = $2 AND cart_id = $1`, cartID, itemID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("cart: item %d: %w", itemID, shared.ErrNotFound)
		}
		return nil
	})
}

// Clear deletes every line of the user's cart. The cart row is kept.
func (r *Repository) Clear(ctx context.Context, userID int64) error {
	err := r.withCartLock(ctx, "cart: clear", userID, func(tx pgx.Tx, cartID int64) error {
		_, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
		return err
	})
	if errors.Is(err, errNoCart) {
		return nil
	}
	return err
}

var errNoCart = fmt.Errorf("cart: no cart: %w", shared.ErrNotFound)

// withCartLock runs fn while holding the carts row lock checkout takes, so an
// edit either lands before checkout reads the lines or after it cleared them.
func (r *Repository) withCartLock(ctx context.Context, op string, userID int64, fn func(pgx.Tx, int64) error) error {
	return db.WithTx(ctx, r.pool, db.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		var cartID int64
		err := tx.QueryRow(ctx, `SELECT id FROM carts WHERE user_id = $1 FOR UPDATE`, userID).Scan(&cartID)
		if errors.Is(err, pgx.ErrNoRows) {
			return errNoCart
		}
		if err != nil {
			return db.Classify(op, err)
		}
		if err := fn(tx, cartID); err != nil {
			return db.Classify(op, err)
		}
		if _, err := tx.Exec(ctx, `UPDATE carts SET updated_at = NOW() WHERE id = $1`, cartID); err != nil {
			return db.Classify(op, err)
		}
		return nil
	})
}
