package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-commerce/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetLevel reads the stock of a variant. Variants without an inventory row
// report zero stock; unknown variants return shared.ErrNotFound.
func (r *Repository) GetLevel(ctx context.Context, variantID int64) (Level, error) {
	var (
		sku      string
		quantity *int
		location *string
		updated  *time.Time
	)
	err := r.pool.QueryRow(ctx, `
		SELECT v.sku, i.quantity, i.warehouse_location, i.last_updated
		FROM variants v
		LEFT JOIN inventory i ON i.variant_id = v.id
		WHERE v.id = $1`, variantID).Scan(&sku, &quantity, &location, &updated)
	if err != nil {
		return Level{}, db.Classify(fmt.Sprintf("inventory: get level %d", variantID), err)
	}
	if quantity == nil {
		return Level{VariantID: variantID, SKU: sku}, nil
	}
	lvl := newLevel(variantID, sku, *quantity)
	if location != nil {
		lvl.Location = *location
	}
	if updated != nil {
		lvl.LastUpdated = *updated
	}
	return lvl, nil
}

// Upsert creates the inventory row or overwrites its quantity. A nil
// location keeps the stored one.
func (r *Repository) Upsert(ctx context.Context, variantID int64, quantity int, location *string) (Level, error) {
	var (
		stored *string
		lvl    = newLevel(variantID, "", quantity)
	)
	err := r.pool.QueryRow(ctx, `
		WITH upserted AS (
			INSERT INTO inventory (variant_id, quantity, warehouse_location, last_updated)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (variant_id) DO UPDATE
			SET quantity = EXCLUDED.quantity,
			    warehouse_location = COALESCE(EXCLUDED.warehouse_location, inventory.warehouse_location),
			    last_updated = NOW()
			RETURNING variant_id, quantity, warehouse_location, last_updated
		)
		SELECT v.sku, u.warehouse_location, u.last_updated
		FROM upserted u
		JOIN variants v ON v.id = u.variant_id`,
		variantID, quantity, location).Scan(&lvl.SKU, &stored, &lvl.LastUpdated)
	if err != nil {
		return Level{}, db.Classify(fmt.Sprintf("inventory: upsert %d", variantID), err)
	}
	if stored != nil {
		lvl.Location = *stored
	}
	return lvl, nil
}

// LowStock lists tracked variants whose quantity is at or below threshold.
func (r *Repository) LowStock(ctx context.Context, threshold, limit int) ([]LowStockItem, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
		SELECT i.variant_id, v.sku, i.quantity
		FROM inventory i
		JOIN variants v ON v.id = i.variant_id
		WHERE i.quantity <= $1
		ORDER BY i.quantity, i.variant_id
		LIMIT $2`, threshold, limit)
	if err != nil {
		return nil, db.Classify("inventory: low stock", err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByPos[LowStockItem])
	if err != nil {
		return nil, db.Classify("inventory: low stock", err)
	}
	return items, nil
}

// LockLevels reads and row-locks the inventory of variantIDs inside q's
// transaction. Rows are locked in variant order so concurrent checkouts
// touching the same variants cannot deadlock. Untracked variants are absent
// from the result.
func LockLevels(ctx context.Context, q db.DBTX, variantIDs []int64) (map[int64]Level, error) {
	out := make(map[int64]Level, len(variantIDs))
	if len(variantIDs) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx, `
		SELECT i.variant_id, v.sku, i.quantity, COALESCE(i.warehouse_location, ''), i.last_updated
		FROM inventory i
		JOIN variants v ON v.id = i.variant_id
		WHERE i.variant_id = ANY($1)
		ORDER BY i.variant_id
		FOR UPDATE OF i`, variantIDs)
	if err != nil {
		return nil, db.Classify("inventory: lock levels", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			lvl      Level
			quantity int
		)
		if err := rows.Scan(&lvl.VariantID, &lvl.SKU, &quantity, &lvl.Location, &lvl.LastUpdated); err != nil {
			return nil, err
		}
		lvl.Quantity = quantity
		lvl.Available = quantity > 0
		lvl.Tracked = true
		out[lvl.VariantID] = lvl
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify("inventory: lock levels", err)
	}
	return out, nil
}

// Decrement subtracts quantity only while enough stock remains. It reports
// false when the guard rejected the update.
func Decrement(ctx context.Context, q db.DBTX, variantID int64, quantity int) (bool, error) {
	tag, err := q.Exec(ctx, `
		UPDATE inventory
		SET quantity = quantity - $2, last_updated = NOW()
		WHERE variant_id = $1 AND quantity >= $2`, variantID, quantity)
	if err != nil {
		return false, db.Classify(fmt.Sprintf("inventory: decrement %d", variantID), err)
	}
	return tag.RowsAffected() == 1, nil
}
