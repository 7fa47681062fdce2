package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-commerce/internal/platform/db"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

// Repository persists catalog data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `id, name, description, brand, category, status, created_at, updated_at`

// ListProducts returns one page of products with variants, prices and stock.
func (r *Repository) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, int, error) {
	page := filter.Page.Normalize()
	rows, err := r.pool.Query(ctx, `
		SELECT `+productColumns+`, COUNT(*) OVER() AS total
		FROM products
		WHERE ($1::text = '' OR name ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%')
		  AND ($2::text = '' OR brand = $2)
		  AND ($3::text = '' OR status = $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4 OFFSET $5`,
		filter.Search, filter.Brand, string(filter.Status), page.Limit, page.Offset())
	if err != nil {
		return nil, 0, db.Classify("catalog: list products", err)
	}
	defer rows.Close()

	var (
		products []Product
		total    int
	)
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Brand, &p.Category, &p.Status, &p.CreatedAt, &p.UpdatedAt, &total); err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, db.Classify("catalog: list products", err)
	}
	if err := r.attachVariants(ctx, products); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// GetProduct loads a single product with its variants.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.Brand, &p.Category, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, db.Classify(fmt.Sprintf("catalog: get product %d", id), err)
	}
	products := []Product{p}
	if err := r.attachVariants(ctx, products); err != nil {
		return Product{}, err
	}
	return products[0], nil
}

// CreateProduct inserts a product.
func (r *Repository) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	p := Product{Name: in.Name, Description: in.Description, Brand: in.Brand, Category: in.Category, Status: in.Status}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO products (name, description, brand, category, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		in.Name, in.Description, in.Brand, in.Category, string(in.Status)).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, db.Classify("catalog: create product", err)
	}
	return p, nil
}

// UpdateProduct replaces the mutable product fields.
func (r *Repository) UpdateProduct(ctx context.Context, id int64, in ProductInput) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `
		UPDATE products
		SET name = $2, description = $3, brand = $4, category = $5, status = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING `+productColumns,
		id, in.Name, in.Description, in.Brand, in.Category, string(in.Status)).
		Scan(&p.ID, &p.Name, &p.Description, &p.Brand, &p.Category, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, db.Classify(fmt.Sprintf("catalog: update product %d", id), err)
	}
	return p, nil
}

// DeleteProduct removes a product; variants, prices and stock cascade.
func (r *Repository) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return db.Classify(fmt.Sprintf("catalog: delete product %d", id), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("catalog: delete product %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// ListVariants returns the variants of a product.
func (r *Repository) ListVariants(ctx context.Context, productID int64) ([]Variant, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
		return nil, db.Classify("catalog: product exists", err)
	}
	if !exists {
		return nil, fmt.Errorf("catalog: product %d: %w", productID, shared.ErrNotFound)
	}
	byProduct, err := loadVariants(ctx, r.pool, []int64{productID})
	if err != nil {
		return nil, err
	}
	return byProduct[productID], nil
}

// CreateVariant inserts a variant under productID.
func (r *Repository) CreateVariant(ctx context.Context, productID int64, in VariantInput) (Variant, error) {
	v := Variant{ProductID: productID, SKU: in.SKU, Color: in.Color, Size: in.Size}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO variants (product_id, sku, color, size)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		productID, in.SKU, in.Color, in.Size).Scan(&v.ID, &v.CreatedAt)
	if db.IsCode(err, db.CodeUniqueViolation) {
		return Variant{}, fmt.Errorf("catalog: sku %q already exists: %w", in.SKU, shared.ErrConflict)
	}
	if err != nil {
		return Variant{}, db.Classify("catalog: create variant", err)
	}
	return v, nil
}

// InsertPrice appends a price to a variant's history. A nil ValidFrom
// defaults to the insert time.
func (r *Repository) InsertPrice(ctx context.Context, p Price) (Price, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO prices (variant_id, amount, currency, valid_from, valid_to)
		VALUES ($1, $2::numeric, $3, COALESCE($4, NOW()), $5)
		RETURNING id, valid_from, created_at`,
		p.VariantID, p.Amount.StringFixed(2), p.Currency, p.ValidFrom, p.ValidTo).
		Scan(&p.ID, &p.ValidFrom, &p.CreatedAt)
	if err != nil {
		return Price{}, db.Classify("catalog: insert price", err)
	}
	return p, nil
}

// PricesForVariants returns the price history of each variant.
func (r *Repository) PricesForVariants(ctx context.Context, variantIDs []int64) (map[int64][]Price, error) {
	return LoadPrices(ctx, r.pool, variantIDs)
}

// LoadPrices reads price histories with q, which may be a pool or a transaction.
func LoadPrices(ctx context.Context, q db.DBTX, variantIDs []int64) (map[int64][]Price, error) {
	out := make(map[int64][]Price, len(variantIDs))
	if len(variantIDs) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx, `
		SELECT id, variant_id, amount::text, currency, valid_from, valid_to, created_at
		FROM prices
		WHERE variant_id = ANY($1)
		ORDER BY variant_id, id`, variantIDs)
	if err != nil {
		return nil, db.Classify("catalog: load prices", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			p      Price
			amount string
		)
		if err := rows.Scan(&p.ID, &p.VariantID, &amount, &p.Currency, &p.ValidFrom, &p.ValidTo, &p.CreatedAt); err != nil {
			return nil, err
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("catalog: price %d amount %q: %w", p.ID, amount, err)
		}
		out[p.VariantID] = append(out[p.VariantID], p)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify("catalog: load prices", err)
	}
	return out, nil
}

func (r *Repository) attachVariants(ctx context.Context, products []Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	byProduct, err := loadVariants(ctx, r.pool, ids)
	if err != nil {
		return err
	}
	for i := range products {
		products[i].Variants = byProduct[products[i].ID]
	}
	return nil
}

func loadVariants(ctx context.Context, q db.DBTX, productIDs []int64) (map[int64][]Variant, error) {
	rows, err := q.Query(ctx, `
		SELECT v.id, v.product_id, v.sku, v.color, v.size, v.created_at, i.quantity
		FROM variants v
		LEFT JOIN inventory i ON i.variant_id = v.id
		WHERE v.product_id = ANY($1)
		ORDER BY v.product_id, v.id`, productIDs)
	if err != nil {
		return nil, db.Classify("catalog: load variants", err)
	}
	variants, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Variant, error) {
		var v Variant
		err := row.Scan(&v.ID, &v.ProductID, &v.SKU, &v.Color, &v.Size, &v.CreatedAt, &v.Stock)
		return v, err
	})
	if err != nil {
		return nil, db.Classify("catalog: load variants", err)
	}

	variantIDs := make([]int64, 0, len(variants))
	for _, v := range variants {
		variantIDs = append(variantIDs, v.ID)
	}
	prices, err := LoadPrices(ctx, q, variantIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[int64][]Variant, len(productIDs))
	for _, v := range variants {
		v.Prices = prices[v.ID]
		out[v.ProductID] = append(out[v.ProductID], v)
	}
	return out, nil
}
