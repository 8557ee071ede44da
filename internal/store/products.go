package store

import (
	"context"
	"fmt"

	"storefront-service/internal/apperr"
	"storefront-service/internal/models"

	"github.com/jmoiron/sqlx"
)

type ProductRepository interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	ListProducts(ctx context.Context, visibleOnly bool) ([]models.Product, error)
	SetProductVisibility(ctx context.Context, id string, visible bool) (*models.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

// CreateProduct inserts a product; p.ID must be set by the caller
func (q *queries) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (id, sku, name, description, price, currency, is_visible)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := q.q.QueryRowxContext(ctx, query,
		p.ID, p.SKU, p.Name, p.Description, p.Price, p.Currency, p.IsVisible,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", translate(err))
	}
	return nil
}

// GetProduct retrieves a product by ID
func (q *queries) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := q.get(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if isNoRows(err) {
		return nil, apperr.NotFound("product", id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs in one round trip
func (q *queries) GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = q.q.Rebind(query)

	var products []models.Product
	err = q.sel(ctx, &products, query, args...)
	return products, err
}

// ListProducts retrieves the catalog, optionally only the visible part
func (q *queries) ListProducts(ctx context.Context, visibleOnly bool) ([]models.Product, error) {
	products := []models.Product{}
	query := "SELECT * FROM products"
	if visibleOnly {
		query += " WHERE is_visible"
	}
	err := q.sel(ctx, &products, query+" ORDER BY name")
	return products, err
}

func (q *queries) SetProductVisibility(ctx context.Context, id string, visible bool) (*models.Product, error) {
	var product models.Product
	err := q.get(ctx, &product,
		"UPDATE products SET is_visible = $2, updated_at = NOW() WHERE id = $1 RETURNING *",
		id, visible)
	if isNoRows(err) {
		return nil, apperr.NotFound("product", id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// DeleteProduct removes a product that no order references
func (q *queries) DeleteProduct(ctx context.Context, id string) error {
	var referenced bool
	if err := q.get(ctx, &referenced,
		"SELECT EXISTS(SELECT 1 FROM order_items WHERE product_id = $1)", id); err != nil {
		return err
	}
	if referenced {
		return fmt.Errorf("product %s: %w", id, apperr.ErrProductReferenced)
	}

	n, err := q.exec(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("product", id)
	}
	return nil
}
