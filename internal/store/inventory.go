package store

import (
	"context"
	"fmt"

	"storefront-service/internal/apperr"
	"storefront-service/internal/models"
)

// InventoryRepository is the stock ledger. Each mutation is one conditional
// UPDATE so concurrent callers cannot oversell.
type InventoryRepository interface {
	CreateInventory(ctx context.Context, inv *models.Inventory) error
	GetInventory(ctx context.Context, productID string) (*models.Inventory, error)
	ListInventory(ctx context.Context, lowStockOnly bool) ([]models.StockLevel, error)
	ReserveStock(ctx context.Context, productID string, delta int) (*models.Inventory, error)
	CommitStock(ctx context.Context, productID string, qty int) (*models.Inventory, error)
	ReleaseStock(ctx context.Context, productID string, qty int) (*models.Inventory, error)
	AdjustStock(ctx context.Context, productID string, op models.StockOperation, qty int) (*models.Inventory, error)
}

func (q *queries) CreateInventory(ctx context.Context, inv *models.Inventory) error {
	query := `
		INSERT INTO inventory (product_id, quantity, reserved, low_stock_threshold, reorder_point, reorder_quantity, last_restocked_at)
		VALUES ($1, $2, 0, $3, $4, $5, CASE WHEN $2::int > 0 THEN NOW() END)
		RETURNING *`

	err := q.get(ctx, inv, query,
		inv.ProductID, inv.Quantity, inv.LowStockThreshold, inv.ReorderPoint, inv.ReorderQuantity)
	if err != nil {
		return fmt.Errorf("failed to create inventory: %w", translate(err))
	}
	return nil
}

// GetInventory retrieves inventory for a product
func (q *queries) GetInventory(ctx context.Context, productID string) (*models.Inventory, error) {
	var inv models.Inventory
	err := q.get(ctx, &inv, "SELECT * FROM inventory WHERE product_id = $1", productID)
	if isNoRows(err) {
		return nil, apperr.NotFound("inventory", productID)
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (q *queries) ListInventory(ctx context.Context, lowStockOnly bool) ([]models.StockLevel, error) {
	query := `
		SELECT i.*, p.sku, p.name, p.price
		FROM inventory i
		JOIN products p ON p.id = i.product_id`
	if lowStockOnly {
		query += " WHERE i.quantity - i.reserved <= i.low_stock_threshold"
	}
	query += " ORDER BY p.name"

	levels := []models.StockLevel{}
	err := q.sel(ctx, &levels, query)
	return levels, err
}

// ReserveStock moves delta units from available to reserved. A delta of 0
// still asserts that the product is not oversold.
func (q *queries) ReserveStock(ctx context.Context, productID string, delta int) (*models.Inventory, error) {
	var inv models.Inventory
	err := q.get(ctx, &inv, `
		UPDATE inventory
		SET reserved = reserved + $2, updated_at = NOW()
		WHERE product_id = $1 AND quantity - reserved >= $2
		RETURNING *`, productID, delta)
	if err == nil {
		return &inv, nil
	}
	if !isNoRows(err) {
		return nil, fmt.Errorf("failed to reserve stock: %w", err)
	}

	current, err := q.GetInventory(ctx, productID)
	if err != nil {
		return nil, err
	}
	return nil, apperr.InsufficientStock(productID, delta, current.Available())
}

// CommitStock deducts a settled reservation from on-hand stock
func (q *queries) CommitStock(ctx context.Context, productID string, qty int) (*models.Inventory, error) {
	var inv models.Inventory
	err := q.get(ctx, &inv, `
		UPDATE inventory
		SET quantity = quantity - $2, reserved = reserved - $2, updated_at = NOW()
		WHERE product_id = $1 AND reserved >= $2 AND quantity >= $2
		RETURNING *`, productID, qty)
	if isNoRows(err) {
		return nil, fmt.Errorf("commit %d of product %s: %w", qty, productID, apperr.ErrNotReserved)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to commit stock: %w", err)
	}
	return &inv, nil
}

// ReleaseStock returns reserved units to available. Over-release clamps at zero.
func (q *queries) ReleaseStock(ctx context.Context, productID string, qty int) (*models.Inventory, error) {
	var inv models.Inventory
	err := q.get(ctx, &inv, `
		UPDATE inventory
		SET reserved = GREATEST(reserved - $2, 0), updated_at = NOW()
		WHERE product_id = $1
		RETURNING *`, productID, qty)
	if isNoRows(err) {
		return nil, apperr.NotFound("inventory", productID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to release stock: %w", err)
	}
	return &inv, nil
}

// AdjustStock is the admin override of on-hand quantity. It does not look at reserved.
func (q *queries) AdjustStock(ctx context.Context, productID string, op models.StockOperation, qty int) (*models.Inventory, error) {
	var query string
	switch op {
	case models.StockSet:
		query = `UPDATE inventory SET quantity = $2, last_restocked_at = NOW(), updated_at = NOW()
			WHERE product_id = $1 RETURNING *`
	case models.StockIncrement:
		query = `UPDATE inventory SET quantity = quantity + $2, last_restocked_at = NOW(), updated_at = NOW()
			WHERE product_id = $1 RETURNING *`
	case models.StockDecrement:
		query = `UPDATE inventory SET quantity = quantity - $2, updated_at = NOW()
			WHERE product_id = $1 AND quantity >= $2 RETURNING *`
	default:
		return nil, apperr.Validation("unknown stock operation %q", op)
	}

	var inv models.Inventory
	err := q.get(ctx, &inv, query, productID, qty)
	if err == nil {
		return &inv, nil
	}
	if !isNoRows(err) {
		return nil, fmt.Errorf("failed to adjust stock: %w", err)
	}

	current, err := q.GetInventory(ctx, productID)
	if err != nil {
		return nil, err
	}
	return nil, apperr.Validation("cannot decrement %d from quantity %d", qty, current.Quantity)
}
