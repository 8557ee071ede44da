package store

import (
	"context"
	"fmt"
	"time"

	"storefront-service/internal/apperr"
	"storefront-service/internal/models"
)

type CartRepository interface {
	AddCartItemQuantity(ctx context.Context, item *models.CartItem) error
	SetCartItemQuantity(ctx context.Context, id string, qty int) (*models.CartItem, error)
	DeleteCartItem(ctx context.Context, id string) error
	ListCartLines(ctx context.Context, sessionID string) ([]models.CartLine, error)
	LockCartItems(ctx context.Context, sessionID string) ([]models.CartItem, error)
	TouchCart(ctx context.Context, sessionID string, expiresAt time.Time) error
	ClaimExpiredCartItems(ctx context.Context, now time.Time, limit int) ([]models.CartItem, error)
}

// AddCartItemQuantity inserts the line or adds item.Quantity to the existing
// line of the same session and product. item is overwritten with the stored row.
func (q *queries) AddCartItemQuantity(ctx context.Context, item *models.CartItem) error {
	query := `
		INSERT INTO cart_items (id, session_id, product_id, quantity, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, product_id) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = NOW()
		RETURNING *`

	err := q.get(ctx, item, query,
		item.ID, item.SessionID, item.ProductID, item.Quantity, item.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to upsert cart item: %w", translate(err))
	}
	return nil
}

func (q *queries) SetCartItemQuantity(ctx context.Context, id string, qty int) (*models.CartItem, error) {
	var item models.CartItem
	err := q.get(ctx, &item,
		"UPDATE cart_items SET quantity = $2, updated_at = NOW() WHERE id = $1 RETURNING *",
		id, qty)
	if isNoRows(err) {
		return nil, apperr.NotFound("cart item", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update cart item: %w", err)
	}
	return &item, nil
}

func (q *queries) DeleteCartItem(ctx context.Context, id string) error {
	n, err := q.exec(ctx, "DELETE FROM cart_items WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete cart item: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("cart item", id)
	}
	return nil
}

// ListCartLines returns the session's cart with product data and live availability
func (q *queries) ListCartLines(ctx context.Context, sessionID string) ([]models.CartLine, error) {
	lines := []models.CartLine{}
	err := q.sel(ctx, &lines, `
		SELECT c.*, p.sku, p.name, p.price,
		       COALESCE(GREATEST(i.quantity - i.reserved, 0), 0) AS available
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		LEFT JOIN inventory i ON i.product_id = c.product_id
		WHERE c.session_id = $1
		ORDER BY c.created_at`, sessionID)
	return lines, err
}

// LockCartItems locks every line of a session, used by checkout
func (q *queries) LockCartItems(ctx context.Context, sessionID string) ([]models.CartItem, error) {
	items := []models.CartItem{}
	err := q.sel(ctx, &items,
		"SELECT * FROM cart_items WHERE session_id = $1 ORDER BY product_id FOR UPDATE", sessionID)
	return items, err
}

// TouchCart extends the reservation TTL of every line in the session
func (q *queries) TouchCart(ctx context.Context, sessionID string, expiresAt time.Time) error {
	_, err := q.exec(ctx,
		"UPDATE cart_items SET expires_at = $2 WHERE session_id = $1", sessionID, expiresAt)
	return err
}

// ClaimExpiredCartItems deletes up to limit expired lines and returns them.
// Rows locked by a shopper's transaction are skipped.
func (q *queries) ClaimExpiredCartItems(ctx context.Context, now time.Time, limit int) ([]models.CartItem, error) {
	items := []models.CartItem{}
	err := q.sel(ctx, &items, `
		DELETE FROM cart_items
		WHERE id IN (
			SELECT id FROM cart_items
			WHERE expires_at < $1
			ORDER BY expires_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *`, now, limit)
	return items, err
}
