package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storefront-service/internal/apperr"
	"storefront-service/internal/models"
)

type OrderRepository interface {
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error
	SetOrderTransaction(ctx context.Context, orderID, txID, url string) error
	ReleaseIdempotencyKey(ctx context.Context, orderID string) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
	ListStalePendingOrders(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error)
	SettlePayment(ctx context.Context, orderID string, to models.PaymentStatus) (*models.Order, error)
	MarkRefunded(ctx context.Context, orderID string) error
	UpdateOrderStatus(ctx context.Context, orderID string, from, to models.OrderStatus) (*models.Order, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error)
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key; nil when none exists
func (q *queries) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := q.get(ctx, &order, "SELECT * FROM orders WHERE idempotency_key = $1", key)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateOrder creates a new order; order.ID must be set by the caller
func (q *queries) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (id, order_number, user_id, session_id, customer_email, customer_name,
			shipping_address, billing_address, status, payment_status, payment_method,
			subtotal, total, currency, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at`

	err := q.q.QueryRowxContext(ctx, query,
		order.ID, order.OrderNumber, order.UserID, order.SessionID, order.CustomerEmail, order.CustomerName,
		order.ShippingAddress, order.BillingAddress, order.Status, order.PaymentStatus, order.PaymentMethod,
		order.Subtotal, order.Total, order.Currency, order.IdempotencyKey,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", translate(err))
	}
	return nil
}

// CreateOrderItem creates a new order item
func (q *queries) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price, line_total)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := q.get(ctx, &item.ID, query,
		item.OrderID, item.ProductID, item.Quantity, item.UnitPrice, item.LineTotal)
	if err != nil {
		return fmt.Errorf("failed to create order item: %w", err)
	}
	return nil
}

// SetOrderTransaction stores the gateway session of an order so replays can
// hand back the same payment link
func (q *queries) SetOrderTransaction(ctx context.Context, orderID, txID, url string) error {
	n, err := q.exec(ctx,
		"UPDATE orders SET gateway_transaction_id = $2, gateway_url = NULLIF($3, ''), updated_at = NOW() WHERE id = $1",
		orderID, txID, url)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("order", orderID)
	}
	return nil
}

// ReleaseIdempotencyKey detaches the idempotency key from an order that never
// reached the gateway, so a retry with the same key places a new order
func (q *queries) ReleaseIdempotencyKey(ctx context.Context, orderID string) error {
	_, err := q.exec(ctx,
		"UPDATE orders SET idempotency_key = NULL, updated_at = NOW() WHERE id = $1",
		orderID)
	return err
}

// GetOrder retrieves an order by ID
func (q *queries) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := q.get(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if isNoRows(err) {
		return nil, apperr.NotFound("order", id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItems retrieves all items for an order
func (q *queries) GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := q.sel(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

func (q *queries) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.PaymentStatus != "" {
		add("payment_status = $%d", filter.PaymentStatus)
	}

	query := "SELECT * FROM orders"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	orders := []models.Order{}
	err := q.sel(ctx, &orders, query, args...)
	return orders, err
}

// ListStalePendingOrders finds orders still waiting for payment after the timeout
func (q *queries) ListStalePendingOrders(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error) {
	orders := []models.Order{}
	err := q.sel(ctx, &orders, `
		SELECT * FROM orders
		WHERE payment_status = 'PENDING' AND created_at < $1
		ORDER BY created_at
		LIMIT $2`, createdBefore, limit)
	return orders, err
}

// SettlePayment moves a PENDING order to its terminal payment state. The
// status check and the write are one statement, so only one caller wins.
func (q *queries) SettlePayment(ctx context.Context, orderID string, to models.PaymentStatus) (*models.Order, error) {
	var query string
	switch to {
	case models.PaymentStatusPaid:
		query = `
			UPDATE orders
			SET payment_status = 'PAID', status = 'PROCESSING', paid_at = NOW(), updated_at = NOW()
			WHERE id = $1 AND payment_status = 'PENDING'
			RETURNING *`
	case models.PaymentStatusFailed:
		query = `
			UPDATE orders
			SET payment_status = 'FAILED', status = 'CANCELLED', cancelled_at = NOW(), updated_at = NOW()
			WHERE id = $1 AND payment_status = 'PENDING'
			RETURNING *`
	default:
		return nil, fmt.Errorf("settle to %s: %w", to, apperr.ErrInvalidTransition)
	}

	var order models.Order
	err := q.get(ctx, &order, query, orderID)
	if err == nil {
		return &order, nil
	}
	if !isNoRows(err) {
		return nil, fmt.Errorf("failed to settle order: %w", err)
	}

	current, err := q.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("order %s payment is %s: %w", orderID, current.PaymentStatus, apperr.ErrAlreadySettled)
}

func (q *queries) MarkRefunded(ctx context.Context, orderID string) error {
	n, err := q.exec(ctx, `
		UPDATE orders SET payment_status = 'REFUNDED', updated_at = NOW()
		WHERE id = $1 AND payment_status = 'PAID'`, orderID)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("refund order %s: %w", orderID, apperr.ErrInvalidTransition)
	}
	return nil
}

// UpdateOrderStatus is the guarded fulfilment transition
func (q *queries) UpdateOrderStatus(ctx context.Context, orderID string, from, to models.OrderStatus) (*models.Order, error) {
	var order models.Order
	err := q.get(ctx, &order, `
		UPDATE orders SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING *`, orderID, from, to)
	if err == nil {
		return &order, nil
	}
	if !isNoRows(err) {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	current, err := q.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("order %s is %s, not %s: %w", orderID, current.Status, from, apperr.ErrInvalidTransition)
}

// MarkEventProcessed records a webhook delivery; false means it was seen before
func (q *queries) MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	n, err := q.exec(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
