package store

import (
	"context"
	"fmt"
	"time"

	"storefront-service/internal/models"
)

// AnalyticsRepository aggregates PAID orders created at or after since
type AnalyticsRepository interface {
	SalesOverview(ctx context.Context, since time.Time) (*models.SalesOverview, error)
	TopProducts(ctx context.Context, since time.Time, limit int) ([]models.ProductSales, error)
	TopCustomers(ctx context.Context, since time.Time, limit int) ([]models.CustomerSales, error)
}

func (q *queries) SalesOverview(ctx context.Context, since time.Time) (*models.SalesOverview, error) {
	query := `
		SELECT
			COALESCE(SUM(total), 0)        AS total_revenue,
			COUNT(*)                       AS total_orders,
			COUNT(DISTINCT customer_email) AS total_customers,
			(SELECT COUNT(*) FROM products WHERE is_visible) AS total_products
		FROM orders
		WHERE payment_status = 'PAID' AND created_at >= $1`

	var overview models.SalesOverview
	if err := q.get(ctx, &overview, query, since); err != nil {
		return nil, fmt.Errorf("failed to load sales overview: %w", err)
	}
	return &overview, nil
}

// TopProducts ranks products by units sold
func (q *queries) TopProducts(ctx context.Context, since time.Time, limit int) ([]models.ProductSales, error) {
	query := `
		SELECT oi.product_id, p.name AS product_name,
			SUM(oi.quantity) AS total_sold, SUM(oi.line_total) AS revenue
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN products p ON p.id = oi.product_id
		WHERE o.payment_status = 'PAID' AND o.created_at >= $1
		GROUP BY oi.product_id, p.name
		ORDER BY total_sold DESC, revenue DESC
		LIMIT $2`

	products := []models.ProductSales{}
	if err := q.sel(ctx, &products, query, since, limit); err != nil {
		return nil, fmt.Errorf("failed to load top products: %w", err)
	}
	return products, nil
}

// TopCustomers ranks customers, keyed by email, by amount spent
func (q *queries) TopCustomers(ctx context.Context, since time.Time, limit int) ([]models.CustomerSales, error) {
	query := `
		SELECT customer_email, MAX(customer_name) AS customer_name,
			SUM(total) AS total_spent, COUNT(*) AS order_count
		FROM orders
		WHERE payment_status = 'PAID' AND created_at >= $1
		GROUP BY customer_email
		ORDER BY total_spent DESC
		LIMIT $2`

	customers := []models.CustomerSales{}
	if err := q.sel(ctx, &customers, query, since, limit); err != nil {
		return nil, fmt.Errorf("failed to load top customers: %w", err)
	}
	return customers, nil
}
