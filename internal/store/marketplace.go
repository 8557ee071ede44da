package store

import (
	"context"
	"fmt"

	"storefront-service/internal/models"
)

type MarketplaceRepository interface {
	CreateMarketplaceConnection(ctx context.Context, c *models.MarketplaceConnection) error
	ListMarketplaceConnections(ctx context.Context, activeOnly bool) ([]models.MarketplaceConnection, error)
}

func (q *queries) CreateMarketplaceConnection(ctx context.Context, c *models.MarketplaceConnection) error {
	query := `
		INSERT INTO marketplace_connections (id, marketplace, account_name, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	err := q.q.QueryRowxContext(ctx, query,
		c.ID, c.Marketplace, c.AccountName, c.IsActive,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create marketplace connection: %w", translate(err))
	}
	return nil
}

func (q *queries) ListMarketplaceConnections(ctx context.Context, activeOnly bool) ([]models.MarketplaceConnection, error) {
	conns := []models.MarketplaceConnection{}
	query := "SELECT * FROM marketplace_connections"
	if activeOnly {
		query += " WHERE is_active"
	}
	err := q.sel(ctx, &conns, query+" ORDER BY marketplace")
	return conns, err
}
