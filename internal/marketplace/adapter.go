// Package marketplace pushes storefront stock to external marketplaces.
package marketplace

import (
	"context"
	"fmt"
	"time"

	"storefront-service/internal/apperr"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// StockUpdate is the quantity a marketplace listing may sell
type StockUpdate struct {
	ProductID string
	SKU       string
	Available int
}

// ExternalOrder is an order placed on a marketplace
type ExternalOrder struct {
	Marketplace string
	ExternalID  string
	SKU         string
	Quantity    int
	PlacedAt    time.Time
}

type Adapter interface {
	Name() string
	PushStock(ctx context.Context, update StockUpdate) error
	PullOrders(ctx context.Context, since time.Time) ([]ExternalOrder, error)
}

// Adapters indexes adapters by marketplace name
type Adapters map[string]Adapter

func NewAdapters(adapters ...Adapter) Adapters {
	out := make(Adapters, len(adapters))
	for _, a := range adapters {
		out[a.Name()] = a
	}
	return out
}

// DefaultAdapters returns the Allegro, Amazon and Aliexpress adapters
func DefaultAdapters() Adapters {
	return NewAdapters(
		&stubAdapter{name: models.MarketplaceAllegro},
		&stubAdapter{name: models.MarketplaceAmazon},
		&stubAdapter{name: models.MarketplaceAliexpress},
	)
}

func (a Adapters) Get(name string) (Adapter, error) {
	adapter, ok := a[name]
	if !ok {
		return nil, fmt.Errorf("marketplace %s: %w", name, apperr.ErrNotFound)
	}
	return adapter, nil
}

// stubAdapter records the call and succeeds. Real API clients replace it per marketplace.
type stubAdapter struct {
	name string
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) PushStock(_ context.Context, update StockUpdate) error {
	util.GetLogger().Info("Marketplace stock push",
		zap.String("marketplace", s.name),
		zap.String("product_id", update.ProductID),
		zap.String("sku", update.SKU),
		zap.Int("available", update.Available))
	return nil
}

func (s *stubAdapter) PullOrders(_ context.Context, since time.Time) ([]ExternalOrder, error) {
	util.GetLogger().Debug("Marketplace order pull",
		zap.String("marketplace", s.name),
		zap.Time("since", since))
	return nil, nil
}
