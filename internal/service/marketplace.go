package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storefront-service/internal/apperr"
	"storefront-service/internal/marketplace"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// orderPullWindow is how far back a sync asks a marketplace for orders
const orderPullWindow = 24 * time.Hour

// MarketplaceService pushes storefront availability to connected marketplaces
type MarketplaceService struct {
	store    Store
	adapters marketplace.Adapters
	now      clock
	logger   *zap.Logger
}

// NewMarketplaceService creates a new marketplace service
func NewMarketplaceService(store Store, adapters marketplace.Adapters) *MarketplaceService {
	return &MarketplaceService{
		store:    store,
		adapters: adapters,
		now:      systemClock,
		logger:   util.GetLogger(),
	}
}

// CreateConnectionRequest connects a marketplace account
type CreateConnectionRequest struct {
	Marketplace string `json:"marketplace" binding:"required"`
	AccountName string `json:"accountName" binding:"required"`
	IsActive    *bool  `json:"isActive,omitempty"`
}

// SyncResult summarises one full push
type SyncResult struct {
	Marketplace string `json:"marketplace"`
	Pushed      int    `json:"pushed"`
	Failed      int    `json:"failed"`
	Pulled      int    `json:"pulled"`
}

func (s *MarketplaceService) ListConnections(ctx context.Context) ([]models.MarketplaceConnection, error) {
	return s.store.ListMarketplaceConnections(ctx, false)
}

// CreateConnection stores a connection for a marketplace that has an adapter
func (s *MarketplaceService) CreateConnection(ctx context.Context, req CreateConnectionRequest) (*models.MarketplaceConnection, error) {
	name := strings.ToLower(strings.TrimSpace(req.Marketplace))
	if _, err := s.adapters.Get(name); err != nil {
		return nil, apperr.Validation("unsupported marketplace %q", req.Marketplace)
	}
	if strings.TrimSpace(req.AccountName) == "" {
		return nil, apperr.Validation("accountName is required")
	}

	conn := &models.MarketplaceConnection{
		ID:          uuid.NewString(),
		Marketplace: name,
		AccountName: strings.TrimSpace(req.AccountName),
		IsActive:    true,
	}
	if req.IsActive != nil {
		conn.IsActive = *req.IsActive
	}
	if err := s.store.CreateMarketplaceConnection(ctx, conn); err != nil {
		return nil, err
	}

	s.logger.Info("Marketplace connected",
		zap.String("marketplace", name),
		zap.String("account", conn.AccountName))
	return conn, nil
}

// Sync pushes the availability of every product with inventory to one
// connected marketplace, then pulls the orders it took over the last day.
// Individual push failures are counted, not returned. A failed pull is logged.
func (s *MarketplaceService) Sync(ctx context.Context, name string) (*SyncResult, error) {
	ctx, span := util.StartSpan(ctx, "MarketplaceService.Sync",
		attribute.String("marketplace", name))
	defer span.End()

	name = strings.ToLower(name)
	adapter, err := s.connectedAdapter(ctx, name)
	if err != nil {
		return nil, err
	}

	levels, err := s.store.ListInventory(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}

	result := &SyncResult{Marketplace: name}
	for _, level := range levels {
		update := marketplace.StockUpdate{
			ProductID: level.ProductID,
			SKU:       level.SKU,
			Available: level.Available(),
		}
		if err := s.push(ctx, adapter, update); err != nil {
			result.Failed++
			continue
		}
		result.Pushed++
	}

	result.Pulled = s.pullOrders(ctx, adapter)

	s.logger.Info("Marketplace sync finished",
		zap.String("marketplace", name),
		zap.Int("pushed", result.Pushed),
		zap.Int("failed", result.Failed),
		zap.Int("pulled", result.Pulled))
	return result, nil
}

// pullOrders fetches recent marketplace orders and logs them. Importing them
// as storefront orders is left to the fulfilment side.
func (s *MarketplaceService) pullOrders(ctx context.Context, adapter marketplace.Adapter) int {
	since := s.now().Add(-orderPullWindow)
	orders, err := adapter.PullOrders(ctx, since)
	if err != nil {
		s.logger.Warn("Marketplace order pull failed",
			zap.String("marketplace", adapter.Name()),
			zap.Error(err))
		return 0
	}
	for _, o := range orders {
		s.logger.Info("Marketplace order received",
			zap.String("marketplace", adapter.Name()),
			zap.String("external_id", o.ExternalID),
			zap.String("sku", o.SKU),
			zap.Int("quantity", o.Quantity),
			zap.Time("placed_at", o.PlacedAt))
	}
	return len(orders)
}

// PushInventory forwards one ledger change to every active connection
func (s *MarketplaceService) PushInventory(ctx context.Context, event *models.InventoryChangedEvent) error {
	ctx, span := util.StartSpan(ctx, "MarketplaceService.PushInventory",
		attribute.String("product_id", event.ProductID))
	defer span.End()

	conns, err := s.store.ListMarketplaceConnections(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to list marketplace connections: %w", err)
	}
	if len(conns) == 0 {
		return nil
	}

	product, err := s.store.GetProduct(ctx, event.ProductID)
	if isNotFound(err) {
		// deleted since the event was published
		return nil
	}
	if err != nil {
		return err
	}

	update := marketplace.StockUpdate{
		ProductID: event.ProductID,
		SKU:       product.SKU,
		Available: event.Available,
	}
	if !product.IsVisible {
		update.Available = 0
	}

	var firstErr error
	for _, conn := range conns {
		adapter, err := s.adapters.Get(conn.Marketplace)
		if err != nil {
			s.logger.Warn("No adapter for marketplace connection",
				zap.String("marketplace", conn.Marketplace))
			continue
		}
		if err := s.push(ctx, adapter, update); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *MarketplaceService) connectedAdapter(ctx context.Context, name string) (marketplace.Adapter, error) {
	adapter, err := s.adapters.Get(name)
	if err != nil {
		return nil, err
	}
	conns, err := s.store.ListMarketplaceConnections(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list marketplace connections: %w", err)
	}
	for _, c := range conns {
		if c.Marketplace == name {
			return adapter, nil
		}
	}
	return nil, fmt.Errorf("no active %s connection: %w", name, apperr.ErrNotFound)
}

func (s *MarketplaceService) push(ctx context.Context, adapter marketplace.Adapter, update marketplace.StockUpdate) error {
	if err := adapter.PushStock(ctx, update); err != nil {
		util.MarketplacePushTotal.WithLabelValues(adapter.Name(), "error").Inc()
		s.logger.Error("Marketplace stock push failed",
			zap.String("marketplace", adapter.Name()),
			zap.String("product_id", update.ProductID),
			zap.Error(err))
		return err
	}
	util.MarketplacePushTotal.WithLabelValues(adapter.Name(), "success").Inc()
	return nil
}
