package service

import (
	"context"
	"fmt"

	"storefront-service/internal/apperr"
	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Defaults for a new inventory row
const (
	DefaultLowStockThreshold = 10
	DefaultReorderPoint      = 5
	DefaultReorderQuantity   = 50
)

// InventoryService is the admin view of the stock ledger
type InventoryService struct {
	store     Store
	publisher EventPublisher
	logger    *zap.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(store Store, publisher EventPublisher) *InventoryService {
	return &InventoryService{
		store:     store,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// AdjustStockRequest represents an admin override of on-hand quantity
type AdjustStockRequest struct {
	ProductID string                `json:"productId" binding:"required"`
	Quantity  int                   `json:"quantity" binding:"min=0"`
	Operation models.StockOperation `json:"operation" binding:"required"`
}

// InventorySettings configures a new inventory row. Nil thresholds take the defaults.
type InventorySettings struct {
	Quantity          int  `json:"quantity" binding:"min=0"`
	LowStockThreshold *int `json:"lowStockThreshold,omitempty"`
	ReorderPoint      *int `json:"reorderPoint,omitempty"`
	ReorderQuantity   *int `json:"reorderQuantity,omitempty"`
}

func (s InventorySettings) inventory(productID string) (*models.Inventory, error) {
	inv := &models.Inventory{
		ProductID:         productID,
		Quantity:          s.Quantity,
		LowStockThreshold: intOr(s.LowStockThreshold, DefaultLowStockThreshold),
		ReorderPoint:      intOr(s.ReorderPoint, DefaultReorderPoint),
		ReorderQuantity:   intOr(s.ReorderQuantity, DefaultReorderQuantity),
	}
	if inv.Quantity < 0 || inv.LowStockThreshold < 0 || inv.ReorderPoint < 0 || inv.ReorderQuantity < 0 {
		return nil, apperr.Validation("inventory settings must not be negative")
	}
	return inv, nil
}

func (s *InventoryService) ListInventory(ctx context.Context, lowStockOnly bool) ([]models.StockLevel, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.ListInventory")
	defer span.End()

	levels, err := s.store.ListInventory(ctx, lowStockOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	return levels, nil
}

func (s *InventoryService) GetInventory(ctx context.Context, productID string) (*models.Inventory, error) {
	return s.store.GetInventory(ctx, productID)
}

// AdjustStock sets, increments or decrements on-hand quantity. It ignores
// reservations, so stock can be corrected below what carts hold.
func (s *InventoryService) AdjustStock(ctx context.Context, req AdjustStockRequest) (*models.Inventory, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.AdjustStock",
		attribute.String("product_id", req.ProductID),
		attribute.String("operation", string(req.Operation)))
	defer span.End()

	if !req.Operation.Valid() {
		return nil, apperr.Validation("operation must be set, increment or decrement")
	}
	if req.Quantity < 0 {
		return nil, apperr.Validation("quantity must not be negative")
	}

	inv, err := s.store.AdjustStock(ctx, req.ProductID, req.Operation, req.Quantity)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("adjust stock: %w", err)
	}

	s.logger.Info("Stock adjusted",
		zap.String("product_id", req.ProductID),
		zap.String("operation", string(req.Operation)),
		zap.Int("quantity", inv.Quantity),
		zap.Int("reserved", inv.Reserved))
	if inv.Reserved > inv.Quantity {
		s.logger.Warn("Stock adjusted below reserved units",
			zap.String("product_id", req.ProductID),
			zap.Int("quantity", inv.Quantity),
			zap.Int("reserved", inv.Reserved))
	}

	publishInventory(ctx, s.publisher, models.InventoryReasonAdjusted, inv)
	return inv, nil
}

// CreateInventory starts tracking stock for an existing product
func (s *InventoryService) CreateInventory(ctx context.Context, productID string, settings InventorySettings) (*models.Inventory, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.CreateInventory",
		attribute.String("product_id", productID))
	defer span.End()

	inv, err := settings.inventory(productID)
	if err != nil {
		return nil, err
	}

	err = s.store.InTx(ctx, func(r store.Repository) error {
		if _, err := r.GetProduct(ctx, productID); err != nil {
			return err
		}
		return r.CreateInventory(ctx, inv)
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("create inventory: %w", err)
	}

	publishInventory(ctx, s.publisher, models.InventoryReasonAdjusted, inv)
	return inv, nil
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
