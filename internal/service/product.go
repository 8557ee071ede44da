package service

import (
	"context"
	"fmt"
	"strings"

	"storefront-service/internal/apperr"
	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ProductService manages the catalog
type ProductService struct {
	store     Store
	publisher EventPublisher
	currency  string
	logger    *zap.Logger
}

// NewProductService creates a new product service
func NewProductService(store Store, publisher EventPublisher, currency string) *ProductService {
	return &ProductService{
		store:     store,
		publisher: publisher,
		currency:  currency,
		logger:    util.GetLogger(),
	}
}

// CreateProductRequest creates a product together with its inventory row
type CreateProductRequest struct {
	SKU         string            `json:"sku" binding:"required"`
	Name        string            `json:"name" binding:"required"`
	Description string            `json:"description"`
	Price       decimal.Decimal   `json:"price"`
	Currency    string            `json:"currency,omitempty"`
	IsVisible   *bool             `json:"isVisible,omitempty"`
	Inventory   InventorySettings `json:"inventory"`
}

// ProductDetails is a product with its stock
type ProductDetails struct {
	models.Product
	Available int  `json:"availableQuantity"`
	LowStock  bool `json:"lowStock"`
}

func (s *ProductService) CreateProduct(ctx context.Context, req CreateProductRequest) (*ProductDetails, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.CreateProduct",
		attribute.String("sku", req.SKU))
	defer span.End()

	if strings.TrimSpace(req.SKU) == "" || strings.TrimSpace(req.Name) == "" {
		return nil, apperr.Validation("sku and name are required")
	}
	if !req.Price.IsPositive() {
		return nil, apperr.Validation("price must be positive")
	}

	product := &models.Product{
		ID:          uuid.NewString(),
		SKU:         strings.TrimSpace(req.SKU),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       req.Price.Round(2),
		Currency:    strings.ToUpper(req.Currency),
		IsVisible:   true,
	}
	if product.Currency == "" {
		product.Currency = s.currency
	}
	if req.IsVisible != nil {
		product.IsVisible = *req.IsVisible
	}

	inv, err := req.Inventory.inventory(product.ID)
	if err != nil {
		return nil, err
	}

	err = s.store.InTx(ctx, func(r store.Repository) error {
		if err := r.CreateProduct(ctx, product); err != nil {
			return err
		}
		return r.CreateInventory(ctx, inv)
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID),
		zap.String("sku", product.SKU),
		zap.Int("quantity", inv.Quantity))
	publishInventory(ctx, s.publisher, models.InventoryReasonAdjusted, inv)

	return &ProductDetails{Product: *product, Available: inv.Available(), LowStock: inv.IsLowStock()}, nil
}

// GetProduct returns a product with live availability. Hidden products are
// only returned when includeHidden is set.
func (s *ProductService) GetProduct(ctx context.Context, id string, includeHidden bool) (*ProductDetails, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.GetProduct",
		attribute.String("product_id", id))
	defer span.End()

	product, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.IsVisible && !includeHidden {
		return nil, apperr.NotFound("product", id)
	}

	details := &ProductDetails{Product: *product}
	inv, err := s.store.GetInventory(ctx, id)
	switch {
	case err == nil:
		details.Available = inv.Available()
		details.LowStock = inv.IsLowStock()
	case !isNotFound(err):
		return nil, err
	}
	return details, nil
}

func (s *ProductService) ListProducts(ctx context.Context, visibleOnly bool) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.ListProducts")
	defer span.End()

	products, err := s.store.ListProducts(ctx, visibleOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// SetVisibility hides or shows a product. Hidden products cannot be added to
// carts or ordered; existing reservations stay until they expire.
func (s *ProductService) SetVisibility(ctx context.Context, id string, visible bool) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.SetVisibility",
		attribute.String("product_id", id))
	defer span.End()

	product, err := s.store.SetProductVisibility(ctx, id, visible)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Product visibility changed",
		zap.String("product_id", id),
		zap.Bool("visible", visible))
	return product, nil
}

// DeleteProduct removes a product that no order references
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	ctx, span := util.StartSpan(ctx, "ProductService.DeleteProduct",
		attribute.String("product_id", id))
	defer span.End()

	if err := s.store.DeleteProduct(ctx, id); err != nil {
		util.RecordError(span, err)
		return err
	}
	s.logger.Info("Product deleted", zap.String("product_id", id))
	return nil
}
