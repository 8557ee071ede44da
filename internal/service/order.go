package service

import (
	"context"
	"fmt"

	"storefront-service/internal/apperr"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OrderService serves order reads and the admin fulfilment flow
type OrderService struct {
	store  Store
	logger *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(store Store) *OrderService {
	return &OrderService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// OrderDetails is an order with its lines
type OrderDetails struct {
	models.Order
	Items []models.OrderItem `json:"items"`
}

// GetOrder returns an order the caller may see. Orders placed by a signed-in
// user are visible to that user and to admins only.
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID string, isAdmin bool) (*OrderDetails, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder",
		attribute.String("order_id", orderID))
	defer span.End()

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && !order.OwnedBy(userID) {
		return nil, fmt.Errorf("order %s: %w", orderID, apperr.ErrUnauthorized)
	}

	items, err := s.store.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	return &OrderDetails{Order: *order, Items: items}, nil
}

// ListUserOrders lists the signed-in user's orders, newest first
func (s *OrderService) ListUserOrders(ctx context.Context, userID string, limit, offset int) ([]models.Order, error) {
	if userID == "" {
		return nil, apperr.ErrUnauthorized
	}
	return s.ListOrders(ctx, models.OrderFilter{UserID: userID, Limit: limit, Offset: offset})
}

// ListOrders is the admin listing
func (s *OrderService) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	if filter.Status != "" && !models.ValidOrderStatus(filter.Status) {
		return nil, apperr.Validation("unknown order status %q", filter.Status)
	}
	if filter.PaymentStatus != "" && !models.ValidPaymentStatus(filter.PaymentStatus) {
		return nil, apperr.Validation("unknown payment status %q", filter.PaymentStatus)
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, apperr.Validation("limit and offset must not be negative")
	}

	orders, err := s.store.ListOrders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus moves a paid order along PROCESSING -> SHIPPED -> DELIVERED.
// Payment driven transitions go through SettlementService instead.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, to models.OrderStatus) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus",
		attribute.String("order_id", orderID),
		attribute.String("status", string(to)))
	defer span.End()

	if !models.ValidOrderStatus(to) {
		return nil, apperr.Validation("unknown order status %q", to)
	}
	from, ok := models.FulfilmentPredecessor(to)
	if !ok {
		return nil, fmt.Errorf("status %s is not set by fulfilment: %w", to, apperr.ErrInvalidTransition)
	}

	order, err := s.store.UpdateOrderStatus(ctx, orderID, from, to)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Order status updated",
		zap.String("order_id", orderID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return order, nil
}
