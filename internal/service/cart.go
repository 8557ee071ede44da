package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"storefront-service/internal/apperr"
	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CartService keeps every cart unit backed by one reserved unit of stock
type CartService struct {
	store     Store
	publisher EventPublisher
	ttl       time.Duration
	now       clock
	logger    *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(store Store, publisher EventPublisher, reservationTTL time.Duration) *CartService {
	return &CartService{
		store:     store,
		publisher: publisher,
		ttl:       reservationTTL,
		now:       systemClock,
		logger:    util.GetLogger(),
	}
}

// AddToCartRequest represents a request to put a product in the cart
type AddToCartRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// CartLineView is a cart line with its computed total
type CartLineView struct {
	models.CartLine
	Total decimal.Decimal `json:"lineTotal"`
}

// Cart is the priced content of one session
type Cart struct {
	SessionID string          `json:"sessionId"`
	Items     []CartLineView  `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	ItemCount int             `json:"itemCount"`
}

// AddToCart reserves qty units and merges them into the session's line for the product
func (s *CartService) AddToCart(ctx context.Context, req AddToCartRequest) (*models.CartItem, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddToCart",
		attribute.String("product_id", req.ProductID))
	defer span.End()

	if req.SessionID == "" || req.ProductID == "" {
		return nil, apperr.Validation("sessionId and productId are required")
	}
	if req.Quantity <= 0 {
		return nil, apperr.Validation("quantity must be positive")
	}

	start := time.Now()
	defer func() {
		util.CartReservationLatency.Observe(time.Since(start).Seconds())
	}()

	expiresAt := s.now().Add(s.ttl)
	item := &models.CartItem{
		ID:        uuid.NewString(),
		SessionID: req.SessionID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		ExpiresAt: expiresAt,
	}

	var inv *models.Inventory
	err := s.store.InTx(ctx, func(r store.Repository) error {
		// session lines before inventory, the same order checkout takes them in
		if _, err := r.LockCartItems(ctx, req.SessionID); err != nil {
			return fmt.Errorf("failed to lock cart: %w", err)
		}
		if err := requireVisible(ctx, r, req.ProductID); err != nil {
			return err
		}

		var err error
		inv, err = r.ReserveStock(ctx, req.ProductID, req.Quantity)
		if err != nil {
			return err
		}
		if err := r.AddCartItemQuantity(ctx, item); err != nil {
			return err
		}
		return r.TouchCart(ctx, req.SessionID, expiresAt)
	})
	if err != nil {
		util.CartReservationsTotal.WithLabelValues("add", outcomeOf(err)).Inc()
		util.RecordError(span, err)
		return nil, fmt.Errorf("add to cart: %w", err)
	}

	util.CartReservationsTotal.WithLabelValues("add", "success").Inc()
	s.logger.Info("Cart item reserved",
		zap.String("cart_item_id", item.ID),
		zap.String("product_id", req.ProductID),
		zap.Int("added", req.Quantity),
		zap.Int("line_quantity", item.Quantity))

	publishInventory(ctx, s.publisher, models.InventoryReasonReserved, inv)
	return item, nil
}

// UpdateQuantity sets a line to qty, reserving or releasing the difference.
// A quantity of zero removes the line; the returned item is then nil.
// sessionID must own the line.
func (s *CartService) UpdateQuantity(ctx context.Context, sessionID, itemID string, qty int) (*models.CartItem, error) {
	ctx, span := util.StartSpan(ctx, "CartService.UpdateQuantity",
		attribute.String("cart_item_id", itemID))
	defer span.End()

	if qty < 0 {
		return nil, apperr.Validation("quantity must not be negative")
	}

	start := time.Now()
	defer func() {
		util.CartReservationLatency.Observe(time.Since(start).Seconds())
	}()

	var (
		updated *models.CartItem
		inv     *models.Inventory
		reason  string
	)
	err := s.store.InTx(ctx, func(r store.Repository) error {
		current, err := lockOwnedItem(ctx, r, sessionID, itemID)
		if err != nil {
			return err
		}

		if qty == 0 {
			reason = models.InventoryReasonReleased
			if inv, err = r.ReleaseStock(ctx, current.ProductID, current.Quantity); err != nil {
				return err
			}
			return r.DeleteCartItem(ctx, current.ID)
		}

		delta := qty - current.Quantity
		switch {
		case delta > 0:
			if err := requireVisible(ctx, r, current.ProductID); err != nil {
				return err
			}
			reason = models.InventoryReasonReserved
			inv, err = r.ReserveStock(ctx, current.ProductID, delta)
		case delta < 0:
			reason = models.InventoryReasonReleased
			inv, err = r.ReleaseStock(ctx, current.ProductID, -delta)
		}
		if err != nil {
			return err
		}

		if updated, err = r.SetCartItemQuantity(ctx, current.ID, qty); err != nil {
			return err
		}
		expiresAt := s.now().Add(s.ttl)
		updated.ExpiresAt = expiresAt
		return r.TouchCart(ctx, current.SessionID, expiresAt)
	})
	if err != nil {
		util.CartReservationsTotal.WithLabelValues("update", outcomeOf(err)).Inc()
		util.RecordError(span, err)
		return nil, fmt.Errorf("update cart item: %w", err)
	}

	util.CartReservationsTotal.WithLabelValues("update", "success").Inc()
	s.logger.Info("Cart item updated",
		zap.String("cart_item_id", itemID),
		zap.Int("quantity", qty))

	publishInventory(ctx, s.publisher, reason, inv)
	return updated, nil
}

// RemoveFromCart releases the full line quantity and deletes the line
func (s *CartService) RemoveFromCart(ctx context.Context, sessionID, itemID string) error {
	ctx, span := util.StartSpan(ctx, "CartService.RemoveFromCart",
		attribute.String("cart_item_id", itemID))
	defer span.End()

	var inv *models.Inventory
	err := s.store.InTx(ctx, func(r store.Repository) error {
		current, err := lockOwnedItem(ctx, r, sessionID, itemID)
		if err != nil {
			return err
		}
		if inv, err = r.ReleaseStock(ctx, current.ProductID, current.Quantity); err != nil {
			return err
		}
		return r.DeleteCartItem(ctx, current.ID)
	})
	if err != nil {
		util.CartReservationsTotal.WithLabelValues("remove", outcomeOf(err)).Inc()
		util.RecordError(span, err)
		return fmt.Errorf("remove cart item: %w", err)
	}

	util.CartReservationsTotal.WithLabelValues("remove", "success").Inc()
	publishInventory(ctx, s.publisher, models.InventoryReasonReleased, inv)
	return nil
}

// GetCart returns the session's lines with live prices and availability
func (s *CartService) GetCart(ctx context.Context, sessionID string) (*Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.GetCart")
	defer span.End()

	if sessionID == "" {
		return nil, apperr.Validation("sessionId is required")
	}

	lines, err := s.store.ListCartLines(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	cart := &Cart{SessionID: sessionID, Items: make([]CartLineView, 0, len(lines)), Subtotal: decimal.Zero}
	for _, line := range lines {
		total := line.LineTotal()
		cart.Items = append(cart.Items, CartLineView{CartLine: line, Total: total})
		cart.Subtotal = cart.Subtotal.Add(total)
		cart.ItemCount += line.Quantity
	}
	return cart, nil
}

// ReleaseExpired deletes up to limit cart lines whose reservation timed out and
// returns their units to available stock. It returns the number of lines claimed.
func (s *CartService) ReleaseExpired(ctx context.Context, limit int) (int, error) {
	ctx, span := util.StartSpan(ctx, "CartService.ReleaseExpired")
	defer span.End()

	var (
		claimed []models.CartItem
		levels  []*models.Inventory
		units   int
	)
	err := s.store.InTx(ctx, func(r store.Repository) error {
		var err error
		claimed, err = r.ClaimExpiredCartItems(ctx, s.now(), limit)
		if err != nil {
			return fmt.Errorf("failed to claim expired cart items: %w", err)
		}

		perProduct := make(map[string]int, len(claimed))
		for _, item := range claimed {
			perProduct[item.ProductID] += item.Quantity
		}
		ids := make([]string, 0, len(perProduct))
		for id := range perProduct {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		levels = make([]*models.Inventory, 0, len(ids))
		for _, id := range ids {
			inv, err := r.ReleaseStock(ctx, id, perProduct[id])
			if isNotFound(err) {
				continue
			}
			if err != nil {
				return err
			}
			levels = append(levels, inv)
			units += perProduct[id]
		}
		return nil
	})
	if err != nil {
		util.RecordError(span, err)
		return 0, err
	}

	if len(claimed) > 0 {
		util.SweeperReleasedUnits.WithLabelValues("cart").Add(float64(units))
		s.logger.Info("Released expired cart reservations",
			zap.Int("lines", len(claimed)),
			zap.Int("units", units))
		publishInventory(ctx, s.publisher, models.InventoryReasonExpiredCart, levels...)
	}
	return len(claimed), nil
}

// lockOwnedItem locks every line of the session and returns the one with
// itemID. Lines of other sessions are reported as missing.
func lockOwnedItem(ctx context.Context, r store.Repository, sessionID, itemID string) (*models.CartItem, error) {
	if sessionID == "" {
		return nil, apperr.Validation("sessionId is required")
	}
	lines, err := r.LockCartItems(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock cart: %w", err)
	}
	for i := range lines {
		if lines[i].ID == itemID {
			return &lines[i], nil
		}
	}
	return nil, apperr.NotFound("cart item", itemID)
}

func requireVisible(ctx context.Context, r store.Repository, productID string) error {
	product, err := r.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if !product.IsVisible {
		return fmt.Errorf("product %s: %w", productID, apperr.ErrProductUnavailable)
	}
	return nil
}
