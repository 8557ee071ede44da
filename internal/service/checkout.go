package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"storefront-service/internal/apperr"
	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/payment"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CheckoutService turns cart reservations into orders and registers their payment
type CheckoutService struct {
	store      Store
	gateways   Gateways
	settlement *SettlementService
	publisher  EventPublisher
	currency   string
	now        clock
	logger     *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	store Store,
	gateways Gateways,
	settlement *SettlementService,
	publisher EventPublisher,
	currency string,
) *CheckoutService {
	return &CheckoutService{
		store:      store,
		gateways:   gateways,
		settlement: settlement,
		publisher:  publisher,
		currency:   currency,
		now:        systemClock,
		logger:     util.GetLogger(),
	}
}

// CheckoutRequest represents a request to place an order
type CheckoutRequest struct {
	SessionID       string          `json:"sessionId" binding:"required"`
	Items           []CheckoutItem  `json:"items" binding:"required,min=1,dive"`
	CustomerEmail   string          `json:"customerEmail" binding:"required,email"`
	CustomerName    string          `json:"customerName" binding:"required"`
	ShippingAddress models.Address  `json:"shippingAddress"`
	BillingAddress  *models.Address `json:"billingAddress,omitempty"`
	PaymentMethod   string          `json:"paymentMethod,omitempty"`
	BlikCode        string          `json:"blikCode,omitempty"`

	// Set from headers
	UserID         string `json:"-"`
	IdempotencyKey string `json:"-"`
}

// CheckoutItem represents a requested order line
type CheckoutItem struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// CheckoutResponse tells the client where to pay
type CheckoutResponse struct {
	OrderID          string `json:"orderId"`
	OrderNumber      string `json:"orderNumber"`
	PaymentMethod    string `json:"paymentMethod"`
	SessionID        string `json:"sessionId,omitempty"`
	Token            string `json:"token,omitempty"`
	URL              string `json:"url,omitempty"`
	RequiresBlikCode bool   `json:"requiresBlikCode"`
	PaymentStatus    string `json:"paymentStatus"`
}

// Checkout places an order for the requested items. Units the session already
// holds in its cart are transferred to the order; any remainder is reserved
// now. The whole order fails if one line cannot be covered.
func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Checkout",
		attribute.String("payment_method", req.PaymentMethod))
	defer span.End()

	lines, err := validateCheckout(req)
	if err != nil {
		return nil, err
	}

	gateway, err := s.gateways.Get(req.PaymentMethod)
	if err != nil {
		return nil, err
	}
	method := gateway.Name()

	if req.IdempotencyKey != "" {
		existing, err := s.store.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency key: %w", err)
		}
		if existing != nil {
			s.logger.Info("Returning existing order for idempotency key",
				zap.String("order_id", existing.ID),
				zap.String("idempotency_key", req.IdempotencyKey))
			return replayOrder(existing)
		}
	}

	shipping, err := json.Marshal(req.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to encode shipping address: %w", err)
	}
	billingAddr := req.ShippingAddress
	if req.BillingAddress != nil {
		billingAddr = *req.BillingAddress
	}
	billing, err := json.Marshal(billingAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to encode billing address: %w", err)
	}

	order := &models.Order{
		ID:              uuid.NewString(),
		OrderNumber:     newOrderNumber(s.now().UnixMilli()),
		SessionID:       req.SessionID,
		CustomerEmail:   req.CustomerEmail,
		CustomerName:    req.CustomerName,
		ShippingAddress: shipping,
		BillingAddress:  billing,
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
		PaymentMethod:   method,
		Currency:        s.currency,
	}
	if req.UserID != "" {
		order.UserID = &req.UserID
	}
	if req.IdempotencyKey != "" {
		order.IdempotencyKey = &req.IdempotencyKey
	}

	var (
		items    []models.OrderItem
		products map[string]models.Product
		levels   []*models.Inventory
	)
	err = s.store.InTx(ctx, func(r store.Repository) error {
		var err error
		products, err = loadVisibleProducts(ctx, r, lines)
		if err != nil {
			return err
		}

		cart, err := r.LockCartItems(ctx, req.SessionID)
		if err != nil {
			return fmt.Errorf("failed to lock cart: %w", err)
		}
		held := make(map[string]models.CartItem, len(cart))
		for _, c := range cart {
			held[c.ProductID] = c
		}

		subtotal := decimal.Zero
		items = make([]models.OrderItem, 0, len(lines))
		levels = make([]*models.Inventory, 0, len(lines))
		for _, line := range lines {
			inv, err := transferReservation(ctx, r, line, held)
			if err != nil {
				return err
			}
			levels = append(levels, inv)

			price := products[line.ProductID].Price
			lineTotal := price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			subtotal = subtotal.Add(lineTotal)
			items = append(items, models.OrderItem{
				OrderID:   order.ID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				UnitPrice: price,
				LineTotal: lineTotal,
			})
		}

		order.Subtotal = subtotal
		order.Total = subtotal
		if err := r.CreateOrder(ctx, order); err != nil {
			return err
		}
		for i := range items {
			if err := r.CreateOrderItem(ctx, &items[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, apperr.ErrConflict) && req.IdempotencyKey != "" {
		// a concurrent request with the same key won
		existing, lookupErr := s.store.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
		if lookupErr == nil && existing != nil {
			return replayOrder(existing)
		}
	}
	if err != nil {
		util.CheckoutsTotal.WithLabelValues(method, outcomeOf(err)).Inc()
		util.RecordError(span, err)
		return nil, fmt.Errorf("checkout: %w", err)
	}

	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("total", order.Total.StringFixed(2)),
		zap.String("payment_method", method))
	publishInventory(ctx, s.publisher, models.InventoryReasonReserved, levels...)

	reg, err := s.register(ctx, gateway, order, items, products, req.BlikCode)
	if err != nil {
		util.CheckoutsTotal.WithLabelValues(method, "gateway_error").Inc()
		util.RecordError(span, err)
		return nil, err
	}

	if err := s.store.SetOrderTransaction(ctx, order.ID, reg.TransactionID, reg.RedirectURL); err != nil {
		// callbacks carry the order id, so settlement still works without it
		s.logger.Error("Failed to store gateway transaction id",
			zap.String("order_id", order.ID),
			zap.String("tx_id", reg.TransactionID),
			zap.Error(err))
	}

	s.publishOrderCreated(ctx, order, items)
	util.CheckoutsTotal.WithLabelValues(method, "success").Inc()

	resp := &CheckoutResponse{
		OrderID:          order.ID,
		OrderNumber:      order.OrderNumber,
		PaymentMethod:    method,
		URL:              reg.RedirectURL,
		RequiresBlikCode: reg.RequiresBlikCode,
		PaymentStatus:    string(order.PaymentStatus),
	}
	if reg.Token != "" {
		resp.Token = reg.Token
	} else {
		resp.SessionID = reg.TransactionID
	}
	return resp, nil
}

// register asks the gateway for a payment session. On failure the order is
// expired so its reservation goes back to stock.
func (s *CheckoutService) register(
	ctx context.Context,
	gateway payment.Gateway,
	order *models.Order,
	items []models.OrderItem,
	products map[string]models.Product,
	blikCode string,
) (*payment.Registration, error) {
	lineItems := make([]payment.LineItem, 0, len(items))
	for _, item := range items {
		lineItems = append(lineItems, payment.LineItem{
			Name:      products[item.ProductID].Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	reg, err := gateway.RegisterTransaction(ctx, payment.RegisterRequest{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerEmail: order.CustomerEmail,
		CustomerName:  order.CustomerName,
		Amount:        order.Total,
		Currency:      order.Currency,
		Items:         lineItems,
		BlikCode:      blikCode,
	})
	if err == nil {
		return reg, nil
	}

	s.logger.Error("Gateway registration failed, cancelling order",
		zap.String("order_id", order.ID),
		zap.String("gateway", gateway.Name()),
		zap.Error(err))
	if expireErr := s.settlement.Expire(ctx, order.ID, "gateway registration failed"); expireErr != nil {
		s.logger.Error("Failed to cancel order after gateway error",
			zap.String("order_id", order.ID),
			zap.Error(expireErr))
	}
	if order.IdempotencyKey != nil {
		if keyErr := s.store.ReleaseIdempotencyKey(ctx, order.ID); keyErr != nil {
			s.logger.Error("Failed to release idempotency key",
				zap.String("order_id", order.ID),
				zap.Error(keyErr))
		}
	}

	if !errors.Is(err, apperr.ErrGateway) {
		err = fmt.Errorf("%w: %v", apperr.ErrGateway, err)
	}
	return nil, fmt.Errorf("register payment for order %s: %w", order.ID, err)
}

// SubmitBlikCode forwards a shopper's 6-digit code for a pending BLIK order
func (s *CheckoutService) SubmitBlikCode(ctx context.Context, orderID, code string) error {
	ctx, span := util.StartSpan(ctx, "CheckoutService.SubmitBlikCode",
		attribute.String("order_id", orderID))
	defer span.End()

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.PaymentMethod != models.PaymentMethodBlik {
		return apperr.Validation("order %s is not paid with BLIK", orderID)
	}
	if order.PaymentStatus != models.PaymentStatusPending {
		return fmt.Errorf("order %s payment is %s: %w", orderID, order.PaymentStatus, apperr.ErrInvalidTransition)
	}
	if order.GatewayTransactionID == nil {
		return fmt.Errorf("order %s has no BLIK transaction: %w", orderID, apperr.ErrConflict)
	}

	gateway, err := s.gateways.Get(models.PaymentMethodBlik)
	if err != nil {
		return err
	}
	authorizer, ok := gateway.(payment.CodeAuthorizer)
	if !ok {
		return apperr.Validation("gateway %s does not accept codes", gateway.Name())
	}

	if err := authorizer.AuthorizeCode(ctx, *order.GatewayTransactionID, code); err != nil {
		util.RecordError(span, err)
		return err
	}
	s.logger.Info("BLIK code submitted", zap.String("order_id", orderID))
	return nil
}

func (s *CheckoutService) publishOrderCreated(ctx context.Context, order *models.Order, items []models.OrderItem) {
	data := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		data = append(data, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
		})
	}
	event := &models.OrderCreatedEvent{
		BaseEvent:     broker.NewBaseEvent(models.EventTypeOrderCreated),
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		PaymentMethod: order.PaymentMethod,
		Total:         order.Total.StringFixed(2),
		Currency:      order.Currency,
		Items:         data,
	}
	if err := s.publisher.PublishOrderCreated(ctx, event); err != nil {
		publishFailed(models.EventTypeOrderCreated, order.ID, err)
	}
}

// validateCheckout merges duplicate product lines and orders them by product
// id, so concurrent checkouts lock inventory rows in the same order.
func validateCheckout(req CheckoutRequest) ([]CheckoutItem, error) {
	if req.SessionID == "" {
		return nil, apperr.Validation("sessionId is required")
	}
	if len(req.Items) == 0 {
		return nil, apperr.Validation("at least one item is required")
	}
	if req.CustomerEmail == "" || req.CustomerName == "" {
		return nil, apperr.Validation("customer email and name are required")
	}
	if req.BlikCode != "" && !payment.ValidBlikCode(req.BlikCode) {
		return nil, apperr.Validation("BLIK code must be 6 digits")
	}

	merged := make(map[string]int, len(req.Items))
	for _, item := range req.Items {
		if item.ProductID == "" {
			return nil, apperr.Validation("productId is required")
		}
		if item.Quantity <= 0 {
			return nil, apperr.Validation("quantity for product %s must be positive", item.ProductID)
		}
		merged[item.ProductID] += item.Quantity
	}

	lines := make([]CheckoutItem, 0, len(merged))
	for id, qty := range merged {
		lines = append(lines, CheckoutItem{ProductID: id, Quantity: qty})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines, nil
}

func loadVisibleProducts(ctx context.Context, r store.Repository, lines []CheckoutItem) (map[string]models.Product, error) {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}

	found, err := r.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	products := make(map[string]models.Product, len(found))
	for _, p := range found {
		products[p.ID] = p
	}

	for _, id := range ids {
		p, ok := products[id]
		if !ok || !p.IsVisible {
			return nil, fmt.Errorf("product %s: %w", id, apperr.ErrProductUnavailable)
		}
	}
	return products, nil
}

// transferReservation covers one order line: units held by the cart move to
// the order, the remainder is reserved from available stock.
func transferReservation(ctx context.Context, r store.Repository, line CheckoutItem, held map[string]models.CartItem) (*models.Inventory, error) {
	cartItem, inCart := held[line.ProductID]
	fromCart := 0
	if inCart {
		fromCart = min(cartItem.Quantity, line.Quantity)
	}

	inv, err := r.ReserveStock(ctx, line.ProductID, line.Quantity-fromCart)
	if err != nil {
		return nil, err
	}

	if fromCart > 0 {
		if fromCart == cartItem.Quantity {
			err = r.DeleteCartItem(ctx, cartItem.ID)
		} else {
			_, err = r.SetCartItemQuantity(ctx, cartItem.ID, cartItem.Quantity-fromCart)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to hand cart line over to order: %w", err)
		}
	}
	return inv, nil
}

// replayOrder answers a repeated idempotency key with the order it created.
// A key whose order already failed payment cannot be reused.
func replayOrder(order *models.Order) (*CheckoutResponse, error) {
	if order.PaymentStatus == models.PaymentStatusFailed {
		return nil, fmt.Errorf("order %s for this idempotency key failed payment: %w", order.ID, apperr.ErrConflict)
	}
	return responseFromOrder(order), nil
}

func responseFromOrder(order *models.Order) *CheckoutResponse {
	resp := &CheckoutResponse{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: string(order.PaymentStatus),
	}
	if order.GatewayURL != nil {
		resp.URL = *order.GatewayURL
	}
	if order.GatewayTransactionID != nil {
		if order.PaymentMethod == models.PaymentMethodBlik {
			resp.Token = *order.GatewayTransactionID
		} else {
			resp.SessionID = *order.GatewayTransactionID
		}
	}
	return resp
}

const orderNumberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newOrderNumber renders ORD-<base36 millis>-<5 random chars>
func newOrderNumber(millis int64) string {
	var suffix strings.Builder
	for i := 0; i < 5; i++ {
		suffix.WriteByte(orderNumberAlphabet[rand.Intn(len(orderNumberAlphabet))])
	}
	return "ORD-" + strings.ToUpper(strconv.FormatInt(millis, 36)) + "-" + suffix.String()
}
