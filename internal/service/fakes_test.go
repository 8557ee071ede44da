package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront-service/internal/apperr"
	"storefront-service/internal/models"
	"storefront-service/internal/store"

	"github.com/shopspring/decimal"
)

// memState is the whole database of memStore
type memState struct {
	products   map[string]models.Product
	inventory  map[string]models.Inventory
	cart       map[string]models.CartItem
	orders     map[string]models.Order
	orderItems map[string][]models.OrderItem
	refunds    map[string]models.RefundRequest
	events     map[string]bool
	conns      map[string]models.MarketplaceConnection
	tickets    map[string]models.SupportTicket
	nextItemID int64
}

func newMemState() *memState {
	return &memState{
		products:   map[string]models.Product{},
		inventory:  map[string]models.Inventory{},
		cart:       map[string]models.CartItem{},
		orders:     map[string]models.Order{},
		orderItems: map[string][]models.OrderItem{},
		refunds:    map[string]models.RefundRequest{},
		events:     map[string]bool{},
		conns:      map[string]models.MarketplaceConnection{},
		tickets:    map[string]models.SupportTicket{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memState) clone() *memState {
	items := make(map[string][]models.OrderItem, len(s.orderItems))
	for k, v := range s.orderItems {
		items[k] = append([]models.OrderItem(nil), v...)
	}
	return &memState{
		products:   cloneMap(s.products),
		inventory:  cloneMap(s.inventory),
		cart:       cloneMap(s.cart),
		orders:     cloneMap(s.orders),
		orderItems: items,
		refunds:    cloneMap(s.refunds),
		events:     cloneMap(s.events),
		conns:      cloneMap(s.conns),
		tickets:    cloneMap(s.tickets),
		nextItemID: s.nextItemID,
	}
}

// memStore is a Store whose transactions are fully serialised by one mutex.
// A transaction works on a copy of the state that replaces it on commit.
type memStore struct {
	memRepo
	mu sync.Mutex
	// failOn makes the named repository method return the error
	failOn map[string]error
	// calls lists repository methods in the order they ran
	calls []string
}

type memRepo struct {
	owner *memStore
	st    *memState
	inTx  bool
}

func newMemStore() *memStore {
	s := &memStore{failOn: map[string]error{}}
	s.memRepo = memRepo{owner: s, st: newMemState()}
	return s
}

func (s *memStore) InTx(ctx context.Context, fn func(store.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "InTx")

	tx := &memRepo{owner: s, st: s.st.clone(), inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

// begin serialises a statement issued outside a transaction
func (r *memRepo) begin(op string) (func(), error) {
	unlock := func() {}
	if !r.inTx {
		r.owner.mu.Lock()
		unlock = r.owner.mu.Unlock
		r.st = r.owner.st
	}
	r.owner.calls = append(r.owner.calls, op)
	if err := r.owner.failOn[op]; err != nil {
		unlock()
		return func() {}, err
	}
	return unlock, nil
}

// snapshot helpers used by assertions
func (s *memStore) callOrder() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *memStore) inventoryOf(productID string) models.Inventory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.inventory[productID]
}

func (s *memStore) orderOf(id string) models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.orders[id]
}

func (s *memStore) cartOf(sessionID string) []models.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CartItem
	for _, c := range s.st.cart {
		if c.SessionID == sessionID {
			out = append(out, c)
		}
	}
	return out
}

func (s *memStore) seed(p models.Product, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	s.st.products[p.ID] = p
	s.st.inventory[p.ID] = models.Inventory{
		ProductID:         p.ID,
		Quantity:          quantity,
		LowStockThreshold: DefaultLowStockThreshold,
		ReorderPoint:      DefaultReorderPoint,
		ReorderQuantity:   DefaultReorderQuantity,
		UpdatedAt:         now,
	}
}

// ---- products

func (r *memRepo) CreateProduct(_ context.Context, p *models.Product) error {
	done, err := r.begin("CreateProduct")
	if err != nil {
		return err
	}
	defer done()
	for _, existing := range r.st.products {
		if existing.SKU == p.SKU {
			return fmt.Errorf("%w: products_sku_key", apperr.ErrConflict)
		}
	}
	p.CreatedAt, p.UpdatedAt = time.Now(), time.Now()
	r.st.products[p.ID] = *p
	return nil
}

func (r *memRepo) GetProduct(_ context.Context, id string) (*models.Product, error) {
	done, err := r.begin("GetProduct")
	if err != nil {
		return nil, err
	}
	defer done()
	p, ok := r.st.products[id]
	if !ok {
		return nil, apperr.NotFound("product", id)
	}
	return &p, nil
}

func (r *memRepo) GetProductsByIDs(_ context.Context, ids []string) ([]models.Product, error) {
	done, err := r.begin("GetProductsByIDs")
	if err != nil {
		return nil, err
	}
	defer done()
	var out []models.Product
	for _, id := range ids {
		if p, ok := r.st.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memRepo) ListProducts(_ context.Context, visibleOnly bool) ([]models.Product, error) {
	done, err := r.begin("ListProducts")
	if err != nil {
		return nil, err
	}
	defer done()
	out := []models.Product{}
	for _, p := range r.st.products {
		if visibleOnly && !p.IsVisible {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memRepo) SetProductVisibility(_ context.Context, id string, visible bool) (*models.Product, error) {
	done, err := r.begin("SetProductVisibility")
	if err != nil {
		return nil, err
	}
	defer done()
	p, ok := r.st.products[id]
	if !ok {
		return nil, apperr.NotFound("product", id)
	}
	p.IsVisible = visible
	r.st.products[id] = p
	return &p, nil
}

func (r *memRepo) DeleteProduct(_ context.Context, id string) error {
	done, err := r.begin("DeleteProduct")
	if err != nil {
		return err
	}
	defer done()
	if _, ok := r.st.products[id]; !ok {
		return apperr.NotFound("product", id)
	}
	for _, items := range r.st.orderItems {
		for _, item := range items {
			if item.ProductID == id {
				return fmt.Errorf("product %s: %w", id, apperr.ErrProductReferenced)
			}
		}
	}
	delete(r.st.products, id)
	delete(r.st.inventory, id)
	for cid, c := range r.st.cart {
		if c.ProductID == id {
			delete(r.st.cart, cid)
		}
	}
	return nil
}

// ---- inventory

func (r *memRepo) CreateInventory(_ context.Context, inv *models.Inventory) error {
	done, err := r.begin("CreateInventory")
	if err != nil {
		return err
	}
	defer done()
	if _, ok := r.st.inventory[inv.ProductID]; ok {
		return fmt.Errorf("%w: inventory_pkey", apperr.ErrConflict)
	}
	inv.UpdatedAt = time.Now()
	r.st.inventory[inv.ProductID] = *inv
	return nil
}

func (r *memRepo) GetInventory(_ context.Context, productID string) (*models.Inventory, error) {
	done, err := r.begin("GetInventory")
	if err != nil {
		return nil, err
	}
	defer done()
	inv, ok := r.st.inventory[productID]
	if !ok {
		return nil, apperr.NotFound("inventory", productID)
	}
	return &inv, nil
}

func (r *memRepo) ListInventory(_ context.Context, lowStockOnly bool) ([]models.StockLevel, error) {
	done, err := r.begin("ListInventory")
	if err != nil {
		return nil, err
	}
	defer done()
	out := []models.StockLevel{}
	for id, inv := range r.st.inventory {
		if lowStockOnly && !inv.IsLowStock() {
			continue
		}
		p := r.st.products[id]
		out = append(out, models.StockLevel{Inventory: inv, SKU: p.SKU, Name: p.Name, Price: p.Price})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memRepo) ReserveStock(_ context.Context, productID string, delta int) (*models.Inventory, error) {
	done, err := r.begin("ReserveStock")
	if err != nil {
		return nil, err
	}
	defer done()
	inv, ok := r.st.inventory[productID]
	if !ok {
		return nil, apperr.NotFound("inventory", productID)
	}
	if inv.Quantity-inv.Reserved < delta {
		return nil, apperr.InsufficientStock(productID, delta, inv.Available())
	}
	inv.Reserved += delta
	r.st.inventory[productID] = inv
	return &inv, nil
}

func (r *memRepo) CommitStock(_ context.Context, productID string, qty int) (*models.Inventory, error) {
	done, err := r.begin("CommitStock")
	if err != nil {
		return nil, err
	}
	defer done()
	inv, ok := r.st.inventory[productID]
	if !ok || inv.Reserved < qty || inv.Quantity < qty {
		return nil, fmt.Errorf("commit %d of product %s: %w", qty, productID, apperr.ErrNotReserved)
	}
	inv.Quantity -= qty
	inv.Reserved -= qty
	r.st.inventory[productID] = inv
	return &inv, nil
}

func (r *memRepo) ReleaseStock(_ context.Context, productID string, qty int) (*models.Inventory, error) {
	done, err := r.begin("ReleaseStock")
	if err != nil {
		return nil, err
	}
	defer done()
	inv, ok := r.st.inventory[productID]
	if !ok {
		return nil, apperr.NotFound("inventory", productID)
	}
	inv.Reserved = max(inv.Reserved-qty, 0)
	r.st.inventory[productID] = inv
	return &inv, nil
}

func (r *memRepo) AdjustStock(_ context.Context, productID string, op models.StockOperation, qty int) (*models.Inventory, error) {
	done, err := r.begin("AdjustStock")
	if err != nil {
		return nil, err
	}
	defer done()
	inv, ok := r.st.inventory[productID]
	if !ok {
		return nil, apperr.NotFound("inventory", productID)
	}
	switch op {
	case models.StockSet:
		inv.Quantity = qty
	case models.StockIncrement:
		inv.Quantity += qty
	case models.StockDecrement:
		if inv.Quantity < qty {
			return nil, apperr.Validation("cannot decrement %d below zero", qty)
		}
		inv.Quantity -= qty
	default:
		return nil, apperr.Validation("unknown stock operation %q", op)
	}
	r.st.inventory[productID] = inv
	return &inv, nil
}

// ---- cart

func (r *memRepo) AddCartItemQuantity(_ context.Context, item *models.CartItem) error {
	done, err := r.begin("AddCartItemQuantity")
	if err != nil {
		return err
	}
	defer done()
	for id, c := range r.st.cart {
		if c.SessionID == item.SessionID && c.ProductID == item.ProductID {
			c.Quantity += item.Quantity
			c.ExpiresAt = item.ExpiresAt
			c.UpdatedAt = time.Now()
			r.st.cart[id] = c
			*item = c
			return nil
		}
	}
	item.CreatedAt, item.UpdatedAt = time.Now(), time.Now()
	r.st.cart[item.ID] = *item
	return nil
}

func (r *memRepo) SetCartItemQuantity(_ context.Context, id string, qty int) (*models.CartItem, error) {
	done, err := r.begin("SetCartItemQuantity")
	if err != nil {
		return nil, err
	}
	defer done()
	c, ok := r.st.cart[id]
	if !ok {
		return nil, apperr.NotFound("cart item", id)
	}
	c.Quantity = qty
	r.st.cart[id] = c
	return &c, nil
}

func (r *memRepo) DeleteCartItem(_ context.Context, id string) error {
	done, err := r.begin("DeleteCartItem")
	if err != nil {
		return err
	}
	defer done()
	if _, ok := r.st.cart[id]; !ok {
		return apperr.NotFound("cart item", id)
	}
	delete(r.st.cart, id)
	return nil
}

func (r *memRepo) ListCartLines(_ context.Context, sessionID string) ([]models.CartLine, error) {
	done, err := r.begin("ListCartLines")
	if err != nil {
		return nil, err
	}
	defer done()
	out := []models.CartLine{}
	for _, c := range r.st.cart {
		if c.SessionID != sessionID {
			continue
		}
		p := r.st.products[c.ProductID]
		inv := r.st.inventory[c.ProductID]
		out = append(out, models.CartLine{
			CartItem: c, SKU: p.SKU, Name: p.Name, UnitPrice: p.Price, AvailableQuantity: inv.Available(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memRepo) LockCartItems(_ context.Context, sessionID string) ([]models.CartItem, error) {
	done, err := r.begin("LockCartItems")
	if err != nil {
		return nil, err
	}
	defer done()
	var out []models.CartItem
	for _, c := range r.st.cart {
		if c.SessionID == sessionID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memRepo) TouchCart(_ context.Context, sessionID string, expiresAt time.Time) error {
	done, err := r.begin("TouchCart")
	if err != nil {
		return err
	}
	defer done()
	for id, c := range r.st.cart {
		if c.SessionID == sessionID {
			c.ExpiresAt = expiresAt
			r.st.cart[id] = c
		}
	}
	return nil
}

func (r *memRepo) ClaimExpiredCartItems(_ context.Context, now time.Time, limit int) ([]models.CartItem, error) {
	done, err := r.begin("ClaimExpiredCartItems")
	if err != nil {
		return nil, err
	}
	defer done()
	var out []models.CartItem
	for id, c := range r.st.cart {
		if len(out) == limit {
			break
		}
		if c.ExpiresAt.Before(now) {
			out = append(out, c)
			delete(r.st.cart, id)
		}
	}
	return out, nil
}

// ---- orders

func (r *memRepo) GetOrderByIdempotencyKey(_ context.Context, key string) (*models.Order, error) {
	done, err := r.begin("GetOrderByIdempotencyKey")
	if err != nil {
		return nil, err
	}
	defer done()
	for _, o := range r.st.orders {
		if o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			return &o, nil
		}
	}
	return nil, nil
}

func (r *memRepo) CreateOrder(_ context.Context, order *models.Order) error {
	done, err := r.begin("CreateOrder")
	if err != nil {
		return err
	}
	defer done()
	for _, o := range r.st.orders {
		if order.IdempotencyKey != nil && o.IdempotencyKey != nil && *o.IdempotencyKey == *order.IdempotencyKey {
			return fmt.Errorf("%w: orders_idempotency_key_key", apperr.ErrConflict)
		}
	}
	order.CreatedAt, order.UpdatedAt = time.Now(), time.Now()
	r.st.orders[order.ID] = *order
	return nil
}

func (r *memRepo) CreateOrderItem(_ context.Context, item *models.OrderItem) error {
	done, err := r.begin("CreateOrderItem")
	if err != nil {
		return err
	}
	defer done()
	r.st.nextItemID++
	item.ID = r.st.nextItemID
	r.st.orderItems[item.OrderID] = append(r.st.orderItems[item.OrderID], *item)
	return nil
}

func (r *memRepo) SetOrderTransaction(_ context.Context, orderID, txID, url string) error {
	done, err := r.begin("SetOrderTransaction")
	if err != nil {
		return err
	}
	defer done()
	o, ok := r.st.orders[orderID]
	if !ok {
		return apperr.NotFound("order", orderID)
	}
	o.GatewayTransactionID = &txID
	if url != "" {
		o.GatewayURL = &url
	}
	r.st.orders[orderID] = o
	return nil
}

func (r *memRepo) ReleaseIdempotencyKey(_ context.Context, orderID string) error {
	done, err := r.begin("ReleaseIdempotencyKey")
	if err != nil {
		return err
	}
	defer done()
	if o, ok := r.st.orders[orderID]; ok {
		o.IdempotencyKey = nil
		r.st.orders[orderID] = o
	}
	return nil
}

func (r *memRepo) GetOrder(_ context.Context, id string) (*models.Order, error) {
	done, err := r.begin("GetOrder")
	if err != nil {
		return nil, err
	}
	defer done()
	o, ok := r.st.orders[id]
	if !ok {
		return nil, apperr.NotFound("order", id)
	}
	return &o, nil
}

func (r *memRepo) GetOrderItems(_ context.Context, orderID string) ([]models.OrderItem, error) {
	done, err := r.begin("GetOrderItems")
	if err != nil {
		return nil, err
	}
	defer done()
	return append([]models.OrderItem{}, r.st.orderItems[orderID]...), nil
}

func (r *memRepo) ListOrders(_ context.Context, f models.OrderFilter) ([]models.Order, error) {
	done, err := r.begin("ListOrders")
	if err != nil {
		return nil, err
	}
	defer done()
	out := []models.Order{}
	for _, o := range r.st.orders {
		if f.UserID != "" && (o.UserID == nil || *o.UserID != f.UserID) {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.PaymentStatus != "" && o.PaymentStatus != f.PaymentStatus {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Offset >= len(out) {
		return []models.Order{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *memRepo) ListStalePendingOrders(_ context.Context, createdBefore time.Time, limit int) ([]models.Order, error) {
	done, err := r.begin("ListStalePendingOrders")
	if err != nil {
		return nil, err
	}
	defer done()
	var out []models.Order
	for _, o := range r.st.orders {
		if o.PaymentStatus == models.PaymentStatusPending && o.CreatedAt.Before(createdBefore) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) SettlePayment(_ context.Context, orderID string, to models.PaymentStatus) (*models.Order, error) {
	done, err := r.begin("SettlePayment")
	if err != nil {
		return nil, err
	}
	defer done()
	if to != models.PaymentStatusPaid && to != models.PaymentStatusFailed {
		return nil, fmt.Errorf("settle to %s: %w", to, apperr.ErrInvalidTransition)
	}
	o, ok := r.st.orders[orderID]
	if !ok {
		return nil, apperr.NotFound("order", orderID)
	}
	if o.PaymentStatus != models.PaymentStatusPending {
		return nil, fmt.Errorf("order %s payment is %s: %w", orderID, o.PaymentStatus, apperr.ErrAlreadySettled)
	}
	now := time.Now()
	o.PaymentStatus = to
	if to == models.PaymentStatusPaid {
		o.Status = models.OrderStatusProcessing
		o.PaidAt = &now
	} else {
		o.Status = models.OrderStatusCancelled
		o.CancelledAt = &now
	}
	r.st.orders[orderID] = o
	return &o, nil
}

func (r *memRepo) MarkRefunded(_ context.Context, orderID string) error {
	done, err := r.begin("MarkRefunded")
	if err != nil {
		return err
	}
	defer done()
	o, ok := r.st.orders[orderID]
	if !ok || o.PaymentStatus != models.PaymentStatusPaid {
		return fmt.Errorf("refund order %s: %w", orderID, apperr.ErrInvalidTransition)
	}
	o.PaymentStatus = models.PaymentStatusRefunded
	r.st.orders[orderID] = o
	return nil
}

func (r *memRepo) UpdateOrderStatus(_ context.Context, orderID string, from, to models.OrderStatus) (*models.Order, error) {
	done, err := r.begin("UpdateOrderStatus")
	if err != nil {
		return nil, err
	}
	defer done()
	o, ok := r.st.orders[orderID]
	if !ok {
		return nil, apperr.NotFound("order", orderID)
	}
	if o.Status != from {
		return nil, fmt.Errorf("order %s is %s, not %s: %w", orderID, o.Status, from, apperr.ErrInvalidTransition)
	}
	o.Status = to
	r.st.orders[orderID] = o
	return &o, nil
}

func (r *memRepo) MarkEventProcessed(_ context.Context, eventID, _ string) (bool, error) {
	done, err := r.begin("MarkEventProcessed")
	if err != nil {
		return false, err
	}
	defer done()
	if r.st.events[eventID] {
		return false, nil
	}
	r.st.events[eventID] = true
	return true, nil
}

// ---- refunds

func (r *memRepo) CreateRefund(_ context.Context, refund *models.RefundRequest) error {
	done, err := r.begin("CreateRefund")
	if err != nil {
		return err
	}
	defer done()
	for _, existing := range r.st.refunds {
		if existing.OrderID == refund.OrderID && existing.Status != models.RefundStatusRejected {
			return fmt.Errorf("%w: uq_refund_requests_open", apperr.ErrConflict)
		}
	}
	refund.CreatedAt, refund.UpdatedAt = time.Now(), time.Now()
	r.st.refunds[refund.ID] = *refund
	return nil
}

func (r *memRepo) GetRefund(_ context.Context, id string) (*models.RefundRequest, error) {
	done, err := r.begin("GetRefund")
	if err != nil {
		return nil, err
	}
	defer done()
	refund, ok := r.st.refunds[id]
	if !ok {
		return nil, apperr.NotFound("refund request", id)
	}
	return &refund, nil
}

func (r *memRepo) ListRefunds(_ context.Context, userID string) ([]models.RefundRequest, error) {
	done, err := r.begin("ListRefunds")
	if err != nil {
		return nil, err
	}
	defer done()
	out := []models.RefundRequest{}
	for _, refund := range r.st.refunds {
		if userID == "" || refund.UserID == userID {
			out = append(out, refund)
		}
	}
	return out, nil
}

func (r *memRepo) HasOpenRefund(_ context.Context, orderID string) (bool, error) {
	done, err := r.begin("HasOpenRefund")
	if err != nil {
		return false, err
	}
	defer done()
	for _, refund := range r.st.refunds {
		if refund.OrderID == orderID && refund.Status != models.RefundStatusRejected {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) UpdateRefundStatus(_ context.Context, id string, to models.RefundStatus) (*models.RefundRequest, error) {
	done, err := r.begin("UpdateRefundStatus")
	if err != nil {
		return nil, err
	}
	defer done()
	refund, ok := r.st.refunds[id]
	if !ok {
		return nil, apperr.NotFound("refund request", id)
	}
	if refund.Status != models.RefundStatusPending {
		return nil, fmt.Errorf("refund request %s is %s: %w", id, refund.Status, apperr.ErrInvalidTransition)
	}
	refund.Status = to
	r.st.refunds[id] = refund
	return &refund, nil
}

// ---- marketplace

func (r *memRepo) CreateMarketplaceConnection(_ context.Context, c *models.MarketplaceConnection) error {
	done, err := r.begin("CreateMarketplaceConnection")
	if err != nil {
		return err
	}
	defer done()
	for _, existing := range r.st.conns {
		if existing.Marketplace == c.Marketplace {
			return fmt.Errorf("%w: marketplace_connections_marketplace_key", apperr.ErrConflict)
		}
	}
	c.CreatedAt, c.UpdatedAt = time.Now(), time.Now()
	r.st.conns[c.ID] = *c
	return nil
}

func (r *memRepo) ListMarketplaceConnections(_ context.Context, activeOnly bool) ([]models.MarketplaceConnection, error) {
	done, err := r.begin("ListMarketplaceConnections")
	if err != nil {
		return nil, err
	}
	defer done()
	out := []models.MarketplaceConnection{}
	for _, c := range r.st.conns {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Marketplace < out[j].Marketplace })
	return out, nil
}

// ---- support

func (r *memRepo) CreateTicket(_ context.Context, t *models.SupportTicket) error {
	done, err := r.begin("CreateTicket")
	if err != nil {
		return err
	}
	defer done()
	t.CreatedAt, t.UpdatedAt = time.Now(), time.Now()
	r.st.tickets[t.ID] = *t
	return nil
}

func (r *memRepo) ListTickets(_ context.Context, userID string) ([]models.SupportTicket, error) {
	done, err := r.begin("ListTickets")
	if err != nil {
		return nil, err
	}
	defer done()
	out := []models.SupportTicket{}
	for _, t := range r.st.tickets {
		if userID == "" || (t.UserID != nil && *t.UserID == userID) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ---- analytics

func (r *memRepo) paidSince(since time.Time) []models.Order {
	var out []models.Order
	for _, o := range r.st.orders {
		if o.PaymentStatus == models.PaymentStatusPaid && !o.CreatedAt.Before(since) {
			out = append(out, o)
		}
	}
	return out
}

func (r *memRepo) SalesOverview(_ context.Context, since time.Time) (*models.SalesOverview, error) {
	done, err := r.begin("SalesOverview")
	if err != nil {
		return nil, err
	}
	defer done()
	overview := &models.SalesOverview{TotalRevenue: decimal.Zero}
	customers := map[string]bool{}
	for _, o := range r.paidSince(since) {
		overview.TotalRevenue = overview.TotalRevenue.Add(o.Total)
		overview.TotalOrders++
		customers[o.CustomerEmail] = true
	}
	overview.TotalCustomers = len(customers)
	for _, p := range r.st.products {
		if p.IsVisible {
			overview.TotalProducts++
		}
	}
	return overview, nil
}

func (r *memRepo) TopProducts(_ context.Context, since time.Time, limit int) ([]models.ProductSales, error) {
	done, err := r.begin("TopProducts")
	if err != nil {
		return nil, err
	}
	defer done()
	byProduct := map[string]*models.ProductSales{}
	for _, o := range r.paidSince(since) {
		for _, item := range r.st.orderItems[o.ID] {
			ps, ok := byProduct[item.ProductID]
			if !ok {
				ps = &models.ProductSales{ProductID: item.ProductID, ProductName: r.st.products[item.ProductID].Name}
				byProduct[item.ProductID] = ps
			}
			ps.TotalSold += item.Quantity
			ps.Revenue = ps.Revenue.Add(item.LineTotal)
		}
	}
	out := []models.ProductSales{}
	for _, ps := range byProduct {
		out = append(out, *ps)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalSold > out[j].TotalSold })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) TopCustomers(_ context.Context, since time.Time, limit int) ([]models.CustomerSales, error) {
	done, err := r.begin("TopCustomers")
	if err != nil {
		return nil, err
	}
	defer done()
	byEmail := map[string]*models.CustomerSales{}
	for _, o := range r.paidSince(since) {
		cs, ok := byEmail[o.CustomerEmail]
		if !ok {
			cs = &models.CustomerSales{CustomerEmail: o.CustomerEmail, CustomerName: o.CustomerName}
			byEmail[o.CustomerEmail] = cs
		}
		cs.TotalSpent = cs.TotalSpent.Add(o.Total)
		cs.OrderCount++
	}
	out := []models.CustomerSales{}
	for _, cs := range byEmail {
		out = append(out, *cs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalSpent.GreaterThan(out[j].TotalSpent) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu        sync.Mutex
	created   []*models.OrderCreatedEvent
	paid      []*models.OrderPaidEvent
	cancelled []*models.OrderCancelledEvent
	inventory []*models.InventoryChangedEvent
	err       error
}

func (p *recordingPublisher) PublishOrderCreated(_ context.Context, e *models.OrderCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, e)
	return p.err
}

func (p *recordingPublisher) PublishOrderPaid(_ context.Context, e *models.OrderPaidEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paid = append(p.paid, e)
	return p.err
}

func (p *recordingPublisher) PublishOrderCancelled(_ context.Context, e *models.OrderCancelledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, e)
	return p.err
}

func (p *recordingPublisher) PublishInventoryChanged(_ context.Context, e *models.InventoryChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inventory = append(p.inventory, e)
	return p.err
}
