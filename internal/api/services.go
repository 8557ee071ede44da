package api

import (
	"context"

	"storefront-service/internal/models"
	"storefront-service/internal/payment"
	"storefront-service/internal/service"
)

// The handlers depend on these narrow views of the services so routes can be
// exercised without a database.

type CartService interface {
	AddToCart(ctx context.Context, req service.AddToCartRequest) (*models.CartItem, error)
	UpdateQuantity(ctx context.Context, sessionID, itemID string, qty int) (*models.CartItem, error)
	RemoveFromCart(ctx context.Context, sessionID, itemID string) error
	GetCart(ctx context.Context, sessionID string) (*service.Cart, error)
}

type CheckoutService interface {
	Checkout(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResponse, error)
	SubmitBlikCode(ctx context.Context, orderID, code string) error
}

type SettlementService interface {
	Settle(ctx context.Context, n *payment.Notification) error
}

type InventoryService interface {
	ListInventory(ctx context.Context, lowStockOnly bool) ([]models.StockLevel, error)
	GetInventory(ctx context.Context, productID string) (*models.Inventory, error)
	AdjustStock(ctx context.Context, req service.AdjustStockRequest) (*models.Inventory, error)
	CreateInventory(ctx context.Context, productID string, settings service.InventorySettings) (*models.Inventory, error)
}

type ProductService interface {
	CreateProduct(ctx context.Context, req service.CreateProductRequest) (*service.ProductDetails, error)
	GetProduct(ctx context.Context, id string, includeHidden bool) (*service.ProductDetails, error)
	ListProducts(ctx context.Context, visibleOnly bool) ([]models.Product, error)
	SetVisibility(ctx context.Context, id string, visible bool) (*models.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

type OrderService interface {
	GetOrder(ctx context.Context, orderID, userID string, isAdmin bool) (*service.OrderDetails, error)
	ListUserOrders(ctx context.Context, userID string, limit, offset int) ([]models.Order, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
	UpdateStatus(ctx context.Context, orderID string, to models.OrderStatus) (*models.Order, error)
}

type RefundService interface {
	RequestRefund(ctx context.Context, userID string, in service.RefundRequestInput) (*models.RefundRequest, error)
	ListRefunds(ctx context.Context, userID string) ([]models.RefundRequest, error)
	Approve(ctx context.Context, refundID string) (*models.RefundRequest, error)
	Reject(ctx context.Context, refundID string) (*models.RefundRequest, error)
}

type MarketplaceService interface {
	ListConnections(ctx context.Context) ([]models.MarketplaceConnection, error)
	CreateConnection(ctx context.Context, req service.CreateConnectionRequest) (*models.MarketplaceConnection, error)
	Sync(ctx context.Context, name string) (*service.SyncResult, error)
}

type AnalyticsService interface {
	SalesReport(ctx context.Context, periodDays int) (*models.SalesReport, error)
}

type SupportService interface {
	CreateTicket(ctx context.Context, userID string, in service.TicketInput) (*models.SupportTicket, error)
	ListTickets(ctx context.Context, userID string) ([]models.SupportTicket, error)
}

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles what the router serves
type Services struct {
	Cart        CartService
	Checkout    CheckoutService
	Settlement  SettlementService
	Gateways    service.Gateways
	Inventory   InventoryService
	Products    ProductService
	Orders      OrderService
	Refunds     RefundService
	Marketplace MarketplaceService
	Analytics   AnalyticsService
	Support     SupportService
}

var (
	_ CartService        = (*service.CartService)(nil)
	_ CheckoutService    = (*service.CheckoutService)(nil)
	_ SettlementService  = (*service.SettlementService)(nil)
	_ InventoryService   = (*service.InventoryService)(nil)
	_ ProductService     = (*service.ProductService)(nil)
	_ OrderService       = (*service.OrderService)(nil)
	_ RefundService      = (*service.RefundService)(nil)
	_ MarketplaceService = (*service.MarketplaceService)(nil)
	_ AnalyticsService   = (*service.AnalyticsService)(nil)
	_ SupportService     = (*service.SupportService)(nil)
)
