package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

// Product represents a catalog entry
type Product struct {
	ID          string          `db:"id" json:"id"`
	SKU         string          `db:"sku" json:"sku"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Currency    string          `db:"currency" json:"currency"`
	IsVisible   bool            `db:"is_visible" json:"isVisible"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
}

// Inventory holds the stock ledger counters of one product
type Inventory struct {
	ProductID         string     `db:"product_id" json:"productId"`
	Quantity          int        `db:"quantity" json:"quantity"`
	Reserved          int        `db:"reserved" json:"reserved"`
	LowStockThreshold int        `db:"low_stock_threshold" json:"lowStockThreshold"`
	ReorderPoint      int        `db:"reorder_point" json:"reorderPoint"`
	ReorderQuantity   int        `db:"reorder_quantity" json:"reorderQuantity"`
	LastRestockedAt   *time.Time `db:"last_restocked_at" json:"lastRestockedAt,omitempty"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updatedAt"`
}

// Available is the stock that can still be reserved.
func (i *Inventory) Available() int {
	if i.Reserved > i.Quantity {
		return 0
	}
	return i.Quantity - i.Reserved
}

func (i *Inventory) IsLowStock() bool {
	return i.Available() <= i.LowStockThreshold
}

func (i *Inventory) NeedsReorder() bool {
	return i.Available() <= i.ReorderPoint
}

// StockLevel is an inventory row joined with its product, used by the admin views
type StockLevel struct {
	Inventory
	SKU   string          `db:"sku" json:"sku"`
	Name  string          `db:"name" json:"name"`
	Price decimal.Decimal `db:"price" json:"price"`
}

// CartItem is one line of a shopper's cart. Each unit is backed by one unit of Inventory.Reserved.
type CartItem struct {
	ID        string    `db:"id" json:"id"`
	SessionID string    `db:"session_id" json:"sessionId"`
	ProductID string    `db:"product_id" json:"productId"`
	Quantity  int       `db:"quantity" json:"quantity"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// CartLine is a cart item enriched with product and availability data
type CartLine struct {
	CartItem
	SKU               string          `db:"sku" json:"sku"`
	Name              string          `db:"name" json:"name"`
	UnitPrice         decimal.Decimal `db:"price" json:"unitPrice"`
	AvailableQuantity int             `db:"available" json:"availableQuantity"`
}

func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Address is stored as JSON on the order
type Address struct {
	FirstName  string `json:"firstName" binding:"required"`
	LastName   string `json:"lastName" binding:"required"`
	Company    string `json:"company,omitempty"`
	Address1   string `json:"address1" binding:"required"`
	Address2   string `json:"address2,omitempty"`
	City       string `json:"city" binding:"required"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode" binding:"required"`
	Country    string `json:"country" binding:"required"`
	Phone      string `json:"phone,omitempty"`
}

// Order represents a customer order
type Order struct {
	ID                   string          `db:"id" json:"id"`
	OrderNumber          string          `db:"order_number" json:"orderNumber"`
	UserID               *string         `db:"user_id" json:"userId,omitempty"`
	SessionID            string          `db:"session_id" json:"sessionId"`
	CustomerEmail        string          `db:"customer_email" json:"customerEmail"`
	CustomerName         string          `db:"customer_name" json:"customerName"`
	ShippingAddress      types.JSONText  `db:"shipping_address" json:"shippingAddress"`
	BillingAddress       types.JSONText  `db:"billing_address" json:"billingAddress"`
	Status               OrderStatus     `db:"status" json:"status"`
	PaymentStatus        PaymentStatus   `db:"payment_status" json:"paymentStatus"`
	PaymentMethod        string          `db:"payment_method" json:"paymentMethod"`
	GatewayTransactionID *string         `db:"gateway_transaction_id" json:"gatewayTransactionId,omitempty"`
	GatewayURL           *string         `db:"gateway_url" json:"gatewayUrl,omitempty"`
	Subtotal             decimal.Decimal `db:"subtotal" json:"subtotal"`
	Total                decimal.Decimal `db:"total" json:"total"`
	Currency             string          `db:"currency" json:"currency"`
	IdempotencyKey       *string         `db:"idempotency_key" json:"-"`
	PaidAt               *time.Time      `db:"paid_at" json:"paidAt,omitempty"`
	CancelledAt          *time.Time      `db:"cancelled_at" json:"cancelledAt,omitempty"`
	CreatedAt            time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updatedAt"`
}

// OwnedBy reports whether userID may read the order. Guest orders are readable by anyone holding the id.
func (o *Order) OwnedBy(userID string) bool {
	return o.UserID == nil || *o.UserID == userID
}

// OrderItem is a line of an order with the price snapshotted at checkout
type OrderItem struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   string          `db:"order_id" json:"orderId"`
	ProductID string          `db:"product_id" json:"productId"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unitPrice"`
	LineTotal decimal.Decimal `db:"line_total" json:"lineTotal"`
}

// OrderFilter narrows order listings
type OrderFilter struct {
	UserID        string
	Status        OrderStatus
	PaymentStatus PaymentStatus
	Limit         int
	Offset        int
}

// RefundRequest is a shopper's request to refund a paid order
type RefundRequest struct {
	ID        string          `db:"id" json:"id"`
	OrderID   string          `db:"order_id" json:"orderId"`
	UserID    string          `db:"user_id" json:"userId"`
	Reason    string          `db:"reason" json:"reason"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Status    RefundStatus    `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time       `db:"updated_at" json:"updatedAt"`
}

// SupportTicket is a customer message to the support team, optionally about an order
type SupportTicket struct {
	ID        string       `db:"id" json:"id"`
	UserID    *string      `db:"user_id" json:"userId,omitempty"`
	OrderID   *string      `db:"order_id" json:"orderId,omitempty"`
	Name      string       `db:"name" json:"name"`
	Email     string       `db:"email" json:"email"`
	Subject   string       `db:"subject" json:"subject"`
	Message   string       `db:"message" json:"message"`
	Status    TicketStatus `db:"status" json:"status"`
	Priority  string       `db:"priority" json:"priority"`
	CreatedAt time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time    `db:"updated_at" json:"updatedAt"`
}

// SalesOverview aggregates paid orders placed since a point in time
type SalesOverview struct {
	TotalRevenue      decimal.Decimal `db:"total_revenue" json:"totalRevenue"`
	TotalOrders       int             `db:"total_orders" json:"totalOrders"`
	AverageOrderValue decimal.Decimal `db:"-" json:"averageOrderValue"`
	TotalCustomers    int             `db:"total_customers" json:"totalCustomers"`
	TotalProducts     int             `db:"total_products" json:"totalProducts"`
}

type ProductSales struct {
	ProductID   string          `db:"product_id" json:"productId"`
	ProductName string          `db:"product_name" json:"productName"`
	TotalSold   int             `db:"total_sold" json:"totalSold"`
	Revenue     decimal.Decimal `db:"revenue" json:"revenue"`
}

type CustomerSales struct {
	CustomerEmail string          `db:"customer_email" json:"customerEmail"`
	CustomerName  string          `db:"customer_name" json:"customerName"`
	TotalSpent    decimal.Decimal `db:"total_spent" json:"totalSpent"`
	OrderCount    int             `db:"order_count" json:"orderCount"`
}

// SalesReport is the admin analytics view over a trailing window of days
type SalesReport struct {
	PeriodDays   int             `json:"periodDays"`
	Since        time.Time       `json:"since"`
	Overview     SalesOverview   `json:"overview"`
	TopProducts  []ProductSales  `json:"topProducts"`
	TopCustomers []CustomerSales `json:"topCustomers"`
}

// MarketplaceConnection records an external marketplace account the store syncs stock to
type MarketplaceConnection struct {
	ID          string    `db:"id" json:"id"`
	Marketplace string    `db:"marketplace" json:"marketplace"`
	AccountName string    `db:"account_name" json:"accountName"`
	IsActive    bool      `db:"is_active" json:"isActive"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
