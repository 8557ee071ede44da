package models

import "time"

// Event types
const (
	EventTypeOrderCreated     = "ORDER_CREATED"
	EventTypeOrderPaid        = "ORDER_PAID"
	EventTypeOrderCancelled   = "ORDER_CANCELLED"
	EventTypeInventoryChanged = "INVENTORY_CHANGED"
)

// Reasons carried by InventoryChangedEvent
const (
	InventoryReasonReserved    = "reserved"
	InventoryReasonCommitted   = "committed"
	InventoryReasonReleased    = "released"
	InventoryReasonAdjusted    = "adjusted"
	InventoryReasonExpiredCart = "expired_cart"
	InventoryReasonManualSync  = "manual_sync"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published after checkout registered a gateway transaction
type OrderCreatedEvent struct {
	BaseEvent
	OrderID       string          `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	PaymentMethod string          `json:"payment_method"`
	Total         string          `json:"total"`
	Currency      string          `json:"currency"`
	Items         []OrderItemData `json:"items"`
}

// OrderPaidEvent published when settlement committed the stock
type OrderPaidEvent struct {
	BaseEvent
	OrderID       string `json:"order_id"`
	PaymentMethod string `json:"payment_method"`
	TxID          string `json:"tx_id"`
}

// OrderCancelledEvent published when settlement released the stock
type OrderCancelledEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// InventoryChangedEvent carries the ledger state after a mutation; consumed by marketplace sync
type InventoryChangedEvent struct {
	BaseEvent
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Reserved  int    `json:"reserved"`
	Available int    `json:"available"`
	LowStock  bool   `json:"low_stock"`
	Reason    string `json:"reason"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}
