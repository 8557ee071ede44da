package models

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

type RefundStatus string

const (
	RefundStatusPending  RefundStatus = "PENDING"
	RefundStatusApproved RefundStatus = "APPROVED"
	RefundStatusRejected RefundStatus = "REJECTED"
)

type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "OPEN"
	TicketStatusClosed TicketStatus = "CLOSED"
)

const TicketPriorityNormal = "NORMAL"

// Payment methods double as gateway names.
const (
	PaymentMethodStripe = "stripe"
	PaymentMethodBlik   = "blik"
)

var validOrderNext = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending:    {OrderStatusProcessing: true, OrderStatusCancelled: true},
	OrderStatusProcessing: {OrderStatusShipped: true},
	OrderStatusShipped:    {OrderStatusDelivered: true},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

var validPaymentNext = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentStatusPending:  {PaymentStatusPaid: true, PaymentStatusFailed: true},
	PaymentStatusPaid:     {PaymentStatusRefunded: true},
	PaymentStatusFailed:   {},
	PaymentStatusRefunded: {},
}

func CanTransition(from, to OrderStatus) bool {
	return validOrderNext[from][to]
}

func CanTransitionPayment(from, to PaymentStatus) bool {
	return validPaymentNext[from][to]
}

// FulfilmentPredecessor returns the only status an order may be in before moving to "to" through the admin flow.
func FulfilmentPredecessor(to OrderStatus) (OrderStatus, bool) {
	switch to {
	case OrderStatusShipped:
		return OrderStatusProcessing, true
	case OrderStatusDelivered:
		return OrderStatusShipped, true
	}
	return "", false
}

func ValidOrderStatus(s OrderStatus) bool {
	_, ok := validOrderNext[s]
	return ok
}

func ValidPaymentStatus(s PaymentStatus) bool {
	_, ok := validPaymentNext[s]
	return ok
}

// StockOperation is an administrative inventory override
type StockOperation string

const (
	StockSet       StockOperation = "set"
	StockIncrement StockOperation = "increment"
	StockDecrement StockOperation = "decrement"
)

func (op StockOperation) Valid() bool {
	switch op {
	case StockSet, StockIncrement, StockDecrement:
		return true
	}
	return false
}

// Marketplaces with an adapter
const (
	MarketplaceAllegro    = "allegro"
	MarketplaceAmazon     = "amazon"
	MarketplaceAliexpress = "aliexpress"
)
