// Package service holds the storefront business logic: cart reservations,
// checkout, payment settlement and the admin operations around them.
package service

import (
	"context"
	"errors"
	"time"

	"storefront-service/internal/apperr"
	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/payment"
	"storefront-service/internal/store"
)

// Store is the persistence the services need. *store.Store implements it.
type Store interface {
	store.Repository
	InTx(ctx context.Context, fn func(store.Repository) error) error
}

// EventPublisher is implemented by *broker.EventPublisher
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
	PublishInventoryChanged(ctx context.Context, event *models.InventoryChangedEvent) error
}

// Gateways resolves a payment method to its gateway. *payment.Registry implements it.
type Gateways interface {
	Get(name string) (payment.Gateway, error)
}

var (
	_ Store          = (*store.Store)(nil)
	_ EventPublisher = (*broker.EventPublisher)(nil)
	_ Gateways       = (*payment.Registry)(nil)
)

type clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// outcomeOf labels a failed operation for the metrics
func outcomeOf(err error) string {
	switch {
	case errors.Is(err, apperr.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, apperr.ErrProductUnavailable):
		return "unavailable"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrValidation):
		return "invalid"
	case errors.Is(err, apperr.ErrGateway):
		return "gateway_error"
	}
	return "error"
}

func isNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}
