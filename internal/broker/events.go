package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	orders    *Producer
	inventory *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(orders, inventory *Producer) *EventPublisher {
	return &EventPublisher{orders: orders, inventory: inventory}
}

// NewBaseEvent stamps a fresh id and time
func NewBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ep.orders.PublishEvent(ctx, "order-"+event.OrderID, event)
}

// PublishOrderPaid publishes OrderPaid event
func (ep *EventPublisher) PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error {
	return ep.orders.PublishEvent(ctx, "order-"+event.OrderID, event)
}

// PublishOrderCancelled publishes OrderCancelled event
func (ep *EventPublisher) PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	return ep.orders.PublishEvent(ctx, "order-"+event.OrderID, event)
}

// PublishInventoryChanged publishes the ledger state of one product
func (ep *EventPublisher) PublishInventoryChanged(ctx context.Context, event *models.InventoryChangedEvent) error {
	return ep.inventory.PublishEvent(ctx, "product-"+event.ProductID, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onInventoryChanged func(context.Context, *models.InventoryChangedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnInventoryChanged registers a handler for InventoryChanged events
func (eh *EventHandler) OnInventoryChanged(handler func(context.Context, *models.InventoryChangedEvent) error) {
	eh.onInventoryChanged = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	logger := util.GetLogger()
	logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeInventoryChanged:
		if eh.onInventoryChanged != nil {
			var event models.InventoryChangedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal InventoryChanged event: %w", err)
			}
			return eh.onInventoryChanged(ctx, &event)
		}

	default:
		logger.Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
