package service

import (
	"context"

	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// publishInventory announces the ledger state of each product after a
// committed mutation. Failures are logged and counted, never returned.
func publishInventory(ctx context.Context, publisher EventPublisher, reason string, levels ...*models.Inventory) {
	if publisher == nil {
		return
	}
	for _, inv := range levels {
		if inv == nil {
			continue
		}
		event := &models.InventoryChangedEvent{
			BaseEvent: broker.NewBaseEvent(models.EventTypeInventoryChanged),
			ProductID: inv.ProductID,
			Quantity:  inv.Quantity,
			Reserved:  inv.Reserved,
			Available: inv.Available(),
			LowStock:  inv.IsLowStock(),
			Reason:    reason,
		}
		if err := publisher.PublishInventoryChanged(ctx, event); err != nil {
			util.EventPublishFailedTotal.WithLabelValues(models.EventTypeInventoryChanged).Inc()
			util.GetLogger().Error("Failed to publish InventoryChanged event",
				zap.String("product_id", inv.ProductID),
				zap.String("reason", reason),
				zap.Error(err))
		}
	}
}

func publishFailed(eventType string, orderID string, err error) {
	util.EventPublishFailedTotal.WithLabelValues(eventType).Inc()
	util.GetLogger().Error("Failed to publish order event",
		zap.String("event_type", eventType),
		zap.String("order_id", orderID),
		zap.Error(err))
}
