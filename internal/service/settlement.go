package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-service/internal/apperr"
	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/payment"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SettlementService applies the terminal payment transitions. A success
// commits every reserved unit of the order, a failure releases them. Both
// run in one transaction with the guarded order update, so an order is
// settled at most once however many callbacks arrive.
type SettlementService struct {
	store     Store
	publisher EventPublisher
	now       clock
	logger    *zap.Logger
}

// NewSettlementService creates a new settlement service
func NewSettlementService(store Store, publisher EventPublisher) *SettlementService {
	return &SettlementService{
		store:     store,
		publisher: publisher,
		now:       systemClock,
		logger:    util.GetLogger(),
	}
}

type settlement struct {
	orderID   string
	to        models.PaymentStatus
	gateway   string
	eventID   string
	eventType string
	txID      string
	reason    string
}

// Settle applies a verified gateway notification. Duplicates and callbacks for
// already settled orders are acknowledged without effect.
func (s *SettlementService) Settle(ctx context.Context, n *payment.Notification) error {
	ctx, span := util.StartSpan(ctx, "SettlementService.Settle",
		attribute.String("gateway", n.Gateway),
		attribute.String("order_id", n.OrderID),
		attribute.String("outcome", string(n.Outcome)))
	defer span.End()

	st := settlement{
		orderID:   n.OrderID,
		gateway:   n.Gateway,
		eventID:   n.EventID,
		eventType: n.EventType,
		txID:      n.TransactionID,
	}
	switch n.Outcome {
	case payment.OutcomeSuccess:
		st.to = models.PaymentStatusPaid
	case payment.OutcomeFailure:
		st.to = models.PaymentStatusFailed
		st.reason = "payment failed: " + n.EventType
	default:
		util.SettlementsTotal.WithLabelValues(n.Gateway, "ignored").Inc()
		s.logger.Debug("Ignoring gateway notification",
			zap.String("gateway", n.Gateway),
			zap.String("event_type", n.EventType))
		return nil
	}

	if n.OrderID == "" {
		return apperr.Validation("notification %s carries no order id", n.EventID)
	}

	err := s.settle(ctx, st)
	if err != nil {
		util.RecordError(span, err)
	}
	return err
}

// Expire fails a PENDING order and releases its reservation. An order that
// settled meanwhile is left alone.
func (s *SettlementService) Expire(ctx context.Context, orderID, reason string) error {
	ctx, span := util.StartSpan(ctx, "SettlementService.Expire",
		attribute.String("order_id", orderID))
	defer span.End()

	err := s.settle(ctx, settlement{
		orderID: orderID,
		to:      models.PaymentStatusFailed,
		gateway: "internal",
		reason:  reason,
	})
	if err != nil {
		util.RecordError(span, err)
	}
	return err
}

func (s *SettlementService) settle(ctx context.Context, st settlement) error {
	start := time.Now()
	defer func() {
		util.SettlementLatency.Observe(time.Since(start).Seconds())
	}()

	var (
		order  *models.Order
		levels []*models.Inventory
		units  int
	)
	err := s.store.InTx(ctx, func(r store.Repository) error {
		if st.eventID != "" {
			fresh, err := r.MarkEventProcessed(ctx, st.eventID, st.eventType)
			if err != nil {
				return fmt.Errorf("failed to record event: %w", err)
			}
			if !fresh {
				return fmt.Errorf("event %s already processed: %w", st.eventID, apperr.ErrAlreadySettled)
			}
		}

		var err error
		order, err = r.SettlePayment(ctx, st.orderID, st.to)
		if err != nil {
			return err
		}

		items, err := r.GetOrderItems(ctx, st.orderID)
		if err != nil {
			return fmt.Errorf("failed to load order items: %w", err)
		}

		levels = make([]*models.Inventory, 0, len(items))
		for _, item := range items {
			var inv *models.Inventory
			if st.to == models.PaymentStatusPaid {
				inv, err = r.CommitStock(ctx, item.ProductID, item.Quantity)
			} else {
				inv, err = r.ReleaseStock(ctx, item.ProductID, item.Quantity)
			}
			if err != nil {
				return err
			}
			levels = append(levels, inv)
			units += item.Quantity
		}
		return nil
	})

	if errors.Is(err, apperr.ErrAlreadySettled) {
		util.SettlementsTotal.WithLabelValues(st.gateway, "duplicate").Inc()
		s.logger.Info("Settlement skipped, order already settled",
			zap.String("order_id", st.orderID),
			zap.String("event_id", st.eventID),
			zap.String("target", string(st.to)))
		return nil
	}
	if err != nil {
		util.SettlementsTotal.WithLabelValues(st.gateway, "error").Inc()
		s.logger.Error("Settlement failed",
			zap.String("order_id", st.orderID),
			zap.String("target", string(st.to)),
			zap.Error(err))
		return fmt.Errorf("settle order %s: %w", st.orderID, err)
	}

	if st.to == models.PaymentStatusPaid {
		util.SettlementsTotal.WithLabelValues(st.gateway, "paid").Inc()
		s.logger.Info("Order paid",
			zap.String("order_id", order.ID),
			zap.String("order_number", order.OrderNumber),
			zap.String("gateway", st.gateway))

		txID := st.txID
		if txID == "" && order.GatewayTransactionID != nil {
			txID = *order.GatewayTransactionID
		}
		paid := &models.OrderPaidEvent{
			BaseEvent:     broker.NewBaseEvent(models.EventTypeOrderPaid),
			OrderID:       order.ID,
			PaymentMethod: order.PaymentMethod,
			TxID:          txID,
		}
		if err := s.publisher.PublishOrderPaid(ctx, paid); err != nil {
			publishFailed(models.EventTypeOrderPaid, order.ID, err)
		}
		publishInventory(ctx, s.publisher, models.InventoryReasonCommitted, levels...)
		return nil
	}

	util.SettlementsTotal.WithLabelValues(st.gateway, "cancelled").Inc()
	util.SweeperReleasedUnits.WithLabelValues("order").Add(float64(units))
	s.logger.Info("Order cancelled",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("reason", st.reason))

	cancelled := &models.OrderCancelledEvent{
		BaseEvent: broker.NewBaseEvent(models.EventTypeOrderCancelled),
		OrderID:   order.ID,
		Reason:    st.reason,
	}
	if err := s.publisher.PublishOrderCancelled(ctx, cancelled); err != nil {
		publishFailed(models.EventTypeOrderCancelled, order.ID, err)
	}
	publishInventory(ctx, s.publisher, models.InventoryReasonReleased, levels...)
	return nil
}

// ExpireStale fails PENDING orders created more than timeout ago. It returns
// how many orders were expired; per-order failures are logged and skipped.
func (s *SettlementService) ExpireStale(ctx context.Context, timeout time.Duration, limit int) (int, error) {
	ctx, span := util.StartSpan(ctx, "SettlementService.ExpireStale")
	defer span.End()

	orders, err := s.store.ListStalePendingOrders(ctx, s.now().Add(-timeout), limit)
	if err != nil {
		util.RecordError(span, err)
		return 0, fmt.Errorf("failed to list stale orders: %w", err)
	}

	expired := 0
	for _, order := range orders {
		if err := s.Expire(ctx, order.ID, "payment timeout"); err != nil {
			s.logger.Error("Failed to expire order",
				zap.String("order_id", order.ID),
				zap.Error(err))
			continue
		}
		expired++
	}
	return expired, nil
}
