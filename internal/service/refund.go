package service

import (
	"context"
	"fmt"
	"strings"

	"storefront-service/internal/apperr"
	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// RefundService handles refund requests for paid orders
type RefundService struct {
	store  Store
	logger *zap.Logger
}

// NewRefundService creates a new refund service
func NewRefundService(store Store) *RefundService {
	return &RefundService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// RefundRequestInput represents a shopper's refund request
type RefundRequestInput struct {
	OrderID string           `json:"orderId" binding:"required"`
	Reason  string           `json:"reason" binding:"required"`
	Amount  *decimal.Decimal `json:"amount,omitempty"`
}

// RequestRefund opens a refund request. The order must be the caller's, paid,
// and without another open request. The amount defaults to the order total.
func (s *RefundService) RequestRefund(ctx context.Context, userID string, in RefundRequestInput) (*models.RefundRequest, error) {
	ctx, span := util.StartSpan(ctx, "RefundService.RequestRefund",
		attribute.String("order_id", in.OrderID))
	defer span.End()

	if userID == "" {
		return nil, apperr.ErrUnauthorized
	}
	if in.OrderID == "" || strings.TrimSpace(in.Reason) == "" {
		return nil, apperr.Validation("orderId and reason are required")
	}

	order, err := s.store.GetOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if order.UserID == nil || *order.UserID != userID {
		return nil, fmt.Errorf("order %s: %w", in.OrderID, apperr.ErrUnauthorized)
	}
	if order.PaymentStatus != models.PaymentStatusPaid {
		return nil, apperr.Validation("order %s has not been paid", in.OrderID)
	}

	amount := order.Total
	if in.Amount != nil {
		amount = *in.Amount
		if !amount.IsPositive() || amount.GreaterThan(order.Total) {
			return nil, apperr.Validation("refund amount must be between 0 and %s", order.Total.StringFixed(2))
		}
	}

	open, err := s.store.HasOpenRefund(ctx, in.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to check refund requests: %w", err)
	}
	if open {
		return nil, fmt.Errorf("refund request already exists for order %s: %w", in.OrderID, apperr.ErrConflict)
	}

	refund := &models.RefundRequest{
		ID:      uuid.NewString(),
		OrderID: in.OrderID,
		UserID:  userID,
		Reason:  strings.TrimSpace(in.Reason),
		Amount:  amount,
		Status:  models.RefundStatusPending,
	}
	if err := s.store.CreateRefund(ctx, refund); err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Refund requested",
		zap.String("refund_id", refund.ID),
		zap.String("order_id", in.OrderID),
		zap.String("amount", amount.StringFixed(2)))
	return refund, nil
}

// ListRefunds lists the user's requests; an empty userID lists all of them
func (s *RefundService) ListRefunds(ctx context.Context, userID string) ([]models.RefundRequest, error) {
	refunds, err := s.store.ListRefunds(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list refund requests: %w", err)
	}
	return refunds, nil
}

// Approve accepts a pending request and marks its order REFUNDED in the same transaction
func (s *RefundService) Approve(ctx context.Context, refundID string) (*models.RefundRequest, error) {
	ctx, span := util.StartSpan(ctx, "RefundService.Approve",
		attribute.String("refund_id", refundID))
	defer span.End()

	var refund *models.RefundRequest
	err := s.store.InTx(ctx, func(r store.Repository) error {
		var err error
		refund, err = r.UpdateRefundStatus(ctx, refundID, models.RefundStatusApproved)
		if err != nil {
			return err
		}
		return r.MarkRefunded(ctx, refund.OrderID)
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("approve refund: %w", err)
	}

	s.logger.Info("Refund approved",
		zap.String("refund_id", refundID),
		zap.String("order_id", refund.OrderID))
	return refund, nil
}

func (s *RefundService) Reject(ctx context.Context, refundID string) (*models.RefundRequest, error) {
	ctx, span := util.StartSpan(ctx, "RefundService.Reject",
		attribute.String("refund_id", refundID))
	defer span.End()

	refund, err := s.store.UpdateRefundStatus(ctx, refundID, models.RefundStatusRejected)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("reject refund: %w", err)
	}

	s.logger.Info("Refund rejected", zap.String("refund_id", refundID))
	return refund, nil
}
