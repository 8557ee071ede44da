package store

import (
	"context"
	"fmt"

	"storefront-service/internal/apperr"
	"storefront-service/internal/models"
)

type RefundRepository interface {
	CreateRefund(ctx context.Context, r *models.RefundRequest) error
	GetRefund(ctx context.Context, id string) (*models.RefundRequest, error)
	ListRefunds(ctx context.Context, userID string) ([]models.RefundRequest, error)
	HasOpenRefund(ctx context.Context, orderID string) (bool, error)
	UpdateRefundStatus(ctx context.Context, id string, to models.RefundStatus) (*models.RefundRequest, error)
}

// CreateRefund inserts a PENDING request. The partial unique index turns a
// second open request for the same order into ErrConflict.
func (q *queries) CreateRefund(ctx context.Context, r *models.RefundRequest) error {
	query := `
		INSERT INTO refund_requests (id, order_id, user_id, reason, amount, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err := q.q.QueryRowxContext(ctx, query,
		r.ID, r.OrderID, r.UserID, r.Reason, r.Amount, r.Status,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create refund request: %w", translate(err))
	}
	return nil
}

func (q *queries) GetRefund(ctx context.Context, id string) (*models.RefundRequest, error) {
	var r models.RefundRequest
	err := q.get(ctx, &r, "SELECT * FROM refund_requests WHERE id = $1", id)
	if isNoRows(err) {
		return nil, apperr.NotFound("refund request", id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRefunds lists a user's requests, or every request when userID is empty
func (q *queries) ListRefunds(ctx context.Context, userID string) ([]models.RefundRequest, error) {
	refunds := []models.RefundRequest{}
	if userID == "" {
		err := q.sel(ctx, &refunds, "SELECT * FROM refund_requests ORDER BY created_at DESC")
		return refunds, err
	}
	err := q.sel(ctx, &refunds,
		"SELECT * FROM refund_requests WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return refunds, err
}

func (q *queries) HasOpenRefund(ctx context.Context, orderID string) (bool, error) {
	var exists bool
	err := q.get(ctx, &exists, `
		SELECT EXISTS(SELECT 1 FROM refund_requests
		WHERE order_id = $1 AND status IN ('PENDING', 'APPROVED'))`, orderID)
	return exists, err
}

// UpdateRefundStatus decides a PENDING request
func (q *queries) UpdateRefundStatus(ctx context.Context, id string, to models.RefundStatus) (*models.RefundRequest, error) {
	var r models.RefundRequest
	err := q.get(ctx, &r, `
		UPDATE refund_requests SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
		RETURNING *`, id, to)
	if err == nil {
		return &r, nil
	}
	if !isNoRows(err) {
		return nil, fmt.Errorf("failed to update refund request: %w", err)
	}

	current, err := q.GetRefund(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("refund request %s is %s: %w", id, current.Status, apperr.ErrInvalidTransition)
}
