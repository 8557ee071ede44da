package store

import (
	"context"
	"fmt"

	"storefront-service/internal/models"
)

type SupportRepository interface {
	CreateTicket(ctx context.Context, t *models.SupportTicket) error
	ListTickets(ctx context.Context, userID string) ([]models.SupportTicket, error)
}

func (q *queries) CreateTicket(ctx context.Context, t *models.SupportTicket) error {
	query := `
		INSERT INTO support_tickets (id, user_id, order_id, name, email, subject, message, status, priority)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	err := q.q.QueryRowxContext(ctx, query,
		t.ID, t.UserID, t.OrderID, t.Name, t.Email, t.Subject, t.Message, t.Status, t.Priority,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create support ticket: %w", translate(err))
	}
	return nil
}

// ListTickets lists a user's tickets newest first, or every ticket when userID is empty
func (q *queries) ListTickets(ctx context.Context, userID string) ([]models.SupportTicket, error) {
	tickets := []models.SupportTicket{}
	if userID == "" {
		err := q.sel(ctx, &tickets, "SELECT * FROM support_tickets ORDER BY created_at DESC")
		return tickets, err
	}
	err := q.sel(ctx, &tickets,
		"SELECT * FROM support_tickets WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return tickets, err
}
