package service

import (
	"context"
	"fmt"
	"strings"

	"storefront-service/internal/apperr"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SupportService records customer support tickets
type SupportService struct {
	store  Store
	logger *zap.Logger
}

// NewSupportService creates a new support service
func NewSupportService(store Store) *SupportService {
	return &SupportService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// TicketInput represents a message to the support team
type TicketInput struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Subject string `json:"subject" binding:"required"`
	Message string `json:"message" binding:"required"`
	OrderID string `json:"orderId,omitempty"`
}

// CreateTicket opens a ticket. Guests may write in; userID links the ticket
// to a signed-in customer when set.
func (s *SupportService) CreateTicket(ctx context.Context, userID string, in TicketInput) (*models.SupportTicket, error) {
	ctx, span := util.StartSpan(ctx, "SupportService.CreateTicket")
	defer span.End()

	in.Name, in.Email = strings.TrimSpace(in.Name), strings.TrimSpace(in.Email)
	in.Subject, in.Message = strings.TrimSpace(in.Subject), strings.TrimSpace(in.Message)
	if in.Name == "" || in.Email == "" || in.Subject == "" || in.Message == "" {
		return nil, apperr.Validation("missing required fields")
	}

	ticket := &models.SupportTicket{
		ID:       uuid.NewString(),
		Name:     in.Name,
		Email:    in.Email,
		Subject:  in.Subject,
		Message:  in.Message,
		Status:   models.TicketStatusOpen,
		Priority: models.TicketPriorityNormal,
	}
	if userID != "" {
		ticket.UserID = &userID
	}
	if in.OrderID != "" {
		ticket.OrderID = &in.OrderID
	}

	if err := s.store.CreateTicket(ctx, ticket); err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Support ticket opened",
		zap.String("ticket_id", ticket.ID),
		zap.Bool("guest", ticket.UserID == nil))
	return ticket, nil
}

// ListTickets lists the user's tickets; an empty userID lists all of them
func (s *SupportService) ListTickets(ctx context.Context, userID string) ([]models.SupportTicket, error) {
	tickets, err := s.store.ListTickets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list support tickets: %w", err)
	}
	return tickets, nil
}
