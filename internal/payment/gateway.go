// Package payment holds the gateway adapters used by checkout and by the
// webhook endpoints.
package payment

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	// OutcomeIgnored is a verified callback that does not settle anything
	OutcomeIgnored Outcome = "ignored"
)

// LineItem is shown to the shopper on the gateway's hosted page
type LineItem struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

type RegisterRequest struct {
	OrderID       string
	OrderNumber   string
	CustomerEmail string
	CustomerName  string
	Amount        decimal.Decimal
	Currency      string
	Items         []LineItem
	BlikCode      string
}

type Registration struct {
	TransactionID    string
	RedirectURL      string
	Token            string
	RequiresBlikCode bool
}

// Notification is a verified gateway callback
type Notification struct {
	Gateway       string
	EventID       string
	EventType     string
	OrderID       string
	TransactionID string
	Outcome       Outcome
}

// Gateway registers payments and authenticates their callbacks.
// VerifyNotification must return an error wrapping apperr.ErrInvalidSignature
// when the callback cannot be authenticated.
type Gateway interface {
	Name() string
	RegisterTransaction(ctx context.Context, req RegisterRequest) (*Registration, error)
	VerifyNotification(ctx context.Context, header http.Header, body []byte) (*Notification, error)
}

// CodeAuthorizer is implemented by gateways that accept an in-page payment code
type CodeAuthorizer interface {
	AuthorizeCode(ctx context.Context, token, code string) error
}

// minorUnits converts an amount to the smallest currency unit
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
