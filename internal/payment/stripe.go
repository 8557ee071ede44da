package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storefront-service/config"
	"storefront-service/internal/apperr"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

const (
	stripeSignatureHeader = "Stripe-Signature"
	stripeOrderMetadata   = "orderId"
)

// StripeGateway uses Stripe Checkout Sessions
type StripeGateway struct {
	sc            *client.API
	webhookSecret string
	appURL        string
}

// NewStripeGateway creates the adapter; nil backends means the live Stripe API
func NewStripeGateway(cfg config.StripeConfig, appURL string, backends *stripe.Backends) *StripeGateway {
	return &StripeGateway{
		sc:            client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
		appURL:        appURL,
	}
}

func (g *StripeGateway) Name() string { return models.PaymentMethodStripe }

func (g *StripeGateway) RegisterTransaction(ctx context.Context, req RegisterRequest) (*Registration, error) {
	start := time.Now()
	defer func() {
		util.GatewayRequestLatency.WithLabelValues(g.Name(), "register").Observe(time.Since(start).Seconds())
	}()

	currency := strings.ToLower(req.Currency)
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items))
	for _, item := range req.Items {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
				UnitAmount: stripe.Int64(minorUnits(item.UnitPrice)),
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          lineItems,
		CustomerEmail:      stripe.String(req.CustomerEmail),
		ClientReferenceID:  stripe.String(req.OrderID),
		SuccessURL:         stripe.String(g.appURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:          stripe.String(g.appURL + "/cart"),
	}
	params.Context = ctx
	params.AddMetadata(stripeOrderMetadata, req.OrderID)
	params.AddMetadata("orderNumber", req.OrderNumber)

	sess, err := g.sc.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: stripe checkout session: %v", apperr.ErrGateway, err)
	}

	return &Registration{
		TransactionID: sess.ID,
		RedirectURL:   sess.URL,
	}, nil
}

// VerifyNotification checks the Stripe-Signature header and maps checkout
// session events onto settlement outcomes.
func (g *StripeGateway) VerifyNotification(_ context.Context, header http.Header, body []byte) (*Notification, error) {
	event, err := webhook.ConstructEventWithOptions(body, header.Get(stripeSignatureHeader), g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidSignature, err)
	}

	n := &Notification{
		Gateway:   g.Name(),
		EventID:   event.ID,
		EventType: string(event.Type),
		Outcome:   OutcomeIgnored,
	}

	var outcome Outcome
	switch string(event.Type) {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		outcome = OutcomeSuccess
	case "checkout.session.expired", "checkout.session.async_payment_failed":
		outcome = OutcomeFailure
	default:
		return n, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, apperr.Validation("malformed checkout session: %v", err)
	}

	// completed fires before delayed methods have paid; async_payment_succeeded follows
	if string(event.Type) == "checkout.session.completed" &&
		sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		return n, nil
	}

	n.OrderID = sess.Metadata[stripeOrderMetadata]
	if n.OrderID == "" {
		n.OrderID = sess.ClientReferenceID
	}
	if n.OrderID == "" {
		return nil, apperr.Validation("checkout session %s carries no order id", sess.ID)
	}
	n.TransactionID = sess.ID
	n.Outcome = outcome
	return n, nil
}
