package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/payment"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var _ Store = (*memStore)(nil)

type mockGateway struct {
	mock.Mock
	name string
}

func (m *mockGateway) Name() string { return m.name }

func (m *mockGateway) RegisterTransaction(ctx context.Context, req payment.RegisterRequest) (*payment.Registration, error) {
	args := m.Called(ctx, req)
	reg, _ := args.Get(0).(*payment.Registration)
	return reg, args.Error(1)
}

func (m *mockGateway) VerifyNotification(ctx context.Context, header http.Header, body []byte) (*payment.Notification, error) {
	args := m.Called(ctx, header, body)
	n, _ := args.Get(0).(*payment.Notification)
	return n, args.Error(1)
}

func (m *mockGateway) AuthorizeCode(ctx context.Context, token, code string) error {
	return m.Called(ctx, token, code).Error(0)
}

type testEnv struct {
	store      *memStore
	publisher  *recordingPublisher
	stripe     *mockGateway
	blik       *mockGateway
	cart       *CartService
	checkout   *CheckoutService
	settlement *SettlementService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := newMemStore()
	pub := &recordingPublisher{}
	stripeGw := &mockGateway{name: models.PaymentMethodStripe}
	blikGw := &mockGateway{name: models.PaymentMethodBlik}

	registry, err := payment.NewRegistry(models.PaymentMethodStripe, stripeGw, blikGw)
	require.NoError(t, err)

	settlement := NewSettlementService(st, pub)
	return &testEnv{
		store:      st,
		publisher:  pub,
		stripe:     stripeGw,
		blik:       blikGw,
		cart:       NewCartService(st, pub, 30*time.Minute),
		checkout:   NewCheckoutService(st, registry, settlement, pub, "PLN"),
		settlement: settlement,
	}
}

// stripeAccepts makes every Stripe registration succeed
func (e *testEnv) stripeAccepts() {
	e.stripe.On("RegisterTransaction", mock.Anything, mock.Anything).
		Return(&payment.Registration{TransactionID: "cs_test_1", RedirectURL: "https://checkout.stripe.test/cs_test_1"}, nil)
}

func (e *testEnv) seedProduct(id string, price string, quantity int) {
	e.store.seed(models.Product{
		ID:        id,
		SKU:       "SKU-" + id,
		Name:      "Product " + id,
		Price:     decimal.RequireFromString(price),
		Currency:  "PLN",
		IsVisible: true,
	}, quantity)
}

func checkoutRequest(sessionID string, items ...CheckoutItem) CheckoutRequest {
	return CheckoutRequest{
		SessionID:     sessionID,
		Items:         items,
		CustomerEmail: "ann@example.com",
		CustomerName:  "Ann Kowalska",
		ShippingAddress: models.Address{
			FirstName: "Ann", LastName: "Kowalska", Address1: "Prosta 1",
			City: "Warszawa", PostalCode: "00-001", Country: "PL",
		},
	}
}

// placeOrder checks out qty units of productID through Stripe and returns the order id
func (e *testEnv) placeOrder(t *testing.T, sessionID, productID string, qty int) string {
	t.Helper()
	resp, err := e.checkout.Checkout(context.Background(),
		checkoutRequest(sessionID, CheckoutItem{ProductID: productID, Quantity: qty}))
	require.NoError(t, err)
	return resp.OrderID
}

func paidNotification(orderID, eventID string) *payment.Notification {
	return &payment.Notification{
		Gateway:   models.PaymentMethodStripe,
		EventID:   eventID,
		EventType: "checkout.session.completed",
		OrderID:   orderID,
		Outcome:   payment.OutcomeSuccess,
	}
}

func failedNotification(orderID, eventID string) *payment.Notification {
	return &payment.Notification{
		Gateway:   models.PaymentMethodStripe,
		EventID:   eventID,
		EventType: "checkout.session.expired",
		OrderID:   orderID,
		Outcome:   payment.OutcomeFailure,
	}
}

// cartUnits sums the quantity held by every cart line of productID
func (s *memStore) cartUnits(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, c := range s.st.cart {
		if c.ProductID == productID {
			total += c.Quantity
		}
	}
	return total
}

// pendingOrderUnits sums the quantity of productID on unsettled orders
func (s *memStore) pendingOrderUnits(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for id, o := range s.st.orders {
		if o.PaymentStatus != models.PaymentStatusPending {
			continue
		}
		for _, item := range s.st.orderItems[id] {
			if item.ProductID == productID {
				total += item.Quantity
			}
		}
	}
	return total
}
