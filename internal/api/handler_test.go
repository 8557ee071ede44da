package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront-service/internal/apperr"
	"storefront-service/internal/models"
	"storefront-service/internal/payment"
	"storefront-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockCart struct{ mock.Mock }

func (m *mockCart) AddToCart(ctx context.Context, req service.AddToCartRequest) (*models.CartItem, error) {
	args := m.Called(ctx, req)
	item, _ := args.Get(0).(*models.CartItem)
	return item, args.Error(1)
}

func (m *mockCart) UpdateQuantity(ctx context.Context, sessionID, itemID string, qty int) (*models.CartItem, error) {
	args := m.Called(ctx, sessionID, itemID, qty)
	item, _ := args.Get(0).(*models.CartItem)
	return item, args.Error(1)
}

func (m *mockCart) RemoveFromCart(ctx context.Context, sessionID, itemID string) error {
	return m.Called(ctx, sessionID, itemID).Error(0)
}

func (m *mockCart) GetCart(ctx context.Context, sessionID string) (*service.Cart, error) {
	args := m.Called(ctx, sessionID)
	cart, _ := args.Get(0).(*service.Cart)
	return cart, args.Error(1)
}

type mockCheckout struct{ mock.Mock }

func (m *mockCheckout) Checkout(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*service.CheckoutResponse)
	return resp, args.Error(1)
}

func (m *mockCheckout) SubmitBlikCode(ctx context.Context, orderID, code string) error {
	return m.Called(ctx, orderID, code).Error(0)
}

type mockSettlement struct{ mock.Mock }

func (m *mockSettlement) Settle(ctx context.Context, n *payment.Notification) error {
	return m.Called(ctx, n).Error(0)
}

type mockGateway struct{ mock.Mock }

func (m *mockGateway) Name() string { return "stripe" }

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

type mockOrders struct{ mock.Mock }

func (m *mockOrders) GetOrder(ctx context.Context, orderID, userID string, isAdmin bool) (*service.OrderDetails, error) {
	args := m.Called(ctx, orderID, userID, isAdmin)
	details, _ := args.Get(0).(*service.OrderDetails)
	return details, args.Error(1)
}

func (m *mockOrders) ListUserOrders(ctx context.Context, userID string, limit, offset int) ([]models.Order, error) {
	args := m.Called(ctx, userID, limit, offset)
	orders, _ := args.Get(0).([]models.Order)
	return orders, args.Error(1)
}

func (m *mockOrders) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	args := m.Called(ctx, filter)
	orders, _ := args.Get(0).([]models.Order)
	return orders, args.Error(1)
}

func (m *mockOrders) UpdateStatus(ctx context.Context, orderID string, to models.OrderStatus) (*models.Order, error) {
	args := m.Called(ctx, orderID, to)
	order, _ := args.Get(0).(*models.Order)
	return order, args.Error(1)
}

type mockAnalytics struct{ mock.Mock }

func (m *mockAnalytics) SalesReport(ctx context.Context, periodDays int) (*models.SalesReport, error) {
	args := m.Called(ctx, periodDays)
	report, _ := args.Get(0).(*models.SalesReport)
	return report, args.Error(1)
}

type mockSupport struct{ mock.Mock }

func (m *mockSupport) CreateTicket(ctx context.Context, userID string, in service.TicketInput) (*models.SupportTicket, error) {
	args := m.Called(ctx, userID, in)
	ticket, _ := args.Get(0).(*models.SupportTicket)
	return ticket, args.Error(1)
}

func (m *mockSupport) ListTickets(ctx context.Context, userID string) ([]models.SupportTicket, error) {
	args := m.Called(ctx, userID)
	tickets, _ := args.Get(0).([]models.SupportTicket)
	return tickets, args.Error(1)
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type testServer struct {
	router     *gin.Engine
	cart       *mockCart
	checkout   *mockCheckout
	settlement *mockSettlement
	stripe     *mockGateway
	orders     *mockOrders
	analytics  *mockAnalytics
	support    *mockSupport
}

func newTestServer(t *testing.T, deps map[string]Pinger) *testServer {
	t.Helper()
	stripe := &mockGateway{}
	registry, err := payment.NewRegistry("stripe", stripe)
	require.NoError(t, err)

	ts := &testServer{
		router:     gin.New(),
		cart:       &mockCart{},
		checkout:   &mockCheckout{},
		settlement: &mockSettlement{},
		stripe:     stripe,
		orders:     &mockOrders{},
		analytics:  &mockAnalytics{},
		support:    &mockSupport{},
	}
	h := NewHandler(Services{
		Cart:       ts.cart,
		Checkout:   ts.checkout,
		Settlement: ts.settlement,
		Gateways:   registry,
		Orders:     ts.orders,
		Analytics:  ts.analytics,
		Support:    ts.support,
	}, deps)
	h.SetupRoutes(ts.router)
	return ts
}

func (ts *testServer) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestAddToCartCreated(t *testing.T) {
	ts := newTestServer(t, nil)
	req := service.AddToCartRequest{SessionID: "s-1", ProductID: "p-1", Quantity: 2}
	ts.cart.On("AddToCart", mock.Anything, req).
		Return(&models.CartItem{ID: "ci-1", SessionID: "s-1", ProductID: "p-1", Quantity: 2}, nil)

	rec := ts.do(http.MethodPost, "/api/v1/cart", req, nil)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "ci-1", decode(t, rec)["id"])
	ts.cart.AssertExpectations(t)
}

func TestAddToCartRejectsBadBody(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/api/v1/cart", map[string]any{"sessionId": "s-1", "productId": "p-1", "quantity": 0}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	ts.cart.AssertNotCalled(t, "AddToCart", mock.Anything, mock.Anything)
}

func TestAddToCartInsufficientStockReportsAvailable(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.cart.On("AddToCart", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("add to cart: %w", apperr.InsufficientStock("p-1", 5, 2)))

	rec := ts.do(http.MethodPost, "/api/v1/cart", service.AddToCartRequest{SessionID: "s-1", ProductID: "p-1", Quantity: 5}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "p-1", body["productId"])
	assert.Equal(t, float64(2), body["availableQuantity"])
}

func TestUpdateCartItemToZeroRemoves(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.cart.On("UpdateQuantity", mock.Anything, "s-1", "ci-1", 0).Return(nil, nil)

	rec := ts.do(http.MethodPut, "/api/v1/cart/ci-1", map[string]any{"sessionId": "s-1", "quantity": 0}, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["removed"])
}

func TestCartLineChangesRequireSessionID(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPut, "/api/v1/cart/ci-1", map[string]any{"quantity": 3}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodDelete, "/api/v1/cart/ci-1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.cart.AssertNotCalled(t, "UpdateQuantity", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	ts.cart.AssertNotCalled(t, "RemoveFromCart", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateCartItemSessionFromQuery(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.cart.On("UpdateQuantity", mock.Anything, "s-1", "ci-1", 3).
		Return(&models.CartItem{ID: "ci-1", SessionID: "s-1", Quantity: 3}, nil)

	rec := ts.do(http.MethodPut, "/api/v1/cart/ci-1?sessionId=s-1", map[string]any{"quantity": 3}, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	ts.cart.AssertExpectations(t)
}

func TestRemoveCartItemNotFound(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.cart.On("RemoveFromCart", mock.Anything, "s-1", "ci-9").Return(apperr.NotFound("cart item", "ci-9"))

	rec := ts.do(http.MethodDelete, "/api/v1/cart/ci-9?sessionId=s-1", nil, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

var shippingAddress = map[string]any{
	"firstName":  "Jan",
	"lastName":   "Kowalski",
	"address1":   "ul. Prosta 1",
	"city":       "Warszawa",
	"postalCode": "00-001",
	"country":    "PL",
}

func TestCheckoutPassesIdentityHeaders(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.checkout.On("Checkout", mock.Anything, mock.MatchedBy(func(req service.CheckoutRequest) bool {
		return req.UserID == "u-1" && req.IdempotencyKey == "key-1" && len(req.Items) == 1
	})).Return(&service.CheckoutResponse{OrderID: "o-1", OrderNumber: "ORD-1-ABCDE", SessionID: "cs_1"}, nil)

	rec := ts.do(http.MethodPost, "/api/v1/checkout", map[string]any{
		"sessionId":       "s-1",
		"items":           []map[string]any{{"productId": "p-1", "quantity": 1}},
		"customerEmail":   "jan@example.com",
		"customerName":    "Jan Kowalski",
		"shippingAddress": shippingAddress,
	}, map[string]string{"X-User-ID": "u-1", "Idempotency-Key": "key-1"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "o-1", decode(t, rec)["orderId"])
	ts.checkout.AssertExpectations(t)
}

func TestCheckoutGatewayFailureIsBadGateway(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.checkout.On("Checkout", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("register payment: %w", apperr.ErrGateway))

	rec := ts.do(http.MethodPost, "/api/v1/checkout", map[string]any{
		"sessionId":       "s-1",
		"items":           []map[string]any{{"productId": "p-1", "quantity": 1}},
		"customerEmail":   "jan@example.com",
		"customerName":    "Jan",
		"shippingAddress": shippingAddress,
	}, nil)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestWebhookSettlesVerifiedNotification(t *testing.T) {
	ts := newTestServer(t, nil)
	n := &payment.Notification{Gateway: "stripe", EventID: "evt_1", OrderID: "o-1", Outcome: payment.OutcomeSuccess}
	ts.stripe.On("VerifyNotification", mock.Anything, mock.Anything, []byte(`{"id":"evt_1"}`)).Return(n, nil)
	ts.settlement.On("Settle", mock.Anything, n).Return(nil)

	for _, path := range []string{"/api/v1/webhooks/stripe", "/api/v1/checkout/webhook"} {
		rec := ts.do(http.MethodPost, path, `{"id":"evt_1"}`, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
	ts.settlement.AssertNumberOfCalls(t, "Settle", 2)
}

func TestWebhookInvalidSignature(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.stripe.On("VerifyNotification", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("stripe: %w", apperr.ErrInvalidSignature))

	rec := ts.do(http.MethodPost, "/api/v1/webhooks/stripe", `{}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	ts.settlement.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything)
}

func TestWebhookPersistenceErrorIsRetryable(t *testing.T) {
	ts := newTestServer(t, nil)
	n := &payment.Notification{Gateway: "stripe", EventID: "evt_1", OrderID: "o-1", Outcome: payment.OutcomeSuccess}
	ts.stripe.On("VerifyNotification", mock.Anything, mock.Anything, mock.Anything).Return(n, nil)
	ts.settlement.On("Settle", mock.Anything, n).Return(errors.New("connection refused"))

	rec := ts.do(http.MethodPost, "/api/v1/webhooks/stripe", `{}`, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decode(t, rec)["error"])
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestWebhookForDisabledGateway(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/api/v1/webhooks/blik", `{}`, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetOrderOfAnotherUser(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.orders.On("GetOrder", mock.Anything, "o-1", "u-2", false).
		Return(nil, fmt.Errorf("order o-1: %w", apperr.ErrUnauthorized))

	rec := ts.do(http.MethodGet, "/api/v1/orders/o-1", nil, map[string]string{"X-User-ID": "u-2"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesRequireRole(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/api/v1/admin/orders", nil, map[string]string{"X-User-ID": "u-1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	ts.orders.On("ListOrders", mock.Anything, models.OrderFilter{
		Status: models.OrderStatusShipped, Limit: 20,
	}).Return([]models.Order{{ID: "o-1"}}, nil)

	rec = ts.do(http.MethodGet, "/api/v1/admin/orders?status=SHIPPED", nil, map[string]string{"X-User-Role": "ADMIN"})
	assert.Equal(t, http.StatusOK, rec.Code)
	ts.orders.AssertExpectations(t)
}

func TestSalesReportPeriod(t *testing.T) {
	ts := newTestServer(t, nil)
	admin := map[string]string{"X-User-Role": "ADMIN"}
	ts.analytics.On("SalesReport", mock.Anything, service.DefaultAnalyticsPeriodDays).
		Return(&models.SalesReport{PeriodDays: 30}, nil)
	ts.analytics.On("SalesReport", mock.Anything, 7).
		Return(&models.SalesReport{PeriodDays: 7}, nil)

	rec := ts.do(http.MethodGet, "/api/v1/admin/analytics", nil, admin)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(30), decode(t, rec)["periodDays"])

	rec = ts.do(http.MethodGet, "/api/v1/admin/analytics?period=7", nil, admin)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(7), decode(t, rec)["periodDays"])

	rec = ts.do(http.MethodGet, "/api/v1/admin/analytics?period=week", nil, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/api/v1/admin/analytics", nil, map[string]string{"X-User-ID": "u-1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	ts.analytics.AssertExpectations(t)
}

func TestSupportTicketRoutes(t *testing.T) {
	ts := newTestServer(t, nil)
	in := service.TicketInput{Name: "Ann", Email: "ann@example.com", Subject: "Late", Message: "Where is it?"}
	ts.support.On("CreateTicket", mock.Anything, "", in).
		Return(&models.SupportTicket{ID: "t-1", Status: models.TicketStatusOpen}, nil)

	rec := ts.do(http.MethodPost, "/api/v1/support/tickets", in, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "t-1", decode(t, rec)["id"])

	rec = ts.do(http.MethodPost, "/api/v1/support/tickets", map[string]any{"name": "Ann", "email": "not-an-email"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/api/v1/support/tickets", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	ts.support.On("ListTickets", mock.Anything, "u-1").Return([]models.SupportTicket{{ID: "t-2"}}, nil)
	rec = ts.do(http.MethodGet, "/api/v1/support/tickets", nil, map[string]string{"X-User-ID": "u-1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	ts.support.AssertExpectations(t)
}

func TestUpdateOrderStatusConflict(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.orders.On("UpdateStatus", mock.Anything, "o-1", models.OrderStatusDelivered).
		Return(nil, fmt.Errorf("order o-1: %w", apperr.ErrInvalidTransition))

	rec := ts.do(http.MethodPatch, "/api/v1/admin/orders/o-1/status",
		map[string]any{"status": "DELIVERED"}, map[string]string{"X-User-Role": "ADMIN"})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListOrdersRejectsBadPagination(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/api/v1/orders?limit=ten", nil, map[string]string{"X-User-ID": "u-1"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReadiness(t *testing.T) {
	ts := newTestServer(t, map[string]Pinger{"postgres": pinger{}, "redis": pinger{}})
	rec := ts.do(http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	ts = newTestServer(t, map[string]Pinger{"postgres": pinger{}, "redis": pinger{err: errors.New("down")}})
	rec = ts.do(http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	checks := decode(t, rec)["checks"].(map[string]any)
	assert.Equal(t, "unavailable", checks["redis"])
	assert.Equal(t, "ok", checks["postgres"])
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.Validation("bad"), http.StatusBadRequest},
		{fmt.Errorf("x: %w", apperr.ErrProductUnavailable), http.StatusBadRequest},
		{apperr.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("x: %w", apperr.ErrProductReferenced), http.StatusConflict},
		{fmt.Errorf("x: %w", apperr.ErrConflict), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		got, _ := statusOf(tc.err)
		assert.Equal(t, tc.want, got, tc.err.Error())
	}
}
