package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler contains HTTP handlers
type Handler struct {
	svc    Services
	deps   map[string]Pinger
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler. deps are pinged by /ready.
func NewHandler(svc Services, deps map[string]Pinger) *Handler {
	return &Handler{
		svc:    svc,
		deps:   deps,
		logger: util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/cart", h.getCart)
		v1.POST("/cart", h.addToCart)
		v1.PUT("/cart/:id", h.updateCartItem)
		v1.DELETE("/cart/:id", h.removeCartItem)

		v1.POST("/checkout", h.checkout)
		v1.POST("/checkout/:orderId/blik", h.submitBlikCode)

		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)

		v1.GET("/orders", h.listMyOrders)
		v1.GET("/orders/:id", h.getOrder)

		v1.POST("/refunds", h.requestRefund)
		v1.GET("/refunds", h.listMyRefunds)

		v1.POST("/support/tickets", h.createTicket)
		v1.GET("/support/tickets", h.listMyTickets)

		v1.POST("/webhooks/stripe", h.webhook(models.PaymentMethodStripe))
		v1.POST("/webhooks/blik", h.webhook(models.PaymentMethodBlik))
		v1.POST("/checkout/webhook", h.webhook(models.PaymentMethodStripe))
		v1.POST("/checkout/blik/webhook", h.webhook(models.PaymentMethodBlik))
	}

	admin := v1.Group("/admin", requireAdmin())
	{
		admin.GET("/inventory", h.listInventory)
		admin.GET("/inventory/:productId", h.getInventory)
		admin.PUT("/inventory", h.adjustStock)

		admin.POST("/products", h.createProduct)
		admin.POST("/products/:id/inventory", h.createInventory)
		admin.PATCH("/products/:id/visibility", h.setVisibility)
		admin.DELETE("/products/:id", h.deleteProduct)

		admin.GET("/orders", h.listOrders)
		admin.PATCH("/orders/:id/status", h.updateOrderStatus)

		admin.GET("/refunds", h.listRefunds)
		admin.POST("/refunds/:id/approve", h.approveRefund)
		admin.POST("/refunds/:id/reject", h.rejectRefund)

		admin.GET("/marketplace/connections", h.listConnections)
		admin.POST("/marketplace/connections", h.createConnection)
		admin.POST("/marketplace/:marketplace/sync", h.syncMarketplace)

		admin.GET("/analytics", h.salesReport)
		admin.GET("/support/tickets", h.listTickets)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := make(gin.H, len(h.deps))
	ready := true
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = "unavailable"
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		util.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
