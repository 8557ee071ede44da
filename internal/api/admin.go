package api

import (
	"net/http"

	"storefront-service/internal/models"
	"storefront-service/internal/service"

	"github.com/gin-gonic/gin"
)

type visibilityBody struct {
	IsVisible *bool `json:"isVisible" binding:"required"`
}

type orderStatusBody struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

func (h *Handler) listInventory(c *gin.Context) {
	levels, err := h.svc.Inventory.ListInventory(c.Request.Context(), c.Query("lowStock") == "true")
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"inventory": levels})
}

func (h *Handler) getInventory(c *gin.Context) {
	inv, err := h.svc.Inventory.GetInventory(c.Request.Context(), c.Param("productId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *Handler) adjustStock(c *gin.Context) {
	var req service.AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	inv, err := h.svc.Inventory.AdjustStock(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *Handler) createInventory(c *gin.Context) {
	var settings service.InventorySettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		badRequest(c, err)
		return
	}

	inv, err := h.svc.Inventory.CreateInventory(c.Request.Context(), c.Param("id"), settings)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

func (h *Handler) createProduct(c *gin.Context) {
	var req service.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	product, err := h.svc.Products.CreateProduct(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) setVisibility(c *gin.Context) {
	var body visibilityBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}

	product, err := h.svc.Products.SetVisibility(c.Request.Context(), c.Param("id"), *body.IsVisible)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	if err := h.svc.Products.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listOrders(c *gin.Context) {
	limit, offset, err := pagination(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	orders, err := h.svc.Orders.ListOrders(c.Request.Context(), models.OrderFilter{
		UserID:        c.Query("userId"),
		Status:        models.OrderStatus(c.Query("status")),
		PaymentStatus: models.PaymentStatus(c.Query("paymentStatus")),
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	var body orderStatusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}

	order, err := h.svc.Orders.UpdateStatus(c.Request.Context(), c.Param("id"), body.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) listRefunds(c *gin.Context) {
	refunds, err := h.svc.Refunds.ListRefunds(c.Request.Context(), c.Query("userId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refunds": refunds})
}

func (h *Handler) approveRefund(c *gin.Context) {
	refund, err := h.svc.Refunds.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, refund)
}

func (h *Handler) rejectRefund(c *gin.Context) {
	refund, err := h.svc.Refunds.Reject(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, refund)
}

func (h *Handler) listConnections(c *gin.Context) {
	conns, err := h.svc.Marketplace.ListConnections(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connections": conns})
}

func (h *Handler) createConnection(c *gin.Context) {
	var req service.CreateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	conn, err := h.svc.Marketplace.CreateConnection(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conn)
}

func (h *Handler) syncMarketplace(c *gin.Context) {
	result, err := h.svc.Marketplace.Sync(c.Request.Context(), c.Param("marketplace"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// salesReport handles GET /admin/analytics?period=<days>
func (h *Handler) salesReport(c *gin.Context) {
	period, err := queryInt(c, "period", service.DefaultAnalyticsPeriodDays)
	if err != nil {
		h.writeError(c, err)
		return
	}

	report, err := h.svc.Analytics.SalesReport(c.Request.Context(), period)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) listTickets(c *gin.Context) {
	tickets, err := h.svc.Support.ListTickets(c.Request.Context(), c.Query("userId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}
