package api

import (
	"net/http"
	"strconv"

	"storefront-service/internal/apperr"
	"storefront-service/internal/service"

	"github.com/gin-gonic/gin"
)

type updateCartItemBody struct {
	SessionID string `json:"sessionId"`
	Quantity  *int   `json:"quantity" binding:"required,min=0"`
}

type blikCodeBody struct {
	Code string `json:"code" binding:"required"`
}

// getCart handles GET /cart?sessionId=
func (h *Handler) getCart(c *gin.Context) {
	cart, err := h.svc.Cart.GetCart(c.Request.Context(), c.Query("sessionId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// addToCart handles POST /cart
func (h *Handler) addToCart(c *gin.Context) {
	var req service.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	item, err := h.svc.Cart.AddToCart(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// updateCartItem handles PUT /cart/:id; quantity 0 removes the line
func (h *Handler) updateCartItem(c *gin.Context) {
	var body updateCartItemBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}

	sessionID := body.SessionID
	if sessionID == "" {
		sessionID = c.Query("sessionId")
	}
	if sessionID == "" {
		h.writeError(c, apperr.Validation("sessionId is required"))
		return
	}

	item, err := h.svc.Cart.UpdateQuantity(c.Request.Context(), sessionID, c.Param("id"), *body.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if item == nil {
		c.JSON(http.StatusOK, gin.H{"removed": true})
		return
	}
	c.JSON(http.StatusOK, item)
}

// removeCartItem handles DELETE /cart/:id?sessionId=
func (h *Handler) removeCartItem(c *gin.Context) {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		h.writeError(c, apperr.Validation("sessionId is required"))
		return
	}

	if err := h.svc.Cart.RemoveFromCart(c.Request.Context(), sessionID, c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// checkout handles POST /checkout
func (h *Handler) checkout(c *gin.Context) {
	var req service.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.UserID = userID(c)
	req.IdempotencyKey = c.GetHeader("Idempotency-Key")

	resp, err := h.svc.Checkout.Checkout(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// submitBlikCode handles POST /checkout/:orderId/blik
func (h *Handler) submitBlikCode(c *gin.Context) {
	var body blikCodeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}

	orderID := c.Param("orderId")
	if err := h.svc.Checkout.SubmitBlikCode(c.Request.Context(), orderID, body.Code); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"orderId": orderID, "status": "authorizing"})
}

// listProducts handles GET /products
func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.svc.Products.ListProducts(c.Request.Context(), true)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// getProduct handles GET /products/:id; hidden products are visible to admins only
func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.svc.Products.GetProduct(c.Request.Context(), c.Param("id"), isAdmin(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// listMyOrders handles GET /orders
func (h *Handler) listMyOrders(c *gin.Context) {
	limit, offset, err := pagination(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	orders, err := h.svc.Orders.ListUserOrders(c.Request.Context(), userID(c), limit, offset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getOrder handles GET /orders/:id
func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.svc.Orders.GetOrder(c.Request.Context(), c.Param("id"), userID(c), isAdmin(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// requestRefund handles POST /refunds
func (h *Handler) requestRefund(c *gin.Context) {
	var in service.RefundRequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}

	refund, err := h.svc.Refunds.RequestRefund(c.Request.Context(), userID(c), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, refund)
}

// listMyRefunds handles GET /refunds
func (h *Handler) listMyRefunds(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		h.writeError(c, apperr.ErrUnauthorized)
		return
	}

	refunds, err := h.svc.Refunds.ListRefunds(c.Request.Context(), uid)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refunds": refunds})
}

// createTicket handles POST /support/tickets; guests may write in
func (h *Handler) createTicket(c *gin.Context) {
	var in service.TicketInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}

	ticket, err := h.svc.Support.CreateTicket(c.Request.Context(), userID(c), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

// listMyTickets handles GET /support/tickets
func (h *Handler) listMyTickets(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		h.writeError(c, apperr.ErrUnauthorized)
		return
	}

	tickets, err := h.svc.Support.ListTickets(c.Request.Context(), uid)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

func pagination(c *gin.Context) (limit, offset int, err error) {
	limit, err = queryInt(c, "limit", 20)
	if err != nil {
		return 0, 0, err
	}
	offset, err = queryInt(c, "offset", 0)
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("%s must be an integer", key)
	}
	return n, nil
}
