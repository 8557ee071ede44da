package api

import (
	"errors"
	"net/http"

	"storefront-service/internal/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// writeError maps service errors to status codes. Unexpected errors are
// logged and answered with a generic message.
func (h *Handler) writeError(c *gin.Context, err error) {
	var stockErr *apperr.InsufficientStockError
	if errors.As(err, &stockErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "Insufficient stock",
			"productId":         stockErr.ProductID,
			"availableQuantity": stockErr.Available,
		})
		return
	}

	status, message := statusOf(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(status, gin.H{"error": message})
		return
	}
	c.JSON(status, gin.H{"error": message, "details": err.Error()})
}

func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, apperr.ErrProductUnavailable):
		return http.StatusBadRequest, "Product unavailable"
	case errors.Is(err, apperr.ErrInvalidSignature):
		return http.StatusBadRequest, "Invalid signature"
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, apperr.ErrProductReferenced):
		return http.StatusConflict, "Product is referenced by orders"
	case errors.Is(err, apperr.ErrInvalidTransition):
		return http.StatusConflict, "Invalid status transition"
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, "Conflict"
	case errors.Is(err, apperr.ErrGateway):
		return http.StatusBadGateway, "Payment gateway error"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"details": err.Error(),
	})
}
