package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// webhook verifies a gateway callback against the raw body and settles the
// order. Duplicates are acknowledged with 200 so the gateway stops retrying.
func (h *Handler) webhook(gateway string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			badRequest(c, err)
			return
		}

		gw, err := h.svc.Gateways.Get(gateway)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Gateway not enabled"})
			return
		}

		n, err := gw.VerifyNotification(c.Request.Context(), c.Request.Header, body)
		if err != nil {
			h.logger.Warn("Rejected gateway callback",
				zap.String("gateway", gateway),
				zap.Error(err))
			h.writeError(c, err)
			return
		}

		if err := h.svc.Settlement.Settle(c.Request.Context(), n); err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}
