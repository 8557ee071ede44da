package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Identity headers set by the upstream auth proxy
const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
	roleAdmin      = "ADMIN"
)

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isAdmin(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin role required"})
			return
		}
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(headerUserID))
}

func isAdmin(c *gin.Context) bool {
	return strings.EqualFold(c.GetHeader(headerUserRole), roleAdmin)
}
