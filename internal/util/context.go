package util

import (
	"context"

	"github.com/go-buildgate/buildgate/internal/models"

	"github.com/gin-gonic/gin"
)

// Context keys shared between middleware and handlers.
const (
	ContextUser          = "user"
	ContextAuthMethod    = "auth_method"
	ContextBackendTarget = "backend_target"
	ContextClientIP      = "client_ip"
)

// IPMiddleware extracts client IP and stores it in the context
func IPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Gin's ClientIP() handles X-Forwarded-For and other headers
		c.Set(ContextClientIP, c.ClientIP())
		c.Next()
	}
}

// GetIPFromContext extracts the client IP address from the context
func GetIPFromContext(ctx context.Context) string {
	// Try to extract from Gin context first
	if ginCtx, ok := ctx.(*gin.Context); ok {
		return ginCtx.ClientIP()
	}

	// Try to get from context value (set by middleware)
	if ip, ok := ctx.Value(ContextClientIP).(string); ok {
		return ip
	}

	return ""
}

// GetUserFromContext extracts the authenticated user, if any.
func GetUserFromContext(ctx context.Context) *models.User {
	if ginCtx, ok := ctx.(*gin.Context); ok {
		if userVal, exists := ginCtx.Get(ContextUser); exists {
			if user, ok := userVal.(*models.User); ok {
				return user
			}
		}
	}
	return nil
}
