package handlers

import (
	"net/http"

	"github.com/go-buildgate/buildgate/internal/status"
	"github.com/go-buildgate/buildgate/internal/store"

	"github.com/gin-gonic/gin"
)

// Health returns a liveness handler that checks store connectivity.
func Health(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// About renders the ok envelope with the running API version.
func About(apiVersion string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Data(http.StatusOK, status.ContentType,
			status.Ok("API version "+apiVersion))
	}
}
