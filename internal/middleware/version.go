package middleware

import (
	"github.com/gin-gonic/gin"
)

// APIVersion stamps the static X-Api-Version header on every response.
func APIVersion(version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Api-Version", version)
		c.Next()
	}
}
