package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Auth returns a middleware that validates the API key against any of
// keys. Empty keys are ignored; with none left every request passes.
func Auth(keys ...string) gin.HandlerFunc {
	var accepted [][]byte
	for _, k := range keys {
		if k != "" {
			accepted = append(accepted, []byte(k))
		}
	}
	return func(c *gin.Context) {
		if len(accepted) == 0 {
			c.Next()
			return
		}
		key := c.GetHeader("X-API-Key")
		if key != "" {
			for _, k := range accepted {
				if subtle.ConstantTimeCompare([]byte(key), k) == 1 {
					c.Next()
					return
				}
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
	}
}
