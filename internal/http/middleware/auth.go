// README: Auth middleware; identity is established by the upstream gateway.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireActor rejects requests that carry no identity headers. Token
// verification lives in the gateway; the core only needs who is acting.
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Actor-Id") == "" || c.GetHeader("X-Actor-Role") == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing actor identity"})
			return
		}
		c.Next()
	}
}
