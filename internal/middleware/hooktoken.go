package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// HookToken guards the ingest callbacks with a shared secret. An empty token
// disables the check, which is only sensible when the hook routes are not
// reachable from outside.
func HookToken(token string) gin.HandlerFunc {
	expected := []byte(token)
	return func(c *gin.Context) {
		if len(expected) == 0 {
			c.Next()
			return
		}
		got := c.Query("token")
		if h := c.GetHeader("Authorization"); h != "" {
			got = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
		if subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid hook token"})
			c.Abort()
			return
		}
		c.Next()
	}
}
