package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleet-command-server/internal/auth"
)

const deviceIDContextKey = "deviceID"

func DeviceIDFromContext(c *gin.Context) (int64, bool) {
	value, ok := c.Get(deviceIDContextKey)
	if !ok {
		return 0, false
	}
	id, ok := value.(int64)
	return id, ok && id != 0
}

// RequireSession guards identity operations with the handshake session
// token. Session tokens never authorize queue polling; those endpoints
// use per-request signatures instead.
func RequireSession(a *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("X-Session-Token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing session token"})
			c.Abort()
			return
		}

		deviceID, ok := a.SessionDevice(token)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
			c.Abort()
			return
		}

		c.Set(deviceIDContextKey, deviceID)
		c.Next()
	}
}
