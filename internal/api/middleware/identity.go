package middleware

import (
	"github.com/gin-gonic/gin"
	"voicepipe/internal/api/errors"
)

// UserIDKey is the gin context key the resolved identity is stored under.
const UserIDKey = "user_id"

// Identity extracts the authenticated user injected by the upstream auth
// layer via the X-User-ID header. The service trusts that identity but still
// enforces ownership on reads.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			HandleError(c, errors.NewUnauthorizedError("missing authenticated user"))
			return
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// CurrentUser returns the authenticated user ID from the request context.
func CurrentUser(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
