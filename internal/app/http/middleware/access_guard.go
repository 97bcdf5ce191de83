package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"travel-marketplace/internal/domain/access"

	"github.com/gin-gonic/gin"
)

type Authorizer interface {
	Authorize(ctx context.Context, userID uint, action access.Action) (bool, error)
}

// RequireAction asks the gate on every request. The role in the token may be
// stale (a suspended account keeps a valid token until it expires), so the
// token alone is not trusted here.
func RequireAction(gate Authorizer, action access.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint(CtxUserID)
		if userID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
			return
		}

		ok, err := gate.Authorize(c.Request.Context(), userID, action)
		if err != nil {
			slog.Error("access check failed", "user_id", userID, "action", action, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Could not check permissions"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}
		c.Next()
	}
}
