package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dataghost-gateway/internal/shared/server/respond"
)

const (
	userIDKey    = "userId"
	guestHeader  = "X-Guest-Id"
	guestIDLimit = 128
)

// Auth resolves the caller's guest identity from X-Guest-Id. Paths in open
// pass through without identity.
func Auth(open ...string) gin.HandlerFunc {
	openPaths := make(map[string]struct{}, len(open))
	for _, p := range open {
		openPaths[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}
		if _, ok := openPaths[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		guestID := strings.TrimSpace(c.GetHeader(guestHeader))
		if guestID == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
			return
		}
		if len(guestID) > guestIDLimit || strings.ContainsAny(guestID, "/\\") {
			respond.Error(c, http.StatusBadRequest, "validation_error", "Invalid guest id", nil)
			return
		}

		c.Set(userIDKey, "guest:"+guestID)
		c.Set("isGuest", true)
		c.Next()
	}
}

// UserIDFromContext fetches the session owner set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}
