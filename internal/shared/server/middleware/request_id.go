package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dataghost-gateway/internal/api"
)

const (
	requestIDKey      = "requestId"
	maxRequestIDLen   = 128
	generatedIDPrefix = "gw-"
)

// RequestID echoes a well-formed caller X-Request-Id or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(api.RequestIDHeader))
		if !validRequestID(id) {
			id = generatedIDPrefix + uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(api.RequestIDHeader, id)
		c.Next()
	}
}

// validRequestID accepts short tokens of letters, digits and "-_.:".
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.' || r == ':':
		default:
			return false
		}
	}
	return true
}

// RequestIDFromContext returns the id assigned by RequestID, or "".
func RequestIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(requestIDKey)
}
