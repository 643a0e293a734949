package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dataghost-gateway/internal/shared/telemetry"
)

// Logging emits one structured line per request; 5xx responses log at
// error level as request.failed.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000.0,
			"session_id":  UserIDFromContext(c),
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		if phase := c.GetString("conversationPhase"); phase != "" {
			fields["conversation_phase"] = phase
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			telemetry.Error("request.failed", fields)
			return
		}
		telemetry.Info("request.complete", fields)
	}
}
