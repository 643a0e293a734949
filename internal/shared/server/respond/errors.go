package respond

import (
	"github.com/gin-gonic/gin"

	"dataghost-gateway/internal/shared/telemetry"
)

// ErrorBody is the gateway's error object.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error logs and aborts with {error:{code,message,details}}. Without
// details, the request id is reported as details.requestId.
func Error(c *gin.Context, status int, code, message string, details any) {
	requestID := c.GetString("requestId")
	if details == nil && requestID != "" {
		details = gin.H{"requestId": requestID}
	}
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": requestID,
	}
	if sessionID := c.GetString("userId"); sessionID != "" {
		fields["session_id"] = sessionID
	}
	telemetry.Error("http.error", fields)

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}
