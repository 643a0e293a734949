package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the correlation id in both directions.
const RequestIDHeader = "X-Request-Id"

var nowFunc = time.Now

// NewRequestID builds a correlation id of the form {action}-{unixMillis}-{uuid prefix}.
func NewRequestID(action string) string {
	suffix, _, _ := strings.Cut(uuid.NewString(), "-")
	return fmt.Sprintf("%s-%d-%s", action, nowFunc().UnixMilli(), suffix)
}

// ResolveRequestID picks the authoritative id: response header, then the
// body's request_id, then the body's data.request_id, then the caller's id.
func ResolveRequestID(header string, body json.RawMessage, fallback string) string {
	if id := strings.TrimSpace(header); id != "" {
		return id
	}
	if id := requestIDFromBody(body); id != "" {
		return id
	}
	return fallback
}

func requestIDFromBody(body json.RawMessage) string {
	var top struct {
		RequestID json.RawMessage `json:"request_id"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &top); err != nil {
		return ""
	}
	if id := stringValue(top.RequestID); id != "" {
		return id
	}
	var nested struct {
		RequestID json.RawMessage `json:"request_id"`
	}
	if err := json.Unmarshal(top.Data, &nested); err != nil {
		return ""
	}
	return stringValue(nested.RequestID)
}

func stringValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
