package journal

import (
	"context"
	"time"
)

// Entry is one recorded call to the analytics API. Only call metadata is
// kept; request and response bodies never are.
type Entry struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	RequestID  string    `json:"requestId"`
	Status     int       `json:"status"`
	Outcome    string    `json:"outcome"`
	Message    string    `json:"message,omitempty"`
	DurationMs int64     `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Repo persists journal entries.
type Repo interface {
	Create(ctx context.Context, entry Entry) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]Entry, error)
}

type sessionKey struct{}

// WithSession tags ctx with the session whose calls are being recorded.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

// SessionFromContext returns the session set by WithSession.
func SessionFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
