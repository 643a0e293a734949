package journal

import (
	"context"
	"time"

	"github.com/google/uuid"

	"dataghost-gateway/internal/api"
	"dataghost-gateway/internal/shared/metrics"
	"dataghost-gateway/internal/shared/telemetry"
)

// Recorder writes every finished API call to a Repo.
type Recorder struct {
	Repo Repo
	now  func() time.Time
}

// NewRecorder constructs a Recorder.
func NewRecorder(repo Repo) *Recorder {
	return &Recorder{Repo: repo, now: time.Now}
}

// ObserveCall implements api.Observer. Write failures are logged, never returned.
func (r *Recorder) ObserveCall(ctx context.Context, rec api.CallRecord) {
	if rec.Outcome != api.OutcomeOK {
		metrics.IncRemoteCallErrors()
	}
	if r == nil || r.Repo == nil {
		return
	}
	sessionID := SessionFromContext(ctx)
	if sessionID == "" {
		return
	}
	entry := Entry{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Method:     rec.Method,
		Path:       rec.Path,
		RequestID:  rec.RequestID,
		Status:     rec.Status,
		Outcome:    string(rec.Outcome),
		Message:    rec.Message,
		DurationMs: rec.Duration.Milliseconds(),
		CreatedAt:  r.now().UTC(),
	}
	if err := r.Repo.Create(context.WithoutCancel(ctx), entry); err != nil {
		telemetry.Error("journal.write_failed", map[string]any{
			"session_id": sessionID,
			"request_id": rec.RequestID,
			"error":      err.Error(),
		})
	}
}

var _ api.Observer = (*Recorder)(nil)
