package workspace

import (
	"context"
	"io"
	"sync"
	"time"

	"dataghost-gateway/internal/api"
)

// Remote is the analytics API as seen by a session.
type Remote interface {
	UploadDataset(ctx context.Context, file api.File, requestID string) (api.Response[api.DatasetUpload], error)
	UploadContextDocument(ctx context.Context, file api.File, requestID string) (api.Response[api.ContextUpload], error)
	GetDatasetSummary(ctx context.Context, requestID string) (api.Response[api.DatasetSummary], error)
	AskQuestion(ctx context.Context, payload api.AskRequest, requestID string) (api.Response[api.AskResponse], error)
	TranscribeVoice(ctx context.Context, file api.File, requestID string) (api.Response[api.VoiceTranscription], error)
	SpeakText(ctx context.Context, payload api.SpeakRequest, requestID string) (api.BinaryResponse, error)
}

// AudioStore keeps synthesized readback audio.
type AudioStore interface {
	Save(ctx context.Context, owner string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}

const (
	DefaultSummaryStaleTime = 60 * time.Second
	summaryRetries          = 1
)

// Options tunes a session.
type Options struct {
	SummaryStaleTime time.Duration
	DefaultVoiceID   string
	Audio            AudioStore
	Now              func() time.Time
	NewRequestID     func(action string) string
}

func (o Options) withDefaults() Options {
	if o.SummaryStaleTime <= 0 {
		o.SummaryStaleTime = DefaultSummaryStaleTime
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewRequestID == nil {
		o.NewRequestID = api.NewRequestID
	}
	return o
}

type summaryCache struct {
	data      *api.DatasetSummary
	fetchedAt time.Time
	loaded    bool
	stale     bool
}

func (c summaryCache) fresh(now time.Time, staleTime time.Duration) bool {
	return c.loaded && !c.stale && now.Sub(c.fetchedAt) < staleTime
}

// Session is one caller's workspace. Network calls run outside mu, so
// overlapping operations resolve in completion order.
type Session struct {
	id     string
	remote Remote
	opts   Options

	mu               sync.Mutex
	question         string
	pendingQuestion  string
	conv             State
	clarValues       map[string]string
	lastAskRequestID string
	docs             []api.ContextUpload
	progress         *Progress
	ops              map[Operation]*opState
	summary          summaryCache
	readback         *Readback
	audioKeys        map[string]struct{}
}

// NewSession creates an idle session owned by id.
func NewSession(id string, remote Remote, opts Options) *Session {
	s := &Session{
		id:        id,
		remote:    remote,
		opts:      opts.withDefaults(),
		conv:      Idle{},
		ops:       make(map[Operation]*opState, len(operations)),
		audioKeys: make(map[string]struct{}),
	}
	for _, op := range operations {
		s.ops[op] = &opState{}
	}
	return s
}

// ID returns the session owner.
func (s *Session) ID() string {
	return s.id
}

// State returns the current conversation state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv
}

// Question returns the current question box text.
func (s *Session) Question() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.question
}

// ContextDocs returns uploaded context documents, newest first.
func (s *Session) ContextDocs() []api.ContextUpload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.ContextUpload(nil), s.docs...)
}

// ContextProgress returns the running context upload progress, if any.
func (s *Session) ContextProgress() *Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.progress == nil {
		return nil
	}
	p := *s.progress
	return &p
}

// Err returns the last failure recorded for op.
func (s *Session) Err(op Operation) *UIError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ops[op].err
}

// begin and end must be called with mu held.
func (s *Session) begin(op Operation) {
	st := s.ops[op]
	st.pending++
	st.err = nil
}

func (s *Session) end(op Operation, err error) {
	st := s.ops[op]
	if st.pending > 0 {
		st.pending--
	}
	st.err = uiError(err)
}

func (s *Session) newID(action string) string {
	return s.opts.NewRequestID(action)
}
