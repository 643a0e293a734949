package workspace

import (
	"sync"
	"time"

	"dataghost-gateway/internal/shared/telemetry"
)

const (
	DefaultSessionIdleTTL = 30 * time.Minute
	DefaultMaxSessions    = 10000
)

// SessionStore holds one session per caller. Sessions idle past the TTL are
// dropped, and the least recently used session is evicted at capacity.
type SessionStore struct {
	mu        sync.Mutex
	sessions  map[string]*storedSession
	factory   func(id string) *Session
	idleTTL   time.Duration
	max       int
	now       func() time.Time
	lastSweep time.Time
}

type storedSession struct {
	sess *Session
	seen time.Time
}

// StoreOption configures a SessionStore.
type StoreOption func(*SessionStore)

// WithIdleTTL sets how long an unused session is kept. Non-positive values keep the default.
func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *SessionStore) {
		if d > 0 {
			s.idleTTL = d
		}
	}
}

// WithMaxSessions caps the number of live sessions. Non-positive values keep the default.
func WithMaxSessions(n int) StoreOption {
	return func(s *SessionStore) {
		if n > 0 {
			s.max = n
		}
	}
}

// WithStoreClock overrides time.Now.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *SessionStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSessionStore creates sessions on first use with factory.
func NewSessionStore(factory func(id string) *Session, opts ...StoreOption) *SessionStore {
	s := &SessionStore{
		sessions: make(map[string]*storedSession),
		factory:  factory,
		idleTTL:  DefaultSessionIdleTTL,
		max:      DefaultMaxSessions,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastSweep = s.now()
	return s
}

// Get returns the session for id, creating it if needed or if the previous
// one expired.
func (s *SessionStore) Get(id string) *Session {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.sessions[id]; ok && now.Sub(entry.seen) <= s.idleTTL {
		entry.seen = now
		return entry.sess
	}

	if now.Sub(s.lastSweep) >= s.idleTTL || len(s.sessions) >= s.max {
		s.sweepLocked(now)
	}
	if len(s.sessions) >= s.max {
		s.evictOldestLocked()
	}
	sess := s.factory(id)
	s.sessions[id] = &storedSession{sess: sess, seen: now}
	return sess
}

// Len reports the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) sweepLocked(now time.Time) {
	s.lastSweep = now
	dropped := 0
	for id, entry := range s.sessions {
		if now.Sub(entry.seen) > s.idleTTL {
			delete(s.sessions, id)
			dropped++
		}
	}
	if dropped > 0 {
		telemetry.Info("session.swept", map[string]any{"dropped": dropped, "live": len(s.sessions)})
	}
}

func (s *SessionStore) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, entry := range s.sessions {
		if oldestID == "" || entry.seen.Before(oldest) {
			oldestID, oldest = id, entry.seen
		}
	}
	if oldestID != "" {
		delete(s.sessions, oldestID)
		telemetry.Info("session.evicted", map[string]any{"session_id": oldestID})
	}
}
