package workspace

import (
	"context"
	"strings"

	"dataghost-gateway/internal/api"
	"dataghost-gateway/internal/shared/metrics"
	"dataghost-gateway/internal/shared/telemetry"
)

// Edit replaces the question box text. An errored conversation returns to
// the clarification round it failed from, or to idle.
func (s *Session) Edit(question string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editLocked(question)
}

func (s *Session) editLocked(question string) {
	s.question = question
	if e, ok := s.conv.(Errored); ok {
		if e.Resume != nil {
			s.conv = *e.Resume
		} else {
			s.conv = Idle{}
		}
		s.ops[OpAsk].err = nil
	}
}

// Ask starts a new conversation. An empty question falls back to the
// question box text. A failed first summary fetch is returned as is, so it
// is not mistaken for a missing dataset. Only the question is sent; any previous conversation
// id is dropped.
func (s *Session) Ask(ctx context.Context, question string) (State, error) {
	s.mu.Lock()
	if question != "" {
		s.question = question
	}
	trimmed := strings.TrimSpace(s.question)
	loaded := s.summary.loaded
	s.mu.Unlock()

	if trimmed == "" {
		return nil, ErrEmptyQuestion
	}
	var summaryErr error
	if !loaded {
		_, summaryErr = s.DatasetSummary(ctx)
	}

	s.mu.Lock()
	if s.summary.data == nil {
		s.mu.Unlock()
		if summaryErr != nil {
			return nil, summaryErr
		}
		return nil, ErrNoDataset
	}
	s.pendingQuestion = trimmed
	s.clarValues = nil
	s.conv = Asking{Question: trimmed, StartedAt: s.opts.Now()}
	s.mu.Unlock()

	return s.send(ctx, api.AskRequest{Question: trimmed}, nil)
}

// SubmitClarifications answers the held clarification round. Every
// displayed question is sent: answers override the current values, and
// keys without an answer keep their defaults. Unknown keys are ignored.
func (s *Session) SubmitClarifications(ctx context.Context, answers map[string]string) (State, error) {
	s.mu.Lock()
	held, ok := s.heldClarification()
	if !ok || s.pendingQuestion == "" {
		s.mu.Unlock()
		return nil, ErrNoConversation
	}
	values := make(map[string]string, len(held.Questions))
	for _, q := range held.Questions {
		v, ok := s.clarValues[q.Key]
		if !ok {
			v = q.DefaultValue()
		}
		if a, ok := answers[q.Key]; ok {
			v = a
		}
		values[q.Key] = v
	}
	s.clarValues = values
	req := api.AskRequest{
		Question:       s.pendingQuestion,
		ConversationID: held.ConversationID,
		Clarifications: copyValues(values),
	}
	s.conv = Asking{Question: s.pendingQuestion, StartedAt: s.opts.Now(), Resume: &held}
	s.mu.Unlock()

	return s.send(ctx, req, &held)
}

// heldClarification must be called with mu held.
func (s *Session) heldClarification() (NeedsClarification, bool) {
	switch st := s.conv.(type) {
	case NeedsClarification:
		return st, true
	case Asking:
		if st.Resume != nil {
			return *st.Resume, true
		}
	case Errored:
		if st.Resume != nil {
			return *st.Resume, true
		}
	}
	return NeedsClarification{}, false
}

func (s *Session) send(ctx context.Context, req api.AskRequest, resume *NeedsClarification) (State, error) {
	s.mu.Lock()
	s.begin(OpAsk)
	s.mu.Unlock()

	metrics.IncAskStarted()
	start := s.opts.Now()
	res, err := s.remote.AskQuestion(ctx, req, s.newID("ask"))
	metrics.ObserveAskDurationMs(float64(s.opts.Now().Sub(start).Milliseconds()))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.end(OpAsk, err)
	if err != nil {
		metrics.IncAskFailed()
		s.conv = Errored{Message: api.MessageOf(err), RequestID: api.RequestIDOf(err), Resume: resume}
		telemetry.Error("workspace.ask.failed", map[string]any{
			"session_id":      s.id,
			"conversation_id": req.ConversationID,
			"error":           api.MessageOf(err),
			"request_id":      api.RequestIDOf(err),
		})
		return s.conv, err
	}

	s.lastAskRequestID = res.RequestID
	data := res.Data
	if data.NeedsClarification {
		metrics.IncAskClarified()
		nc := NeedsClarification{
			ConversationID: data.ConversationID,
			Questions:      append([]api.ClarificationQuestion(nil), data.ClarificationQuestions...),
		}
		s.conv = nc
		s.clarValues = make(map[string]string, len(nc.Questions))
		for _, q := range nc.Questions {
			s.clarValues[q.Key] = q.DefaultValue()
		}
	} else {
		metrics.IncAskAnswered()
		var answer api.Answer
		if data.Answer != nil {
			answer = *data.Answer
		}
		s.conv = Answered{ConversationID: data.ConversationID, Answer: answer, RequestID: res.RequestID}
		s.clarValues = nil
	}
	telemetry.Info("workspace.ask.resolved", map[string]any{
		"session_id":      s.id,
		"conversation_id": data.ConversationID,
		"phase":           string(s.conv.Phase()),
		"request_id":      res.RequestID,
	})
	return s.conv, nil
}

func copyValues(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
