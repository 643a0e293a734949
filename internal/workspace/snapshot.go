package workspace

import (
	"dataghost-gateway/internal/api"
	"dataghost-gateway/internal/results"
)

// Snapshot is the JSON view of a session handed to renderers.
type Snapshot struct {
	SessionID        string                 `json:"sessionId"`
	Question         string                 `json:"question"`
	CanAsk           bool                   `json:"canAsk"`
	Conversation     ConversationView       `json:"conversation"`
	LastAskRequestID string                 `json:"lastAskRequestId,omitempty"`
	Dataset          *api.DatasetSummary    `json:"dataset"`
	ContextDocs      []api.ContextUpload    `json:"contextDocs"`
	ContextProgress  *Progress              `json:"contextProgress"`
	Operations       map[Operation]OpStatus `json:"operations"`
	Readback         *Readback              `json:"readback,omitempty"`
}

type OpStatus struct {
	Pending bool     `json:"pending"`
	Error   *UIError `json:"error"`
}

type ConversationView struct {
	Phase           Phase                `json:"phase"`
	PendingQuestion string               `json:"pendingQuestion,omitempty"`
	ConversationID  string               `json:"conversationId,omitempty"`
	Clarifications  []ClarificationField `json:"clarifications"`
	Answer          *results.AnswerView  `json:"answer,omitempty"`
	Error           *UIError             `json:"error,omitempty"`
	ExecutionPhase  string               `json:"executionPhase,omitempty"`
}

// ClarificationField is one clarification question with its current value.
type ClarificationField struct {
	Key       string   `json:"key"`
	Prompt    string   `json:"prompt"`
	Type      string   `json:"type"`
	InputKind string   `json:"inputKind"`
	Options   []string `json:"options"`
	Value     string   `json:"value"`
}

// Snapshot captures the session under its lock.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		SessionID:        s.id,
		Question:         s.question,
		LastAskRequestID: s.lastAskRequestID,
		Dataset:          s.summary.data,
		ContextDocs:      append([]api.ContextUpload{}, s.docs...),
		Operations:       make(map[Operation]OpStatus, len(s.ops)),
		Conversation:     s.conversationView(),
	}
	if s.progress != nil {
		p := *s.progress
		snap.ContextProgress = &p
	}
	for op, st := range s.ops {
		snap.Operations[op] = OpStatus{Pending: st.pending > 0, Error: st.err}
	}
	if s.readback != nil {
		rb := *s.readback
		snap.Readback = &rb
	}
	_, asking := s.conv.(Asking)
	snap.CanAsk = s.summary.data != nil && !asking
	return snap
}

// conversationView must be called with mu held.
func (s *Session) conversationView() ConversationView {
	view := ConversationView{
		Phase:           s.conv.Phase(),
		PendingQuestion: s.pendingQuestion,
		Clarifications:  []ClarificationField{},
	}
	var held *NeedsClarification
	switch st := s.conv.(type) {
	case Asking:
		view.ExecutionPhase = results.PhaseAt(s.opts.Now().Sub(st.StartedAt))
		held = st.Resume
	case NeedsClarification:
		held = &st
	case Answered:
		view.ConversationID = st.ConversationID
		answer := results.Present(st.Answer, st.RequestID)
		view.Answer = &answer
	case Errored:
		view.Error = &UIError{Message: st.Message, RequestID: st.RequestID}
		held = st.Resume
	}
	if held != nil {
		view.ConversationID = held.ConversationID
		for _, q := range held.Questions {
			value, ok := s.clarValues[q.Key]
			if !ok {
				value = q.DefaultValue()
			}
			view.Clarifications = append(view.Clarifications, ClarificationField{
				Key:       q.Key,
				Prompt:    q.Prompt,
				Type:      q.Type,
				InputKind: q.InputKind(),
				Options:   append([]string{}, q.Options...),
				Value:     value,
			})
		}
	}
	return view
}
