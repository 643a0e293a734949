package workspace

import (
	"errors"
	"time"

	"dataghost-gateway/internal/api"
)

var (
	ErrEmptyQuestion  = errors.New("question is empty")
	ErrNoDataset      = errors.New("no dataset uploaded")
	ErrNoConversation = errors.New("no conversation awaiting clarification")
	ErrNoFiles        = errors.New("no files provided")
	ErrNoAnswer       = errors.New("no answer to read back")
)

// Phase tags the conversation state.
type Phase string

const (
	PhaseIdle               Phase = "idle"
	PhaseAsking             Phase = "asking"
	PhaseNeedsClarification Phase = "needs_clarification"
	PhaseAnswered           Phase = "answered"
	PhaseErrored            Phase = "errored"
)

// State is one of Idle, Asking, NeedsClarification, Answered or Errored.
type State interface {
	Phase() Phase
}

type Idle struct{}

// Asking is an ask in flight. Resume holds the clarification round being
// answered, if any, so a failure can fall back to it.
type Asking struct {
	Question  string
	StartedAt time.Time
	Resume    *NeedsClarification
}

type NeedsClarification struct {
	ConversationID string
	Questions      []api.ClarificationQuestion
}

type Answered struct {
	ConversationID string
	Answer         api.Answer
	RequestID      string
}

type Errored struct {
	Message   string
	RequestID string
	Resume    *NeedsClarification
}

func (Idle) Phase() Phase               { return PhaseIdle }
func (Asking) Phase() Phase             { return PhaseAsking }
func (NeedsClarification) Phase() Phase { return PhaseNeedsClarification }
func (Answered) Phase() Phase           { return PhaseAnswered }
func (Errored) Phase() Phase            { return PhaseErrored }

// Operation names a slice of session state with its own loading and error flags.
type Operation string

const (
	OpSummary       Operation = "summary"
	OpDatasetUpload Operation = "datasetUpload"
	OpContextUpload Operation = "contextUpload"
	OpAsk           Operation = "ask"
	OpTranscribe    Operation = "transcribe"
	OpReadback      Operation = "readback"
)

var operations = []Operation{OpSummary, OpDatasetUpload, OpContextUpload, OpAsk, OpTranscribe, OpReadback}

// UIError is the user-facing shape of a failure.
type UIError struct {
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

func uiError(err error) *UIError {
	if err == nil {
		return nil
	}
	return &UIError{Message: api.MessageOf(err), RequestID: api.RequestIDOf(err)}
}

type opState struct {
	pending int
	err     *UIError
}

// Progress reports a sequential context upload.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Readback describes synthesized answer audio.
type Readback struct {
	Key         string `json:"key,omitempty"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
	RequestID   string `json:"requestId"`
	Audio       []byte `json:"-"`
}
