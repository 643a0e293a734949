package api

import (
	"encoding/json"
	"fmt"

	"dataghost-gateway/internal/api/schema"
)

// VoiceTranscription is the result of POST /voice/transcribe.
type VoiceTranscription struct {
	Text     string `json:"text"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// SpeakRequest is the body of POST /voice/speak.
type SpeakRequest struct {
	Text    string  `json:"text"`
	VoiceID *string `json:"voice_id,omitempty"`
}

// VoiceTranscriptionSchema validates a transcription response.
var VoiceTranscriptionSchema schema.Schema[VoiceTranscription] = schema.Func[VoiceTranscription](parseVoiceTranscription)

func parseVoiceTranscription(raw json.RawMessage) (VoiceTranscription, error) {
	var issues schema.Issues
	obj, ok := schema.ReadObject(raw, &issues, "")
	if !ok {
		return VoiceTranscription{}, schema.Check(issues)
	}
	out := VoiceTranscription{Text: obj.String("text")}
	out.Provider, _ = obj.OptionalString("provider")
	out.Model, _ = obj.OptionalString("model")
	return out, schema.Check(issues)
}

// Validate checks the request before it is sent.
func (r SpeakRequest) Validate() error {
	var issues schema.Issues
	if r.Text == "" {
		issues.Add("text", "String must contain at least 1 character(s)")
	}
	if err := schema.Check(issues); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}
