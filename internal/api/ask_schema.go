package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"dataghost-gateway/internal/api/schema"
)

// ConfidenceLevel grades how much the answer can be trusted.
type ConfidenceLevel string

const (
	ConfidenceHigh         ConfidenceLevel = "high"
	ConfidenceMedium       ConfidenceLevel = "medium"
	ConfidenceLow          ConfidenceLevel = "low"
	ConfidenceInsufficient ConfidenceLevel = "insufficient"
)

// Input kinds a clarification question renders as.
const (
	InputSelect = "select"
	InputRadio  = "radio"
	InputText   = "text"
)

// ClarificationQuestion is one follow-up the API needs answered.
type ClarificationQuestion struct {
	Key     string   `json:"key"`
	Type    string   `json:"type"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
}

// InputKind maps the free-form type onto select, radio or text.
func (q ClarificationQuestion) InputKind() string {
	switch strings.ToLower(q.Type) {
	case InputSelect:
		return InputSelect
	case InputRadio:
		return InputRadio
	default:
		return InputText
	}
}

// DefaultValue is the first option when options exist, otherwise empty.
func (q ClarificationQuestion) DefaultValue() string {
	if len(q.Options) > 0 {
		return q.Options[0]
	}
	return ""
}

// Driver is one signed contributor to the answer.
type Driver struct {
	Name         string          `json:"name"`
	Contribution float64         `json:"contribution"`
	Evidence     json.RawMessage `json:"evidence,omitempty"`
}

// Chart is a chart payload whose data is validated only when rendered.
type Chart struct {
	Kind  string          `json:"kind"`
	Title string          `json:"title"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SQLStatement is a query the API ran to produce the answer.
type SQLStatement struct {
	Label string `json:"label"`
	Query string `json:"query"`
}

// Confidence carries the level and the diagnostics behind it.
type Confidence struct {
	Level   ConfidenceLevel `json:"level"`
	Reasons []string        `json:"reasons"`
}

// Cost reports model usage for one answer.
type Cost struct {
	Model            string  `json:"model"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	USD              float64 `json:"usd"`
}

// Answer is the final analytic result.
type Answer struct {
	Headline   string         `json:"headline"`
	Narrative  string         `json:"narrative"`
	Drivers    []Driver       `json:"drivers"`
	Charts     []Chart        `json:"charts"`
	SQL        []SQLStatement `json:"sql"`
	Confidence Confidence     `json:"confidence"`
	Cost       *Cost          `json:"cost,omitempty"`
}

// AskResponse is either a clarification request or a final answer.
// Answer is nil exactly when NeedsClarification is true.
type AskResponse struct {
	ConversationID         string                  `json:"conversation_id"`
	NeedsClarification     bool                    `json:"needs_clarification"`
	ClarificationQuestions []ClarificationQuestion `json:"clarification_questions"`
	Answer                 *Answer                 `json:"answer,omitempty"`
}

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Question       string            `json:"question"`
	ConversationID string            `json:"conversation_id,omitempty"`
	Clarifications map[string]string `json:"clarifications,omitempty"`
}

// Validate checks the request before it is sent.
func (r AskRequest) Validate() error {
	var issues schema.Issues
	if r.Question == "" {
		issues.Add("question", "String must contain at least 1 character(s)")
	}
	if err := schema.Check(issues); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

// AskResponseSchema accepts a final answer first, then a clarification request.
var AskResponseSchema = schema.FirstOf[AskResponse](
	schema.Func[AskResponse](parseAskFinal),
	schema.Func[AskResponse](parseAskClarification),
)

func parseAskFinal(raw json.RawMessage) (AskResponse, error) {
	var issues schema.Issues
	obj, ok := schema.ReadObject(raw, &issues, "")
	if !ok {
		return AskResponse{}, schema.Check(issues)
	}
	out := AskResponse{ConversationID: obj.String("conversation_id")}
	obj.Literal("needs_clarification", false)
	out.ClarificationQuestions = readQuestions(obj, obj.OptionalArray("clarification_questions"))
	if answerRaw, present := obj.Raw("answer"); present {
		out.Answer = readAnswer(answerRaw, obj.Issues(), obj.Path("answer"))
	} else {
		issues.Add("answer", "Required")
	}
	return out, schema.Check(issues)
}

func parseAskClarification(raw json.RawMessage) (AskResponse, error) {
	var issues schema.Issues
	obj, ok := schema.ReadObject(raw, &issues, "")
	if !ok {
		return AskResponse{}, schema.Check(issues)
	}
	out := AskResponse{
		ConversationID:     obj.String("conversation_id"),
		NeedsClarification: obj.Literal("needs_clarification", true),
	}
	out.ClarificationQuestions = readQuestions(obj, obj.Array("clarification_questions"))
	return out, schema.Check(issues)
}

func readQuestions(obj *schema.Object, items []json.RawMessage) []ClarificationQuestion {
	out := make([]ClarificationQuestion, 0, len(items))
	for idx, item := range items {
		q, ok := schema.ReadObject(item, obj.Issues(), schema.Join(obj.Path("clarification_questions"), strconv.Itoa(idx)))
		if !ok {
			continue
		}
		out = append(out, ClarificationQuestion{
			Key:     q.String("key"),
			Type:    q.String("type"),
			Prompt:  q.String("prompt"),
			Options: q.OptionalStrings("options"),
		})
	}
	return out
}

func readAnswer(raw json.RawMessage, issues *schema.Issues, path string) *Answer {
	obj, ok := schema.ReadObject(raw, issues, path)
	if !ok {
		return nil
	}
	answer := &Answer{
		Headline:  obj.String("headline"),
		Narrative: obj.String("narrative"),
		Drivers:   []Driver{},
		Charts:    []Chart{},
		SQL:       []SQLStatement{},
	}
	for idx, item := range obj.OptionalArray("drivers") {
		d, ok := schema.ReadObject(item, issues, schema.Join(obj.Path("drivers"), strconv.Itoa(idx)))
		if !ok {
			continue
		}
		answer.Drivers = append(answer.Drivers, Driver{
			Name:         d.String("name"),
			Contribution: d.Number("contribution"),
			Evidence:     d.Unknown("evidence"),
		})
	}
	for idx, item := range obj.OptionalArray("charts") {
		c, ok := schema.ReadObject(item, issues, schema.Join(obj.Path("charts"), strconv.Itoa(idx)))
		if !ok {
			continue
		}
		answer.Charts = append(answer.Charts, Chart{
			Kind:  c.Enum("kind", "line", "bar"),
			Title: c.String("title"),
			Data:  c.Unknown("data"),
		})
	}
	for idx, item := range obj.OptionalArray("sql") {
		s, ok := schema.ReadObject(item, issues, schema.Join(obj.Path("sql"), strconv.Itoa(idx)))
		if !ok {
			continue
		}
		answer.SQL = append(answer.SQL, SQLStatement{Label: s.String("label"), Query: s.String("query")})
	}

	if confRaw, present := obj.Raw("confidence"); present {
		if c, ok := schema.ReadObject(confRaw, issues, obj.Path("confidence")); ok {
			answer.Confidence.Level = ConfidenceLevel(c.Enum("level", "high", "medium", "low", "insufficient"))
			answer.Confidence.Reasons = []string{}
			if c.Has("reasons") {
				answer.Confidence.Reasons = c.Strings("reasons")
			}
		}
	} else {
		issues.Add(obj.Path("confidence"), "Required")
	}

	if costRaw, present := obj.Raw("cost"); present {
		if c, ok := schema.ReadObject(costRaw, issues, obj.Path("cost")); ok {
			answer.Cost = &Cost{
				Model:            c.String("model"),
				PromptTokens:     c.Int("prompt_tokens"),
				CompletionTokens: c.Int("completion_tokens"),
				USD:              c.Number("usd"),
			}
		}
	}
	return answer
}
