package results

import (
	"time"

	"dataghost-gateway/internal/api"
	"dataghost-gateway/internal/shared/format"
)

// ChartView is either a plottable chart or a titled placeholder.
type ChartView struct {
	Kind       string        `json:"kind"`
	Title      string        `json:"title"`
	Renderable bool          `json:"renderable"`
	Chart      *AdaptedChart `json:"chart,omitempty"`
}

// CostView is the formatted model usage line.
type CostView struct {
	Model            string `json:"model"`
	PromptTokens     string `json:"promptTokens"`
	CompletionTokens string `json:"completionTokens"`
	USD              string `json:"usd"`
}

// AnswerView is an answer with every presentation extra computed.
type AnswerView struct {
	Headline   string             `json:"headline"`
	Narrative  string             `json:"narrative"`
	Confidence Banner             `json:"confidence"`
	Drivers    []DriverView       `json:"drivers"`
	Charts     []ChartView        `json:"charts"`
	SQL        []api.SQLStatement `json:"sql"`
	Cost       *CostView          `json:"cost,omitempty"`
	RequestID  string             `json:"requestId,omitempty"`
}

// Present builds the display model for answer.
func Present(answer api.Answer, requestID string) AnswerView {
	view := AnswerView{
		Headline:   answer.Headline,
		Narrative:  answer.Narrative,
		Confidence: ConfidenceBanner(answer.Confidence),
		Drivers:    Drivers(answer.Drivers),
		Charts:     make([]ChartView, 0, len(answer.Charts)),
		SQL:        append([]api.SQLStatement{}, answer.SQL...),
		RequestID:  requestID,
	}
	for _, chart := range answer.Charts {
		cv := ChartView{Kind: chart.Kind, Title: chart.Title}
		if adapted, ok := AdaptChart(chart); ok {
			cv.Renderable, cv.Chart = true, adapted
		}
		view.Charts = append(view.Charts, cv)
	}
	if answer.Cost != nil {
		view.Cost = &CostView{
			Model:            answer.Cost.Model,
			PromptTokens:     format.Count(answer.Cost.PromptTokens),
			CompletionTokens: format.Count(answer.Cost.CompletionTokens),
			USD:              format.USD(answer.Cost.USD),
		}
	}
	return view
}

// ExecutionPhases cycle while an ask is in flight.
var ExecutionPhases = []string{"Planning", "Running queries", "Validating", "Explaining"}

// PhaseInterval is how long each execution phase is shown.
const PhaseInterval = 1500 * time.Millisecond

// PhaseAt returns the phase label after elapsed time in flight.
func PhaseAt(elapsed time.Duration) string {
	if elapsed < 0 {
		elapsed = 0
	}
	idx := int(elapsed/PhaseInterval) % len(ExecutionPhases)
	return ExecutionPhases[idx]
}
