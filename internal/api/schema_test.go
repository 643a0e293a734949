package api

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestDatasetUploadCompatibleCanonicalIsIdempotent(t *testing.T) {
	raw := json.RawMessage(`{"dataset_id":"ds-1","name":"sales","rows":10,"columns":[{"name":"c1","type":"date"},{"name":"c2","type":"number"}],"created_at":"2024-02-01T10:00:00Z"}`)

	first, err := DatasetUploadCompatibleSchema.Parse(raw)
	if err != nil {
		t.Fatalf("parse canonical: %v", err)
	}
	encoded, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := DatasetUploadCompatibleSchema.Parse(encoded)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected idempotent parse, got %+v then %+v", first, second)
	}
	if first.CreatedAt != "2024-02-01T10:00:00Z" {
		t.Fatalf("expected created_at kept, got %q", first.CreatedAt)
	}
}

func TestDatasetUploadCompatibleLegacy(t *testing.T) {
	raw := json.RawMessage(`{"dataset_id":"ds-1","table_name":"sales","rows":10,"columns":["c1","c2","c3"],"schema":{"c1":"date","c2":"number"}}`)

	got, err := DatasetUploadCompatibleSchema.Parse(raw)
	if err != nil {
		t.Fatalf("parse legacy: %v", err)
	}
	want := DatasetUpload{
		DatasetID: "ds-1",
		Name:      "sales",
		Rows:      10,
		Columns: []DatasetColumn{
			{Name: "c1", Type: "date"},
			{Name: "c2", Type: "number"},
			{Name: "c3", Type: "unknown"},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected normalization:\n got %+v\nwant %+v", got, want)
	}
	again, _ := DatasetUploadCompatibleSchema.Parse(raw)
	if !reflect.DeepEqual(got, again) {
		t.Fatalf("expected deterministic normalization")
	}
}

func TestDatasetUploadCompatibleRejectsNeither(t *testing.T) {
	_, err := DatasetUploadCompatibleSchema.Parse(json.RawMessage(`{"dataset_id":"ds-1","rows":10,"columns":[1]}`))
	if err == nil {
		t.Fatalf("expected parse failure")
	}
}

func TestDatasetSummaryCompatibleLegacy(t *testing.T) {
	raw := json.RawMessage(`{"dataset_id":"ds-1","name":"sales","table_name":"sales_v1","rows":3,"columns":["c1","c2","c3"],"schema":{"c1":"date","c2":"number"},"created_at":"2024-01-01"}`)

	got, err := DatasetSummaryCompatibleSchema.Parse(raw)
	if err != nil {
		t.Fatalf("parse legacy summary: %v", err)
	}
	if got.Name != "sales" {
		t.Fatalf("expected name kept, got %q", got.Name)
	}
	wantCols := []DatasetColumn{{Name: "c1", Type: "date"}, {Name: "c2", Type: "number"}, {Name: "c3", Type: "unknown"}}
	if !reflect.DeepEqual(got.Columns, wantCols) {
		t.Fatalf("unexpected columns %+v", got.Columns)
	}
	if got.SampleRows == nil || len(got.SampleRows) != 0 {
		t.Fatalf("expected sample_rows defaulted to empty, got %#v", got.SampleRows)
	}
	if got.Stats != nil {
		t.Fatalf("expected stats dropped")
	}
	if got.CreatedAt != "2024-01-01" {
		t.Fatalf("expected created_at kept")
	}
}

func TestDatasetSummaryCanonicalKeepsStats(t *testing.T) {
	raw := json.RawMessage(`{"dataset_id":"ds-1","name":"sales","rows":3,"columns":[{"name":"c1","type":"date"}],"sample_rows":[{"c1":"2024-01-01"}],"stats":{"nulls":0}}`)
	got, err := DatasetSummaryCompatibleSchema.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Stats["nulls"] != float64(0) || len(got.SampleRows) != 1 {
		t.Fatalf("unexpected summary %+v", got)
	}
}

func TestDatasetSummaryCanonicalRequiresSampleRows(t *testing.T) {
	_, err := DatasetSummaryCompatibleSchema.Parse(json.RawMessage(`{"dataset_id":"ds-1","name":"sales","rows":3,"columns":[{"name":"c1","type":"date"}]}`))
	if err == nil {
		t.Fatalf("typed columns without sample_rows must fail both shapes")
	}
}

func TestAskResponseFinalDefaults(t *testing.T) {
	raw := json.RawMessage(`{"conversation_id":"c1","needs_clarification":false,"answer":{"headline":"H","narrative":"N","confidence":{"level":"high"}}}`)
	got, err := AskResponseSchema.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.NeedsClarification || got.Answer == nil {
		t.Fatalf("expected final answer, got %+v", got)
	}
	a := got.Answer
	if a.Drivers == nil || a.Charts == nil || a.SQL == nil || a.Confidence.Reasons == nil {
		t.Fatalf("expected empty defaults, got %+v", a)
	}
	if got.ClarificationQuestions == nil || len(got.ClarificationQuestions) != 0 {
		t.Fatalf("expected empty clarification questions")
	}
	if a.Cost != nil {
		t.Fatalf("expected no cost")
	}
}

func TestAskResponseFullAnswer(t *testing.T) {
	raw := json.RawMessage(`{
		"conversation_id":"c1","needs_clarification":false,
		"answer":{
			"headline":"Revenue fell","narrative":"Because.",
			"drivers":[{"name":"Region","contribution":-0.12,"evidence":{"region":"EU"}},{"name":"Price","contribution":3}],
			"charts":[{"kind":"bar","title":"By region","data":[{"region":"EU","value":1}]}],
			"sql":[{"label":"main","query":"select 1"}],
			"confidence":{"level":"low","reasons":["small sample"]},
			"cost":{"model":"m","prompt_tokens":10,"completion_tokens":5,"usd":0.0012}
		}}`)
	got, err := AskResponseSchema.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	a := got.Answer
	if len(a.Drivers) != 2 || string(a.Drivers[0].Evidence) != `{"region":"EU"}` || a.Drivers[1].Evidence != nil {
		t.Fatalf("unexpected drivers %+v", a.Drivers)
	}
	if a.Confidence.Level != ConfidenceLow || a.Cost == nil || a.Cost.PromptTokens != 10 {
		t.Fatalf("unexpected answer %+v", a)
	}
}

func TestAskResponseRejectsUnknownChartKind(t *testing.T) {
	raw := json.RawMessage(`{"conversation_id":"c1","needs_clarification":false,"answer":{"headline":"H","narrative":"N","charts":[{"kind":"pie","title":"t","data":[]}],"confidence":{"level":"high"}}}`)
	if _, err := AskResponseSchema.Parse(raw); err == nil {
		t.Fatalf("expected pie charts to be rejected")
	}
}

func TestAskResponseClarificationRequiresQuestions(t *testing.T) {
	if _, err := AskResponseSchema.Parse(json.RawMessage(`{"conversation_id":"c1","needs_clarification":true}`)); err == nil {
		t.Fatalf("expected failure without clarification_questions")
	}
}

func TestClarificationQuestionInputKind(t *testing.T) {
	tests := []struct {
		q        ClarificationQuestion
		kind     string
		defValue string
	}{
		{ClarificationQuestion{Type: "SELECT", Options: []string{"a", "b"}}, InputSelect, "a"},
		{ClarificationQuestion{Type: "Radio", Options: []string{"x"}}, InputRadio, "x"},
		{ClarificationQuestion{Type: "date"}, InputText, ""},
	}
	for _, tt := range tests {
		if got := tt.q.InputKind(); got != tt.kind {
			t.Fatalf("InputKind(%q) = %q, want %q", tt.q.Type, got, tt.kind)
		}
		if got := tt.q.DefaultValue(); got != tt.defValue {
			t.Fatalf("DefaultValue = %q, want %q", got, tt.defValue)
		}
	}
}
