package results

import (
	"bytes"
	"encoding/json"
	"strconv"

	"dataghost-gateway/internal/api"
	"dataghost-gateway/internal/api/schema"
	"dataghost-gateway/internal/shared/format"
)

// NoEvidenceMessage is shown for drivers without evidence.
const NoEvidenceMessage = "No additional evidence supplied."

// DriverView is a driver with its display strings.
type DriverView struct {
	Name         string  `json:"name"`
	Contribution float64 `json:"contribution"`
	Formatted    string  `json:"formatted"`
	Positive     bool    `json:"positive"`
	Evidence     string  `json:"evidence"`
	HasEvidence  bool    `json:"hasEvidence"`
}

// Drivers formats every driver for display.
func Drivers(drivers []api.Driver) []DriverView {
	out := make([]DriverView, 0, len(drivers))
	for _, d := range drivers {
		view := DriverView{
			Name:         d.Name,
			Contribution: d.Contribution,
			Formatted:    format.Contribution(d.Contribution),
			Positive:     d.Contribution >= 0,
			Evidence:     NoEvidenceMessage,
		}
		if text, ok := FormatEvidence(d.Evidence); ok {
			view.Evidence, view.HasEvidence = text, true
		}
		out = append(out, view)
	}
	return out
}

// FormatEvidence renders free-form evidence: strings as-is, numbers in
// shortest form, other JSON compact. Absent, null and empty evidence report false.
func FormatEvidence(raw json.RawMessage) (string, bool) {
	switch schema.Kind(raw) {
	case "undefined", "null":
		return "", false
	case "string":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			return "", false
		}
		return s, true
	case "number":
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return "", false
		}
		return strconv.FormatFloat(f, 'f', -1, 64), true
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return "Additional evidence available", true
		}
		return buf.String(), true
	}
}
