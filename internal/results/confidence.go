package results

import "dataghost-gateway/internal/api"

// NoDiagnosticsMessage is shown when the API gave no confidence reasons.
const NoDiagnosticsMessage = "No diagnostics were returned by the API."

// Banner variants.
const (
	VariantDefault     = "default"
	VariantWarning     = "warning"
	VariantDestructive = "destructive"
)

// Banner is the confidence summary shown above an answer.
type Banner struct {
	Level    api.ConfidenceLevel `json:"level"`
	Title    string              `json:"title"`
	Variant  string              `json:"variant"`
	Positive bool                `json:"positive"`
	Reasons  []string            `json:"reasons"`
	Message  string              `json:"message,omitempty"`
}

// ConfidenceBanner maps a confidence level onto its title and variant.
func ConfidenceBanner(c api.Confidence) Banner {
	b := Banner{
		Level:   c.Level,
		Reasons: append([]string{}, c.Reasons...),
	}
	switch c.Level {
	case api.ConfidenceInsufficient:
		b.Title, b.Variant = "Cannot answer confidently", VariantDestructive
	case api.ConfidenceLow:
		b.Title, b.Variant = "Insufficient confidence", VariantWarning
	case api.ConfidenceMedium:
		b.Title, b.Variant, b.Positive = "Moderate confidence", VariantDefault, true
	default:
		b.Title, b.Variant, b.Positive = "High confidence", VariantDefault, true
	}
	if len(b.Reasons) == 0 {
		b.Message = NoDiagnosticsMessage
	}
	return b
}
