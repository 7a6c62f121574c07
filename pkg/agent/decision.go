package agent

import "strings"

// Markers a plan result may open with. They are decoded exactly once;
// marker text nested inside the payload stays verbatim.
const (
	FinalMarker    = "FINAL_ANSWER:"
	ContinueMarker = "FURTHER_PROCESSING_REQUIRED:"
)

// Decision is the evaluation of one execution result
type Decision struct {
	Final bool
	Text  string
}

// Evaluate decodes an execution result. Text opening with the final
// marker ends the run; the continue marker feeds its payload into the
// next step. Unmarked text is taken as a final answer as-is.
func Evaluate(result string) Decision {
	text := strings.TrimSpace(result)

	if rest, ok := strings.CutPrefix(text, FinalMarker); ok {
		return Decision{Final: true, Text: strings.TrimSpace(rest)}
	}
	if rest, ok := strings.CutPrefix(text, ContinueMarker); ok {
		return Decision{Final: false, Text: strings.TrimSpace(rest)}
	}
	return Decision{Final: true, Text: text}
}

// StripMarker removes a leading final-answer marker for display
func StripMarker(text string) string {
	trimmed := strings.TrimSpace(text)
	if rest, ok := strings.CutPrefix(trimmed, FinalMarker); ok {
		return strings.TrimSpace(rest)
	}
	return trimmed
}
