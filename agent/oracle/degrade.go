package oracle

// diagnosticLen bounds the error text embedded in degraded values.
const diagnosticLen = 50

// DegradedDecision is the finish decision substituted when Decide fails.
func DegradedDecision(err error) Decision {
	return Decision{
		Action:        ActionFinish,
		Label:         "Analysis complete",
		Reason:        "AI error: " + Truncate(errText(err), diagnosticLen),
		UXObservation: "Error occurred",
		Degraded:      true,
	}
}

// DegradedAnalysis is the zero-score analysis substituted when Score fails.
func DegradedAnalysis(err error) UXAnalysis {
	return UXAnalysis{
		PageType:          PageUnknown,
		Issues:            []Issue{},
		PositiveAspects:   []string{},
		Suggestions:       []Suggestion{},
		ConversionScore:   0,
		OverallAssessment: "Analysis error: " + Truncate(errText(err), diagnosticLen),
		Degraded:          true,
	}
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
