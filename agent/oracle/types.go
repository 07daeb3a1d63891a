package oracle

import (
	"context"
	"strings"
)

// Action is the closed set of navigation decisions.
type Action string

const (
	ActionClick  Action = "click"
	ActionScroll Action = "scroll"
	ActionFinish Action = "finish"
	// ActionNoop stands in for any action string the model invented.
	ActionNoop Action = "noop"
)

// ParseAction maps a model-provided action to a known Action.
func ParseAction(s string) Action {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionClick:
		return ActionClick
	case ActionScroll:
		return ActionScroll
	case ActionFinish:
		return ActionFinish
	default:
		return ActionNoop
	}
}

// Severity of a UX issue.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// ParseSeverity defaults unknown values to medium.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityHigh:
		return SeverityHigh
	case SeverityLow:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// PageType classifies the analysed page.
type PageType string

const (
	PageHomepage PageType = "homepage"
	PageSignup   PageType = "signup"
	PageLogin    PageType = "login"
	PageOther    PageType = "other"
	// PageUnknown is only produced by DegradedAnalysis.
	PageUnknown PageType = "unknown"
)

// ParsePageType defaults unknown values to other.
func ParsePageType(s string) PageType {
	switch PageType(strings.ToLower(strings.TrimSpace(s))) {
	case PageHomepage:
		return PageHomepage
	case PageSignup:
		return PageSignup
	case PageLogin:
		return PageLogin
	default:
		return PageOther
	}
}

// Decision is the model's choice for the next action.
type Decision struct {
	Action        Action `json:"action"`
	Label         string `json:"label"`
	Value         string `json:"value"`
	Reason        string `json:"reason"`
	UXObservation string `json:"ux_observation"`
	// RawAction keeps the unrecognized action string when Action is ActionNoop.
	RawAction string `json:"raw_action,omitempty"`
	Degraded  bool   `json:"degraded,omitempty"`
}

// Issue is a single UX problem.
type Issue struct {
	Severity Severity `json:"severity"`
	Issue    string   `json:"issue"`
	Location string   `json:"location"`
	Impact   string   `json:"impact"`
}

// Suggestion is an actionable improvement.
type Suggestion struct {
	Suggestion     string `json:"suggestion"`
	Implementation string `json:"implementation"`
	ExpectedImpact string `json:"expected_impact"`
}

// UXAnalysis is the model's assessment of one page.
type UXAnalysis struct {
	PageType          PageType     `json:"page_type"`
	Issues            []Issue      `json:"ux_issues"`
	PositiveAspects   []string     `json:"positive_aspects"`
	Suggestions       []Suggestion `json:"actionable_suggestions"`
	ConversionScore   int          `json:"conversion_score"`
	OverallAssessment string       `json:"overall_assessment"`
	Degraded          bool         `json:"degraded,omitempty"`
}

// HighSeverityCount counts issues with SeverityHigh.
func (a UXAnalysis) HighSeverityCount() int {
	n := 0
	for _, i := range a.Issues {
		if i.Severity == SeverityHigh {
			n++
		}
	}
	return n
}

// Snapshot is the screenshot handed to both oracle calls of a step.
type Snapshot struct {
	// Ref identifies the stored screenshot artifact.
	Ref      string
	Data     []byte
	MimeType string
}

// DecideRequest asks for the next action.
type DecideRequest struct {
	Snapshot Snapshot
	Goal     string
	// History holds the most recent actions, oldest first.
	History []string
	Step    int
}

// ScoreRequest asks for a UX analysis of the page.
type ScoreRequest struct {
	Snapshot Snapshot
	PageURL  string
}

// Oracle decides and scores from screenshots.
type Oracle interface {
	Decide(ctx context.Context, req DecideRequest) (Decision, error)
	Score(ctx context.Context, req ScoreRequest) (UXAnalysis, error)
}
