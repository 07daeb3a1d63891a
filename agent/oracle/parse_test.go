package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Decision
	}{
		{
			name:  "click",
			input: `{"action":"click","label":"Sign Up","value":"","reason":"signup cta","ux_observation":"clear"}`,
			want:  Decision{Action: ActionClick, Label: "Sign Up", Reason: "signup cta", UXObservation: "clear"},
		},
		{
			name:  "fenced json",
			input: "```json\n{\"action\":\"scroll\",\"label\":\"\",\"reason\":\"look below\"}\n```",
			want:  Decision{Action: ActionScroll, Reason: "look below"},
		},
		{
			name:  "surrounding prose",
			input: "Here you go: {\"action\":\"FINISH\",\"label\":\"\"} hope it helps",
			want:  Decision{Action: ActionFinish},
		},
		{
			name:  "unknown action",
			input: `{"action":"type","label":"Email"}`,
			want:  Decision{Action: ActionNoop, Label: "Email", RawAction: "type"},
		},
		{
			name:  "label trimmed",
			input: `{"action":"click","label":"  Log in  "}`,
			want:  Decision{Action: ActionClick, Label: "Log in"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDecision(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDecision_Malformed(t *testing.T) {
	for _, input := range []string{"", "not json", `{"action":`, "```\n```"} {
		_, err := ParseDecision(input)
		assert.ErrorIs(t, err, ErrMalformedResponse, "input %q", input)
	}
}

func TestParseAnalysis(t *testing.T) {
	input := `{
		"page_type": "Signup",
		"ux_issues": [
			{"severity": "HIGH", "issue": "tiny button", "location": "hero", "impact": "fewer clicks"},
			{"severity": "critical", "issue": "no labels", "location": "form", "impact": "errors"}
		],
		"positive_aspects": ["fast"],
		"actionable_suggestions": [{"suggestion": "bigger cta", "implementation": "css", "expected_impact": "+5%"}],
		"conversion_score": 72.6,
		"overall_assessment": "decent"
	}`

	a, err := ParseAnalysis(input)
	require.NoError(t, err)
	assert.Equal(t, PageSignup, a.PageType)
	require.Len(t, a.Issues, 2)
	assert.Equal(t, SeverityHigh, a.Issues[0].Severity)
	assert.Equal(t, SeverityMedium, a.Issues[1].Severity)
	assert.Equal(t, 1, a.HighSeverityCount())
	assert.Equal(t, []string{"fast"}, a.PositiveAspects)
	require.Len(t, a.Suggestions, 1)
	assert.Equal(t, "+5%", a.Suggestions[0].ExpectedImpact)
	assert.Equal(t, 73, a.ConversionScore)
	assert.Equal(t, "decent", a.OverallAssessment)
	assert.False(t, a.Degraded)
}

func TestParseAnalysis_ScoreForms(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{`"80"`, 80},
		{`"65%"`, 65},
		{`150`, 100},
		{`-3`, 0},
		{`null`, 0},
		{`1e20`, 100},
		{`9.3e18`, 100},
		{`-1e20`, 0},
		{`"1e30%"`, 100},
		{`99.6`, 100},
	}
	for _, tt := range tests {
		a, err := ParseAnalysis(`{"page_type":"homepage","conversion_score":` + tt.raw + `}`)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, a.ConversionScore, tt.raw)
		assert.NotNil(t, a.Suggestions)
		assert.NotNil(t, a.PositiveAspects)
	}

	for _, raw := range []string{`"high"`, `"NaN"`, `"Infinity"`, `"-Inf"`} {
		_, err := ParseAnalysis(`{"conversion_score":` + raw + `}`)
		assert.ErrorIs(t, err, ErrMalformedResponse, raw)
	}
}

func TestParseAnalysis_UnknownPageType(t *testing.T) {
	a, err := ParseAnalysis(`{"page_type":"pricing"}`)
	require.NoError(t, err)
	assert.Equal(t, PageOther, a.PageType)
}

func TestParseAction_ClosedSet(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "action")
		switch ParseAction(s) {
		case ActionClick, ActionScroll, ActionFinish, ActionNoop:
		default:
			t.Fatalf("ParseAction(%q) escaped the closed set", s)
		}
	})
}

func TestClampScore_Bounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.Int().Draw(t, "n")
		got := ClampScore(n)
		if got < 0 || got > 100 {
			t.Fatalf("ClampScore(%d) = %d", n, got)
		}
	})
}
