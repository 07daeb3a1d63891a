package report

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/BaSui01/mysteryshopper/agent/journey"
	"github.com/BaSui01/mysteryshopper/agent/oracle"
)

func TestProperty_SummaryBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("average stays within score range and counts are consistent", prop.ForAll(
		func(scores []int, highPerStep int) bool {
			j := &journey.Journey{StartURL: "https://p.example", Status: journey.StatusFinished}
			for i, sc := range scores {
				issues := make([]oracle.Issue, 0, highPerStep+1)
				for k := 0; k < highPerStep; k++ {
					issues = append(issues, oracle.Issue{Severity: oracle.SeverityHigh})
				}
				issues = append(issues, oracle.Issue{Severity: oracle.SeverityLow})
				j.Steps = append(j.Steps, step(i+1, "https://p.example", oracle.Decision{Action: oracle.ActionScroll}, sc, issues,
					oracle.Suggestion{Suggestion: "a"}, oracle.Suggestion{Suggestion: "b"}))
			}

			s := Summarize(j)
			if s.AverageScore < 0 || s.AverageScore > 100 {
				return false
			}
			if s.HighIssues > s.TotalIssues {
				return false
			}
			if s.TotalIssues != len(scores)*(highPerStep+1) {
				return false
			}
			if len(s.TopSuggestions) > TopSuggestionLimit || len(s.TopSuggestions) > 2*len(scores) {
				return false
			}
			return len(s.Steps) == len(scores) && s.Grade == GradeFor(s.AverageScore)
		},
		gen.SliceOf(gen.IntRange(0, 100)),
		gen.IntRange(0, 4),
	))

	properties.TestingRun(t)
}
