package report

import (
	"github.com/BaSui01/mysteryshopper/agent/journey"
	"github.com/BaSui01/mysteryshopper/agent/oracle"
)

// TopSuggestionLimit caps Summary.TopSuggestions.
const TopSuggestionLimit = 5

// Grade buckets a conversion score.
type Grade string

const (
	GradeGood Grade = "good"
	GradeFair Grade = "fair"
	GradePoor Grade = "poor"
)

// GradeFor maps a score to good (>=70), fair (>=50) or poor.
func GradeFor(score float64) Grade {
	switch {
	case score >= 70:
		return GradeGood
	case score >= 50:
		return GradeFair
	default:
		return GradePoor
	}
}

// StepSummary is the one-line view of a step.
type StepSummary struct {
	Step     int             `json:"step" yaml:"step"`
	URL      string          `json:"url" yaml:"url"`
	Action   oracle.Action   `json:"action" yaml:"action"`
	Label    string          `json:"label" yaml:"label"`
	PageType oracle.PageType `json:"page_type" yaml:"page_type"`
	Score    int             `json:"score" yaml:"score"`
	Grade    Grade           `json:"grade" yaml:"grade"`
	Issues   int             `json:"issues" yaml:"issues"`
	Degraded bool            `json:"degraded,omitempty" yaml:"degraded,omitempty"`
}

// Summary aggregates a journey.
type Summary struct {
	JourneyID      string               `json:"journey_id" yaml:"journey_id"`
	URL            string               `json:"url" yaml:"url"`
	Goal           string               `json:"goal" yaml:"goal"`
	Status         journey.Status       `json:"status" yaml:"status"`
	FinishReason   journey.FinishReason `json:"finish_reason" yaml:"finish_reason"`
	TotalSteps     int                  `json:"total_steps" yaml:"total_steps"`
	AverageScore   float64              `json:"average_score" yaml:"average_score"`
	Grade          Grade                `json:"grade" yaml:"grade"`
	TotalIssues    int                  `json:"total_issues" yaml:"total_issues"`
	HighIssues     int                  `json:"high_issues" yaml:"high_issues"`
	Warnings       int                  `json:"warnings" yaml:"warnings"`
	TopSuggestions []oracle.Suggestion  `json:"top_suggestions" yaml:"top_suggestions"`
	Steps          []StepSummary        `json:"steps" yaml:"steps"`
}

// Summarize computes the dashboard statistics of j.
func Summarize(j *journey.Journey) Summary {
	s := Summary{
		JourneyID:      j.ID,
		URL:            j.StartURL,
		Goal:           j.Goal,
		Status:         j.Status,
		FinishReason:   j.FinishReason,
		TotalSteps:     len(j.Steps),
		AverageScore:   j.AverageScore(),
		Warnings:       len(j.Warnings),
		TopSuggestions: []oracle.Suggestion{},
		Steps:          make([]StepSummary, 0, len(j.Steps)),
	}
	s.Grade = GradeFor(s.AverageScore)

	for _, rec := range j.Steps {
		a := rec.Analysis
		s.TotalIssues += len(a.Issues)
		s.HighIssues += a.HighSeverityCount()
		for _, sug := range a.Suggestions {
			if len(s.TopSuggestions) == TopSuggestionLimit {
				break
			}
			s.TopSuggestions = append(s.TopSuggestions, sug)
		}
		s.Steps = append(s.Steps, StepSummary{
			Step:     rec.Step,
			URL:      rec.URL,
			Action:   rec.Decision.Action,
			Label:    rec.Decision.Label,
			PageType: a.PageType,
			Score:    a.ConversionScore,
			Grade:    GradeFor(float64(a.ConversionScore)),
			Issues:   len(a.Issues),
			Degraded: a.Degraded || rec.Decision.Degraded,
		})
	}
	return s
}
