package oracle

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedResponse is returned when model output is not the expected JSON.
var ErrMalformedResponse = errors.New("malformed oracle response")

type wireDecision struct {
	Action        string `json:"action"`
	Label         string `json:"label"`
	Value         string `json:"value"`
	Reason        string `json:"reason"`
	UXObservation string `json:"ux_observation"`
}

type wireIssue struct {
	Severity string `json:"severity"`
	Issue    string `json:"issue"`
	Location string `json:"location"`
	Impact   string `json:"impact"`
}

type wireAnalysis struct {
	PageType          string          `json:"page_type"`
	Issues            []wireIssue     `json:"ux_issues"`
	PositiveAspects   []string        `json:"positive_aspects"`
	Suggestions       []Suggestion    `json:"actionable_suggestions"`
	ConversionScore   json.RawMessage `json:"conversion_score"`
	OverallAssessment string          `json:"overall_assessment"`
}

// ParseDecision validates model output into a Decision.
func ParseDecision(text string) (Decision, error) {
	var w wireDecision
	if err := unmarshalLenient(text, &w); err != nil {
		return Decision{}, err
	}

	d := Decision{
		Action:        ParseAction(w.Action),
		Label:         strings.TrimSpace(w.Label),
		Value:         w.Value,
		Reason:        w.Reason,
		UXObservation: w.UXObservation,
	}
	if d.Action == ActionNoop {
		d.RawAction = w.Action
	}
	return d, nil
}

// ParseAnalysis validates model output into a UXAnalysis.
func ParseAnalysis(text string) (UXAnalysis, error) {
	var w wireAnalysis
	if err := unmarshalLenient(text, &w); err != nil {
		return UXAnalysis{}, err
	}

	score, err := parseScore(w.ConversionScore)
	if err != nil {
		return UXAnalysis{}, fmt.Errorf("%w: conversion_score: %v", ErrMalformedResponse, err)
	}

	a := UXAnalysis{
		PageType:          ParsePageType(w.PageType),
		Issues:            make([]Issue, 0, len(w.Issues)),
		PositiveAspects:   w.PositiveAspects,
		Suggestions:       w.Suggestions,
		ConversionScore:   score,
		OverallAssessment: w.OverallAssessment,
	}
	for _, i := range w.Issues {
		a.Issues = append(a.Issues, Issue{
			Severity: ParseSeverity(i.Severity),
			Issue:    i.Issue,
			Location: i.Location,
			Impact:   i.Impact,
		})
	}
	if a.PositiveAspects == nil {
		a.PositiveAspects = []string{}
	}
	if a.Suggestions == nil {
		a.Suggestions = []Suggestion{}
	}
	return a, nil
}

// unmarshalLenient strips markdown fences and surrounding prose before decoding.
func unmarshalLenient(text string, v any) error {
	body := strings.TrimSpace(text)
	if strings.HasPrefix(body, "```") {
		body = strings.TrimPrefix(body, "```json")
		body = strings.TrimPrefix(body, "```")
		body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	}
	if start, end := strings.Index(body, "{"), strings.LastIndex(body, "}"); start >= 0 && end > start {
		body = body[start : end+1]
	}
	if body == "" {
		return fmt.Errorf("%w: empty output", ErrMalformedResponse)
	}

	// Some models wrap the object in a single-element array.
	raw := []byte(body)
	if bytes.HasPrefix(raw, []byte("[")) {
		var arr []json.RawMessage
		if err := json.Unmarshal(raw, &arr); err == nil && len(arr) > 0 {
			raw = arr[0]
		}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// parseScore accepts numbers or numeric strings and clamps to 0..100.
func parseScore(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "%")
		if f, err = strconv.ParseFloat(s, 64); err != nil {
			return 0, err
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite score %q", string(raw))
	}
	// clamp before the int conversion; huge floats overflow int
	return int(math.Round(math.Max(0, math.Min(100, f)))), nil
}

// ClampScore bounds a conversion score to 0..100.
func ClampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
