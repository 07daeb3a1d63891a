package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/mysteryshopper/agent/journey"
)

// Format names an export format.
type Format string

const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatSummary Format = "summary"
	FormatDOT     Format = "dot"
)

// ParseFormat accepts json, yaml, summary (or text) and dot.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "summary", "text", "txt":
		return FormatSummary, nil
	case "dot", "graphviz":
		return FormatDOT, nil
	default:
		return "", fmt.Errorf("unsupported report format %q", s)
	}
}

// ContentType is the MIME type of an export.
func (f Format) ContentType() string {
	switch f {
	case FormatYAML:
		return "application/yaml"
	case FormatSummary:
		return "text/plain; charset=utf-8"
	case FormatDOT:
		return "text/vnd.graphviz"
	default:
		return "application/json"
	}
}

// Extension is the file extension of an export, without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatSummary:
		return "txt"
	case FormatDOT:
		return "dot"
	default:
		return "json"
	}
}

// Render writes j in format f.
func Render(j *journey.Journey, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return JSON(j)
	case FormatYAML:
		return YAML(j)
	case FormatSummary:
		return []byte(Text(j)), nil
	case FormatDOT:
		s, err := DOT(j)
		return []byte(s), err
	default:
		return nil, fmt.Errorf("unsupported report format %q", f)
	}
}

// Document is the exported JSON shape of a journey.
type Document struct {
	URL          string               `json:"url"`
	Goal         string               `json:"goal"`
	Timestamp    time.Time            `json:"timestamp"`
	StepCount    int                  `json:"stepCount"`
	Status       journey.Status       `json:"status"`
	FinishReason journey.FinishReason `json:"finishReason"`
	Steps        []journey.StepRecord `json:"steps"`
}

// NewDocument builds the export document. Timestamp is the finish time.
func NewDocument(j *journey.Journey) Document {
	steps := j.Steps
	if steps == nil {
		steps = []journey.StepRecord{}
	}
	return Document{
		URL:          j.StartURL,
		Goal:         j.Goal,
		Timestamp:    reportTime(j),
		StepCount:    len(steps),
		Status:       j.Status,
		FinishReason: j.FinishReason,
		Steps:        steps,
	}
}

// JSON renders the export document, indented.
func JSON(j *journey.Journey) ([]byte, error) {
	return json.MarshalIndent(NewDocument(j), "", "  ")
}

// YAML renders the export document as block-style YAML, keeping JSON key order.
func YAML(j *journey.Journey) ([]byte, error) {
	raw, err := json.Marshal(NewDocument(j))
	if err != nil {
		return nil, err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("convert report to yaml: %w", err)
	}
	blockStyle(&node)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// Text renders the plain-text summary.
func Text(j *journey.Journey) string {
	var b strings.Builder
	b.WriteString("AI Mystery Shopper Report\n")
	b.WriteString(strings.Repeat("=", 50))
	b.WriteString("\n")
	fmt.Fprintf(&b, "URL: %s\n", j.StartURL)
	fmt.Fprintf(&b, "Date: %s\n", reportTime(j).Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Steps: %d\n", len(j.Steps))
	fmt.Fprintf(&b, "Avg Score: %.1f%%\n", j.AverageScore())

	s := Summarize(j)
	fmt.Fprintf(&b, "Status: %s (%s)\n", s.Status, s.FinishReason)
	fmt.Fprintf(&b, "Issues: %d (%d high)\n", s.TotalIssues, s.HighIssues)
	if len(s.TopSuggestions) > 0 {
		b.WriteString("\nKey Recommendations:\n")
		for i, sug := range s.TopSuggestions {
			fmt.Fprintf(&b, "  #%d: %s\n", i+1, sug.Suggestion)
		}
	}
	return b.String()
}

func reportTime(j *journey.Journey) time.Time {
	if !j.FinishedAt.IsZero() {
		return j.FinishedAt
	}
	return j.StartedAt
}
