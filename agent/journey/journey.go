package journey

import (
	"net/url"
	"strings"
	"time"

	"github.com/BaSui01/mysteryshopper/agent/oracle"
	"github.com/BaSui01/mysteryshopper/types"
)

// Status is the terminal outcome of a journey.
type Status string

const (
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusAborted  Status = "aborted"
)

// FinishReason explains why a journey stopped.
type FinishReason string

const (
	ReasonDecision   FinishReason = "decision"
	ReasonExhausted  FinishReason = "exhausted"
	ReasonCanceled   FinishReason = "canceled"
	ReasonLoadFailed FinishReason = "load_failed"
)

// ScreenshotRef points at the stored screenshot of a step.
type ScreenshotRef struct {
	ID         string    `json:"id"`
	Path       string    `json:"path,omitempty"`
	SHA256     string    `json:"sha256"`
	Size       int64     `json:"size"`
	URL        string    `json:"url"`
	CapturedAt time.Time `json:"captured_at"`
}

// StepRecord is the immutable record of one journey step.
type StepRecord struct {
	Step       int               `json:"step"`
	URL        string            `json:"url"`
	Screenshot ScreenshotRef     `json:"screenshot"`
	Decision   oracle.Decision   `json:"decision"`
	Analysis   oracle.UXAnalysis `json:"ux_analysis"`
	CapturedAt time.Time         `json:"captured_at"`
}

// Journey is the result of one Controller run.
type Journey struct {
	ID           string       `json:"id"`
	StartURL     string       `json:"start_url"`
	Goal         string       `json:"goal"`
	MaxSteps     int          `json:"max_steps"`
	Status       Status       `json:"status"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
	Steps        []StepRecord `json:"steps"`
	Warnings     []string     `json:"warnings"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
}

// Aborted reports whether the journey never got past loading.
func (j *Journey) Aborted() bool {
	return j.Status == StatusAborted
}

// Duration is the wall time of the run.
func (j *Journey) Duration() time.Duration {
	if j.FinishedAt.IsZero() {
		return 0
	}
	return j.FinishedAt.Sub(j.StartedAt)
}

// AverageScore is the mean conversion score over recorded steps, 0 when empty.
func (j *Journey) AverageScore() float64 {
	if len(j.Steps) == 0 {
		return 0
	}
	sum := 0
	for _, s := range j.Steps {
		sum += s.Analysis.ConversionScore
	}
	return float64(sum) / float64(len(j.Steps))
}

// Request describes a journey to run.
type Request struct {
	// ID is optional; a UUID is generated when empty.
	ID       string `json:"id,omitempty"`
	StartURL string `json:"start_url"`
	Goal     string `json:"goal"`
	MaxSteps int    `json:"max_steps"`
}

// Validate checks that StartURL is an absolute http(s) URL and MaxSteps is not negative.
func (r Request) Validate() error {
	if err := ValidateStartURL(r.StartURL); err != nil {
		return err
	}
	if r.MaxSteps < 0 {
		return types.NewError(types.ErrInvalidRequest, "max_steps must not be negative")
	}
	return nil
}

// ValidateStartURL accepts absolute http and https URLs only.
func ValidateStartURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return types.NewError(types.ErrInvalidRequest, "start url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return types.NewError(types.ErrInvalidRequest, "invalid start url").WithCause(err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return types.NewError(types.ErrInvalidRequest, "start url must be an absolute http(s) url: "+raw)
	}
	return nil
}
