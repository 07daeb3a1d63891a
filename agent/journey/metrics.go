package journey

import (
	"time"

	"github.com/BaSui01/mysteryshopper/agent/oracle"
)

// Metrics receives controller measurements. internal/metrics.Collector implements it.
type Metrics interface {
	JourneyStarted()
	JourneyFinished(status Status, reason FinishReason, steps int, took time.Duration)
	StepCompleted(action oracle.Action, score int, took time.Duration)
	StepSkipped(reason string)
	OracleDegraded(call string)
	ClickAttempted(strategy string, ok bool)
}

type nopMetrics struct{}

func (nopMetrics) JourneyStarted() {}
func (nopMetrics) JourneyFinished(Status, FinishReason, int, time.Duration) {}
func (nopMetrics) StepCompleted(oracle.Action, int, time.Duration) {}
func (nopMetrics) StepSkipped(string) {}
func (nopMetrics) OracleDegraded(string) {}
func (nopMetrics) ClickAttempted(string, bool) {}
