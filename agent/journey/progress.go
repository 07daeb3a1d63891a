package journey

import "github.com/BaSui01/mysteryshopper/types"

// Phase names a controller phase reported to observers.
type Phase string

const (
	PhaseLoading   Phase = "loading"
	PhaseLoaded    Phase = "loaded"
	PhaseAnalyzing Phase = "analyzing"
	PhaseDecided   Phase = "decided"
	PhaseWarning   Phase = "warning"
	PhaseFinished  Phase = "finished"
	PhaseAborted   Phase = "aborted"
)

// NoEstimate marks a progress update without a completion estimate.
const NoEstimate = -1.0

// Progress is a best-effort notification about a running journey.
type Progress struct {
	JourneyID string  `json:"journey_id"`
	Phase     Phase   `json:"phase"`
	Message   string  `json:"message"`
	Percent   float64 `json:"percent"`
	Step      int     `json:"step,omitempty"`
	MaxSteps  int     `json:"max_steps"`
	// ErrorCode is set on warnings and aborts caused by an error.
	ErrorCode types.ErrorCode `json:"error_code,omitempty"`
}

// HasEstimate reports whether Percent carries a value.
func (p Progress) HasEstimate() bool {
	return p.Percent >= 0
}

// Observer receives progress notifications. Implementations must not block for long.
type Observer interface {
	OnProgress(p Progress)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(p Progress)

// OnProgress implements Observer.
func (f ObserverFunc) OnProgress(p Progress) { f(p) }

// MultiObserver fans a notification out to several observers.
type MultiObserver []Observer

// OnProgress implements Observer.
func (m MultiObserver) OnProgress(p Progress) {
	for _, o := range m {
		if o != nil {
			o.OnProgress(p)
		}
	}
}

func analyzingPercent(step, maxSteps int) float64 {
	return 10 + float64(step)/float64(maxSteps)*40
}

func decidedPercent(step, maxSteps int) float64 {
	return 50 + float64(step)/float64(maxSteps)*40
}
