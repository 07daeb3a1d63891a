package oracle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/mysteryshopper/llm"
)

// CallObserver is notified after every model call. kind is "decide" or "score".
type CallObserver func(kind string, took time.Duration, err error)

// VisionOracle implements Oracle on top of a llm.VisionProvider.
type VisionOracle struct {
	provider    llm.VisionProvider
	model       string
	temperature float64
	limiter     *rate.Limiter
	observer    CallObserver
	logger      *zap.Logger
}

// VisionOption configures a VisionOracle.
type VisionOption func(*VisionOracle)

// WithModel overrides the provider's default model.
func WithModel(model string) VisionOption {
	return func(o *VisionOracle) { o.model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) VisionOption {
	return func(o *VisionOracle) { o.temperature = t }
}

// WithRequestsPerMinute caps model calls. Zero or negative disables the limit.
func WithRequestsPerMinute(n int) VisionOption {
	return func(o *VisionOracle) {
		if n <= 0 {
			o.limiter = nil
			return
		}
		o.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
	}
}

// WithCallObserver registers a callback for call latency and outcome.
func WithCallObserver(fn CallObserver) VisionOption {
	return func(o *VisionOracle) { o.observer = fn }
}

// NewVisionOracle creates a VisionOracle.
func NewVisionOracle(provider llm.VisionProvider, logger *zap.Logger, opts ...VisionOption) *VisionOracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &VisionOracle{
		provider: provider,
		logger:   logger.With(zap.String("component", "vision_oracle")),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Decide asks the model for the next action.
func (o *VisionOracle) Decide(ctx context.Context, req DecideRequest) (Decision, error) {
	text, err := o.call(ctx, "decide", DecidePrompt(req.Goal, req.Step, req.History), req.Snapshot)
	if err != nil {
		return Decision{}, err
	}
	d, err := ParseDecision(text)
	if err != nil {
		o.logger.Warn("failed to parse decision", zap.Error(err), zap.String("raw", Truncate(text, 200)))
		return Decision{}, err
	}
	if d.Action == ActionNoop {
		o.logger.Warn("model returned unknown action", zap.String("action", d.RawAction))
	}
	return d, nil
}

// Score asks the model for a UX analysis of the page.
func (o *VisionOracle) Score(ctx context.Context, req ScoreRequest) (UXAnalysis, error) {
	text, err := o.call(ctx, "score", ScorePrompt(req.PageURL), req.Snapshot)
	if err != nil {
		return UXAnalysis{}, err
	}
	a, err := ParseAnalysis(text)
	if err != nil {
		o.logger.Warn("failed to parse analysis", zap.Error(err), zap.String("raw", Truncate(text, 200)))
		return UXAnalysis{}, err
	}
	return a, nil
}

func (o *VisionOracle) call(ctx context.Context, kind, prompt string, shot Snapshot) (text string, err error) {
	if o.provider == nil {
		return "", &llm.Error{Code: llm.ErrProviderUnavailable, Message: "no vision provider configured"}
	}
	if len(shot.Data) == 0 {
		return "", &llm.Error{Code: llm.ErrInvalidRequest, Message: "empty screenshot"}
	}

	start := time.Now()
	defer func() {
		if o.observer != nil {
			o.observer(kind, time.Since(start), err)
		}
	}()

	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("oracle rate limit wait: %w", err)
		}
	}

	mime := shot.MimeType
	if mime == "" {
		mime = "image/png"
	}
	resp, err := o.provider.GenerateVision(ctx, &llm.VisionRequest{
		Model:       o.model,
		Prompt:      prompt,
		Image:       shot.Data,
		MimeType:    mime,
		Temperature: o.temperature,
		JSONOutput:  true,
	})
	if err != nil {
		o.logger.Warn("vision call failed",
			zap.String("kind", kind),
			zap.String("provider", o.provider.Name()),
			zap.Error(err))
		return "", err
	}

	o.logger.Debug("vision call completed",
		zap.String("kind", kind),
		zap.String("model", resp.Model),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("took", time.Since(start)))
	return resp.Text, nil
}
