package journey

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/mysteryshopper/agent/artifacts"
	"github.com/BaSui01/mysteryshopper/agent/browser"
	"github.com/BaSui01/mysteryshopper/agent/oracle"
	"github.com/BaSui01/mysteryshopper/internal/clock"
	"github.com/BaSui01/mysteryshopper/internal/ctxkeys"
	"github.com/BaSui01/mysteryshopper/types"
)

const (
	tracerName = "github.com/BaSui01/mysteryshopper/agent/journey"

	stepErrorLen  = 40
	loadErrorLen  = 50
	decidedLabel  = 40
	failedLabel   = 30
	defaultScroll = 500
	defaultWindow = 3
)

// Delays are the explicit timed waits of the step loop.
type Delays struct {
	StepSettle   time.Duration `json:"step_settle"`
	PostClick    time.Duration `json:"post_click"`
	PostScroll   time.Duration `json:"post_scroll"`
	StepCooldown time.Duration `json:"step_cooldown"`
	ErrorBackoff time.Duration `json:"error_backoff"`
}

// DefaultDelays returns the waits used against real pages.
func DefaultDelays() Delays {
	return Delays{
		StepSettle:   2 * time.Second,
		PostClick:    2 * time.Second,
		PostScroll:   1 * time.Second,
		StepCooldown: 1 * time.Second,
		ErrorBackoff: 2 * time.Second,
	}
}

// ScreenshotSaver persists step screenshots. *artifacts.Manager implements it.
type ScreenshotSaver interface {
	SaveScreenshot(ctx context.Context, journeyID, name string, data []byte, pageURL string) (*artifacts.Artifact, error)
}

// Controller runs journeys. It is safe to call Run concurrently; every run
// gets its own Navigator from the factory.
type Controller struct {
	factory       browser.NavigatorFactory
	oracle        oracle.Oracle
	screenshots   ScreenshotSaver
	delays        Delays
	sleep         clock.Sleeper
	now           clock.Now
	scrollDelta   int
	historyWindow int
	metrics       Metrics
	tracer        trace.Tracer
	logger        *zap.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithDelays sets the step loop waits.
func WithDelays(d Delays) Option {
	return func(c *Controller) { c.delays = d }
}

// WithSleeper replaces the real sleeper, typically with clock.NoSleep in tests.
func WithSleeper(s clock.Sleeper) Option {
	return func(c *Controller) {
		if s != nil {
			c.sleep = s
		}
	}
}

// WithClock sets the time source for timestamps.
func WithClock(now clock.Now) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithScreenshotSaver sets where step screenshots are stored.
func WithScreenshotSaver(s ScreenshotSaver) Option {
	return func(c *Controller) { c.screenshots = s }
}

// WithScrollDelta sets the pixels scrolled per scroll action.
func WithScrollDelta(px int) Option {
	return func(c *Controller) {
		if px != 0 {
			c.scrollDelta = px
		}
	}
}

// WithHistoryWindow sets how many recent actions are sent to the Oracle.
func WithHistoryWindow(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.historyWindow = n
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(c *Controller) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracer overrides the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(c *Controller) {
		if t != nil {
			c.tracer = t
		}
	}
}

// NewController creates a Controller.
func NewController(factory browser.NavigatorFactory, o oracle.Oracle, logger *zap.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		factory:       factory,
		oracle:        o,
		delays:        DefaultDelays(),
		sleep:         clock.Sleep,
		now:           time.Now,
		scrollDelta:   defaultScroll,
		historyWindow: defaultWindow,
		metrics:       nopMetrics{},
		tracer:        otel.Tracer(tracerName),
		logger:        logger.With(zap.String("component", "journey_controller")),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.screenshots == nil {
		c.screenshots = artifacts.NewManager(artifacts.ManagerConfig{}, artifacts.NewMemStore(), logger)
	}
	return c
}

// run holds the mutable state of one journey. It never escapes Run.
type run struct {
	journey  *Journey
	nav      browser.Navigator
	history  History
	observer Observer
	logger   *zap.Logger
}

type stepOutcome int

const (
	stepContinue stepOutcome = iota
	stepFinish
	stepCanceled
)

// Run executes one journey. The returned error is non-nil only for an invalid
// request; every runtime failure is reflected in the Journey instead.
func (c *Controller) Run(ctx context.Context, req Request, observer Observer) (*Journey, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	j := &Journey{
		ID:        req.ID,
		StartURL:  req.StartURL,
		Goal:      req.Goal,
		MaxSteps:  req.MaxSteps,
		Status:    StatusRunning,
		Steps:     []StepRecord{},
		Warnings:  []string{},
		StartedAt: c.now(),
	}
	r := &run{
		journey:  j,
		observer: observer,
		logger:   c.logger.With(zap.String("journey_id", j.ID)),
	}

	ctx = ctxkeys.WithJourneyID(ctx, j.ID)
	ctx, span := c.tracer.Start(ctx, "journey.run", trace.WithAttributes(
		attribute.String("journey.id", j.ID),
		attribute.String("journey.start_url", j.StartURL),
		attribute.Int("journey.max_steps", j.MaxSteps),
	))
	defer span.End()

	c.metrics.JourneyStarted()
	r.logger.Info("journey started",
		zap.String("url", j.StartURL),
		zap.String("goal", j.Goal),
		zap.Int("max_steps", j.MaxSteps))

	c.emit(r, PhaseLoading, 0, "Loading: "+j.StartURL, 0)

	nav, err := c.factory.NewNavigator(ctx)
	if err != nil {
		return c.abort(r, span, fmt.Errorf("start browser: %w", err)), nil
	}
	r.nav = nav
	defer c.closeNavigator(r)

	if err := nav.Load(ctx, j.StartURL); err != nil {
		return c.abort(r, span, err), nil
	}
	c.emit(r, PhaseLoaded, 0, "Page accessible", 10)

	reason := ReasonExhausted
	for step := 1; step <= j.MaxSteps; step++ {
		if ctx.Err() != nil {
			reason = ReasonCanceled
			break
		}
		outcome := c.runStep(ctx, r, step)
		if outcome == stepFinish {
			reason = ReasonDecision
			break
		}
		if outcome == stepCanceled {
			reason = ReasonCanceled
			break
		}
	}

	c.emit(r, PhaseFinished, 0, "Analysis complete!", 100)
	return c.finish(r, span, StatusFinished, reason), nil
}

func (c *Controller) abort(r *run, span trace.Span, err error) *Journey {
	msg := "Cannot load page: " + oracle.Truncate(err.Error(), loadErrorLen)
	r.journey.Warnings = append(r.journey.Warnings, msg)
	r.logger.Error("journey aborted", zap.Error(err))
	span.RecordError(err)
	span.SetStatus(codes.Error, "load failed")
	code := browser.ErrorCode(err)
	span.SetAttributes(attribute.String("journey.error_code", string(code)))
	c.emitProgress(r, Progress{Phase: PhaseAborted, Message: msg, ErrorCode: code})
	return c.finish(r, span, StatusAborted, ReasonLoadFailed)
}

func (c *Controller) finish(r *run, span trace.Span, status Status, reason FinishReason) *Journey {
	j := r.journey
	j.Status = status
	j.FinishReason = reason
	j.FinishedAt = c.now()

	span.SetAttributes(
		attribute.String("journey.status", string(status)),
		attribute.String("journey.finish_reason", string(reason)),
		attribute.Int("journey.steps", len(j.Steps)),
	)
	c.metrics.JourneyFinished(status, reason, len(j.Steps), j.Duration())
	r.logger.Info("journey finished",
		zap.String("status", string(status)),
		zap.String("reason", string(reason)),
		zap.Int("steps", len(j.Steps)),
		zap.Int("warnings", len(j.Warnings)),
		zap.Duration("took", j.Duration()))
	return j
}

func (c *Controller) closeNavigator(r *run) {
	if err := r.nav.Close(); err != nil {
		r.logger.Warn("failed to close browser", zap.Error(err))
	}
}

// runStep executes one loop slot. A panic in the body is converted into a
// warning and the slot counts as consumed.
func (c *Controller) runStep(ctx context.Context, r *run, step int) (outcome stepOutcome) {
	ctx, span := c.tracer.Start(ctx, "journey.step", trace.WithAttributes(attribute.Int("journey.step", step)))
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic: %v", rec)
			span.RecordError(err)
			outcome = c.stepFailed(ctx, r, step, err)
		}
	}()

	outcome, err := c.stepBody(ctx, r, step)
	if err != nil {
		span.RecordError(err)
		return c.stepFailed(ctx, r, step, err)
	}
	return outcome
}

func (c *Controller) stepFailed(ctx context.Context, r *run, step int, err error) stepOutcome {
	msg := fmt.Sprintf("Step %d error: %s", step, oracle.Truncate(err.Error(), stepErrorLen))
	c.warn(r, step, msg, browser.ErrorCode(err))
	r.logger.Warn("step failed", zap.Int("step", step), zap.Error(err))
	c.metrics.StepSkipped("error")
	if c.sleep(ctx, c.delays.ErrorBackoff) != nil {
		return stepCanceled
	}
	return stepContinue
}

func (c *Controller) stepBody(ctx context.Context, r *run, step int) (stepOutcome, error) {
	j := r.journey
	started := c.now()

	if c.sleep(ctx, c.delays.StepSettle) != nil {
		return stepCanceled, nil
	}

	shot, err := r.nav.Screenshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return stepCanceled, nil
		}
		code := browser.ErrorCode(err)
		c.warn(r, step, "Screenshot failed, skipping step", code)
		r.logger.Warn("screenshot failed",
			zap.Int("step", step),
			zap.String("error_code", string(code)),
			zap.Error(err))
		c.metrics.StepSkipped("screenshot")
		return stepContinue, nil
	}
	if shot == nil || len(shot.Data) == 0 {
		return stepContinue, errors.New("empty screenshot")
	}

	pageURL := shot.URL
	if pageURL == "" {
		pageURL = r.nav.CurrentURL(ctx)
	}
	ref := c.storeScreenshot(ctx, r, step, shot, pageURL)

	c.emit(r, PhaseAnalyzing, step, fmt.Sprintf("Step %d: Analyzing...", step), analyzingPercent(step, j.MaxSteps))

	snap := oracle.Snapshot{Ref: ref.ID, Data: shot.Data, MimeType: "image/png"}
	decision, err := c.oracle.Decide(ctx, oracle.DecideRequest{
		Snapshot: snap,
		Goal:     j.Goal,
		History:  r.history.Recent(c.historyWindow),
		Step:     step,
	})
	if err != nil {
		if ctx.Err() != nil {
			return stepCanceled, nil
		}
		r.logger.Warn("decide failed, finishing", zap.Int("step", step), zap.Error(err))
		c.metrics.OracleDegraded("decide")
		decision = oracle.DegradedDecision(err)
	}

	analysis, err := c.oracle.Score(ctx, oracle.ScoreRequest{Snapshot: snap, PageURL: pageURL})
	if err != nil {
		if ctx.Err() != nil {
			return stepCanceled, nil
		}
		r.logger.Warn("score failed", zap.Int("step", step), zap.Error(err))
		c.metrics.OracleDegraded("score")
		analysis = oracle.DegradedAnalysis(err)
	}

	j.Steps = append(j.Steps, StepRecord{
		Step:       step,
		URL:        pageURL,
		Screenshot: ref,
		Decision:   decision,
		Analysis:   analysis,
		CapturedAt: shot.Timestamp,
	})
	c.metrics.StepCompleted(decision.Action, analysis.ConversionScore, c.now().Sub(started))

	c.emit(r, PhaseDecided, step,
		fmt.Sprintf("Step %d: %s - %s", step, decision.Action, oracle.Truncate(decision.Label, decidedLabel)),
		decidedPercent(step, j.MaxSteps))

	switch decision.Action {
	case oracle.ActionFinish:
		c.emit(r, PhaseFinished, step, "Journey complete!", 100)
		return stepFinish, nil
	case oracle.ActionClick:
		if c.click(ctx, r, step, decision.Label) {
			if c.sleep(ctx, c.delays.PostClick) != nil {
				return stepCanceled, nil
			}
		}
	case oracle.ActionScroll:
		if err := r.nav.Scroll(ctx, c.scrollDelta); err != nil {
			r.logger.Debug("scroll failed", zap.Int("step", step), zap.Error(err))
		}
		if c.sleep(ctx, c.delays.PostScroll) != nil {
			return stepCanceled, nil
		}
	default:
		r.logger.Warn("ignoring unknown action",
			zap.Int("step", step),
			zap.String("action", decision.RawAction))
	}

	if c.sleep(ctx, c.delays.StepCooldown) != nil {
		return stepCanceled, nil
	}
	return stepContinue, nil
}

// click reports whether the label was clicked. Failure is a warning only.
func (c *Controller) click(ctx context.Context, r *run, step int, label string) bool {
	res, err := r.nav.Click(ctx, label)
	if err != nil {
		r.history = r.history.Append("Click failed: " + label)
		c.metrics.ClickAttempted("", false)
		code := browser.ErrorCode(err)
		c.warn(r, step, "Could not click: "+oracle.Truncate(label, failedLabel), code)
		r.logger.Warn("click failed",
			zap.Int("step", step),
			zap.String("label", label),
			zap.String("error_code", string(code)),
			zap.Error(err))
		return false
	}
	r.history = r.history.Append("Clicked: " + label)
	c.metrics.ClickAttempted(res.Strategy, true)
	r.logger.Debug("clicked",
		zap.Int("step", step),
		zap.String("label", label),
		zap.String("strategy", res.Strategy))
	return true
}

func (c *Controller) storeScreenshot(ctx context.Context, r *run, step int, shot *browser.Screenshot, pageURL string) ScreenshotRef {
	sum := sha256.Sum256(shot.Data)
	ref := ScreenshotRef{
		SHA256:     hex.EncodeToString(sum[:]),
		Size:       int64(len(shot.Data)),
		URL:        pageURL,
		CapturedAt: shot.Timestamp,
	}

	a, err := c.screenshots.SaveScreenshot(ctx, r.journey.ID, fmt.Sprintf("step_%d", step), shot.Data, pageURL)
	if err != nil {
		r.logger.Warn("failed to persist screenshot", zap.Int("step", step), zap.Error(err))
		r.journey.Warnings = append(r.journey.Warnings, fmt.Sprintf("Step %d: screenshot not persisted", step))
		ref.ID = ref.SHA256
		return ref
	}
	ref.ID = a.ID
	ref.Path = a.StoragePath
	return ref
}

func (c *Controller) warn(r *run, step int, msg string, code types.ErrorCode) {
	r.journey.Warnings = append(r.journey.Warnings, msg)
	c.emitProgress(r, Progress{Phase: PhaseWarning, Step: step, Message: msg, Percent: NoEstimate, ErrorCode: code})
}

func (c *Controller) emit(r *run, phase Phase, step int, msg string, percent float64) {
	c.emitProgress(r, Progress{Phase: phase, Step: step, Message: msg, Percent: percent})
}

// emitProgress fills in the journey fields and notifies the observer.
func (c *Controller) emitProgress(r *run, p Progress) {
	if r.observer == nil {
		return
	}
	// 观察者 panic 只丢弃该事件，不影响旅程控制流
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("progress observer panicked, event dropped",
				zap.String("phase", string(p.Phase)),
				zap.Int("step", p.Step),
				zap.Any("panic", rec))
		}
	}()
	p.JourneyID = r.journey.ID
	p.MaxSteps = r.journey.MaxSteps
	r.observer.OnProgress(p)
}
