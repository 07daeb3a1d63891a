// =============================================================================
// Package quick: One-Call Journey Controller Construction
// =============================================================================
// Builds a journey.Controller with its browser, oracle and screenshot store
// from a config.Config, so the CLI, the HTTP service, the Lambda handler and
// the root package wire components the same way.
//
// The package lives under quick/ (not root) so cmd/ and internal/transport
// can use it without importing the root package.
//
// Usage:
//
//	ctrl, err := quick.New(quick.WithConfig(cfg), quick.WithLogger(logger))
//	ctrl, err := quick.New(quick.WithProvider(myProvider))
//	ctrl, err := quick.New(quick.WithOracle(myOracle), quick.WithNavigatorFactory(f))
//
// =============================================================================
package quick

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/BaSui01/mysteryshopper/agent/artifacts"
	"github.com/BaSui01/mysteryshopper/agent/browser"
	"github.com/BaSui01/mysteryshopper/agent/journey"
	"github.com/BaSui01/mysteryshopper/agent/oracle"
	"github.com/BaSui01/mysteryshopper/config"
	"github.com/BaSui01/mysteryshopper/internal/clock"
	"github.com/BaSui01/mysteryshopper/llm"
	"github.com/BaSui01/mysteryshopper/llm/providers"
	"github.com/BaSui01/mysteryshopper/llm/providers/gemini"
	"github.com/BaSui01/mysteryshopper/llm/providers/openai"
	"github.com/BaSui01/mysteryshopper/llm/retry"
)

// Option configures the controller created by New.
type Option func(*options)

type options struct {
	cfg          *config.Config
	logger       *zap.Logger
	apiKey       string
	provider     llm.VisionProvider
	oracle       oracle.Oracle
	factory      browser.NavigatorFactory
	screenshots  journey.ScreenshotSaver
	metrics      journey.Metrics
	callObserver oracle.CallObserver
	sleeper      clock.Sleeper
}

// WithConfig sets the configuration. Defaults to config.DefaultConfig().
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithAPIKey overrides oracle.api_key.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithProvider sets a pre-built vision provider.
func WithProvider(p llm.VisionProvider) Option {
	return func(o *options) { o.provider = p }
}

// WithOracle sets a pre-built Oracle. The provider settings are then ignored.
func WithOracle(or oracle.Oracle) Option {
	return func(o *options) { o.oracle = or }
}

// WithNavigatorFactory replaces the chromedp factory.
func WithNavigatorFactory(f browser.NavigatorFactory) Option {
	return func(o *options) { o.factory = f }
}

// WithScreenshotSaver replaces the artifact manager built from config.
func WithScreenshotSaver(s journey.ScreenshotSaver) Option {
	return func(o *options) { o.screenshots = s }
}

// WithMetrics sets the journey metrics sink.
func WithMetrics(m journey.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithCallObserver is notified after every model call.
func WithCallObserver(fn oracle.CallObserver) Option {
	return func(o *options) { o.callObserver = fn }
}

// WithSleeper replaces the real timed waits, mostly for tests.
func WithSleeper(s clock.Sleeper) Option {
	return func(o *options) { o.sleeper = s }
}

// New creates a journey.Controller.
func New(opts ...Option) (*journey.Controller, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.cfg == nil {
		o.cfg = config.DefaultConfig()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	cfg := o.cfg

	or := o.oracle
	if or == nil {
		p := o.provider
		if p == nil {
			oc := cfg.Oracle
			if o.apiKey != "" {
				oc.APIKey = o.apiKey
			}
			var err error
			p, err = NewProvider(oc, o.logger)
			if err != nil {
				return nil, err
			}
		}
		or = NewOracle(cfg.Oracle, p, o.logger, o.callObserver)
	}

	factory := o.factory
	if factory == nil {
		factory = browser.NewChromeDPFactory(BrowserConfig(cfg.Browser), o.logger)
	}

	screenshots := o.screenshots
	if screenshots == nil {
		m, err := NewArtifacts(cfg.Artifacts, o.logger)
		if err != nil {
			return nil, err
		}
		screenshots = m
	}

	jopts := []journey.Option{
		journey.WithDelays(Delays(cfg.Journey)),
		journey.WithScrollDelta(cfg.Journey.ScrollDelta),
		journey.WithHistoryWindow(cfg.Journey.HistoryWindow),
		journey.WithScreenshotSaver(screenshots),
	}
	if o.metrics != nil {
		jopts = append(jopts, journey.WithMetrics(o.metrics))
	}
	if o.sleeper != nil {
		jopts = append(jopts, journey.WithSleeper(o.sleeper))
	}
	return journey.NewController(factory, or, o.logger, jopts...), nil
}

// NewProvider creates the vision provider named by cfg.Provider.
func NewProvider(cfg config.OracleConfig, logger *zap.Logger) (llm.VisionProvider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for %s: set oracle.api_key or the provider environment variable", name)
	}
	pc := providers.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}
	switch name {
	case "", "gemini":
		return gemini.NewGeminiProvider(pc, logger), nil
	case "openai":
		return openai.NewOpenAIProvider(pc, logger), nil
	default:
		return nil, fmt.Errorf("unsupported oracle provider: %s", cfg.Provider)
	}
}

// NewOracle wraps provider in a VisionOracle, adding retries when
// cfg.MaxRetries is positive.
func NewOracle(cfg config.OracleConfig, provider llm.VisionProvider, logger *zap.Logger, observer oracle.CallObserver) oracle.Oracle {
	vopts := []oracle.VisionOption{
		oracle.WithModel(cfg.Model),
		oracle.WithTemperature(cfg.Temperature),
		oracle.WithRequestsPerMinute(cfg.RequestsPerMinute),
	}
	if observer != nil {
		vopts = append(vopts, oracle.WithCallObserver(observer))
	}
	var or oracle.Oracle = oracle.NewVisionOracle(provider, logger, vopts...)
	if cfg.MaxRetries > 0 {
		policy := retry.DefaultRetryPolicy()
		policy.MaxRetries = cfg.MaxRetries
		or = oracle.NewRetryingOracle(or, policy, logger)
	}
	return or
}

// NewArtifacts creates the screenshot manager. InMemory keeps screenshots in
// an afero memory filesystem.
func NewArtifacts(cfg config.ArtifactsConfig, logger *zap.Logger) (*artifacts.Manager, error) {
	var fs afero.Fs = afero.NewOsFs()
	if cfg.InMemory {
		fs = afero.NewMemMapFs()
	}
	dir := cfg.Dir
	if dir == "" {
		dir = config.DefaultArtifactsConfig().Dir
	}
	store, err := artifacts.NewFileStore(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("open screenshot store: %w", err)
	}
	return artifacts.NewManager(artifacts.ManagerConfig{}, store, logger), nil
}

// BrowserConfig converts the browser section of the configuration.
func BrowserConfig(cfg config.BrowserConfig) browser.Config {
	return browser.Config{
		Headless:          cfg.Headless,
		ViewportWidth:     cfg.ViewportWidth,
		ViewportHeight:    cfg.ViewportHeight,
		UserAgent:         cfg.UserAgent,
		ProxyURL:          cfg.ProxyURL,
		RemoteURL:         cfg.RemoteURL,
		ExecPath:          cfg.ExecPath,
		OperationTimeout:  cfg.OperationTimeout,
		ScreenshotTimeout: cfg.ScreenshotTimeout,
		ClickTimeout:      cfg.ClickTimeout,
		LoadSettle:        cfg.LoadSettle,
		ExtraFlags:        append([]string(nil), cfg.ExtraFlags...),
	}
}

// Delays converts the journey waits of the configuration.
func Delays(cfg config.JourneyConfig) journey.Delays {
	return journey.Delays{
		StepSettle:   cfg.StepSettle,
		PostClick:    cfg.PostClick,
		PostScroll:   cfg.PostScroll,
		StepCooldown: cfg.StepCooldown,
		ErrorBackoff: cfg.ErrorBackoff,
	}
}
