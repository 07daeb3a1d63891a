// Package mysteryshopper runs autonomous UX audits of web pages.
//
// A journey loads a start URL in a headless browser, then repeatedly asks a
// vision model what a first-time visitor pursuing a goal would do next,
// performs that click or scroll, and records a UX score for every screen.
//
// Usage:
//
//	import "github.com/BaSui01/mysteryshopper"
//
//	j, err := mysteryshopper.RunJourney(ctx, "https://example.com", "Sign up for a free trial", 6, nil)
//	j, err := mysteryshopper.RunJourney(ctx, url, goal, 6, observer, mysteryshopper.WithAPIKey(key))
//
// This is a thin wrapper around [quick.New]; both produce identical
// controllers. Use this package when you need a single call.
package mysteryshopper

import (
	"context"

	"github.com/BaSui01/mysteryshopper/agent/journey"
	"github.com/BaSui01/mysteryshopper/quick"
)

// Option configures the controller built by [RunJourney].
type Option = quick.Option

// RunJourney runs one journey to completion with a freshly built controller.
// The error is non-nil only for an invalid request or an incomplete setup;
// browser and model failures are reported inside the returned Journey.
func RunJourney(ctx context.Context, startURL, goal string, maxSteps int, observer journey.Observer, opts ...Option) (*journey.Journey, error) {
	req := journey.Request{StartURL: startURL, Goal: goal, MaxSteps: maxSteps}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ctrl, err := quick.New(opts...)
	if err != nil {
		return nil, err
	}
	return ctrl.Run(ctx, req, observer)
}

// Re-export option shortcuts so callers never need to import quick/.

// WithConfig sets the full configuration.
var WithConfig = quick.WithConfig

// WithLogger sets a custom zap logger.
var WithLogger = quick.WithLogger

// WithAPIKey overrides the model API key from configuration.
var WithAPIKey = quick.WithAPIKey

// WithProvider sets a pre-built vision provider.
var WithProvider = quick.WithProvider

// WithOracle sets a pre-built Oracle.
var WithOracle = quick.WithOracle

// WithNavigatorFactory replaces the chromedp browser.
var WithNavigatorFactory = quick.WithNavigatorFactory

// WithScreenshotSaver replaces the screenshot store.
var WithScreenshotSaver = quick.WithScreenshotSaver

// WithMetrics sets the journey metrics sink.
var WithMetrics = quick.WithMetrics

// WithSleeper replaces the real timed waits.
var WithSleeper = quick.WithSleeper
