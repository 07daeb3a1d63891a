// Package browser provides the headless browser session used by journeys.
package browser

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/mysteryshopper/types"
)

var (
	// ErrPageUnreachable is returned by Load when every navigation strategy failed.
	ErrPageUnreachable = errors.New("page unreachable")
	// ErrScreenshotFailed wraps every failed viewport capture.
	ErrScreenshotFailed = errors.New("screenshot failed")
	// ErrNoLocatorMatched is wrapped by LocatorError when no strategy clicked the label.
	ErrNoLocatorMatched = errors.New("no locator matched")
	// ErrClosed is returned by operations on a closed navigator.
	ErrClosed = errors.New("navigator closed")
)

// ErrorCode maps a navigator failure to its error code. Errors already
// carrying a *types.Error keep their code.
func ErrorCode(err error) types.ErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPageUnreachable):
		return types.ErrPageUnreachable
	case errors.Is(err, ErrScreenshotFailed):
		return types.ErrScreenshotFailed
	case errors.Is(err, ErrNoLocatorMatched):
		return types.ErrNoLocatorMatched
	}
	if code := types.GetErrorCode(err); code != "" {
		return code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.ErrTimeout
	}
	return types.ErrInternalError
}

// Screenshot is a captured viewport image.
type Screenshot struct {
	Data      []byte    `json:"-"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Timestamp time.Time `json:"timestamp"`
	URL       string    `json:"url"`
}

// ClickResult reports which locator strategy performed a click.
type ClickResult struct {
	Label    string        `json:"label"`
	Strategy string        `json:"strategy"`
	Duration time.Duration `json:"duration"`
}

// Navigator owns exactly one browser session. Calls must not overlap.
type Navigator interface {
	// Load navigates to url. Failure of every strategy returns ErrPageUnreachable.
	Load(ctx context.Context, url string) error
	// Screenshot captures the current viewport as PNG.
	Screenshot(ctx context.Context) (*Screenshot, error)
	// Click clicks the element best matching the visible label.
	Click(ctx context.Context, label string) (*ClickResult, error)
	// Scroll scrolls the page vertically by deltaY pixels.
	Scroll(ctx context.Context, deltaY int) error
	// CurrentURL returns the page URL, or "" when it cannot be read.
	CurrentURL(ctx context.Context) string
	// Close releases the session. It is safe to call more than once.
	Close() error
}

// NavigatorFactory creates one Navigator per journey.
type NavigatorFactory interface {
	NewNavigator(ctx context.Context) (Navigator, error)
}

// NavigatorFactoryFunc adapts a function to NavigatorFactory.
type NavigatorFactoryFunc func(ctx context.Context) (Navigator, error)

// NewNavigator implements NavigatorFactory.
func (f NavigatorFactoryFunc) NewNavigator(ctx context.Context) (Navigator, error) {
	return f(ctx)
}

// Config configures a browser session.
type Config struct {
	Headless          bool          `json:"headless"`
	ViewportWidth     int           `json:"viewport_width"`
	ViewportHeight    int           `json:"viewport_height"`
	UserAgent         string        `json:"user_agent,omitempty"`
	ProxyURL          string        `json:"proxy_url,omitempty"`
	RemoteURL         string        `json:"remote_url,omitempty"`
	ExecPath          string        `json:"exec_path,omitempty"`
	OperationTimeout  time.Duration `json:"operation_timeout"`
	ScreenshotTimeout time.Duration `json:"screenshot_timeout"`
	ClickTimeout      time.Duration `json:"click_timeout"`
	LoadSettle        time.Duration `json:"load_settle"`
	ExtraFlags        []string      `json:"extra_flags,omitempty"`
}

// DefaultConfig returns a desktop-sized headless session configuration.
func DefaultConfig() Config {
	return Config{
		Headless:          true,
		ViewportWidth:     1280,
		ViewportHeight:    800,
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		OperationTimeout:  90 * time.Second,
		ScreenshotTimeout: 20 * time.Second,
		ClickTimeout:      5 * time.Second,
		LoadSettle:        3 * time.Second,
		ExtraFlags:        []string{"disable-blink-features=AutomationControlled"},
	}
}
