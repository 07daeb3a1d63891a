package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/mysteryshopper/internal/clock"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// cdpOps is the set of raw page operations the navigator composes.
type cdpOps interface {
	navigateCommit(ctx context.Context, url string) error
	navigateFull(ctx context.Context, url string) error
	screenshot(ctx context.Context) ([]byte, error)
	location(ctx context.Context) (string, error)
	click(ctx context.Context, xpath string) error
	scroll(ctx context.Context, deltaY int) error
}

// ChromeDPNavigator 基于 chromedp 的 Navigator 实现
type ChromeDPNavigator struct {
	tabCtx      context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	ops         cdpOps
	config      Config
	locators    []Locator
	sleep       clock.Sleeper
	logger      *zap.Logger

	mu        sync.Mutex
	closeOnce sync.Once
	closed    bool
}

// ChromeDPOption 配置选项
type ChromeDPOption func(*ChromeDPNavigator)

// WithLocators 替换点击定位策略
func WithLocators(locators []Locator) ChromeDPOption {
	return func(n *ChromeDPNavigator) { n.locators = locators }
}

// WithSleeper 替换加载后的稳定等待
func WithSleeper(s clock.Sleeper) ChromeDPOption {
	return func(n *ChromeDPNavigator) { n.sleep = s }
}

// allocatorOptions 构建 Chrome 启动参数
func allocatorOptions(config Config) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", config.Headless),
		chromedp.WindowSize(config.ViewportWidth, config.ViewportHeight),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(config.UserAgent))
	}
	if config.ProxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(config.ProxyURL))
	}
	if config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(config.ExecPath))
	}
	for _, f := range config.ExtraFlags {
		name, value := splitFlag(f)
		opts = append(opts, chromedp.Flag(name, value))
	}
	return opts
}

// splitFlag 解析 "name" 或 "name=value" 形式的参数
func splitFlag(f string) (string, any) {
	for i := 0; i < len(f); i++ {
		if f[i] == '=' {
			return f[:i], f[i+1:]
		}
	}
	return f, true
}

// NewChromeDPNavigator 启动浏览器并创建一个标签页会话
func NewChromeDPNavigator(config Config, logger *zap.Logger, opts ...ChromeDPOption) (*ChromeDPNavigator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if config.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), config.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), allocatorOptions(config)...)
	}

	tabCtx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	// 启动浏览器
	if err := chromedp.Run(tabCtx, chromedp.EmulateViewport(int64(config.ViewportWidth), int64(config.ViewportHeight))); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	n := newNavigator(config, &chromedpOps{}, logger, opts...)
	n.tabCtx = tabCtx
	n.cancel = cancel
	n.allocCancel = allocCancel

	logger.Info("chromedp browser started",
		zap.Bool("headless", config.Headless),
		zap.Bool("remote", config.RemoteURL != ""),
		zap.Int("viewport_w", config.ViewportWidth),
		zap.Int("viewport_h", config.ViewportHeight))

	return n, nil
}

func newNavigator(config Config, ops cdpOps, logger *zap.Logger, opts ...ChromeDPOption) *ChromeDPNavigator {
	n := &ChromeDPNavigator{
		tabCtx:      context.Background(),
		cancel:      func() {},
		allocCancel: func() {},
		ops:         ops,
		config:      config,
		locators:    DefaultLocators(),
		sleep:       clock.Sleep,
		logger:      logger.With(zap.String("component", "chromedp_navigator")),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// opContext 派生自标签页 context 的操作 context，调用方取消时同步取消
func (n *ChromeDPNavigator) opContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 || timeout > n.config.OperationTimeout && n.config.OperationTimeout > 0 {
		timeout = n.config.OperationTimeout
	}
	var opCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		opCtx, cancel = context.WithTimeout(n.tabCtx, timeout)
	} else {
		opCtx, cancel = context.WithCancel(n.tabCtx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

func (n *ChromeDPNavigator) checkOpen() error {
	if n.closed {
		return ErrClosed
	}
	return nil
}

// Load 导航到 URL：先 commit 级导航 + 稳定等待，失败后回退到完整加载
func (n *ChromeDPNavigator) Load(ctx context.Context, url string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.checkOpen(); err != nil {
		return err
	}

	start := time.Now()
	commitErr := func() error {
		opCtx, cancel := n.opContext(ctx, n.config.OperationTimeout)
		defer cancel()
		if err := n.ops.navigateCommit(opCtx, url); err != nil {
			return err
		}
		return n.sleep(ctx, n.config.LoadSettle)
	}()
	if commitErr == nil {
		n.logger.Debug("page committed", zap.String("url", url), zap.Duration("took", time.Since(start)))
		return nil
	}
	n.logger.Warn("commit navigation failed, retrying with full load",
		zap.String("url", url), zap.Error(commitErr))

	opCtx, cancel := n.opContext(ctx, n.config.OperationTimeout)
	defer cancel()
	fullErr := n.ops.navigateFull(opCtx, url)
	if fullErr == nil {
		n.logger.Debug("page loaded", zap.String("url", url), zap.Duration("took", time.Since(start)))
		return nil
	}

	return fmt.Errorf("%w: %s: %w", ErrPageUnreachable, url, errors.Join(commitErr, fullErr))
}

// Screenshot 截取视口截图
func (n *ChromeDPNavigator) Screenshot(ctx context.Context) (*Screenshot, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.checkOpen(); err != nil {
		return nil, err
	}

	opCtx, cancel := n.opContext(ctx, n.config.ScreenshotTimeout)
	defer cancel()

	buf, err := n.ops.screenshot(opCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScreenshotFailed, err)
	}

	currentURL, err := n.ops.location(opCtx)
	if err != nil {
		currentURL = ""
	}

	return &Screenshot{
		Data:      buf,
		Width:     n.config.ViewportWidth,
		Height:    n.config.ViewportHeight,
		Timestamp: time.Now(),
		URL:       currentURL,
	}, nil
}

// Click 按可见文本点击，按顺序尝试定位策略
func (n *ChromeDPNavigator) Click(ctx context.Context, label string) (*ClickResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.checkOpen(); err != nil {
		return nil, err
	}

	label = NormalizeLabel(label)
	if label == "" {
		return nil, &LocatorError{Label: label, Errors: []error{errors.New("empty label")}}
	}

	start := time.Now()
	strategy, err := FirstMatch(ctx, n.locators, label, func(ctx context.Context, xpath string) error {
		opCtx, cancel := n.opContext(ctx, n.config.ClickTimeout)
		defer cancel()
		return n.ops.click(opCtx, xpath)
	})
	if err != nil {
		n.logger.Debug("click failed", zap.String("label", label), zap.Error(err))
		return nil, err
	}

	n.logger.Debug("clicked", zap.String("label", label), zap.String("strategy", strategy))
	return &ClickResult{Label: label, Strategy: strategy, Duration: time.Since(start)}, nil
}

// Scroll 垂直滚动
func (n *ChromeDPNavigator) Scroll(ctx context.Context, deltaY int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.checkOpen(); err != nil {
		return err
	}

	opCtx, cancel := n.opContext(ctx, n.config.ClickTimeout)
	defer cancel()
	return n.ops.scroll(opCtx, deltaY)
}

// CurrentURL 读取当前 URL，失败返回空串
func (n *ChromeDPNavigator) CurrentURL(ctx context.Context) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ""
	}

	opCtx, cancel := n.opContext(ctx, n.config.ClickTimeout)
	defer cancel()
	u, err := n.ops.location(opCtx)
	if err != nil {
		return ""
	}
	return u
}

// Close 关闭标签页与浏览器进程，可重复调用
func (n *ChromeDPNavigator) Close() error {
	n.closeOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		n.mu.Unlock()

		n.cancel()
		n.allocCancel()
		n.logger.Info("chromedp browser closed")
	})
	return nil
}

// =============================================================================
// chromedp 原子操作
// =============================================================================

type chromedpOps struct{}

func (chromedpOps) navigateCommit(ctx context.Context, url string) error {
	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, errorText, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("navigation error: %s", errorText)
		}
		return nil
	}))
}

func (chromedpOps) navigateFull(ctx context.Context, url string) error {
	return chromedp.Run(ctx, chromedp.Navigate(url))
}

func (chromedpOps) screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := chromedp.Run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (chromedpOps) location(ctx context.Context) (string, error) {
	var u string
	err := chromedp.Run(ctx, chromedp.Location(&u))
	return u, err
}

func (chromedpOps) click(ctx context.Context, xpath string) error {
	return chromedp.Run(ctx, chromedp.Click(xpath, chromedp.BySearch))
}

func (chromedpOps) scroll(ctx context.Context, deltaY int) error {
	return chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", deltaY), nil))
}

// =============================================================================
// 工厂
// =============================================================================

// ChromeDPFactory 每次创建独立的 ChromeDPNavigator
type ChromeDPFactory struct {
	Config Config
	Logger *zap.Logger
}

// NewChromeDPFactory 创建工厂
func NewChromeDPFactory(config Config, logger *zap.Logger) *ChromeDPFactory {
	return &ChromeDPFactory{Config: config, Logger: logger}
}

// NewNavigator implements NavigatorFactory.
func (f *ChromeDPFactory) NewNavigator(ctx context.Context) (Navigator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewChromeDPNavigator(f.Config, f.Logger)
}
