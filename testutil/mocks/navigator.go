// =============================================================================
// 🧭 MockNavigator - 浏览器会话模拟实现
// =============================================================================
// 用于测试的 Navigator 模拟，支持错误注入、panic 注入与调用记录
//
// 使用方法:
//
//	nav := mocks.NewMockNavigator().WithClickable("Sign Up")
//	factory := nav.Factory()
//	ctrl := journey.NewController(factory, oracle, logger)
// =============================================================================
package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/mysteryshopper/agent/browser"
)

// MockNavigator 是 browser.Navigator 的模拟实现
type MockNavigator struct {
	mu sync.Mutex

	url       string
	clickable map[string]bool

	// 错误注入
	loadErr          error
	factoryErr       error
	screenshotErrs   map[int]error
	screenshotPanics map[int]any
	scrollErr        error

	// 调用记录
	loadCalls       []string
	screenshotCalls int
	clicks          []string
	scrolls         []int
	closeCalls      int
}

// NewMockNavigator 创建新的 MockNavigator
func NewMockNavigator() *MockNavigator {
	return &MockNavigator{
		url:              "https://example.com/",
		clickable:        make(map[string]bool),
		screenshotErrs:   make(map[int]error),
		screenshotPanics: make(map[int]any),
	}
}

// --- Builder 方法 ---

// WithURL 设置 CurrentURL 与截图 URL
func (m *MockNavigator) WithURL(url string) *MockNavigator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.url = url
	return m
}

// WithLoadError 让 Load 失败
func (m *MockNavigator) WithLoadError(err error) *MockNavigator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
	return m
}

// WithFactoryError 让 Factory 创建会话失败
func (m *MockNavigator) WithFactoryError(err error) *MockNavigator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factoryErr = err
	return m
}

// WithScreenshotErrorAt 让第 n 次（从 1 开始）截图失败
func (m *MockNavigator) WithScreenshotErrorAt(n int, err error) *MockNavigator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.screenshotErrs[n] = err
	return m
}

// WithScreenshotPanicAt 让第 n 次截图 panic
func (m *MockNavigator) WithScreenshotPanicAt(n int, v any) *MockNavigator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.screenshotPanics[n] = v
	return m
}

// WithClickable 设置可点击的标签，其余标签点击失败
func (m *MockNavigator) WithClickable(labels ...string) *MockNavigator {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range labels {
		m.clickable[browser.NormalizeLabel(l)] = true
	}
	return m
}

// WithScrollError 让 Scroll 失败
func (m *MockNavigator) WithScrollError(err error) *MockNavigator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scrollErr = err
	return m
}

// Factory 返回始终产出该 MockNavigator 的工厂
func (m *MockNavigator) Factory() browser.NavigatorFactory {
	return browser.NavigatorFactoryFunc(func(context.Context) (browser.Navigator, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.factoryErr != nil {
			return nil, m.factoryErr
		}
		return m, nil
	})
}

// --- browser.Navigator 实现 ---

func (m *MockNavigator) Load(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadCalls = append(m.loadCalls, url)
	if m.loadErr != nil {
		return fmt.Errorf("%w: %s: %w", browser.ErrPageUnreachable, url, m.loadErr)
	}
	return ctx.Err()
}

func (m *MockNavigator) Screenshot(ctx context.Context) (*browser.Screenshot, error) {
	m.mu.Lock()
	m.screenshotCalls++
	n := m.screenshotCalls
	err := m.screenshotErrs[n]
	p, shouldPanic := m.screenshotPanics[n]
	url := m.url
	m.mu.Unlock()

	if shouldPanic {
		panic(p)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", browser.ErrScreenshotFailed, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &browser.Screenshot{
		Data:      []byte(fmt.Sprintf("png-%d", n)),
		Width:     1280,
		Height:    800,
		Timestamp: time.Now(),
		URL:       url,
	}, nil
}

func (m *MockNavigator) Click(_ context.Context, label string) (*browser.ClickResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clicks = append(m.clicks, label)
	if m.clickable[browser.NormalizeLabel(label)] {
		return &browser.ClickResult{Label: label, Strategy: "exact-text"}, nil
	}
	return nil, &browser.LocatorError{Label: label, Errors: []error{fmt.Errorf("exact-text: not found")}}
}

func (m *MockNavigator) Scroll(_ context.Context, deltaY int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scrolls = append(m.scrolls, deltaY)
	return m.scrollErr
}

func (m *MockNavigator) CurrentURL(context.Context) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.url
}

func (m *MockNavigator) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalls++
	return nil
}

// --- 调用记录查询 ---

// LoadCalls 返回 Load 的调用参数
func (m *MockNavigator) LoadCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.loadCalls...)
}

// ScreenshotCalls 返回截图次数
func (m *MockNavigator) ScreenshotCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.screenshotCalls
}

// Clicks 返回点击过的标签
func (m *MockNavigator) Clicks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.clicks...)
}

// Scrolls 返回每次滚动的距离
func (m *MockNavigator) Scrolls() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.scrolls...)
}

// CloseCalls 返回 Close 调用次数
func (m *MockNavigator) CloseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCalls
}
