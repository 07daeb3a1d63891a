// MockVisionProvider 是 llm.VisionProvider 的测试模拟实现。
//
// 支持固定响应、按次错误注入与请求记录。
package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/mysteryshopper/llm"
)

// MockVisionProvider 按调用顺序返回脚本化文本
type MockVisionProvider struct {
	mu       sync.Mutex
	name     string
	texts    []string
	fallback string
	errs     map[int]error
	requests []*llm.VisionRequest
}

// NewMockVisionProvider 创建新的 MockVisionProvider
func NewMockVisionProvider() *MockVisionProvider {
	return &MockVisionProvider{
		name:     "mock",
		fallback: `{"action":"finish","label":"","reason":"done"}`,
		errs:     make(map[int]error),
	}
}

// WithResponses 按调用顺序返回这些文本，用尽后返回最后设置的兜底文本
func (m *MockVisionProvider) WithResponses(texts ...string) *MockVisionProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = texts
	return m
}

// WithFallback 设置脚本用尽后的响应
func (m *MockVisionProvider) WithFallback(text string) *MockVisionProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = text
	return m
}

// WithErrorAt 让第 n 次调用失败
func (m *MockVisionProvider) WithErrorAt(n int, err error) *MockVisionProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[n] = err
	return m
}

func (m *MockVisionProvider) Name() string { return m.name }

func (m *MockVisionProvider) GenerateVision(ctx context.Context, req *llm.VisionRequest) (*llm.VisionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	n := len(m.requests)
	if err := m.errs[n]; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := m.fallback
	if n <= len(m.texts) {
		text = m.texts[n-1]
	}
	return &llm.VisionResponse{Text: text, Model: "mock-vision", FinishReason: "stop"}, nil
}

// Requests 返回所有请求
func (m *MockVisionProvider) Requests() []*llm.VisionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*llm.VisionRequest(nil), m.requests...)
}
