// =============================================================================
// 🔮 MockOracle - 视觉模型 Oracle 模拟实现
// =============================================================================
// 按调用顺序返回脚本化的 Decision / UXAnalysis，并记录每次请求
//
// 使用方法:
//
//	o := mocks.NewMockOracle().
//		WithDecisions(oracle.Decision{Action: oracle.ActionScroll}).
//		WithScoreErrorAt(2, errors.New("quota"))
// =============================================================================
package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/mysteryshopper/agent/oracle"
)

// MockOracle 是 oracle.Oracle 的模拟实现
type MockOracle struct {
	mu sync.Mutex

	decisions       []oracle.Decision
	defaultDecision oracle.Decision
	analysis        oracle.UXAnalysis
	scores          []int

	decideErrs map[int]error
	scoreErrs  map[int]error

	decideRequests []oracle.DecideRequest
	scoreRequests  []oracle.ScoreRequest
}

// NewMockOracle 创建新的 MockOracle，默认总是返回 finish
func NewMockOracle() *MockOracle {
	return &MockOracle{
		defaultDecision: oracle.Decision{Action: oracle.ActionFinish, Label: "done"},
		analysis: oracle.UXAnalysis{
			PageType:          oracle.PageHomepage,
			Issues:            []oracle.Issue{},
			PositiveAspects:   []string{},
			Suggestions:       []oracle.Suggestion{},
			ConversionScore:   70,
			OverallAssessment: "fine",
		},
		decideErrs: make(map[int]error),
		scoreErrs:  make(map[int]error),
	}
}

// WithDecisions 按调用顺序返回这些决策，用尽后返回默认决策
func (m *MockOracle) WithDecisions(d ...oracle.Decision) *MockOracle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = d
	return m
}

// WithDefaultDecision 设置脚本用尽后的决策
func (m *MockOracle) WithDefaultDecision(d oracle.Decision) *MockOracle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultDecision = d
	return m
}

// WithAnalysis 设置 Score 返回的分析模板
func (m *MockOracle) WithAnalysis(a oracle.UXAnalysis) *MockOracle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analysis = a
	return m
}

// WithScores 按调用顺序覆盖 ConversionScore
func (m *MockOracle) WithScores(scores ...int) *MockOracle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores = scores
	return m
}

// WithDecideErrorAt 让第 n 次（从 1 开始）Decide 失败
func (m *MockOracle) WithDecideErrorAt(n int, err error) *MockOracle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decideErrs[n] = err
	return m
}

// WithScoreErrorAt 让第 n 次 Score 失败
func (m *MockOracle) WithScoreErrorAt(n int, err error) *MockOracle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scoreErrs[n] = err
	return m
}

func (m *MockOracle) Decide(_ context.Context, req oracle.DecideRequest) (oracle.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decideRequests = append(m.decideRequests, req)
	n := len(m.decideRequests)
	if err := m.decideErrs[n]; err != nil {
		return oracle.Decision{}, err
	}
	if n <= len(m.decisions) {
		return m.decisions[n-1], nil
	}
	return m.defaultDecision, nil
}

func (m *MockOracle) Score(_ context.Context, req oracle.ScoreRequest) (oracle.UXAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scoreRequests = append(m.scoreRequests, req)
	n := len(m.scoreRequests)
	if err := m.scoreErrs[n]; err != nil {
		return oracle.UXAnalysis{}, err
	}
	a := m.analysis
	if n <= len(m.scores) {
		a.ConversionScore = m.scores[n-1]
	}
	return a, nil
}

// DecideRequests 返回所有 Decide 请求
func (m *MockOracle) DecideRequests() []oracle.DecideRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]oracle.DecideRequest(nil), m.decideRequests...)
}

// ScoreRequests 返回所有 Score 请求
func (m *MockOracle) ScoreRequests() []oracle.ScoreRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]oracle.ScoreRequest(nil), m.scoreRequests...)
}
