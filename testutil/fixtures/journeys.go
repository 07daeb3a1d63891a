// =============================================================================
// 📦 测试数据工厂 - 旅程与 Oracle 数据
// =============================================================================
// 提供预定义的旅程记录与模型原始响应，用于测试
// =============================================================================
package fixtures

import (
	"fmt"
	"time"

	"github.com/BaSui01/mysteryshopper/agent/journey"
	"github.com/BaSui01/mysteryshopper/agent/oracle"
)

// T0 固定的旅程开始时间
var T0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// =============================================================================
// 🧭 旅程工厂
// =============================================================================

// Step 创建一条步骤记录，评分与问题放在 UX 分析中
func Step(n int, url string, d oracle.Decision, score int, issues []oracle.Issue, suggestions ...oracle.Suggestion) journey.StepRecord {
	if issues == nil {
		issues = []oracle.Issue{}
	}
	if suggestions == nil {
		suggestions = []oracle.Suggestion{}
	}
	return journey.StepRecord{
		Step: n,
		URL:  url,
		Screenshot: journey.ScreenshotRef{
			ID:     fmt.Sprintf("shot-%d", n),
			SHA256: fmt.Sprintf("%064d", n),
			URL:    url,
		},
		Decision: d,
		Analysis: oracle.UXAnalysis{
			PageType:          oracle.PageOther,
			Issues:            issues,
			PositiveAspects:   []string{},
			Suggestions:       suggestions,
			ConversionScore:   score,
			OverallAssessment: "ok",
		},
		CapturedAt: T0.Add(time.Duration(n) * time.Second),
	}
}

// FinishedJourney 创建一个按决策结束的旅程，每个分数对应一步
func FinishedJourney(id, url string, scores ...int) *journey.Journey {
	j := &journey.Journey{
		ID:           id,
		StartURL:     url,
		Goal:         "Sign up",
		MaxSteps:     len(scores),
		Status:       journey.StatusFinished,
		FinishReason: journey.ReasonDecision,
		Steps:        make([]journey.StepRecord, 0, len(scores)),
		Warnings:     []string{},
		StartedAt:    T0,
		FinishedAt:   T0.Add(time.Minute),
	}
	for i, s := range scores {
		d := oracle.Decision{Action: oracle.ActionScroll}
		if i == len(scores)-1 {
			d = oracle.Decision{Action: oracle.ActionFinish, Label: "done"}
		}
		j.Steps = append(j.Steps, Step(i+1, url, d, s, nil))
	}
	return j
}

// AbortedJourney 创建一个起始页加载失败的旅程
func AbortedJourney(id, url string) *journey.Journey {
	return &journey.Journey{
		ID:           id,
		StartURL:     url,
		Goal:         "Sign up",
		MaxSteps:     5,
		Status:       journey.StatusAborted,
		FinishReason: journey.ReasonLoadFailed,
		Steps:        []journey.StepRecord{},
		Warnings:     []string{"Cannot load page: net::ERR_NAME_NOT_RESOLVED"},
		StartedAt:    T0,
		FinishedAt:   T0.Add(time.Second),
	}
}

// =============================================================================
// 🔮 模型原始响应
// =============================================================================

// DecisionJSON 返回模型的决策 JSON 文本
func DecisionJSON(action oracle.Action, label string) string {
	return fmt.Sprintf(`{"action":%q,"label":%q,"value":"","reason":"looks right","ux_observation":"clear layout"}`, action, label)
}

// AnalysisJSON 返回模型的 UX 分析 JSON 文本
func AnalysisJSON(score int, severities ...oracle.Severity) string {
	issues := ""
	for i, s := range severities {
		if i > 0 {
			issues += ","
		}
		issues += fmt.Sprintf(`{"severity":%q,"issue":"issue %d","location":"header","impact":"drop-off"}`, s, i+1)
	}
	return fmt.Sprintf(`{"page_type":"homepage","ux_issues":[%s],"positive_aspects":["fast"],`+
		`"actionable_suggestions":[{"suggestion":"Make the CTA bigger","implementation":"css","expected_impact":"more signups"}],`+
		`"conversion_score":%d,"overall_assessment":"decent"}`, issues, score)
}

// Fenced 用 markdown 代码块包裹文本，模拟模型常见的输出格式
func Fenced(s string) string {
	return "```json\n" + s + "\n```"
}
