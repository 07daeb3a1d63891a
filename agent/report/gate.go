package report

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// GateEnv is the variable set available to gate expressions.
type GateEnv struct {
	AvgScore    float64 `expr:"avg_score"`
	MinScore    int     `expr:"min_score"`
	HighIssues  int     `expr:"high_issues"`
	TotalIssues int     `expr:"total_issues"`
	Steps       int     `expr:"steps"`
	Warnings    int     `expr:"warnings"`
	Status      string  `expr:"status"`
	Reason      string  `expr:"reason"`
}

// NewGateEnv extracts gate variables from a Summary.
func NewGateEnv(s Summary) GateEnv {
	env := GateEnv{
		AvgScore:    s.AverageScore,
		HighIssues:  s.HighIssues,
		TotalIssues: s.TotalIssues,
		Steps:       s.TotalSteps,
		Warnings:    s.Warnings,
		Status:      string(s.Status),
		Reason:      string(s.FinishReason),
	}
	for i, st := range s.Steps {
		if i == 0 || st.Score < env.MinScore {
			env.MinScore = st.Score
		}
	}
	return env
}

// Gate is a compiled boolean condition over a Summary, for example
// `avg_score < 50 || high_issues > 2`. A gate that evaluates to true fails.
type Gate struct {
	source  string
	program *vm.Program
}

// CompileGate type-checks src against GateEnv.
func CompileGate(src string) (*Gate, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("empty gate expression")
	}
	program, err := expr.Compile(src, expr.Env(GateEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile gate %q: %w", src, err)
	}
	return &Gate{source: src, program: program}, nil
}

// String returns the source expression.
func (g *Gate) String() string { return g.source }

// Failed reports whether the summary trips the gate.
func (g *Gate) Failed(s Summary) (bool, error) {
	out, err := expr.Run(g.program, NewGateEnv(s))
	if err != nil {
		return false, fmt.Errorf("evaluate gate %q: %w", g.source, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("gate %q returned %T", g.source, out)
	}
	return b, nil
}
