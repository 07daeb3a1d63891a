package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/mysteryshopper/agent/artifacts"
	"github.com/BaSui01/mysteryshopper/agent/oracle"
	"github.com/BaSui01/mysteryshopper/internal/clock"
	"github.com/BaSui01/mysteryshopper/quick"
	"github.com/BaSui01/mysteryshopper/testutil/mocks"
)

type cliResult struct {
	stdout string
	stderr string
	err    error
}

func (r cliResult) exitCode() int {
	if r.err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(r.err, &ee) {
		return ee.code
	}
	return 1
}

// runCLI executes the root command with mocked browser and oracle.
func runCLI(t *testing.T, nav *mocks.MockNavigator, o *mocks.MockOracle, args ...string) cliResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	a := newApp(&stdout, &stderr)
	a.logger = zap.NewNop()
	a.quickOpts = []quick.Option{
		quick.WithNavigatorFactory(nav.Factory()),
		quick.WithOracle(o),
		quick.WithSleeper(clock.NoSleep),
		quick.WithScreenshotSaver(artifacts.NewManager(artifacts.ManagerConfig{}, artifacts.NewMemStore(), zap.NewNop())),
	}

	root := a.rootCommand()
	root.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "none.env")}, args...))
	err := root.ExecuteContext(context.Background())
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func TestVersionCommand(t *testing.T) {
	res := runCLI(t, mocks.NewMockNavigator(), mocks.NewMockOracle(), "version")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "MysteryShopper "+Version)
	assert.Contains(t, res.stdout, "Git Commit")
}

func TestRun_HumanReport(t *testing.T) {
	o := mocks.NewMockOracle().WithDecisions(oracle.Decision{Action: oracle.ActionScroll})
	res := runCLI(t, mocks.NewMockNavigator(), o,
		"run", "https://example.com", "--goal", "Find pricing", "--quiet", "--no-color")

	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "AI Mystery Shopper Report")
	assert.Contains(t, res.stdout, "Goal:    Find pricing")
	assert.Contains(t, res.stdout, "STEP")
	assert.Contains(t, res.stdout, "scroll")
}

func TestRun_JSONToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "report.json")
	res := runCLI(t, mocks.NewMockNavigator(), mocks.NewMockOracle(),
		"run", "https://example.com", "-o", "json", "--out", out, "-q")
	require.NoError(t, res.err)
	assert.Empty(t, res.stdout)
	assert.Contains(t, res.stderr, "Report written to "+out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var doc struct {
		URL       string `json:"url"`
		StepCount int    `json:"stepCount"`
		Status    string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "https://example.com", doc.URL)
	assert.Equal(t, 1, doc.StepCount)
	assert.Equal(t, "finished", doc.Status)
}

func TestRun_MaxStepsFlag(t *testing.T) {
	o := mocks.NewMockOracle().WithDefaultDecision(oracle.Decision{Action: oracle.ActionScroll})
	res := runCLI(t, mocks.NewMockNavigator(), o,
		"run", "https://example.com", "-n", "3", "-o", "json", "-q")
	require.NoError(t, res.err)

	var doc struct {
		StepCount    int    `json:"stepCount"`
		FinishReason string `json:"finishReason"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &doc))
	assert.Equal(t, 3, doc.StepCount)
	assert.Equal(t, "exhausted", doc.FinishReason)
}

func TestRun_GateExitCode(t *testing.T) {
	res := runCLI(t, mocks.NewMockNavigator(), mocks.NewMockOracle(),
		"run", "https://example.com", "-q", "-o", "summary", "--fail-if", "avg_score < 80")
	assert.Equal(t, exitGateFailed, res.exitCode())
	assert.NotEmpty(t, res.stdout)

	res = runCLI(t, mocks.NewMockNavigator(), mocks.NewMockOracle(),
		"run", "https://example.com", "-q", "-o", "summary", "--fail-if", "high_issues > 0")
	assert.NoError(t, res.err)
}

func TestRun_AbortedExitCode(t *testing.T) {
	nav := mocks.NewMockNavigator().WithLoadError(errors.New("net::ERR_NAME_NOT_RESOLVED"))
	res := runCLI(t, nav, mocks.NewMockOracle(), "run", "https://nowhere.invalid", "-q", "-o", "json")

	assert.Equal(t, exitAborted, res.exitCode())
	assert.Contains(t, res.stdout, `"status": "aborted"`)
}

func TestRun_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "bad format", args: []string{"run", "https://example.com", "-o", "pdf"}},
		{name: "bad gate", args: []string{"run", "https://example.com", "--fail-if", "avg_score <"}},
		{name: "bad url", args: []string{"run", "ftp://example.com"}},
		{name: "missing url", args: []string{"run"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nav := mocks.NewMockNavigator()
			res := runCLI(t, nav, mocks.NewMockOracle(), tt.args...)
			assert.Equal(t, 1, res.exitCode())
			assert.Empty(t, nav.LoadCalls())
		})
	}
}
