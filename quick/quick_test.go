package quick

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/mysteryshopper/agent/journey"
	"github.com/BaSui01/mysteryshopper/agent/oracle"
	"github.com/BaSui01/mysteryshopper/config"
	"github.com/BaSui01/mysteryshopper/internal/clock"
	"github.com/BaSui01/mysteryshopper/testutil/fixtures"
	"github.com/BaSui01/mysteryshopper/testutil/mocks"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Artifacts.InMemory = true
	return cfg
}

func TestNew_WithMocks(t *testing.T) {
	nav := mocks.NewMockNavigator().WithURL("https://example.com/pricing")
	o := mocks.NewMockOracle().WithDecisions(oracle.Decision{Action: oracle.ActionScroll})

	ctrl, err := New(
		WithConfig(testConfig()),
		WithLogger(zap.NewNop()),
		WithOracle(o),
		WithNavigatorFactory(nav.Factory()),
		WithSleeper(clock.NoSleep),
	)
	require.NoError(t, err)

	j, err := ctrl.Run(context.Background(), journey.Request{StartURL: "https://example.com", Goal: "pricing", MaxSteps: 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, journey.StatusFinished, j.Status)
	require.Len(t, j.Steps, 2)
	assert.NotEmpty(t, j.Steps[0].Screenshot.ID)
	assert.Equal(t, []int{500}, nav.Scrolls())
}

func TestNew_ScrollDeltaFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Journey.ScrollDelta = 250
	nav := mocks.NewMockNavigator()
	o := mocks.NewMockOracle().WithDecisions(oracle.Decision{Action: oracle.ActionScroll})

	ctrl, err := New(WithConfig(cfg), WithOracle(o), WithNavigatorFactory(nav.Factory()), WithSleeper(clock.NoSleep))
	require.NoError(t, err)

	_, err = ctrl.Run(context.Background(), journey.Request{StartURL: "https://example.com", MaxSteps: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{250}, nav.Scrolls())
}

func TestNew_WithProvider(t *testing.T) {
	p := mocks.NewMockVisionProvider().WithFallback(`{"action":"finish","label":"done"}`)
	_, err := New(WithConfig(testConfig()), WithProvider(p), WithNavigatorFactory(mocks.NewMockNavigator().Factory()))
	require.NoError(t, err)
}

func TestNew_ProviderEndToEnd(t *testing.T) {
	p := mocks.NewMockVisionProvider().WithResponses(
		fixtures.Fenced(fixtures.DecisionJSON(oracle.ActionScroll, "")),
		fixtures.AnalysisJSON(60, oracle.SeverityHigh),
		fixtures.DecisionJSON(oracle.ActionFinish, "done"),
		fixtures.Fenced(fixtures.AnalysisJSON(80)),
	)
	ctrl, err := New(
		WithConfig(testConfig()),
		WithProvider(p),
		WithNavigatorFactory(mocks.NewMockNavigator().Factory()),
		WithSleeper(clock.NoSleep),
	)
	require.NoError(t, err)

	j, err := ctrl.Run(context.Background(), journey.Request{StartURL: "https://example.com", Goal: "Sign up", MaxSteps: 3}, nil)
	require.NoError(t, err)
	require.Len(t, j.Steps, 2)
	assert.Equal(t, journey.ReasonDecision, j.FinishReason)
	assert.Equal(t, 60, j.Steps[0].Analysis.ConversionScore)
	assert.Equal(t, 1, j.Steps[0].Analysis.HighSeverityCount())
	assert.Equal(t, 80, j.Steps[1].Analysis.ConversionScore)
	assert.Len(t, p.Requests(), 4)
}

func TestNew_RequiresAPIKey(t *testing.T) {
	cfg := testConfig()
	cfg.Oracle.APIKey = ""
	_, err := New(WithConfig(cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")

	_, err = New(WithConfig(cfg), WithAPIKey("k"), WithNavigatorFactory(mocks.NewMockNavigator().Factory()))
	require.NoError(t, err)
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		provider string
		wantName string
		wantErr  bool
	}{
		{"gemini", "gemini", false},
		{"", "gemini", false},
		{"OpenAI", "openai", false},
		{"llama", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := NewProvider(config.OracleConfig{Provider: tt.provider, APIKey: "k"}, nil)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Name())
		})
	}
}

func TestNewOracle_Retries(t *testing.T) {
	p := mocks.NewMockVisionProvider()

	cfg := config.DefaultOracleConfig()
	_, isVision := NewOracle(cfg, p, nil, nil).(*oracle.VisionOracle)
	assert.True(t, isVision)

	cfg.MaxRetries = 2
	_, isRetrying := NewOracle(cfg, p, nil, nil).(*oracle.RetryingOracle)
	assert.True(t, isRetrying)
}

func TestBrowserConfig(t *testing.T) {
	bc := config.DefaultBrowserConfig()
	bc.ProxyURL = "http://proxy:3128"
	got := BrowserConfig(bc)
	assert.Equal(t, 1280, got.ViewportWidth)
	assert.Equal(t, 5*time.Second, got.ClickTimeout)
	assert.Equal(t, "http://proxy:3128", got.ProxyURL)
	assert.Equal(t, bc.ExtraFlags, got.ExtraFlags)
}

func TestDelays(t *testing.T) {
	d := Delays(config.DefaultJourneyConfig())
	assert.Equal(t, journey.DefaultDelays(), d)
}

func TestNewArtifacts(t *testing.T) {
	m, err := NewArtifacts(config.ArtifactsConfig{InMemory: true}, nil)
	require.NoError(t, err)

	a, err := m.SaveScreenshot(context.Background(), "j1", "step_1.png", []byte("png"), "https://example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)

	m, err = NewArtifacts(config.ArtifactsConfig{Dir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.NotNil(t, m)
}
