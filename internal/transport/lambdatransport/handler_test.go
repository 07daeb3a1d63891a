package lambdatransport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/mysteryshopper/agent/journey"
	"github.com/BaSui01/mysteryshopper/agent/oracle"
	"github.com/BaSui01/mysteryshopper/internal/clock"
	"github.com/BaSui01/mysteryshopper/testutil"
	"github.com/BaSui01/mysteryshopper/testutil/fixtures"
	"github.com/BaSui01/mysteryshopper/testutil/mocks"
)

type runnerStub struct {
	runFn func(ctx context.Context, req journey.Request) (*journey.Journey, error)
	calls []journey.Request
}

func (s *runnerStub) Run(ctx context.Context, req journey.Request, _ journey.Observer) (*journey.Journey, error) {
	s.calls = append(s.calls, req)
	return s.runFn(ctx, req)
}

func newStub() *runnerStub {
	return &runnerStub{runFn: func(_ context.Context, req journey.Request) (*journey.Journey, error) {
		j := fixtures.FinishedJourney("j-1", req.StartURL, 75)
		j.Goal = req.Goal
		return j, nil
	}}
}

func errorCode(t *testing.T, resp events.APIGatewayV2HTTPResponse) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	return string(body.Error.Code)
}

func TestHandler_Run_JSONReport(t *testing.T) {
	stub := newStub()
	h := NewHandler(stub, Defaults{Goal: "Sign up", MaxSteps: 5}, zap.NewNop())

	resp, err := h.Run(context.Background(), events.APIGatewayV2HTTPRequest{Body: `{"url":"https://example.com"}`})
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Headers["content-type"])
	assert.Equal(t, "finished", resp.Headers["x-journey-status"])

	var doc struct {
		URL       string `json:"url"`
		Goal      string `json:"goal"`
		StepCount int    `json:"stepCount"`
	}
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &doc))
	assert.Equal(t, "https://example.com", doc.URL)
	assert.Equal(t, "Sign up", doc.Goal)
	assert.Equal(t, 1, doc.StepCount)

	require.Len(t, stub.calls, 1)
	assert.Equal(t, 5, stub.calls[0].MaxSteps)
}

func TestHandler_Run_FormatAndBase64(t *testing.T) {
	h := NewHandler(newStub(), Defaults{MaxSteps: 3}, nil)

	body := base64.StdEncoding.EncodeToString([]byte(`{"url":"https://example.com","goal":"Buy","max_steps":2}`))
	resp, err := h.Run(context.Background(), events.APIGatewayV2HTTPRequest{
		Body:                  body,
		IsBase64Encoded:       true,
		QueryStringParameters: map[string]string{"format": "dot"},
	})
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "text/vnd.graphviz", resp.Headers["content-type"])
	assert.Contains(t, resp.Body, "digraph")
}

func TestHandler_Run_ClientErrors(t *testing.T) {
	tests := []struct {
		name string
		ev   events.APIGatewayV2HTTPRequest
	}{
		{name: "invalid json", ev: events.APIGatewayV2HTTPRequest{Body: "{"}},
		{name: "invalid base64", ev: events.APIGatewayV2HTTPRequest{Body: "%%%", IsBase64Encoded: true}},
		{name: "missing url", ev: events.APIGatewayV2HTTPRequest{Body: `{}`}},
		{name: "bad scheme", ev: events.APIGatewayV2HTTPRequest{Body: `{"url":"file:///etc/passwd"}`}},
		{name: "over cap", ev: events.APIGatewayV2HTTPRequest{Body: `{"url":"https://example.com","max_steps":50}`}},
		{name: "negative steps", ev: events.APIGatewayV2HTTPRequest{Body: `{"url":"https://example.com","max_steps":-1}`}},
		{name: "bad format", ev: events.APIGatewayV2HTTPRequest{Body: `{"url":"https://example.com","format":"pdf"}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := newStub()
			h := NewHandler(stub, Defaults{MaxSteps: 5, MaxStepsCap: 10}, zap.NewNop())

			resp, err := h.Run(context.Background(), tt.ev)
			require.NoError(t, err)
			assert.Equal(t, 400, resp.StatusCode)
			assert.Equal(t, "INVALID_REQUEST", errorCode(t, resp))
			assert.Empty(t, stub.calls)
		})
	}
}

func TestHandler_Run_AbortedJourneyStillReports(t *testing.T) {
	stub := &runnerStub{runFn: func(_ context.Context, req journey.Request) (*journey.Journey, error) {
		return fixtures.AbortedJourney("j-2", req.StartURL), nil
	}}
	h := NewHandler(stub, Defaults{MaxSteps: 2}, zap.NewNop())

	resp, err := h.Run(testutil.TestContext(t), events.APIGatewayV2HTTPRequest{Body: `{"url":"https://nowhere.invalid"}`})
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "aborted", resp.Headers["x-journey-status"])
	assert.Equal(t, "load_failed", resp.Headers["x-journey-finished"])

	doc := testutil.MustParseJSON[map[string]any](t, resp.Body)
	assert.EqualValues(t, 0, doc["stepCount"])
}

func TestHandler_Run_InternalErrorHidden(t *testing.T) {
	stub := &runnerStub{runFn: func(context.Context, journey.Request) (*journey.Journey, error) {
		return nil, errors.New("chrome exploded")
	}}
	h := NewHandler(stub, Defaults{MaxSteps: 2}, zap.NewNop())

	resp, err := h.Run(context.Background(), events.APIGatewayV2HTTPRequest{Body: `{"url":"https://example.com"}`})
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
	assert.NotContains(t, resp.Body, "chrome exploded")
}

func TestHandler_Run_WithController(t *testing.T) {
	nav := mocks.NewMockNavigator().WithClickable("Pricing")
	o := mocks.NewMockOracle().WithDecisions(oracle.Decision{Action: oracle.ActionClick, Label: "Pricing"})
	ctrl := journey.NewController(nav.Factory(), o, zap.NewNop(), journey.WithSleeper(clock.NoSleep))

	h := NewHandler(ctrl, Defaults{Goal: "Find pricing", MaxSteps: 4}, zap.NewNop())
	resp, err := h.Run(context.Background(), events.APIGatewayV2HTTPRequest{
		Body:                  `{"url":"https://example.com"}`,
		QueryStringParameters: map[string]string{"format": "summary"},
	})
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "decision", resp.Headers["x-journey-finished"])
	assert.Equal(t, []string{"Pricing"}, nav.Clicks())
	assert.Contains(t, resp.Body, "https://example.com")
}
