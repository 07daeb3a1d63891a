package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/mysteryshopper/agent/journey"
	"github.com/BaSui01/mysteryshopper/agent/oracle"
	"github.com/BaSui01/mysteryshopper/agent/persistence"
	"github.com/BaSui01/mysteryshopper/agent/runner"
)

// =============================================================================
// 🧪 测试替身
// =============================================================================

// heldRunner emits one progress update and blocks until released or canceled.
type heldRunner struct {
	release chan struct{}
	started chan string
}

func newHeldRunner() *heldRunner {
	return &heldRunner{release: make(chan struct{}), started: make(chan string, 8)}
}

func (h *heldRunner) Run(ctx context.Context, req journey.Request, observer journey.Observer) (*journey.Journey, error) {
	observer.OnProgress(journey.Progress{
		JourneyID: req.ID,
		Phase:     journey.PhaseLoading,
		Message:   "Loading: " + req.StartURL,
		MaxSteps:  req.MaxSteps,
	})
	h.started <- req.ID

	reason := journey.ReasonDecision
	select {
	case <-h.release:
	case <-ctx.Done():
		reason = journey.ReasonCanceled
	}

	now := time.Now()
	return &journey.Journey{
		ID:           req.ID,
		StartURL:     req.StartURL,
		Goal:         req.Goal,
		MaxSteps:     req.MaxSteps,
		Status:       journey.StatusFinished,
		FinishReason: reason,
		Steps: []journey.StepRecord{{
			Step: 1,
			URL:  req.StartURL,
			Decision: oracle.Decision{
				Action: oracle.ActionFinish,
				Reason: "goal reached",
			},
			Analysis: oracle.UXAnalysis{
				PageType:        oracle.PageSignup,
				ConversionScore: 80,
				Issues:          []oracle.Issue{{Severity: oracle.SeverityHigh, Issue: "tiny button"}},
			},
			CapturedAt: now,
		}},
		Warnings:   []string{},
		StartedAt:  now,
		FinishedAt: now,
	}, nil
}

func (h *heldRunner) waitStarted(t *testing.T) string {
	t.Helper()
	select {
	case id := <-h.started:
		return id
	case <-time.After(5 * time.Second):
		t.Fatal("journey did not start")
		return ""
	}
}

// memCache is an in-process ReportCache.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) GetReport(_ context.Context, id, format string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[id+":"+format]
	if !ok {
		return nil, errors.New("miss")
	}
	return b, nil
}

func (c *memCache) SetReport(_ context.Context, id, format string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.data[id+":"+format] = body
	return nil
}

type journeyFixture struct {
	runner  *heldRunner
	manager *runner.Manager
	mux     *http.ServeMux
	cache   *memCache
}

func newJourneyFixture(t *testing.T, maxConcurrent int) *journeyFixture {
	t.Helper()
	f := &journeyFixture{
		runner: newHeldRunner(),
		mux:    http.NewServeMux(),
		cache:  newMemCache(),
	}
	f.manager = runner.NewManager(f.runner, persistence.NewMemoryStore(0), zap.NewNop(),
		runner.WithMaxConcurrent(maxConcurrent))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = f.manager.Shutdown(ctx)
	})

	h := NewJourneyHandler(f.manager, JourneyDefaults{Goal: "Sign up", MaxSteps: 6, MaxStepsCap: 12}, zap.NewNop(),
		WithReportCache(f.cache))
	h.Register(f.mux)
	return f
}

func (f *journeyFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	return w
}

func (f *journeyFixture) start(t *testing.T) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/v1/journeys", `{"url":"https://example.com","max_steps":3}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var resp struct {
		Data StartJourneyResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data.ID
}

func (f *journeyFixture) finish(t *testing.T, id string) {
	t.Helper()
	f.runner.release <- struct{}{}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := f.manager.Wait(ctx, id)
	require.NoError(t, err)
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, dst))
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

// =============================================================================
// 🧪 HTTP 测试
// =============================================================================

func TestJourneyHandler_StartAndGet(t *testing.T) {
	f := newJourneyFixture(t, 2)

	w := f.do(t, http.MethodPost, "/api/v1/journeys", `{"url":"https://example.com"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var started StartJourneyResponse
	decodeData(t, w, &started)
	assert.Equal(t, journey.StatusRunning, started.Status)
	assert.Equal(t, "/api/v1/journeys/"+started.ID, w.Header().Get("Location"))
	assert.Equal(t, "/api/v1/journeys/"+started.ID+"/events", started.EventsURL)
	f.runner.waitStarted(t)

	w = f.do(t, http.MethodGet, "/api/v1/journeys/"+started.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var snap runner.Snapshot
	decodeData(t, w, &snap)
	assert.Equal(t, journey.StatusRunning, snap.Status)
	assert.Equal(t, "Sign up", snap.Goal)
	assert.Nil(t, snap.Journey)

	f.finish(t, started.ID)

	w = f.do(t, http.MethodGet, "/api/v1/journeys/"+started.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &snap)
	assert.Equal(t, journey.StatusFinished, snap.Status)
	require.NotNil(t, snap.Journey)
	assert.Equal(t, 6, snap.Journey.MaxSteps)
	assert.Len(t, snap.Journey.Steps, 1)
}

func TestJourneyHandler_StartValidation(t *testing.T) {
	f := newJourneyFixture(t, 2)

	tests := []struct {
		name string
		body string
	}{
		{"relative url", `{"url":"/pricing"}`},
		{"missing url", `{"goal":"x"}`},
		{"negative steps", `{"url":"https://example.com","max_steps":-1}`},
		{"over cap", `{"url":"https://example.com","max_steps":50}`},
		{"unknown field", `{"url":"https://example.com","depth":2}`},
		{"not json", `url=https://example.com`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/v1/journeys", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "INVALID_REQUEST", errorCode(t, w))
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/journeys", strings.NewReader(`{"url":"https://example.com"}`))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJourneyHandler_ZeroStepsAllowed(t *testing.T) {
	f := newJourneyFixture(t, 2)

	w := f.do(t, http.MethodPost, "/api/v1/journeys", `{"url":"https://example.com","max_steps":0}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	id := f.runner.waitStarted(t)
	f.finish(t, id)

	w = f.do(t, http.MethodGet, "/api/v1/journeys/"+id, "")
	var snap runner.Snapshot
	decodeData(t, w, &snap)
	require.NotNil(t, snap.Journey)
	assert.Equal(t, 0, snap.Journey.MaxSteps)
}

func TestJourneyHandler_Busy(t *testing.T) {
	f := newJourneyFixture(t, 1)

	id := f.start(t)
	f.runner.waitStarted(t)

	w := f.do(t, http.MethodPost, "/api/v1/journeys", `{"url":"https://example.com"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "JOURNEY_BUSY", errorCode(t, w))

	f.finish(t, id)
}

func TestJourneyHandler_List(t *testing.T) {
	f := newJourneyFixture(t, 2)

	done := f.start(t)
	f.runner.waitStarted(t)
	f.finish(t, done)

	running := f.start(t)
	f.runner.waitStarted(t)

	w := f.do(t, http.MethodGet, "/api/v1/journeys", "")
	require.Equal(t, http.StatusOK, w.Code)
	var snaps []runner.Snapshot
	decodeData(t, w, &snaps)
	require.Len(t, snaps, 2)
	assert.Equal(t, running, snaps[0].ID)
	assert.Equal(t, done, snaps[1].ID)
	assert.Nil(t, snaps[1].Journey, "list omits full journeys")

	w = f.do(t, http.MethodGet, "/api/v1/journeys?status=finished", "")
	decodeData(t, w, &snaps)
	require.Len(t, snaps, 1)
	assert.Equal(t, done, snaps[0].ID)

	w = f.do(t, http.MethodGet, "/api/v1/journeys?status=paused", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/journeys?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.finish(t, running)
}

func TestJourneyHandler_GetNotFound(t *testing.T) {
	f := newJourneyFixture(t, 2)

	w := f.do(t, http.MethodGet, "/api/v1/journeys/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, w))
}

func TestJourneyHandler_Cancel(t *testing.T) {
	f := newJourneyFixture(t, 2)

	id := f.start(t)
	f.runner.waitStarted(t)

	w := f.do(t, http.MethodDelete, "/api/v1/journeys/"+id, "")
	require.Equal(t, http.StatusAccepted, w.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	j, err := f.manager.Wait(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, journey.StatusFinished, j.Status)
	assert.Equal(t, journey.ReasonCanceled, j.FinishReason)

	w = f.do(t, http.MethodDelete, "/api/v1/journeys/"+id, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodDelete, "/api/v1/journeys/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJourneyHandler_ReportWhileRunning(t *testing.T) {
	f := newJourneyFixture(t, 2)

	id := f.start(t)
	f.runner.waitStarted(t)

	w := f.do(t, http.MethodGet, "/api/v1/journeys/"+id+"/report", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/journeys/"+id+"/summary", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	f.finish(t, id)
}

func TestJourneyHandler_Report(t *testing.T) {
	f := newJourneyFixture(t, 2)

	id := f.start(t)
	f.runner.waitStarted(t)
	f.finish(t, id)

	w := f.do(t, http.MethodGet, "/api/v1/journeys/"+id+"/report", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "https://example.com", doc["url"])
	assert.EqualValues(t, 1, doc["stepCount"])

	w = f.do(t, http.MethodGet, "/api/v1/journeys/"+id+"/report", "")
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, 1, f.cache.sets)

	w = f.do(t, http.MethodGet, "/api/v1/journeys/"+id+"/report?format=summary&download=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "journey-"+id+".txt")
	assert.Contains(t, w.Body.String(), "https://example.com")

	w = f.do(t, http.MethodGet, "/api/v1/journeys/"+id+"/report?format=dot", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.Contains(w.Body.Bytes(), []byte("digraph")))

	w = f.do(t, http.MethodGet, "/api/v1/journeys/"+id+"/report?format=pdf", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJourneyHandler_Summary(t *testing.T) {
	f := newJourneyFixture(t, 2)

	id := f.start(t)
	f.runner.waitStarted(t)
	f.finish(t, id)

	w := f.do(t, http.MethodGet, "/api/v1/journeys/"+id+"/summary", "")
	require.Equal(t, http.StatusOK, w.Code)

	var summary struct {
		TotalSteps   int     `json:"total_steps"`
		AverageScore float64 `json:"average_score"`
		HighIssues   int     `json:"high_issues"`
		Grade        string  `json:"grade"`
	}
	decodeData(t, w, &summary)
	assert.Equal(t, 1, summary.TotalSteps)
	assert.InDelta(t, 80.0, summary.AverageScore, 0.001)
	assert.Equal(t, 1, summary.HighIssues)
	assert.Equal(t, "good", summary.Grade)
}

// =============================================================================
// 🧪 Websocket 测试
// =============================================================================

func dialEvents(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/journeys/"+id+"/events", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) JourneyEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var ev JourneyEvent
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	return ev
}

func TestJourneyHandler_EventsStream(t *testing.T) {
	f := newJourneyFixture(t, 2)
	srv := httptest.NewServer(f.mux)
	defer srv.Close()

	id := f.start(t)
	f.runner.waitStarted(t)

	conn := dialEvents(t, srv, id)

	ev := readEvent(t, conn)
	require.Equal(t, EventProgress, ev.Type)
	require.NotNil(t, ev.Progress)
	assert.Equal(t, journey.PhaseLoading, ev.Progress.Phase)

	f.runner.release <- struct{}{}

	// 完成前可能还有进度事件
	for {
		ev = readEvent(t, conn)
		if ev.Type == EventCompleted {
			break
		}
		assert.Equal(t, EventProgress, ev.Type)
	}
	require.NotNil(t, ev.Snapshot)
	assert.Equal(t, journey.StatusFinished, ev.Snapshot.Status)
	require.NotNil(t, ev.Snapshot.Journey)
	assert.Len(t, ev.Snapshot.Journey.Steps, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
}

func TestJourneyHandler_EventsAfterFinish(t *testing.T) {
	f := newJourneyFixture(t, 2)
	srv := httptest.NewServer(f.mux)
	defer srv.Close()

	id := f.start(t)
	f.runner.waitStarted(t)
	f.finish(t, id)

	conn := dialEvents(t, srv, id)
	ev := readEvent(t, conn)
	assert.Equal(t, EventCompleted, ev.Type)
	require.NotNil(t, ev.Snapshot)
	assert.Equal(t, id, ev.Snapshot.ID)
}

func TestJourneyHandler_EventsNotFound(t *testing.T) {
	f := newJourneyFixture(t, 2)
	srv := httptest.NewServer(f.mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/journeys/nope/events", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
