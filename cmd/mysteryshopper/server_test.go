package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/mysteryshopper/agent/journey"
	"github.com/BaSui01/mysteryshopper/config"
	"github.com/BaSui01/mysteryshopper/internal/clock"
	"github.com/BaSui01/mysteryshopper/internal/metrics"
	"github.com/BaSui01/mysteryshopper/quick"
	"github.com/BaSui01/mysteryshopper/testutil"
	"github.com/BaSui01/mysteryshopper/testutil/mocks"
)

var (
	collectorOnce sync.Once
	testCollector *metrics.Collector
)

// sharedCollector registers the Prometheus collectors once per test binary.
func sharedCollector() *metrics.Collector {
	collectorOnce.Do(func() {
		testCollector = metrics.NewCollector("mysteryshopper_test", zap.NewNop())
	})
	return testCollector
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.APIKeys = []string{"test-key"}
	cfg.Server.MetricsPort = 0
	cfg.Artifacts.InMemory = true
	cfg.Journey.MaxSteps = 4

	srv, err := NewServer(context.Background(), cfg, sharedCollector(), zap.NewNop(),
		quick.WithNavigatorFactory(mocks.NewMockNavigator().Factory()),
		quick.WithOracle(mocks.NewMockOracle()),
		quick.WithSleeper(clock.NoSleep),
	)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv
}

func authed(method, url, body string) *http.Request {
	r, _ := http.NewRequest(method, url, strings.NewReader(body))
	r.Header.Set("X-API-Key", "test-key")
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	return r
}

func TestServer_HealthIsPublic(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))

	resp2, err := http.Get(ts.URL + "/api/v1/journeys")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

func TestServer_JourneyLifecycle(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.DefaultClient.Do(authed(http.MethodPost, ts.URL+"/api/v1/journeys",
		`{"url":"https://example.com","goal":"Sign up"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var started struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))
	require.NotEmpty(t, started.Data.ID)

	j, err := srv.runner.Wait(testutil.TestContextWithTimeout(t, 5*time.Second), started.Data.ID)
	require.NoError(t, err)
	assert.Equal(t, journey.StatusFinished, j.Status)

	report, err := http.DefaultClient.Do(authed(http.MethodGet,
		ts.URL+"/api/v1/journeys/"+started.Data.ID+"/report?format=summary", ""))
	require.NoError(t, err)
	defer report.Body.Close()
	assert.Equal(t, http.StatusOK, report.StatusCode)
	assert.Contains(t, report.Header.Get("Content-Type"), "text/plain")

	shots, err := http.DefaultClient.Do(authed(http.MethodGet,
		ts.URL+"/api/v1/journeys/"+started.Data.ID+"/screenshots", ""))
	require.NoError(t, err)
	defer shots.Body.Close()
	var list struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(shots.Body).Decode(&list))
	assert.Len(t, list.Data, len(j.Steps))
}
