package providers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/BaSui01/mysteryshopper/llm"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestMapHTTPError_Table(t *testing.T) {
	tests := []struct {
		status    int
		msg       string
		code      llm.ErrorCode
		retryable bool
	}{
		{http.StatusUnauthorized, "bad key", llm.ErrUnauthorized, false},
		{http.StatusForbidden, "nope", llm.ErrForbidden, false},
		{http.StatusTooManyRequests, "slow", llm.ErrRateLimited, true},
		{http.StatusBadRequest, "Quota exhausted", llm.ErrQuotaExceeded, false},
		{http.StatusBadRequest, "missing field", llm.ErrInvalidRequest, false},
		{http.StatusGatewayTimeout, "timeout", llm.ErrUpstreamTimeout, true},
		{http.StatusBadGateway, "bad gw", llm.ErrUpstreamError, true},
		{529, "overloaded", llm.ErrModelOverloaded, true},
		{http.StatusNotFound, "no model", llm.ErrUpstreamError, false},
	}

	for _, tt := range tests {
		e := MapHTTPError(tt.status, tt.msg, "p")
		assert.Equal(t, tt.code, e.Code, "status %d", tt.status)
		assert.Equal(t, tt.retryable, e.Retryable, "status %d", tt.status)
		assert.Equal(t, tt.status, e.HTTPStatus)
		assert.Equal(t, "p", e.Provider)
	}
}

func TestMapHTTPError_ServerErrorsAlwaysRetryable(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		status := rapid.IntRange(500, 599).Draw(rt, "status")
		e := MapHTTPError(status, "x", "p")
		if !e.Retryable {
			rt.Fatalf("status %d should be retryable", status)
		}
	})
}

func TestReadErrorMessage(t *testing.T) {
	assert.Equal(t, "boom (type: invalid)", ReadErrorMessage(strings.NewReader(`{"error":{"message":"boom","type":"invalid"}}`)))
	assert.Equal(t, "boom (type: RESOURCE_EXHAUSTED)", ReadErrorMessage(strings.NewReader(`{"error":{"message":"boom","status":"RESOURCE_EXHAUSTED"}}`)))
	assert.Equal(t, "plain text", ReadErrorMessage(strings.NewReader("plain text\n")))
}

func TestChooseModel(t *testing.T) {
	assert.Equal(t, "a", ChooseModel("a", "b", "c"))
	assert.Equal(t, "b", ChooseModel("", "b", "c"))
	assert.Equal(t, "c", ChooseModel("", "", "c"))
}
