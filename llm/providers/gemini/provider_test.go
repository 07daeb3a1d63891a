package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/BaSui01/mysteryshopper/llm"
	"github.com/BaSui01/mysteryshopper/llm/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGeminiProvider_Name(t *testing.T) {
	provider := NewGeminiProvider(providers.Config{}, zap.NewNop())
	assert.Equal(t, "gemini", provider.Name())
}

func TestGeminiProvider_DefaultBaseURL(t *testing.T) {
	provider := NewGeminiProvider(providers.Config{APIKey: "k"}, nil)
	assert.Equal(t, defaultBaseURL, provider.cfg.BaseURL)
}

func TestGeminiProvider_GenerateVision(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}

	var gotPath, gotKey string
	var gotBody geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates":[{"content":{"role":"model","parts":[{"text":"{\"action\":"},{"text":"\"finish\"}"}]},"finishReason":"STOP"}],
			"usageMetadata":{"promptTokenCount":10,"candidatesTokenCount":5,"totalTokenCount":15}
		}`))
	}))
	defer srv.Close()

	provider := NewGeminiProvider(providers.Config{APIKey: "secret", BaseURL: srv.URL, Model: "gemini-test"}, zap.NewNop())
	resp, err := provider.GenerateVision(context.Background(), &llm.VisionRequest{
		Prompt:      "decide",
		Image:       png,
		JSONOutput:  true,
		Temperature: 0.2,
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1beta/models/gemini-test:generateContent", gotPath)
	assert.Equal(t, "secret", gotKey)
	require.Len(t, gotBody.Contents, 1)
	require.Len(t, gotBody.Contents[0].Parts, 2)
	assert.Equal(t, "image/png", gotBody.Contents[0].Parts[0].InlineData.MimeType)
	assert.Equal(t, base64.StdEncoding.EncodeToString(png), gotBody.Contents[0].Parts[0].InlineData.Data)
	assert.Equal(t, "decide", gotBody.Contents[0].Parts[1].Text)
	require.NotNil(t, gotBody.GenerationConfig)
	assert.Equal(t, "application/json", gotBody.GenerationConfig.ResponseMimeType)

	assert.Equal(t, `{"action":"finish"}`, resp.Text)
	assert.Equal(t, "STOP", resp.FinishReason)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestGeminiProvider_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		code      llm.ErrorCode
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, llm.ErrRateLimited, true},
		{"unauthorized", http.StatusUnauthorized, llm.ErrUnauthorized, false},
		{"server error", http.StatusInternalServerError, llm.ErrUpstreamError, true},
		{"bad request", http.StatusBadRequest, llm.ErrInvalidRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"code":1,"message":"boom","status":"X"}}`))
			}))
			defer srv.Close()

			provider := NewGeminiProvider(providers.Config{APIKey: "k", BaseURL: srv.URL}, zap.NewNop())
			_, err := provider.GenerateVision(context.Background(), &llm.VisionRequest{Prompt: "p"})
			require.Error(t, err)

			var llmErr *llm.Error
			require.ErrorAs(t, err, &llmErr)
			assert.Equal(t, tt.code, llmErr.Code)
			assert.Equal(t, tt.retryable, llmErr.Retryable)
			assert.Equal(t, "gemini", llmErr.Provider)
			assert.Contains(t, llmErr.Message, "boom")
		})
	}
}

func TestGeminiProvider_MissingAPIKey(t *testing.T) {
	provider := NewGeminiProvider(providers.Config{}, zap.NewNop())
	_, err := provider.GenerateVision(context.Background(), &llm.VisionRequest{Prompt: "p"})

	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrProviderUnavailable, llmErr.Code)
}

func TestGeminiProvider_EmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer srv.Close()

	provider := NewGeminiProvider(providers.Config{APIKey: "k", BaseURL: srv.URL}, zap.NewNop())
	_, err := provider.GenerateVision(context.Background(), &llm.VisionRequest{Prompt: "p"})

	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrContentFiltered, llmErr.Code)
	assert.False(t, llmErr.Retryable)
}

func TestGeminiProvider_Integration(t *testing.T) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("GEMINI_API_KEY not set, skipping integration test")
	}

	provider := NewGeminiProvider(providers.Config{
		APIKey:  apiKey,
		Timeout: 30 * time.Second,
	}, zap.NewNop())

	resp, err := provider.GenerateVision(context.Background(), &llm.VisionRequest{
		Prompt:     `Return {"ok": true} as JSON.`,
		JSONOutput: true,
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "ok")
}
