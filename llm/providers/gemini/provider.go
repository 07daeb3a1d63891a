package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/BaSui01/mysteryshopper/llm"
	"github.com/BaSui01/mysteryshopper/llm/providers"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-2.5-flash-lite"
)

// GeminiProvider 实现 Google Gemini 的视觉 Provider
// Gemini API 特点：
// 1. 使用 x-goog-api-key 请求头认证
// 2. 图片以 inlineData（base64）随提示词一起发送
// 3. responseMimeType=application/json 约束输出为 JSON
type GeminiProvider struct {
	cfg    providers.Config
	client *http.Client
	logger *zap.Logger
}

// NewGeminiProvider 创建 Gemini Provider
func NewGeminiProvider(cfg providers.Config, logger *zap.Logger) *GeminiProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}

	return &GeminiProvider{
		cfg:    cfg,
		client: providers.NewHTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("provider", "gemini")),
	}
}

func (p *GeminiProvider) Name() string { return "gemini" }

// Gemini 消息结构
type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64 encoded
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature,omitempty"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiPromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

type geminiResponse struct {
	Candidates     []geminiCandidate     `json:"candidates"`
	UsageMetadata  *geminiUsageMetadata  `json:"usageMetadata,omitempty"`
	PromptFeedback *geminiPromptFeedback `json:"promptFeedback,omitempty"`
	ModelVersion   string                `json:"modelVersion,omitempty"`
}

func (p *GeminiProvider) buildHeaders(req *http.Request) {
	// Gemini 使用 x-goog-api-key 认证
	req.Header.Set("x-goog-api-key", p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
}

func buildGeminiRequest(req *llm.VisionRequest) geminiRequest {
	mime := req.MimeType
	if mime == "" {
		mime = "image/png"
	}

	// 图片在前、提示词在后
	parts := make([]geminiPart, 0, 2)
	if len(req.Image) > 0 {
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: mime,
			Data:     base64.StdEncoding.EncodeToString(req.Image),
		}})
	}
	parts = append(parts, geminiPart{Text: req.Prompt})

	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
	}
	if req.Temperature > 0 || req.MaxTokens > 0 || req.JSONOutput {
		body.GenerationConfig = &geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		}
		if req.JSONOutput {
			body.GenerationConfig.ResponseMimeType = "application/json"
		}
	}
	return body
}

// GenerateVision 调用 generateContent 接口
func (p *GeminiProvider) GenerateVision(ctx context.Context, req *llm.VisionRequest) (*llm.VisionResponse, error) {
	if p.cfg.APIKey == "" {
		return nil, &llm.Error{
			Code:       llm.ErrProviderUnavailable,
			Message:    "api key not configured",
			HTTPStatus: http.StatusUnauthorized,
			Provider:   p.Name(),
		}
	}

	payload, err := json.Marshal(buildGeminiRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	model := providers.ChooseModel(req.Model, p.cfg.Model, defaultModel)
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", strings.TrimRight(p.cfg.BaseURL, "/"), model)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, providers.TransportError(err, p.Name())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := providers.ReadErrorMessage(resp.Body)
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	var geminiResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return nil, &llm.Error{
			Code:       llm.ErrUpstreamError,
			Message:    err.Error(),
			HTTPStatus: http.StatusBadGateway,
			Retryable:  true,
			Provider:   p.Name(),
		}
	}

	out, err := toVisionResponse(geminiResp, model)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("gemini generation completed",
		zap.String("model", out.Model),
		zap.Int("total_tokens", out.Usage.TotalTokens))
	return out, nil
}

func toVisionResponse(gr geminiResponse, model string) (*llm.VisionResponse, error) {
	if len(gr.Candidates) == 0 {
		msg := "no candidates returned"
		if gr.PromptFeedback != nil && gr.PromptFeedback.BlockReason != "" {
			return nil, &llm.Error{
				Code:       llm.ErrContentFiltered,
				Message:    "prompt blocked: " + gr.PromptFeedback.BlockReason,
				HTTPStatus: http.StatusBadRequest,
				Provider:   "gemini",
			}
		}
		return nil, &llm.Error{
			Code:       llm.ErrEmptyResponse,
			Message:    msg,
			HTTPStatus: http.StatusBadGateway,
			Retryable:  true,
			Provider:   "gemini",
		}
	}

	cand := gr.Candidates[0]
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		sb.WriteString(part.Text)
	}

	out := &llm.VisionResponse{
		Text:         sb.String(),
		Model:        model,
		FinishReason: cand.FinishReason,
	}
	if gr.ModelVersion != "" {
		out.Model = gr.ModelVersion
	}
	if gr.UsageMetadata != nil {
		out.Usage = llm.Usage{
			PromptTokens:     gr.UsageMetadata.PromptTokenCount,
			CompletionTokens: gr.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      gr.UsageMetadata.TotalTokenCount,
		}
	}
	return out, nil
}
