package lambdatransport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/BaSui01/mysteryshopper/agent/journey"
	"github.com/BaSui01/mysteryshopper/agent/report"
	"github.com/BaSui01/mysteryshopper/types"
)

// JourneyRunner runs one journey to completion.
type JourneyRunner interface {
	Run(ctx context.Context, req journey.Request, observer journey.Observer) (*journey.Journey, error)
}

// Defaults fill in request fields the caller leaves out.
type Defaults struct {
	Goal        string
	MaxSteps    int
	MaxStepsCap int
}

// RunRequest is the event body.
type RunRequest struct {
	URL      string `json:"url"`
	Goal     string `json:"goal,omitempty"`
	MaxSteps *int   `json:"max_steps,omitempty"`
	Format   string `json:"format,omitempty"`
}

// Handler answers API Gateway HTTP events by running a journey synchronously
// and returning its report.
type Handler struct {
	runner   JourneyRunner
	defaults Defaults
	logger   *zap.Logger
}

func NewHandler(runner JourneyRunner, defaults Defaults, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaults.MaxStepsCap <= 0 {
		defaults.MaxStepsCap = 20
	}
	return &Handler{
		runner:   runner,
		defaults: defaults,
		logger:   logger.With(zap.String("component", "lambda")),
	}
}

// Run handles one invocation. Client errors are reported in the response,
// never as a Lambda error.
func (h *Handler) Run(ctx context.Context, ev events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	body, err := readBody(ev)
	if err != nil {
		return errorResp(http.StatusBadRequest, types.ErrInvalidRequest, "invalid body"), nil
	}

	var in RunRequest
	if err := json.Unmarshal(body, &in); err != nil {
		return errorResp(http.StatusBadRequest, types.ErrInvalidRequest, "invalid json: "+err.Error()), nil
	}
	// query 参数优先于 body
	if f := ev.QueryStringParameters["format"]; f != "" {
		in.Format = f
	}

	format, err := report.ParseFormat(in.Format)
	if err != nil {
		return errorResp(http.StatusBadRequest, types.ErrInvalidRequest, err.Error()), nil
	}
	req, err := h.buildRequest(in)
	if err != nil {
		return fromError(err), nil
	}

	start := time.Now()
	j, err := h.runner.Run(ctx, req, nil)
	if err != nil {
		h.logger.Error("journey failed", zap.String("url", req.StartURL), zap.Error(err))
		return fromError(err), nil
	}
	h.logger.Info("journey finished",
		zap.String("journey_id", j.ID),
		zap.String("status", string(j.Status)),
		zap.Int("steps", len(j.Steps)),
		zap.Duration("took", time.Since(start)),
	)

	out, err := report.Render(j, format)
	if err != nil {
		return fromError(err), nil
	}
	return events.APIGatewayV2HTTPResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"content-type":       format.ContentType(),
			"x-journey-id":       j.ID,
			"x-journey-status":   string(j.Status),
			"x-journey-finished": string(j.FinishReason),
		},
		Body: string(out),
	}, nil
}

func (h *Handler) buildRequest(in RunRequest) (journey.Request, error) {
	req := journey.Request{
		StartURL: strings.TrimSpace(in.URL),
		Goal:     strings.TrimSpace(in.Goal),
		MaxSteps: h.defaults.MaxSteps,
	}
	if req.Goal == "" {
		req.Goal = h.defaults.Goal
	}
	if in.MaxSteps != nil {
		req.MaxSteps = *in.MaxSteps
	}
	if req.MaxSteps > h.defaults.MaxStepsCap {
		return req, types.NewError(types.ErrInvalidRequest,
			"max_steps must be at most "+strconv.Itoa(h.defaults.MaxStepsCap))
	}
	return req, req.Validate()
}

func readBody(ev events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if ev.IsBase64Encoded {
		return base64.StdEncoding.DecodeString(ev.Body)
	}
	return []byte(ev.Body), nil
}

type errorBody struct {
	Error struct {
		Code    types.ErrorCode `json:"code"`
		Message string          `json:"message"`
	} `json:"error"`
}

func errorResp(status int, code types.ErrorCode, message string) events.APIGatewayV2HTTPResponse {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	b, _ := json.Marshal(body)
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    map[string]string{"content-type": "application/json"},
		Body:       string(b),
	}
}

// fromError hides the details of anything that is not a client error.
func fromError(err error) events.APIGatewayV2HTTPResponse {
	if e, ok := types.AsError(err); ok && e.Code == types.ErrInvalidRequest {
		return errorResp(http.StatusBadRequest, e.Code, e.Message)
	}
	return errorResp(http.StatusInternalServerError, types.ErrInternalError, "internal server error")
}
