package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/mysteryshopper/agent/journey"
	"github.com/BaSui01/mysteryshopper/agent/persistence"
	"github.com/BaSui01/mysteryshopper/agent/report"
	"github.com/BaSui01/mysteryshopper/agent/runner"
	"github.com/BaSui01/mysteryshopper/types"
)

// =============================================================================
// 🧭 Journey Handler
// =============================================================================

const (
	defaultListLimit   = 20
	maxListLimit       = 100
	defaultMaxStepsCap = 20
)

// JourneyService runs journeys in the background. *runner.Manager satisfies it.
type JourneyService interface {
	Start(req journey.Request) (string, error)
	Get(ctx context.Context, id string) (runner.Snapshot, error)
	List(ctx context.Context, filter persistence.Filter) ([]runner.Snapshot, error)
	Subscribe(id string) (<-chan journey.Progress, func(), error)
	Cancel(id string) error
}

// ReportCache stores rendered reports of finished journeys. *cache.Manager satisfies it.
type ReportCache interface {
	GetReport(ctx context.Context, journeyID, format string) ([]byte, error)
	SetReport(ctx context.Context, journeyID, format string, body []byte) error
}

// JourneyDefaults fills in omitted request fields.
type JourneyDefaults struct {
	Goal        string
	MaxSteps    int
	MaxStepsCap int
}

// StartJourneyRequest 启动旅程请求
type StartJourneyRequest struct {
	URL      string `json:"url"`
	Goal     string `json:"goal,omitempty"`
	MaxSteps *int   `json:"max_steps,omitempty"`
}

// StartJourneyResponse 启动旅程响应
type StartJourneyResponse struct {
	ID        string         `json:"id"`
	Status    journey.Status `json:"status"`
	StatusURL string         `json:"status_url"`
	EventsURL string         `json:"events_url"`
	ReportURL string         `json:"report_url"`
}

// JourneyHandler 旅程 API 处理器
type JourneyHandler struct {
	service  JourneyService
	defaults JourneyDefaults
	cache    ReportCache
	logger   *zap.Logger

	originPatterns []string
}

// JourneyHandlerOption configures a JourneyHandler.
type JourneyHandlerOption func(*JourneyHandler)

// WithReportCache caches rendered reports.
func WithReportCache(c ReportCache) JourneyHandlerOption {
	return func(h *JourneyHandler) { h.cache = c }
}

// WithOriginPatterns allows cross-origin websocket clients matching the patterns.
func WithOriginPatterns(patterns ...string) JourneyHandlerOption {
	return func(h *JourneyHandler) { h.originPatterns = patterns }
}

// NewJourneyHandler 创建旅程处理器
func NewJourneyHandler(service JourneyService, defaults JourneyDefaults, logger *zap.Logger, opts ...JourneyHandlerOption) *JourneyHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaults.MaxStepsCap <= 0 {
		defaults.MaxStepsCap = defaultMaxStepsCap
	}
	h := &JourneyHandler{
		service:  service,
		defaults: defaults,
		logger:   logger.With(zap.String("component", "journey_handler")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the journey routes on mux.
func (h *JourneyHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/journeys", h.HandleStart)
	mux.HandleFunc("GET /api/v1/journeys", h.HandleList)
	mux.HandleFunc("GET /api/v1/journeys/{id}", h.HandleGet)
	mux.HandleFunc("DELETE /api/v1/journeys/{id}", h.HandleCancel)
	mux.HandleFunc("GET /api/v1/journeys/{id}/summary", h.HandleSummary)
	mux.HandleFunc("GET /api/v1/journeys/{id}/report", h.HandleReport)
	mux.HandleFunc("GET /api/v1/journeys/{id}/events", h.HandleEvents)
}

// =============================================================================
// HTTP Handlers
// =============================================================================

// HandleStart starts a journey in the background
// @Summary Start journey
// @Description Start a mystery-shopper journey; progress is available over the events websocket
// @Tags journey
// @Accept json
// @Produce json
// @Param request body StartJourneyRequest true "Journey request"
// @Success 202 {object} Response{data=StartJourneyResponse} "Journey accepted"
// @Failure 400 {object} Response "Invalid request"
// @Failure 429 {object} Response "All journey slots are busy"
// @Security ApiKeyAuth
// @Router /v1/journeys [post]
func (h *JourneyHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var body StartJourneyRequest
	if err := DecodeJSONBody(w, r, &body, h.logger); err != nil {
		return
	}

	req, err := h.buildRequest(body)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}

	id, err := h.service.Start(req)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}

	h.logger.Info("journey accepted",
		zap.String("journey_id", id),
		zap.String("url", req.StartURL),
		zap.Int("max_steps", req.MaxSteps),
	)

	base := "/api/v1/journeys/" + id
	w.Header().Set("Location", base)
	WriteCreated(w, http.StatusAccepted, StartJourneyResponse{
		ID:        id,
		Status:    journey.StatusRunning,
		StatusURL: base,
		EventsURL: base + "/events",
		ReportURL: base + "/report",
	})
}

// HandleList lists journeys
// @Summary List journeys
// @Description Running journeys first, then stored journeys newest first
// @Tags journey
// @Produce json
// @Param status query string false "running, finished or aborted"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} Response{data=[]runner.Snapshot} "Journey list"
// @Security ApiKeyAuth
// @Router /v1/journeys [get]
func (h *JourneyHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}

	snaps, err := h.service.List(r.Context(), filter)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}

	// 列表不携带完整步骤，详情请查询单个旅程
	for i := range snaps {
		snaps[i].Journey = nil
	}
	WriteSuccess(w, snaps)
}

// HandleGet returns one journey
// @Summary Get journey
// @Tags journey
// @Produce json
// @Param id path string true "Journey ID"
// @Success 200 {object} Response{data=runner.Snapshot} "Journey"
// @Failure 404 {object} Response "Journey not found"
// @Security ApiKeyAuth
// @Router /v1/journeys/{id} [get]
func (h *JourneyHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.lookup(w, r)
	if !ok {
		return
	}
	WriteSuccess(w, snap)
}

// HandleCancel cancels a running journey
// @Summary Cancel journey
// @Description The journey ends finished with reason canceled and keeps its steps
// @Tags journey
// @Produce json
// @Param id path string true "Journey ID"
// @Success 202 {object} Response "Cancel requested"
// @Failure 404 {object} Response "Journey not found"
// @Failure 409 {object} Response "Journey already ended"
// @Security ApiKeyAuth
// @Router /v1/journeys/{id} [delete]
func (h *JourneyHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if err := h.service.Cancel(snap.ID); err != nil {
		if errors.Is(err, runner.ErrNotRunning) {
			WriteErrorMessage(w, http.StatusConflict, types.ErrInvalidRequest, "journey already ended", h.logger)
			return
		}
		WriteAnyError(w, err, h.logger)
		return
	}

	WriteCreated(w, http.StatusAccepted, map[string]string{
		"id":     snap.ID,
		"status": "canceling",
	})
}

// HandleSummary returns report statistics
// @Summary Journey summary
// @Tags report
// @Produce json
// @Param id path string true "Journey ID"
// @Success 200 {object} Response{data=report.Summary} "Summary"
// @Failure 409 {object} Response "Journey still running"
// @Security ApiKeyAuth
// @Router /v1/journeys/{id}/summary [get]
func (h *JourneyHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	j, ok := h.finished(w, r)
	if !ok {
		return
	}
	WriteSuccess(w, report.Summarize(j))
}

// HandleReport renders the report of a finished journey
// @Summary Journey report
// @Tags report
// @Produce json,plain
// @Param id path string true "Journey ID"
// @Param format query string false "json, yaml, summary or dot"
// @Success 200 {string} string "Rendered report"
// @Failure 400 {object} Response "Unsupported format"
// @Failure 409 {object} Response "Journey still running"
// @Security ApiKeyAuth
// @Router /v1/journeys/{id}/report [get]
func (h *JourneyHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		WriteError(w, types.NewError(types.ErrInvalidRequest, err.Error()).WithHTTPStatus(http.StatusBadRequest), h.logger)
		return
	}

	j, ok := h.finished(w, r)
	if !ok {
		return
	}

	body, hit := h.cachedReport(r.Context(), j.ID, format)
	if !hit {
		body, err = report.Render(j, format)
		if err != nil {
			WriteAnyError(w, err, h.logger)
			return
		}
		h.storeReport(r.Context(), j.ID, format, body)
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if r.URL.Query().Get("download") == "1" {
		w.Header().Set("Content-Disposition",
			`attachment; filename="journey-`+j.ID+"."+format.Extension()+`"`)
	}
	if h.cache != nil {
		w.Header().Set("X-Cache", cacheStatus(hit))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

func (h *JourneyHandler) buildRequest(body StartJourneyRequest) (journey.Request, error) {
	req := journey.Request{
		StartURL: strings.TrimSpace(body.URL),
		Goal:     strings.TrimSpace(body.Goal),
		MaxSteps: h.defaults.MaxSteps,
	}
	if req.Goal == "" {
		req.Goal = h.defaults.Goal
	}
	if body.MaxSteps != nil {
		req.MaxSteps = *body.MaxSteps
	}
	if req.MaxSteps > h.defaults.MaxStepsCap {
		return req, types.NewError(types.ErrInvalidRequest,
			"max_steps must be at most "+strconv.Itoa(h.defaults.MaxStepsCap))
	}
	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

func (h *JourneyHandler) lookup(w http.ResponseWriter, r *http.Request) (runner.Snapshot, bool) {
	id := r.PathValue("id")
	if id == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "journey ID is required", h.logger)
		return runner.Snapshot{}, false
	}

	snap, err := h.service.Get(r.Context(), id)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return runner.Snapshot{}, false
	}
	return snap, true
}

func (h *JourneyHandler) finished(w http.ResponseWriter, r *http.Request) (*journey.Journey, bool) {
	snap, ok := h.lookup(w, r)
	if !ok {
		return nil, false
	}
	if snap.Journey == nil {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "journey is still running").
			WithHTTPStatus(http.StatusConflict).
			WithRetryable(true), h.logger)
		return nil, false
	}
	return snap.Journey, true
}

func (h *JourneyHandler) cachedReport(ctx context.Context, id string, format report.Format) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	body, err := h.cache.GetReport(ctx, id, string(format))
	if err != nil {
		return nil, false
	}
	return body, true
}

func (h *JourneyHandler) storeReport(ctx context.Context, id string, format report.Format, body []byte) {
	if h.cache == nil {
		return
	}
	if err := h.cache.SetReport(ctx, id, string(format), body); err != nil {
		h.logger.Warn("failed to cache report",
			zap.String("journey_id", id),
			zap.String("format", string(format)),
			zap.Error(err),
		)
	}
}

func cacheStatus(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}

func parseFilter(r *http.Request) (persistence.Filter, error) {
	var filter persistence.Filter

	switch status := journey.Status(r.URL.Query().Get("status")); status {
	case "", journey.StatusRunning, journey.StatusFinished, journey.StatusAborted:
		filter.Status = status
	default:
		return filter, types.NewError(types.ErrInvalidRequest, "invalid status: "+string(status)).
			WithHTTPStatus(http.StatusBadRequest)
	}

	limit, err := QueryInt(r, "limit", defaultListLimit)
	if err != nil {
		return filter, err
	}
	if limit == 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	filter.Limit = limit

	if filter.Offset, err = QueryInt(r, "offset", 0); err != nil {
		return filter, err
	}
	return filter, nil
}
