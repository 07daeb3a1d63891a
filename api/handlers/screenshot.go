package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/BaSui01/mysteryshopper/agent/artifacts"
	"github.com/BaSui01/mysteryshopper/types"
)

// ScreenshotSource loads stored screenshots. *artifacts.Manager satisfies it.
type ScreenshotSource interface {
	Get(ctx context.Context, id string) (*artifacts.Artifact, []byte, error)
	List(ctx context.Context, journeyID string) ([]*artifacts.Artifact, error)
}

// ScreenshotHandler 截图处理器
type ScreenshotHandler struct {
	source ScreenshotSource
	logger *zap.Logger
}

// NewScreenshotHandler 创建截图处理器
func NewScreenshotHandler(source ScreenshotSource, logger *zap.Logger) *ScreenshotHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScreenshotHandler{
		source: source,
		logger: logger.With(zap.String("component", "screenshot_handler")),
	}
}

// Register mounts the screenshot routes on mux.
func (h *ScreenshotHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/screenshots/{id}", h.HandleGet)
	mux.HandleFunc("GET /api/v1/journeys/{id}/screenshots", h.HandleList)
}

// HandleGet serves one screenshot
// @Summary Get screenshot
// @Tags screenshot
// @Produce png
// @Param id path string true "Screenshot ID"
// @Success 200 {file} binary "PNG image"
// @Failure 404 {object} Response "Screenshot not found"
// @Security ApiKeyAuth
// @Router /v1/screenshots/{id} [get]
func (h *ScreenshotHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	a, data, err := h.source.Get(r.Context(), id)
	if err != nil {
		h.writeErr(w, id, err)
		return
	}

	w.Header().Set("Content-Type", a.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("ETag", `"`+a.Checksum+`"`)
	w.Header().Set("Cache-Control", "private, max-age=86400, immutable")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if match := r.Header.Get("If-None-Match"); match != "" && match == `"`+a.Checksum+`"` {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// HandleList lists the screenshot metadata of a journey
// @Summary List journey screenshots
// @Tags screenshot
// @Produce json
// @Param id path string true "Journey ID"
// @Success 200 {object} Response{data=[]artifacts.Artifact} "Screenshots"
// @Security ApiKeyAuth
// @Router /v1/journeys/{id}/screenshots [get]
func (h *ScreenshotHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.source.List(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	if list == nil {
		list = []*artifacts.Artifact{}
	}
	WriteSuccess(w, list)
}

func (h *ScreenshotHandler) writeErr(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, artifacts.ErrNotFound) {
		WriteError(w, types.NewError(types.ErrNotFound, "screenshot not found: "+id).WithCause(err), h.logger)
		return
	}
	WriteAnyError(w, err, h.logger)
}
