package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/BaSui01/mysteryshopper/agent/journey"
	"github.com/BaSui01/mysteryshopper/agent/runner"
)

// =============================================================================
// 📡 Journey Events (websocket)
// =============================================================================

const eventWriteTimeout = 10 * time.Second

// EventType 事件类型
type EventType string

const (
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
)

// JourneyEvent is one websocket message. Progress is set for progress events and
// Snapshot for the final completed event.
type JourneyEvent struct {
	Type     EventType         `json:"type"`
	Progress *journey.Progress `json:"progress,omitempty"`
	Snapshot *runner.Snapshot  `json:"snapshot,omitempty"`
}

// HandleEvents streams journey progress over a websocket
// @Summary Journey events
// @Description Upgrades to a websocket that streams progress events and a final completed event
// @Tags journey
// @Param id path string true "Journey ID"
// @Success 101 {object} JourneyEvent "Switching protocols"
// @Failure 404 {object} Response "Journey not found"
// @Security ApiKeyAuth
// @Router /v1/journeys/{id}/events [get]
func (h *JourneyHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.lookup(w, r)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		// Accept 已写出错误响应
		h.logger.Warn("websocket upgrade failed", zap.String("journey_id", snap.ID), zap.Error(err))
		return
	}
	defer conn.CloseNow()

	// 客户端只读；CloseRead 在对端关闭时取消 ctx
	ctx := conn.CloseRead(r.Context())
	log := h.logger.With(zap.String("journey_id", snap.ID))

	if snap.Journey != nil {
		h.sendCompleted(ctx, conn, snap, log)
		return
	}

	updates, unsubscribe, err := h.service.Subscribe(snap.ID)
	if errors.Is(err, runner.ErrNotRunning) {
		h.finishStream(ctx, conn, snap.ID, log)
		return
	}
	if err != nil {
		log.Error("subscribe failed", zap.Error(err))
		conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer unsubscribe()

	for {
		select {
		case p, open := <-updates:
			if !open {
				h.finishStream(ctx, conn, snap.ID, log)
				return
			}
			if err := writeEvent(ctx, conn, JourneyEvent{Type: EventProgress, Progress: &p}); err != nil {
				log.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// finishStream sends the stored journey once the run has ended.
func (h *JourneyHandler) finishStream(ctx context.Context, conn *websocket.Conn, id string, log *zap.Logger) {
	snap, err := h.service.Get(ctx, id)
	if err != nil {
		log.Warn("journey lookup after completion failed", zap.Error(err))
		conn.Close(websocket.StatusInternalError, "journey lookup failed")
		return
	}
	h.sendCompleted(ctx, conn, snap, log)
}

func (h *JourneyHandler) sendCompleted(ctx context.Context, conn *websocket.Conn, snap runner.Snapshot, log *zap.Logger) {
	if err := writeEvent(ctx, conn, JourneyEvent{Type: EventCompleted, Snapshot: &snap}); err != nil {
		log.Debug("websocket write failed", zap.Error(err))
		return
	}
	conn.Close(websocket.StatusNormalClosure, "journey ended")
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev JourneyEvent) error {
	ctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}
