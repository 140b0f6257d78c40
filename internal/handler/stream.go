package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/agent-chat-demo/internal/middleware"
	"github.com/capitalize-ai/agent-chat-demo/internal/model"
	"github.com/capitalize-ai/agent-chat-demo/internal/playback"
	"github.com/capitalize-ai/agent-chat-demo/internal/service"
	"github.com/capitalize-ai/agent-chat-demo/pkg/logger"
	"github.com/capitalize-ai/agent-chat-demo/pkg/metrics"
)

// StreamHandler handles SSE streaming endpoints.
type StreamHandler struct {
	demoService *service.DemoService
	heartbeat   time.Duration
	logger      *logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(svc *service.DemoService, heartbeat time.Duration, log *logger.Logger) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &StreamHandler{
		demoService: svc,
		heartbeat:   heartbeat,
		logger:      log,
	}
}

// Stream handles GET /api/v1/sessions/:id/stream
// It sends the current snapshot, then one event per engine update, named
// after the update type.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := sessionParam(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Subscribe before snapshotting so no update between the two is lost.
	sub, err := h.demoService.Subscribe(ctx, id, playback.DefaultSubscriptionBuffer)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer h.demoService.Unsubscribe(id, sub)
	log := h.logger.WithSession(middleware.GetCorrelationID(ctx), id)

	snap, err := h.demoService.Snapshot(ctx, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	// Track active connection
	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	sendSSEEvent(w, flusher, "connected", map[string]string{
		"session_id": id,
	})
	sendSSEEvent(w, flusher, "snapshot", snap)

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("SSE client disconnected")
			return

		case u, ok := <-sub.C:
			if !ok {
				sendSSEEvent(w, flusher, "error", &model.ErrorEvent{
					Code:    "session_closed",
					Message: "session ended",
				})
				return
			}
			if err := sendSSEEvent(w, flusher, string(u.Type), u); err != nil {
				log.Warn("failed to send SSE event", zap.Error(err))
				return
			}

		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", &model.HeartbeatEvent{
				Timestamp: time.Now(),
			})
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
