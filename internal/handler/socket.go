package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/capitalize-ai/agent-chat-demo/internal/middleware"
	"github.com/capitalize-ai/agent-chat-demo/internal/model"
	"github.com/capitalize-ai/agent-chat-demo/internal/playback"
	"github.com/capitalize-ai/agent-chat-demo/internal/service"
	"github.com/capitalize-ai/agent-chat-demo/pkg/logger"
	"github.com/capitalize-ai/agent-chat-demo/pkg/metrics"
)

// socketMessage is the envelope for both directions of the socket.
// Clients send "key" and "ping"; the server sends "snapshot", "update",
// "pong" and "error".
type socketMessage struct {
	Type     string          `json:"type"`
	Key      string          `json:"key,omitempty"`
	Snapshot *model.Snapshot `json:"snapshot,omitempty"`
	Update   *model.Update   `json:"update,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// SocketHandler serves the widget's bidirectional channel: engine updates
// out, keyboard shortcuts in.
type SocketHandler struct {
	demoService    *service.DemoService
	originPatterns []string
	logger         *logger.Logger
}

// NewSocketHandler creates a new socket handler. allowedOrigins are CORS
// style origins; an empty list accepts any origin.
func NewSocketHandler(svc *service.DemoService, allowedOrigins []string, log *logger.Logger) *SocketHandler {
	return &SocketHandler{
		demoService:    svc,
		originPatterns: originPatterns(allowedOrigins),
		logger:         log,
	}
}

// ServeHTTP handles GET /api/v1/sessions/:id/ws
func (h *SocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionParam(w, r)
	if !ok {
		return
	}

	sub, err := h.demoService.Subscribe(r.Context(), id, playback.DefaultSubscriptionBuffer)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer h.demoService.Unsubscribe(id, sub)
	log := h.logger.WithSession(middleware.GetCorrelationID(r.Context()), id)

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		log.Warn("failed to accept websocket", zap.Error(err))
		return
	}
	defer ws.Close(websocket.StatusNormalClosure, "session ended")

	metrics.WebSocketConnectionsActive.Inc()
	defer metrics.WebSocketConnectionsActive.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	snap, err := h.demoService.Snapshot(ctx, id)
	if err != nil {
		ws.Close(websocket.StatusGoingAway, "session not found")
		return
	}
	if err := wsjson.Write(ctx, ws, &socketMessage{Type: "snapshot", Snapshot: &snap}); err != nil {
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		defer cancel()
		h.inputLoop(ctx, ws, id, log)
	}()

	go func() {
		defer wg.Done()
		defer cancel()
		h.outputLoop(ctx, ws, sub)
	}()

	wg.Wait()
	log.Debug("websocket session ended")
}

func (h *SocketHandler) inputLoop(ctx context.Context, ws *websocket.Conn, id string, log *logger.Logger) {
	for {
		var msg socketMessage
		if err := wsjson.Read(ctx, ws, &msg); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				log.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case "key":
			// The resulting state reaches the client through outputLoop.
			if _, err := h.demoService.HandleKey(ctx, id, msg.Key); err != nil {
				if errors.Is(err, service.ErrSessionNotFound) {
					return
				}
				if err := wsjson.Write(ctx, ws, &socketMessage{Type: "error", Error: err.Error()}); err != nil {
					return
				}
			}
		case "ping":
			if err := wsjson.Write(ctx, ws, &socketMessage{Type: "pong"}); err != nil {
				return
			}
		default:
			if err := wsjson.Write(ctx, ws, &socketMessage{Type: "error", Error: "unknown message type"}); err != nil {
				return
			}
		}
	}
}

func (h *SocketHandler) outputLoop(ctx context.Context, ws *websocket.Conn, sub *playback.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-sub.C:
			if !ok {
				ws.Close(websocket.StatusGoingAway, "session ended")
				return
			}
			if err := wsjson.Write(ctx, ws, &socketMessage{Type: "update", Update: &u}); err != nil {
				return
			}
		}
	}
}

// originPatterns turns origins such as "https://demo.example" into the host
// patterns websocket.Accept matches against.
func originPatterns(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, o)
	}
	return patterns
}
