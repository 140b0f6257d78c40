// Package handler exposes the demo service over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/agent-chat-demo/internal/middleware"
	"github.com/capitalize-ai/agent-chat-demo/internal/model"
	"github.com/capitalize-ai/agent-chat-demo/internal/service"
	"github.com/capitalize-ai/agent-chat-demo/pkg/logger"
)

const maxBodyBytes = 4 << 10

// DemoHandler handles session control endpoints.
type DemoHandler struct {
	demoService *service.DemoService
	secret      string
	tokenTTL    time.Duration
	logger      *logger.Logger
}

// NewDemoHandler creates a new demo handler.
func NewDemoHandler(svc *service.DemoService, secret string, tokenTTL time.Duration, log *logger.Logger) *DemoHandler {
	return &DemoHandler{
		demoService: svc,
		secret:      secret,
		tokenTTL:    tokenTTL,
		logger:      log,
	}
}

// Scenarios handles GET /api/v1/scenarios
func (h *DemoHandler) Scenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scenarios": h.demoService.Scenarios(),
	})
}

// Agents handles GET /api/v1/agents
func (h *DemoHandler) Agents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"agents": h.demoService.Agents(),
	})
}

// Create handles POST /api/v1/sessions
func (h *DemoHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.CreateSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ScenarioID != "" {
		if err := middleware.ValidateScenarioID(req.ScenarioID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	id, snap, err := h.demoService.Create(ctx, req.ScenarioID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	token, err := middleware.IssueSessionToken(h.secret, id, h.tokenTTL, time.Now())
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err), zap.String("session_id", id))
		if err := h.demoService.Delete(ctx, id); err != nil {
			h.logger.Warn("failed to delete session without token", zap.Error(err), zap.String("session_id", id))
		}
		writeError(w, http.StatusInternalServerError, "failed to issue session token")
		return
	}

	writeJSON(w, http.StatusCreated, &model.CreateSessionResponse{
		SessionID: id,
		Token:     token,
		Snapshot:  snap,
	})
}

// Get handles GET /api/v1/sessions/:id
func (h *DemoHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionParam(w, r)
	if !ok {
		return
	}

	snap, err := h.demoService.Snapshot(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Delete handles DELETE /api/v1/sessions/:id
func (h *DemoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionParam(w, r)
	if !ok {
		return
	}

	if err := h.demoService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Pause handles POST /api/v1/sessions/:id/pause
func (h *DemoHandler) Pause(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionParam(w, r)
	if !ok {
		return
	}

	snap, err := h.demoService.TogglePause(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Reset handles POST /api/v1/sessions/:id/reset
func (h *DemoHandler) Reset(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionParam(w, r)
	if !ok {
		return
	}

	snap, err := h.demoService.Reset(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Switch handles POST /api/v1/sessions/:id/switch
func (h *DemoHandler) Switch(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionParam(w, r)
	if !ok {
		return
	}

	var req model.SwitchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateScenarioID(req.ScenarioID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switched, snap, err := h.demoService.Switch(r.Context(), id, req.ScenarioID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &model.SwitchResponse{
		Switched: switched,
		Snapshot: snap,
	})
}

// Shuffle handles POST /api/v1/sessions/:id/shuffle
func (h *DemoHandler) Shuffle(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionParam(w, r)
	if !ok {
		return
	}

	snap, err := h.demoService.Shuffle(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Keys handles POST /api/v1/sessions/:id/keys
func (h *DemoHandler) Keys(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionParam(w, r)
	if !ok {
		return
	}

	var req model.KeyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateKey(req.Key); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := h.demoService.HandleKey(r.Context(), id, req.Key)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func sessionParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateSessionID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return id, true
}

// decodeBody decodes a small JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
