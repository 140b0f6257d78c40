package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/capitalize-ai/agent-chat-demo/internal/service"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, service.ErrUnknownKey):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrTooManySessions):
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusServiceUnavailable, "too many active sessions")
	case errors.Is(err, service.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "service shutting down")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
