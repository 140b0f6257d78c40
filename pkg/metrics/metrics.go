// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// WebSocketConnectionsActive tracks active WebSocket connections.
	WebSocketConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	// SessionsActive tracks live demo sessions.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "demo_sessions_active",
			Help: "Number of live demo sessions",
		},
	)

	// SessionsTotal tracks demo sessions by how they ended.
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demo_sessions_total",
			Help: "Demo sessions created and closed",
		},
		[]string{"event"},
	)

	// ScenarioStartsTotal tracks scenario playthroughs started.
	ScenarioStartsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demo_scenario_starts_total",
			Help: "Scenario playthroughs started",
		},
		[]string{"scenario_id"},
	)

	// MessagesRevealedTotal tracks transcript lines revealed.
	MessagesRevealedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demo_messages_revealed_total",
			Help: "Transcript messages revealed",
		},
		[]string{"sender"},
	)

	// ControlsTotal tracks visitor intents forwarded to engines.
	ControlsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demo_controls_total",
			Help: "Visitor control intents",
		},
		[]string{"action"},
	)

	// DroppedUpdates counts updates discarded because a subscriber buffer was full.
	DroppedUpdates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "demo_dropped_updates_total",
			Help: "Engine updates dropped for slow subscribers",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordControl records a visitor intent.
func RecordControl(action string) {
	ControlsTotal.WithLabelValues(action).Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
