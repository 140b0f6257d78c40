package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/agent-chat-demo/internal/middleware"
	"github.com/capitalize-ai/agent-chat-demo/internal/service"
	"github.com/capitalize-ai/agent-chat-demo/pkg/logger"
)

// RouterConfig carries what NewRouter needs beyond the service itself.
type RouterConfig struct {
	SessionSecret     string
	SessionTokenTTL   time.Duration
	SSEHeartbeat      time.Duration
	AllowedOrigins    []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter builds the HTTP surface of the demo.
func NewRouter(svc *service.DemoService, cfg RouterConfig, log *logger.Logger) http.Handler {
	healthHandler := NewHealthHandler(svc)
	demoHandler := NewDemoHandler(svc, cfg.SessionSecret, cfg.SessionTokenTTL, log)
	streamHandler := NewStreamHandler(svc, cfg.SSEHeartbeat, log)
	socketHandler := NewSocketHandler(svc, cfg.AllowedOrigins, log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/scenarios", demoHandler.Scenarios)
		r.Get("/agents", demoHandler.Agents)

		r.Route("/sessions", func(r chi.Router) {
			r.With(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow)).
				Post("/", demoHandler.Create)

			// Session routes require the token issued at creation
			r.Route("/{id}", func(r chi.Router) {
				r.Use(middleware.SessionAuth(cfg.SessionSecret))

				r.Get("/", demoHandler.Get)
				r.Delete("/", demoHandler.Delete)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
					r.Post("/pause", demoHandler.Pause)
					r.Post("/reset", demoHandler.Reset)
					r.Post("/switch", demoHandler.Switch)
					r.Post("/shuffle", demoHandler.Shuffle)
					r.Post("/keys", demoHandler.Keys)
				})

				// Streaming
				r.Get("/stream", streamHandler.Stream)
				r.Get("/ws", socketHandler.ServeHTTP)
			})
		})
	})

	return r
}
