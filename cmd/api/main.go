// Package main is the entry point for the demo server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/capitalize-ai/agent-chat-demo/internal/config"
	"github.com/capitalize-ai/agent-chat-demo/internal/handler"
	"github.com/capitalize-ai/agent-chat-demo/internal/scenario"
	"github.com/capitalize-ai/agent-chat-demo/internal/service"
	"github.com/capitalize-ai/agent-chat-demo/pkg/logger"
	"github.com/capitalize-ai/agent-chat-demo/pkg/tracing"
)

func main() {
	// A local .env file is optional; real environment variables win.
	envFileErr := godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting demo server")
	if envFileErr != nil {
		log.Debug("no .env file found, using environment variables")
	}

	// Initialize tracing if enabled
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "agent-chat-demo", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	// Load the scenario catalog
	store, err := loadScenarios(cfg.ScenarioFile)
	if err != nil {
		log.Fatal("failed to load scenarios", zap.Error(err), zap.String("file", cfg.ScenarioFile))
	}
	log.Info("scenario catalog loaded", zap.Int("scenarios", store.Len()))

	// Initialize services
	demoSvc := service.NewDemoService(store, service.Config{
		Timing:      cfg.Timing(),
		SessionTTL:  cfg.SessionTTL,
		MaxSessions: cfg.MaxSessions,
	}, log)
	defer demoSvc.Close()
	if cfg.SessionTTL > 0 && cfg.SessionSweepInterval > 0 {
		demoSvc.StartJanitor(ctx, cfg.SessionSweepInterval)
	}

	router := handler.NewRouter(demoSvc, handler.RouterConfig{
		SessionSecret:     cfg.SessionSecret,
		SessionTokenTTL:   cfg.SessionTokenTTL,
		SSEHeartbeat:      cfg.SSEHeartbeat,
		AllowedOrigins:    cfg.AllowedOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	}, log)

	// Create HTTP server. WriteTimeout stays zero by default so SSE and
	// WebSocket connections are not cut off.
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	stop()

	// Ending sessions first closes their streams so Shutdown is not held
	// open by long-lived connections.
	demoSvc.Close()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

func loadScenarios(path string) (*scenario.Store, error) {
	if path == "" {
		return scenario.Default()
	}
	return scenario.LoadFile(path)
}
