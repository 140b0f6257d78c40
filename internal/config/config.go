// Package config provides environment configuration for the API server.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/capitalize-ai/agent-chat-demo/internal/playback"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	AllowedOrigins     []string

	// Session settings
	SessionSecret        string
	SessionTokenTTL      time.Duration
	SessionTTL           time.Duration
	SessionSweepInterval time.Duration
	MaxSessions          int

	// Playback pacing
	ScenarioFile        string
	DemoBaseDelay       time.Duration
	DemoInterAgentPause time.Duration
	DemoTrailingPause   time.Duration
	DemoFadeDuration    time.Duration
	SSEHeartbeat        time.Duration

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	defaults := playback.DefaultTiming()

	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 0),
		AllowedOrigins:     getListEnv("ALLOWED_ORIGINS", nil),

		// Sessions
		SessionSecret:        getEnv("SESSION_SECRET", "development-secret-change-in-production"),
		SessionTokenTTL:      getDurationEnv("SESSION_TOKEN_TTL", 2*time.Hour),
		SessionTTL:           getDurationEnv("SESSION_TTL", 15*time.Minute),
		SessionSweepInterval: getDurationEnv("SESSION_SWEEP_INTERVAL", time.Minute),
		MaxSessions:          getIntEnv("MAX_SESSIONS", 1000),

		// Playback
		ScenarioFile:        getEnv("SCENARIO_FILE", ""),
		DemoBaseDelay:       getDurationEnv("DEMO_BASE_DELAY", defaults.BaseDelay),
		DemoInterAgentPause: getDurationEnv("DEMO_INTER_AGENT_PAUSE", defaults.InterAgentPause),
		DemoTrailingPause:   getDurationEnv("DEMO_TRAILING_PAUSE", defaults.TrailingPause),
		DemoFadeDuration:    getDurationEnv("DEMO_FADE_DURATION", defaults.FadeDuration),
		SSEHeartbeat:        getDurationEnv("SSE_HEARTBEAT", 30*time.Second),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// Timing returns the playback pacing described by the configuration.
func (c *Config) Timing() playback.Timing {
	t := playback.DefaultTiming()
	t.BaseDelay = c.DemoBaseDelay
	t.InterAgentPause = c.DemoInterAgentPause
	t.TrailingPause = c.DemoTrailingPause
	t.FadeDuration = c.DemoFadeDuration
	return t
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d >= 0 {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
