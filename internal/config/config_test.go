package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/agent-chat-demo/internal/playback"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "MAX_SESSIONS", "DEMO_BASE_DELAY", "ALLOWED_ORIGINS", "TRACING_ENABLED"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	require.Equal(t, "8080", cfg.ServerPort)
	require.Equal(t, 1000, cfg.MaxSessions)
	require.Nil(t, cfg.AllowedOrigins)
	require.False(t, cfg.TracingEnabled)
	require.Equal(t, playback.DefaultTiming(), cfg.Timing())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_SESSIONS", "5")
	t.Setenv("DEMO_BASE_DELAY", "10ms")
	t.Setenv("DEMO_FADE_DURATION", "0s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("TRACING_ENABLED", "true")

	cfg := Load()
	require.Equal(t, "9090", cfg.ServerPort)
	require.Equal(t, 5, cfg.MaxSessions)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	require.True(t, cfg.TracingEnabled)

	timing := cfg.Timing()
	require.Equal(t, 10*time.Millisecond, timing.BaseDelay)
	require.Zero(t, timing.FadeDuration)
	require.Equal(t, playback.DefaultTiming().JitterWidth, timing.JitterWidth)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("MAX_SESSIONS", "many")
	t.Setenv("SESSION_TTL", "-5m")
	t.Setenv("TRACING_ENABLED", "sometimes")

	cfg := Load()
	require.Equal(t, 1000, cfg.MaxSessions)
	require.Equal(t, 15*time.Minute, cfg.SessionTTL)
	require.False(t, cfg.TracingEnabled)
}
