package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracerInstallsGlobalProvider(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ctx := context.Background()
	tp, err := InitTracer(ctx, "agent-chat-demo-test", "localhost:4318")
	require.NoError(t, err)
	require.Same(t, tp, otel.GetTracerProvider())

	require.NoError(t, Shutdown(ctx, tp))
}
