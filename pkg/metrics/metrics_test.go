package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordControl(t *testing.T) {
	before := testutil.ToFloat64(ControlsTotal.WithLabelValues("pause"))
	RecordControl("pause")
	require.Equal(t, before+1, testutil.ToFloat64(ControlsTotal.WithLabelValues("pause")))
}

func TestSSEConnectionGauge(t *testing.T) {
	before := testutil.ToFloat64(SSEConnectionsActive)
	IncrementSSEConnections()
	require.Equal(t, before+1, testutil.ToFloat64(SSEConnectionsActive))
	DecrementSSEConnections()
	require.Equal(t, before, testutil.ToFloat64(SSEConnectionsActive))
}

func TestRecordRequest(t *testing.T) {
	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("GET", "/health", "OK"))
	RecordRequest("GET", "/health", "OK", 0.01)
	require.Equal(t, before+1, testutil.ToFloat64(RequestsTotal.WithLabelValues("GET", "/health", "OK")))
}
