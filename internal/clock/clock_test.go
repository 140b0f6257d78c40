package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManualFiresInDeadlineOrder(t *testing.T) {
	m := NewManual(time.Unix(0, 0))

	var got []string
	m.AfterFunc(30*time.Millisecond, func() { got = append(got, "c") })
	m.AfterFunc(10*time.Millisecond, func() { got = append(got, "a") })
	m.AfterFunc(10*time.Millisecond, func() { got = append(got, "b") })

	m.Advance(20 * time.Millisecond)
	require.Equal(t, []string{"a", "b"}, got)
	require.Equal(t, 1, m.Pending())

	m.Advance(10 * time.Millisecond)
	require.Equal(t, []string{"a", "b", "c"}, got)
	require.Equal(t, time.Unix(0, 0).Add(30*time.Millisecond), m.Now())
}

func TestManualStop(t *testing.T) {
	m := NewManual(time.Unix(0, 0))

	fired := false
	timer := m.AfterFunc(time.Second, func() { fired = true })

	require.True(t, timer.Stop())
	require.False(t, timer.Stop())

	m.Advance(2 * time.Second)
	require.False(t, fired)
}

func TestManualChainedTimers(t *testing.T) {
	m := NewManual(time.Unix(0, 0))

	var at []time.Duration
	start := m.Now()
	m.AfterFunc(time.Second, func() {
		at = append(at, m.Now().Sub(start))
		m.AfterFunc(time.Second, func() {
			at = append(at, m.Now().Sub(start))
		})
	})

	m.Advance(5 * time.Second)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, at)

	_, ok := m.NextDeadline()
	require.False(t, ok)
}
