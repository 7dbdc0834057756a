package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	registry := prometheus.NewRegistry()

	m, err := New(registry)
	require.NoError(t, err)

	m.CollectStarted()
	m.CollectStarted()
	m.FileMoved()
	m.TimedOut()
	m.MoveFailed()

	require.Equal(t, float64(2), testutil.ToFloat64(m.collectRuns))
	require.Equal(t, float64(1), testutil.ToFloat64(m.filesMoved))
	require.Equal(t, float64(1), testutil.ToFloat64(m.timeouts))
	require.Equal(t, float64(1), testutil.ToFloat64(m.failures))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	// A nil receiver counts nothing and doesn't panic.
	m.CollectStarted()
	m.FileMoved()
	m.TimedOut()
	m.MoveFailed()
}

func TestDoubleRegister(t *testing.T) {
	registry := prometheus.NewRegistry()

	_, err := New(registry)
	require.NoError(t, err)

	_, err = New(registry)
	require.Error(t, err)
}
