package manager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCollectorCollectDoesNotPanicBeforeBootstrap(t *testing.T) {
	mgr := newTestManager(t)
	c := NewMetricsCollector(mgr)
	assert.NotPanics(t, func() { c.collect() })
}

func TestMetricsCollectorCollectAfterBootstrap(t *testing.T) {
	mgr := newTestManager(t)
	require.NoError(t, mgr.Bootstrap())
	require.Eventually(t, func() bool { return mgr.IsLeader() }, 5*time.Second, 20*time.Millisecond)

	c := NewMetricsCollector(mgr)
	assert.NotPanics(t, func() { c.collect() })
}

func TestMetricsCollectorStartStop(t *testing.T) {
	mgr := newTestManager(t)
	c := NewMetricsCollector(mgr)
	c.Start()
	assert.NotPanics(t, func() { c.Stop() })
}
