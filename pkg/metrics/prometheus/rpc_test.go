package prometheus_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frostrpc/frost/pkg/frosterr"
	"github.com/frostrpc/frost/pkg/metrics"
	_ "github.com/frostrpc/frost/pkg/metrics/prometheus"
)

func TestNewBuildsRegisteredCollectorsOnceEnabled(t *testing.T) {
	metrics.InitRegistry()
	defer metrics.Disable()

	m := metrics.New()
	require.NotNil(t, m)

	assert.NotPanics(t, func() {
		m.ConnectionAccepted("tcp")
		m.ConnectionClosed("idle")
		m.ConnectionForceClosed()
		m.ActiveConnectionOpened()
		m.ActiveConnectionClosed()
		m.RequestDispatched(frosterr.StatusOK)
		m.RetryAttempted()
		m.InvocationCompleted("echo", 5*time.Millisecond)
		m.ThreadPoolQueueDepth("server", 2)
	})
}

func TestNewReturnsFreshCollectorsPerRegistry(t *testing.T) {
	metrics.InitRegistry()
	a := metrics.New()
	metrics.InitRegistry()
	b := metrics.New()
	metrics.Disable()

	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.NotPanics(t, func() { a.RetryAttempted(); b.RetryAttempted() })
}
