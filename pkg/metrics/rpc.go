package metrics

import (
	"time"

	"github.com/frostrpc/frost/pkg/frosterr"
)

// RPCMetrics is the nil-safe metrics handle pkg/communicator and
// pkg/dispatch record through. A nil *RPCMetrics
// (returned by New when metrics are disabled) makes every method below a
// no-op, so callers never need an `if metricsEnabled` branch of their own.
type RPCMetrics struct {
	connectionsAccepted    counterVec
	connectionsClosed      counterVec
	connectionsForceClosed counter
	activeConnections      gauge
	requestsDispatched     counterVec
	retryAttempts          counter
	invocationLatency      histogramVec
	threadPoolQueueDepth   gaugeVec
}

// counter/gauge/histogram indirections let this file stay free of a direct
// prometheus import; pkg/metrics/prometheus supplies the concrete
// implementations via New.
type (
	counter      = interface{ Inc() }
	gauge        = interface{ Set(float64); Inc(); Dec() }
	counterVec   = interface{ WithLabel(label string) counter }
	gaugeVec     = interface{ WithLabel(label string) gauge }
	histogramVec = interface{ WithLabel(label string) histogram }
	histogram    = interface{ Observe(float64) }
)

// New builds an RPCMetrics backed by the process registry, or returns nil
// if metrics are disabled — the only constructor components should call.
func New() *RPCMetrics {
	if !IsEnabled() {
		return nil
	}
	return newPrometheusRPCMetrics()
}

// NewRPCMetrics assembles an RPCMetrics from already-constructed
// instruments. pkg/metrics/prometheus calls this from its registered
// constructor once it has built each concrete Prometheus collector; no
// other caller should need it directly.
func NewRPCMetrics(
	connectionsAccepted, connectionsClosed counterVec,
	connectionsForceClosed counter,
	activeConnections gauge,
	requestsDispatched counterVec,
	retryAttempts counter,
	invocationLatency histogramVec,
	threadPoolQueueDepth gaugeVec,
) *RPCMetrics {
	return &RPCMetrics{
		connectionsAccepted:    connectionsAccepted,
		connectionsClosed:      connectionsClosed,
		connectionsForceClosed: connectionsForceClosed,
		activeConnections:      activeConnections,
		requestsDispatched:     requestsDispatched,
		retryAttempts:          retryAttempts,
		invocationLatency:      invocationLatency,
		threadPoolQueueDepth:   threadPoolQueueDepth,
	}
}

// newPrometheusRPCMetrics is supplied by pkg/metrics/prometheus's init(), a
// constructor-registration indirection that avoids pkg/metrics importing
// its own prometheus-backed sibling package.
var newPrometheusRPCMetrics func() *RPCMetrics

// RegisterConstructor installs the Prometheus-backed constructor. Called
// from pkg/metrics/prometheus's init().
func RegisterConstructor(ctor func() *RPCMetrics) {
	newPrometheusRPCMetrics = ctor
}

func (m *RPCMetrics) ConnectionAccepted(kind string) {
	if m == nil {
		return
	}
	m.connectionsAccepted.WithLabel(kind).Inc()
}

func (m *RPCMetrics) ConnectionClosed(reason string) {
	if m == nil {
		return
	}
	m.connectionsClosed.WithLabel(reason).Inc()
}

func (m *RPCMetrics) ConnectionForceClosed() {
	if m == nil {
		return
	}
	m.connectionsForceClosed.Inc()
}

func (m *RPCMetrics) ActiveConnectionOpened() {
	if m == nil {
		return
	}
	m.activeConnections.Inc()
}

func (m *RPCMetrics) ActiveConnectionClosed() {
	if m == nil {
		return
	}
	m.activeConnections.Dec()
}

// RequestDispatched records one completed dispatch by its reply status.
func (m *RPCMetrics) RequestDispatched(status frosterr.ReplyStatus) {
	if m == nil {
		return
	}
	m.requestsDispatched.WithLabel(status.String()).Inc()
}

func (m *RPCMetrics) RetryAttempted() {
	if m == nil {
		return
	}
	m.retryAttempts.Inc()
}

func (m *RPCMetrics) InvocationCompleted(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.invocationLatency.WithLabel(operation).Observe(d.Seconds())
}

func (m *RPCMetrics) ThreadPoolQueueDepth(pool string, depth int) {
	if m == nil {
		return
	}
	m.threadPoolQueueDepth.WithLabel(pool).Set(float64(depth))
}
