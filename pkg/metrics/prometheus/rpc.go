// Package prometheus supplies the Prometheus-backed implementation of
// pkg/metrics.RPCMetrics, registered into pkg/metrics via init() — breaking
// the import cycle that would otherwise exist between the generic metrics
// package and its concrete backend.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/frostrpc/frost/pkg/metrics"
)

func init() {
	metrics.RegisterConstructor(newRPCMetrics)
}

type counterVecAdapter struct{ v *prometheus.CounterVec }

func (a counterVecAdapter) WithLabel(label string) interface{ Inc() } {
	return a.v.WithLabelValues(label)
}

type gaugeAdapter struct{ g prometheus.Gauge }

func (a gaugeAdapter) Set(v float64) { a.g.Set(v) }
func (a gaugeAdapter) Inc()          { a.g.Inc() }
func (a gaugeAdapter) Dec()          { a.g.Dec() }

type gaugeVecAdapter struct{ v *prometheus.GaugeVec }

func (a gaugeVecAdapter) WithLabel(label string) interface {
	Set(float64)
	Inc()
	Dec()
} {
	return a.v.WithLabelValues(label)
}

type histogramVecAdapter struct{ v *prometheus.HistogramVec }

func (a histogramVecAdapter) WithLabel(label string) interface{ Observe(float64) } {
	return a.v.WithLabelValues(label)
}

type counterAdapter struct{ c prometheus.Counter }

func (a counterAdapter) Inc() { a.c.Inc() }

func newRPCMetrics() *metrics.RPCMetrics {
	reg := metrics.GetRegistry()

	connectionsAccepted := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "frost_connections_accepted_total",
		Help: "Total connections accepted, by transceiver kind.",
	}, []string{"kind"})
	connectionsClosed := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "frost_connections_closed_total",
		Help: "Total connections closed gracefully, by reason.",
	}, []string{"reason"})
	connectionsForceClosed := promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "frost_connections_force_closed_total",
		Help: "Total connections torn down without a graceful close handshake.",
	})
	activeConnections := promauto.With(reg).NewGauge(prometheus.GaugeOpts{
		Name: "frost_connections_active",
		Help: "Connections currently in the Active or Holding state.",
	})
	requestsDispatched := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "frost_requests_dispatched_total",
		Help: "Total requests dispatched, by reply status.",
	}, []string{"status"})
	retryAttempts := promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "frost_invocation_retries_total",
		Help: "Total invocation retry attempts issued by the request handler cache.",
	})
	invocationLatency := promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
		Name:    "frost_invocation_duration_seconds",
		Help:    "Invocation latency from Proxy.Invoke's first send to a completed reply, by operation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	threadPoolQueueDepth := promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
		Name: "frost_thread_pool_active_handlers",
		Help: "Active event handlers in a reactor pool, by pool name.",
	}, []string{"pool"})

	return metrics.NewRPCMetrics(
		counterVecAdapter{connectionsAccepted},
		counterVecAdapter{connectionsClosed},
		counterAdapter{connectionsForceClosed},
		gaugeAdapter{activeConnections},
		counterVecAdapter{requestsDispatched},
		counterAdapter{retryAttempts},
		histogramVecAdapter{invocationLatency},
		gaugeVecAdapter{threadPoolQueueDepth},
	)
}
