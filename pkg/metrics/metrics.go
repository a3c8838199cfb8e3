// Package metrics gates RPC-core instrumentation behind an explicit enable
// switch (MetricsConfig.Enabled), with a zero-overhead-when-disabled
// convention: callers always hold a *RPCMetrics (never nil-check it
// themselves), and every Record/Observe method on a disabled instance is a
// no-op because the instance itself is nil.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu       sync.Mutex
	registry *prometheus.Registry
	enabled  bool
)

// InitRegistry creates the process-wide Prometheus registry metrics are
// collected into. Call once at process startup before any component
// constructs its RPCMetrics handle; calling it more than once replaces the
// registry (used by tests that want an isolated registry per test).
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	registry = prometheus.NewRegistry()
	enabled = true
	return registry
}

// Disable turns instrumentation back off, so New returns nil and every
// component falls back to its zero-overhead no-metrics path.
func Disable() {
	mu.Lock()
	defer mu.Unlock()
	enabled = false
	registry = nil
}

// IsEnabled reports whether InitRegistry has been called since the last
// Disable.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// GetRegistry returns the process-wide registry, or nil if metrics are
// disabled.
func GetRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	return registry
}
