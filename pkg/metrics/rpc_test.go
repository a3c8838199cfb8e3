package metrics

import "testing"

func TestNewReturnsNilWhenDisabled(t *testing.T) {
	Disable()
	if m := New(); m != nil {
		t.Fatalf("expected nil RPCMetrics when disabled, got %v", m)
	}
}

func TestNilRPCMetricsMethodsAreNoops(t *testing.T) {
	var m *RPCMetrics
	// None of these should panic on a nil receiver.
	m.ConnectionAccepted("tcp")
	m.ConnectionClosed("idle")
	m.ConnectionForceClosed()
	m.ActiveConnectionOpened()
	m.ActiveConnectionClosed()
	m.RetryAttempted()
	m.ThreadPoolQueueDepth("server", 3)
}

func TestIsEnabledReflectsInitAndDisable(t *testing.T) {
	Disable()
	if IsEnabled() {
		t.Fatal("expected IsEnabled false after Disable")
	}
	InitRegistry()
	defer Disable()
	if !IsEnabled() {
		t.Fatal("expected IsEnabled true after InitRegistry")
	}
}
