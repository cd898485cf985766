package llm

import (
	"testing"
	"time"
)

func TestMonitor_Status(t *testing.T) {
	m := NewMonitor()
	if got := m.Status(); got != StatusHealthy {
		t.Fatalf("fresh monitor status = %v, want healthy", got)
	}

	for i := 0; i < 3; i++ {
		m.RecordRequest(100 * time.Millisecond)
	}
	m.RecordTransportFailure()
	m.RecordTransportFailure()
	if got := m.Status(); got != StatusDegraded {
		t.Errorf("status with 40%% failures = %v, want degraded", got)
	}

	m.RecordThrottle("30")
	if got := m.Status(); got != StatusThrottled {
		t.Errorf("status after 429 = %v, want throttled", got)
	}

	stats := m.GetStats()
	if stats.Successes != 3 || stats.TransportFailures != 2 || stats.ThrottleCount429 != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.AverageLatency != 100*time.Millisecond {
		t.Errorf("average latency = %v, want 100ms", stats.AverageLatency)
	}
	if stats.LastRetryAfter != "30" {
		t.Errorf("last retry-after = %q, want 30", stats.LastRetryAfter)
	}
}

func TestMonitor_LatencyWindow(t *testing.T) {
	m := NewMonitor()
	for i := 0; i < 150; i++ {
		m.RecordRequest(time.Second)
	}
	m.mu.RLock()
	n := len(m.recentLatencies)
	m.mu.RUnlock()
	if n != 100 {
		t.Errorf("latency window = %d, want 100", n)
	}
}
