package llm

import (
	"sync"
	"time"
)

// ServiceStatus represents the observed state of the classification service.
type ServiceStatus int

const (
	StatusHealthy   ServiceStatus = iota // Service is answering normally
	StatusDegraded                       // Service is slow or failing often
	StatusThrottled                      // Service is rate limiting this client
)

func (s ServiceStatus) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusThrottled:
		return "throttled"
	}
	return "unknown"
}

// MonitorStats holds monitoring statistics for the service.
type MonitorStats struct {
	Status            ServiceStatus `json:"status"`
	AverageLatency    time.Duration `json:"average_latency"`
	Successes         int           `json:"successes"`
	ThrottleCount429  int           `json:"throttle_count_429"`
	TransportFailures int           `json:"transport_failures"`
	HTTPErrors        int           `json:"http_errors"`
	LastHTTPStatus    int           `json:"last_http_status,omitempty"`
	LastRetryAfter    string        `json:"last_retry_after,omitempty"`
}

// Monitor tracks throttling, failures and latency of the classification service.
type Monitor struct {
	mu sync.RWMutex

	recentLatencies  []time.Duration
	maxLatencyWindow int

	successes         int
	status429Count    int
	transportFailures int
	httpErrors        int
	lastHTTPStatus    int
	lastThrottleTime  time.Time
	lastRetryAfter    string

	throttleWindow        time.Duration
	slowResponseThreshold time.Duration
	degradedThreshold     float64
}

// NewMonitor creates a new monitor with default thresholds.
func NewMonitor() *Monitor {
	return &Monitor{
		recentLatencies:       make([]time.Duration, 0, 100),
		maxLatencyWindow:      100,
		throttleWindow:        time.Minute,
		slowResponseThreshold: 10 * time.Second,
		degradedThreshold:     0.3, // 30% failure rate
	}
}

// RecordRequest records a 200 response with its latency.
func (m *Monitor) RecordRequest(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.successes++
	m.recentLatencies = append(m.recentLatencies, latency)
	if len(m.recentLatencies) > m.maxLatencyWindow {
		m.recentLatencies = m.recentLatencies[1:]
	}
}

// RecordThrottle records a 429 response.
func (m *Monitor) RecordThrottle(retryAfter string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.status429Count++
	m.lastThrottleTime = time.Now()
	if retryAfter != "" {
		m.lastRetryAfter = retryAfter
	}
}

// RecordTransportFailure records an attempt that never obtained a status.
func (m *Monitor) RecordTransportFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transportFailures++
}

// RecordHTTPError records a terminal non-200 status.
func (m *Monitor) RecordHTTPError(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.httpErrors++
	m.lastHTTPStatus = status
}

// Status returns the current state of the service.
func (m *Monitor) Status() ServiceStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statusLocked()
}

func (m *Monitor) statusLocked() ServiceStatus {
	if m.status429Count > 0 && time.Since(m.lastThrottleTime) < m.throttleWindow {
		return StatusThrottled
	}

	total := m.successes + m.transportFailures + m.httpErrors
	if total > 0 {
		failRate := float64(m.transportFailures+m.httpErrors) / float64(total)
		if failRate > m.degradedThreshold {
			return StatusDegraded
		}
	}

	if len(m.recentLatencies) > 10 && m.averageLocked() > m.slowResponseThreshold {
		return StatusDegraded
	}

	return StatusHealthy
}

func (m *Monitor) averageLocked() time.Duration {
	if len(m.recentLatencies) == 0 {
		return 0
	}
	var total time.Duration
	for _, lat := range m.recentLatencies {
		total += lat
	}
	return total / time.Duration(len(m.recentLatencies))
}

// GetStats returns current monitoring statistics.
func (m *Monitor) GetStats() MonitorStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MonitorStats{
		Status:            m.statusLocked(),
		AverageLatency:    m.averageLocked(),
		Successes:         m.successes,
		ThrottleCount429:  m.status429Count,
		TransportFailures: m.transportFailures,
		HTTPErrors:        m.httpErrors,
		LastHTTPStatus:    m.lastHTTPStatus,
		LastRetryAfter:    m.lastRetryAfter,
	}
}
