package health

import (
	"context"
	"sync"

	"github.com/vietddude/softscan/internal/core/domain"
	"github.com/vietddude/softscan/internal/infra/llm"
)

// ServiceMonitor reports the observed state of the classification service.
type ServiceMonitor interface {
	Status() llm.ServiceStatus
}

// Tracker is an emitter that remembers the latest batch state for the
// status endpoint.
type Tracker struct {
	monitor ServiceMonitor

	mu    sync.RWMutex
	batch *BatchStatus
}

// NewTracker creates a new Tracker. monitor may be nil.
func NewTracker(monitor ServiceMonitor) *Tracker {
	return &Tracker{monitor: monitor}
}

// Emit implements emitter.Emitter.
func (t *Tracker) Emit(_ context.Context, event *domain.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.batch == nil || t.batch.BatchID != event.BatchID {
		t.batch = &BatchStatus{BatchID: event.BatchID, Verdicts: make(map[string]int)}
	}

	switch event.Type {
	case domain.EventTypeResultReady:
		t.batch.Verdicts[string(event.Result.Safety)]++
	case domain.EventTypeProgress:
		t.batch.Progress = *event.Progress
		t.batch.Percent = event.Percent
	}
	return nil
}

// Close implements emitter.Emitter.
func (t *Tracker) Close() error { return nil }

// Report returns a snapshot of the scanner state.
func (t *Tracker) Report() Report {
	report := Report{Status: StatusHealthy, Service: "unknown"}

	if t.monitor != nil {
		s := t.monitor.Status()
		report.Service = s.String()
		switch s {
		case llm.StatusThrottled, llm.StatusDegraded:
			report.Status = StatusDegraded
		}
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.batch != nil {
		b := *t.batch
		b.Verdicts = make(map[string]int, len(t.batch.Verdicts))
		for k, v := range t.batch.Verdicts {
			b.Verdicts[k] = v
		}
		report.Batch = &b
	}
	return report
}
