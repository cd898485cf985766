package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/softscan/internal/core/domain"
	"github.com/vietddude/softscan/internal/infra/llm"
)

type staticMonitor llm.ServiceStatus

func (s staticMonitor) Status() llm.ServiceStatus { return llm.ServiceStatus(s) }

func feed(t *testing.T, tr *Tracker, batchID string, results ...domain.ClassificationResult) {
	t.Helper()
	for i, r := range results {
		r := r
		p := domain.BatchProgress{Completed: i + 1, Total: len(results)}
		require.NoError(t, tr.Emit(context.Background(), &domain.Event{
			Type: domain.EventTypeResultReady, BatchID: batchID, Result: &r,
		}))
		require.NoError(t, tr.Emit(context.Background(), &domain.Event{
			Type: domain.EventTypeProgress, BatchID: batchID, Progress: &p, Percent: p.Percent(),
		}))
	}
}

func TestTracker_Report(t *testing.T) {
	tr := NewTracker(staticMonitor(llm.StatusHealthy))
	assert.Nil(t, tr.Report().Batch)

	feed(t, tr, "batch-1",
		domain.ClassificationResult{ItemIndex: 0, Safety: domain.SafetySafe},
		domain.ClassificationResult{ItemIndex: 1, Safety: domain.SafetyHarmful},
		domain.ClassificationResult{ItemIndex: 2, Safety: domain.SafetySafe},
	)

	report := tr.Report()
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Equal(t, "healthy", report.Service)
	require.NotNil(t, report.Batch)
	assert.Equal(t, "batch-1", report.Batch.BatchID)
	assert.Equal(t, 100, report.Batch.Percent)
	assert.Equal(t, map[string]int{"SAFE": 2, "HARMFUL": 1}, report.Batch.Verdicts)

	// a new batch id resets the counters
	feed(t, tr, "batch-2", domain.ClassificationResult{ItemIndex: 0, Safety: domain.SafetyUnknown})
	assert.Equal(t, map[string]int{"UNKNOWN": 1}, tr.Report().Batch.Verdicts)
}

func TestServer_Endpoints(t *testing.T) {
	tr := NewTracker(staticMonitor(llm.StatusThrottled))
	feed(t, tr, "batch-9", domain.ClassificationResult{ItemIndex: 0, Safety: domain.SafetySafe})

	srv := httptest.NewServer(NewServer(tr, 0).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "degraded", health["status"])

	resp, err = http.Get(srv.URL + "/status")
	require.NoError(t, err)
	var report Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	resp.Body.Close()
	assert.Equal(t, "throttled", report.Service)
	require.NotNil(t, report.Batch)
	assert.Equal(t, "batch-9", report.Batch.BatchID)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
