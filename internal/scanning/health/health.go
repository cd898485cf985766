// Package health exposes scan progress and service health over HTTP.
package health

import "github.com/vietddude/softscan/internal/core/domain"

// SystemStatus represents the overall health state of the scanner.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// BatchStatus describes the batch currently (or last) being scanned.
type BatchStatus struct {
	BatchID  string               `json:"batch_id"`
	Progress domain.BatchProgress `json:"progress"`
	Percent  int                  `json:"percent"`
	Verdicts map[string]int       `json:"verdicts"`
}

// Report is the detailed status document.
type Report struct {
	Status  SystemStatus `json:"status"`
	Service string       `json:"service"`
	Batch   *BatchStatus `json:"batch,omitempty"`
}
