package emitter

import (
	"context"
	"log/slog"

	"github.com/vietddude/softscan/internal/core/domain"
)

// LogEmitter logs results at debug level and progress whenever the
// percentage advances by at least step points.
type LogEmitter struct {
	step int
	last int
}

// NewLogEmitter creates a LogEmitter. step <= 0 logs every change.
func NewLogEmitter(step int) *LogEmitter {
	if step <= 0 {
		step = 1
	}
	return &LogEmitter{step: step, last: -1}
}

// Emit implements Emitter.
func (l *LogEmitter) Emit(_ context.Context, event *domain.Event) error {
	switch event.Type {
	case domain.EventTypeResultReady:
		r := event.Result
		slog.Debug("Result ready",
			"batch_id", event.BatchID, "index", r.ItemIndex, "item", r.Name,
			"safety", r.Safety)
	case domain.EventTypeProgress:
		p := event.Progress
		if event.Percent == 100 || l.last < 0 || event.Percent-l.last >= l.step {
			l.last = event.Percent
			slog.Info("Scan progress",
				"batch_id", event.BatchID, "completed", p.Completed, "total", p.Total,
				"percent", event.Percent)
		}
	}
	return nil
}

// Close implements Emitter.
func (l *LogEmitter) Close() error { return nil }
