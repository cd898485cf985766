package emitter

import (
	"context"
	"log/slog"

	"github.com/vietddude/softscan/internal/core/domain"
	"github.com/vietddude/softscan/internal/scanning/metrics"
)

// Stream turns the unordered completions of a batch into its ordered event
// stream. Each completion yields a ResultReady event followed by a Progress
// event; the channel closes after the last item has been reported.
//
// Publish may be called from any goroutine. Events are delivered in emission
// order to a single consumer and, synchronously and in the same order, to the
// sink.
type Stream struct {
	batchID string
	total   int
	sink    Emitter

	in  chan domain.ClassificationResult
	out chan domain.Event
}

// NewStream creates the stream for a batch of total items and starts
// forwarding. sink may be nil.
func NewStream(ctx context.Context, batchID string, total int, sink Emitter) *Stream {
	s := &Stream{
		batchID: batchID,
		total:   total,
		sink:    sink,
		// Buffers sized to the batch so neither tasks nor the forwarder
		// block on a slow consumer.
		in:  make(chan domain.ClassificationResult, total),
		out: make(chan domain.Event, 2*total),
	}
	go s.run(ctx)
	return s
}

// Publish hands a completed result to the stream.
func (s *Stream) Publish(r domain.ClassificationResult) {
	s.in <- r
}

// Events returns the ordered event channel.
func (s *Stream) Events() <-chan domain.Event {
	return s.out
}

// Total returns the number of items in the batch.
func (s *Stream) Total() int {
	return s.total
}

func (s *Stream) run(ctx context.Context) {
	defer close(s.out)

	progress := domain.BatchProgress{Total: s.total}
	seen := make(map[int]struct{}, s.total)

	for !progress.Done() {
		r := <-s.in

		if r.ItemIndex < 0 || r.ItemIndex >= s.total {
			slog.Error("Dropping result with out-of-range index",
				"batch_id", s.batchID, "index", r.ItemIndex, "item", r.Name)
			continue
		}
		if _, dup := seen[r.ItemIndex]; dup {
			slog.Error("Dropping duplicate result",
				"batch_id", s.batchID, "index", r.ItemIndex, "item", r.Name)
			continue
		}
		seen[r.ItemIndex] = struct{}{}
		progress.Completed++

		result := r
		snapshot := progress
		metrics.VerdictsTotal.WithLabelValues(string(result.Safety)).Inc()
		metrics.BatchProgressPercent.Set(float64(snapshot.Percent()))

		s.emit(ctx, domain.Event{
			Type:    domain.EventTypeResultReady,
			BatchID: s.batchID,
			Result:  &result,
			Percent: snapshot.Percent(),
		})
		s.emit(ctx, domain.Event{
			Type:     domain.EventTypeProgress,
			BatchID:  s.batchID,
			Progress: &snapshot,
			Percent:  snapshot.Percent(),
		})
	}
}

func (s *Stream) emit(ctx context.Context, ev domain.Event) {
	if s.sink != nil {
		if err := s.sink.Emit(ctx, &ev); err != nil {
			slog.Warn("Sink failed to emit event",
				"batch_id", s.batchID, "type", ev.Type, "error", err)
		}
	}
	s.out <- ev
}
