// Package dispatch fans a batch of items out to the classification service
// under a fixed concurrency ceiling and streams the results back.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/vietddude/softscan/internal/core/domain"
	"github.com/vietddude/softscan/internal/scanning/emitter"
	"github.com/vietddude/softscan/internal/scanning/metrics"
)

// DefaultConcurrencyLimit is the number of classification calls allowed in
// flight when the caller does not choose one.
const DefaultConcurrencyLimit = 5

// Classifier classifies a single software name. Implementations must fold
// every failure into the returned verdict.
type Classifier interface {
	Classify(ctx context.Context, itemName, credential string) domain.Verdict
}

// Dispatcher runs classification batches.
type Dispatcher struct {
	classifier Classifier
	sink       emitter.Emitter
}

// New creates a Dispatcher. Every batch's events are also forwarded to sink,
// which may be nil.
func New(classifier Classifier, sink emitter.Emitter) *Dispatcher {
	return &Dispatcher{classifier: classifier, sink: sink}
}

// Batch is a running dispatch.
type Batch struct {
	ID     string
	Total  int
	stream *emitter.Stream
}

// Events returns the batch's ordered event stream. It is closed once every
// item has reported.
func (b *Batch) Events() <-chan domain.Event {
	return b.stream.Events()
}

// Dispatch starts one task per item and returns immediately. At most
// concurrencyLimit tasks call the classifier at the same time; a limit <= 0
// selects DefaultConcurrencyLimit.
//
// A batch cannot be cancelled: cancellation of ctx is not propagated to the
// tasks, only its values are.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	items []domain.Item,
	credential string,
	concurrencyLimit int,
) *Batch {
	if concurrencyLimit <= 0 {
		concurrencyLimit = DefaultConcurrencyLimit
	}
	ctx = context.WithoutCancel(ctx)

	batch := &Batch{
		ID:    uuid.NewString(),
		Total: len(items),
	}
	batch.stream = emitter.NewStream(ctx, batch.ID, batch.Total, d.sink)

	log := slog.With("batch_id", batch.ID)
	log.Info("Dispatching batch", "items", batch.Total, "concurrency", concurrencyLimit)

	gate := semaphore.NewWeighted(int64(concurrencyLimit))
	start := time.Now()

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(index int, item domain.Item) {
			defer wg.Done()
			batch.stream.Publish(d.classify(ctx, gate, index, item, credential))
		}(i, item)
	}

	go func() {
		wg.Wait()
		elapsed := time.Since(start)
		metrics.BatchDuration.Observe(elapsed.Seconds())
		log.Info("Batch complete", "items", batch.Total, "elapsed", elapsed.Round(time.Millisecond))
	}()

	return batch
}

// classify runs one item's task. The returned result always carries the
// item's own index and name, whatever happened inside the classifier.
func (d *Dispatcher) classify(
	ctx context.Context,
	gate *semaphore.Weighted,
	index int,
	item domain.Item,
	credential string,
) (result domain.ClassificationResult) {
	result = domain.ClassificationResult{ItemIndex: index, Name: item.Name}

	if err := gate.Acquire(ctx, 1); err != nil {
		result.Safety, result.RCA = domain.SafetyUnknown, domain.RCAFetchError
		return result
	}
	defer gate.Release(1)

	metrics.InflightRequests.Inc()
	defer metrics.InflightRequests.Dec()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Classifier panicked", "item", item.Name, "index", index, "panic", fmt.Sprint(r))
			result.Safety, result.RCA = domain.SafetyUnknown, domain.RCAFetchError
		}
	}()

	v := d.classifier.Classify(ctx, item.Name, credential)
	result.Safety, result.RCA = v.Safety, v.RCA
	return result
}

// Collect drains a batch and returns its results ordered by item index.
func Collect(b *Batch) []domain.ClassificationResult {
	results := make([]domain.ClassificationResult, 0, b.Total)
	for ev := range b.Events() {
		if ev.Type == domain.EventTypeResultReady {
			results = append(results, *ev.Result)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ItemIndex < results[j].ItemIndex })
	return results
}
