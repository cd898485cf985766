package worker

import (
	"context"
	"log/slog"
	"time"
)

// InventoryStore is the part of the inventory store the pruner needs.
type InventoryStore interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Pruner deletes inventories that have not been reported within the
// retention period.
type Pruner struct {
	retention time.Duration
	store     InventoryStore
	now       func() time.Time
}

// NewPruner creates a new Pruner worker.
func NewPruner(retention time.Duration, store InventoryStore) *Pruner {
	return &Pruner{
		retention: retention,
		store:     store,
		now:       time.Now,
	}
}

// Start runs the pruner loop until ctx is cancelled.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	// Check at 10% of the retention period, between 1 minute and 1 hour
	interval := min(p.retention/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	_, _ = p.Prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = p.Prune(ctx)
		}
	}
}

// Prune runs a single pass. It is a no-op when retention is disabled.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.retention <= 0 {
		return 0, nil
	}

	cutoff := p.now().Add(-p.retention)
	n, err := p.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("Failed to prune inventory", "cutoff", cutoff, "error", err)
		return 0, err
	}
	if n > 0 {
		slog.Info("Pruned stale inventory", "rows", n, "cutoff", cutoff)
	}
	return n, nil
}
