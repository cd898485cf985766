package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (f *fakeStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return 2, f.err
}

func (f *fakeStore) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

func TestPruner_PruneUsesRetentionCutoff(t *testing.T) {
	store := &fakeStore{}
	p := NewPruner(48*time.Hour, store)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	n, err := p.Prune(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.Len(t, store.cutoffs, 1)
	assert.Equal(t, now.Add(-48*time.Hour), store.cutoffs[0])
}

func TestPruner_DisabledRetention(t *testing.T) {
	store := &fakeStore{}
	p := NewPruner(0, store)

	n, err := p.Prune(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	// Start returns immediately without touching the store
	p.Start(context.Background())
	assert.Zero(t, store.calls())
}

func TestPruner_PropagatesStoreError(t *testing.T) {
	p := NewPruner(time.Hour, &fakeStore{err: errors.New("db down")})
	_, err := p.Prune(context.Background())
	assert.EqualError(t, err, "db down")
}

func TestPruner_StartPrunesImmediatelyAndStops(t *testing.T) {
	store := &fakeStore{}
	p := NewPruner(24*time.Hour, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return store.calls() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pruner did not stop")
	}
}
