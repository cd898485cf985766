package emitter

import (
	"context"

	"github.com/vietddude/softscan/internal/core/domain"
)

// Emitter defines the interface for sinks that receive a batch's ordered events.
type Emitter interface {
	// Emit sends a single event
	Emit(ctx context.Context, event *domain.Event) error

	// Close closes the emitter connection
	Close() error
}

// Multi fans each event out to several emitters in order. Every emitter
// sees every event even when an earlier one fails; the first error is returned.
type Multi []Emitter

// Emit implements Emitter.
func (m Multi) Emit(ctx context.Context, event *domain.Event) error {
	var first error
	for _, e := range m {
		if err := e.Emit(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close implements Emitter.
func (m Multi) Close() error {
	var first error
	for _, e := range m {
		if err := e.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
