package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/softscan/internal/core/domain"
	"github.com/vietddude/softscan/internal/scanning/metrics"
)

// RetryState is a step of the per-item retry lifecycle.
type RetryState int

const (
	StateAttempting          RetryState = iota // An HTTP attempt is in progress
	StateBackingOff                            // A retryable failure occurred; sleeping before the next attempt
	StateSucceeded                             // Status 200 obtained
	StateNonRetryableFailure                   // Any status other than 200 and 429 obtained
	StateExhausted                             // Every allowed attempt ended in a retryable failure
)

func (s RetryState) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateBackingOff:
		return "backing_off"
	case StateSucceeded:
		return "succeeded"
	case StateNonRetryableFailure:
		return "non_retryable_failure"
	case StateExhausted:
		return "exhausted"
	}
	return fmt.Sprintf("RetryState(%d)", int(s))
}

// Terminal reports whether no further transition follows s.
func (s RetryState) Terminal() bool {
	return s == StateSucceeded || s == StateNonRetryableFailure || s == StateExhausted
}

// nextAfterAttempt maps the outcome of one attempt to the next state.
// Only 429 and transport failures are retryable.
func nextAfterAttempt(status int, err error) RetryState {
	switch {
	case err != nil:
		return StateBackingOff
	case status == 200:
		return StateSucceeded
	default:
		return StateNonRetryableFailure
	}
}

// nextAfterBackoff decides whether attempt n is followed by another attempt.
func nextAfterBackoff(attempt, maxAttempts int) RetryState {
	if attempt >= maxAttempts {
		return StateExhausted
	}
	return StateAttempting
}

// BackoffDelay returns the linear backoff taken after the given 1-based attempt.
func BackoffDelay(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(attempt)
}

// postWithRetry drives the retry lifecycle for one item. The returned error is
// non-nil only when the attempts were exhausted; any obtained status other
// than 429 is returned as is.
func (c *Client) postWithRetry(
	ctx context.Context,
	payload []byte,
	req domain.ClassificationRequest,
) (int, []byte, error) {
	var (
		state   = StateAttempting
		attempt = 1
		status  int
		body    []byte
		lastErr error
	)

	for !state.Terminal() {
		switch state {
		case StateAttempting:
			status, body, lastErr = c.attempt(ctx, payload, req)
			state = nextAfterAttempt(status, lastErr)
			slog.Debug("Classification attempt",
				"item", req.ItemName,
				"attempt", attempt,
				"status", status,
				"next", state.String(),
				"error", lastErr,
			)

		case StateBackingOff:
			state = nextAfterBackoff(attempt, c.cfg.MaxRetries)
			if state == StateExhausted {
				continue
			}

			reason := "transport_error"
			if errors.Is(lastErr, ErrRateLimited) {
				reason = "rate_limited"
			}
			metrics.ClassifyRetriesTotal.WithLabelValues(reason).Inc()

			// Cancellation of the sleep is treated like an elapsed backoff;
			// the attempt counter still bounds the loop.
			_ = c.sleep(ctx, BackoffDelay(c.cfg.RetryDelay, attempt))
			attempt++
		}
	}

	if state == StateExhausted {
		return 0, nil, fmt.Errorf("%w after %d attempts: %w", ErrMaxRetries, attempt, lastErr)
	}
	return status, body, nil
}
