package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Retry wraps a Service with a bounded retry loop: up to MaxAttempts calls
// with a fixed backoff between them, each attempt bounded by Timeout.
// ErrUnavailable is never retried; it is a permanent condition for the call.
// A timed-out attempt counts as a retryable provider failure.
type Retry struct {
	inner       Service
	maxAttempts int
	backoff     time.Duration
	timeout     time.Duration
}

// Compile-time interface check.
var _ Service = (*Retry)(nil) //nolint:gochecknoglobals // compile-time check

// NewRetry decorates inner with the retry policy.
func NewRetry(inner Service, maxAttempts int, backoff, timeout time.Duration) *Retry {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Retry{
		inner:       inner,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		timeout:     timeout,
	}
}

// Generate calls the wrapped service, retrying classified transient failures.
func (r *Retry) Generate(ctx context.Context, prompt string, role Role) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if r.timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, r.timeout)
		}

		text, err := r.inner.Generate(attemptCtx, prompt, role)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return text, nil
		}

		if errors.Is(err, ErrUnavailable) {
			return "", fmt.Errorf("provider.Retry.Generate(%s): %w", r.inner.Name(), err)
		}

		lastErr = err
		log.Warn().
			Err(err).
			Str("provider", r.inner.Name()).
			Str("role", string(role)).
			Int("attempt", attempt).
			Msg("provider call failed")

		if attempt == r.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("provider.Retry.Generate(%s): %w", r.inner.Name(), ctx.Err())
		case <-time.After(r.backoff):
		}
	}

	return "", fmt.Errorf("provider.Retry.Generate(%s): %d attempts: %w", r.inner.Name(), r.maxAttempts, lastErr)
}

// Name reports the wrapped provider's name.
func (r *Retry) Name() string {
	return r.inner.Name()
}
