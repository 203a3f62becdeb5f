// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-match/internal/logging"
)

const (
	// DefaultMaxAttempts is the number of calls made for one logical request.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is the first backoff delay.
	DefaultBaseDelay = time.Second

	maxJitterFraction = 0.25
)

// Retry is the transient-error policy wrapped around each LLM call. The zero
// value uses the defaults.
type Retry struct {
	// MaxAttempts is the total number of calls, including the first.
	MaxAttempts int
	// BaseDelay is the delay before the second call; it doubles afterwards.
	BaseDelay time.Duration
	// Jitter returns a value in [0, 1) scaled to 0-25% of the delay. Nil
	// uses math/rand.
	Jitter func() float64
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (r Retry) attempts() int {
	if r.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return r.MaxAttempts
}

// Delay returns the wait before call attempt+1, where attempt is the number
// of calls already made: base × 2^(attempt-1) plus up to 25% jitter.
func (r Retry) Delay(attempt int) time.Duration {
	base := r.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if attempt < 1 {
		attempt = 1
	}
	d := base << (attempt - 1)

	jitter := r.Jitter
	if jitter == nil {
		jitter = rand.Float64
	}
	return d + time.Duration(float64(d)*maxJitterFraction*jitter())
}

func (r Retry) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempts run out. The last error is returned when exhausted. onRetry, when
// non-nil, is told about every retry before the wait.
func (r Retry) Do(ctx context.Context, fn func(ctx context.Context) error, onRetry func(attempt int, delay time.Duration, err error)) error {
	maxAttempts := r.attempts()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) || attempt == maxAttempts {
			return lastErr
		}

		delay := r.Delay(attempt)
		if onRetry != nil {
			onRetry(attempt, delay, lastErr)
		}
		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

// IsRetryable reports whether err is transient: an API status of 408, 429 or
// 5xx, or a connection or timeout failure. Context cancellation is never
// retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode >= http.StatusInternalServerError:
			return true
		}
		return false
	}

	if errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// RetryingClient wraps a Client with the Retry policy.
type RetryingClient struct {
	Client Client
	Retry  Retry
	Logger *zap.Logger
}

// Complete forwards to the wrapped client, retrying transient failures.
func (c *RetryingClient) Complete(ctx context.Context, req Request) ([]ContentBlock, error) {
	log := logging.OrNop(c.Logger)

	var blocks []ContentBlock
	err := c.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		blocks, err = c.Client.Complete(ctx, req)
		return err
	}, func(attempt int, delay time.Duration, err error) {
		log.Warn("transient LLM error, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	})
	if err != nil {
		return nil, fmt.Errorf("LLM call: %w", err)
	}
	return blocks, nil
}
