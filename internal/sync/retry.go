// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

package sync

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"time"
)

// HTTPError carries a non-2xx response status so the retry predicate can
// distinguish transient server trouble from permanent request errors.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// RetryPolicy shapes the retry behavior of one operation class: attempt
// budget, exponential backoff base, jitter, and the predicate deciding
// which errors are worth another attempt.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// BaseDelay is the wait after the first failure; it doubles per
	// attempt up to MaxDelay.
	BaseDelay time.Duration

	// MaxDelay caps the backoff. Zero means no cap.
	MaxDelay time.Duration

	// Jitter perturbs a computed delay. Nil means no jitter.
	Jitter func(time.Duration) time.Duration

	// Retryable reports whether an error is transient. Nil retries
	// everything.
	Retryable func(error) bool

	// OnRetry, when set, observes each scheduled retry.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryPolicy returns the fetcher's policy: transient-only retries
// with exponential backoff and ±25% jitter.
func DefaultRetryPolicy(attempts int, baseDelay time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: attempts,
		BaseDelay:   baseDelay,
		MaxDelay:    2 * time.Minute,
		Jitter:      ProportionalJitter(0.25),
		Retryable:   IsTransient,
	}
}

// ProportionalJitter returns a jitter function that scales a delay by a
// random factor in [1-fraction, 1+fraction].
func ProportionalJitter(fraction float64) func(time.Duration) time.Duration {
	return func(d time.Duration) time.Duration {
		if d <= 0 {
			return d
		}
		factor := 1 - fraction + 2*fraction*rand.Float64() //nolint:gosec // jitter needs no crypto randomness
		return time.Duration(float64(d) * factor)
	}
}

// IsTransient classifies errors worth retrying: timeouts, connection
// failures, and HTTP 5xx/408/429. Other 4xx statuses are permanent request
// errors and fail immediately.
func IsTransient(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode >= 500:
			return true
		case httpErr.StatusCode == http.StatusRequestTimeout,
			httpErr.StatusCode == http.StatusTooManyRequests:
			return true
		default:
			return false
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// Connection-level failures (refused, reset, DNS) surface as
	// *net.OpError without the timeout flag.
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// RetryDo runs op under the policy. The parent context cancels backoff
// waits immediately; a context error is returned as-is and never retried.
func RetryDo[T any](ctx context.Context, p RetryPolicy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := p.BaseDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) {
			return zero, err
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		wait := delay
		if p.MaxDelay > 0 && wait > p.MaxDelay {
			wait = p.MaxDelay
		}
		if p.Jitter != nil {
			wait = p.Jitter(wait)
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
		delay *= 2
	}

	return zero, fmt.Errorf("max retry attempts reached: %w", lastErr)
}
