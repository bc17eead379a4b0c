package crawler

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
)

// retryBaseDelay is the unit for exponential backoff between attempts.
const retryBaseDelay = 100 * time.Millisecond

// RetryPolicy retries transport errors and server errors with exponential
// backoff. Client errors are returned to the caller without retrying.
type RetryPolicy struct {
	MaxRetries int
}

// NewRetryPolicy creates a retry policy with the given retry budget.
func NewRetryPolicy(maxRetries int) *RetryPolicy {
	return &RetryPolicy{MaxRetries: maxRetries}
}

// ShouldRetry reports whether an attempt outcome is retryable: any transport
// error, or a 5xx response.
func (p *RetryPolicy) ShouldRetry(statusCode int, err error) bool {
	if err != nil {
		return true
	}
	return statusCode >= 500 && statusCode <= 599
}

// Backoff returns the delay before the given retry, counted from one:
// 200ms, 400ms, 800ms, ...
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * retryBaseDelay
}

// Do runs fn until it returns a non-retryable outcome or the retry budget is
// exhausted. fn reports the HTTP status of the attempt, or 0 with an error
// when no response was received. The last outcome is returned either way.
func (p *RetryPolicy) Do(ctx context.Context, logger arbor.ILogger, fn func() (int, error)) (int, error) {
	var statusCode int
	var lastErr error

	for attempt := 0; ; attempt++ {
		statusCode, lastErr = fn()
		if !p.ShouldRetry(statusCode, lastErr) {
			return statusCode, lastErr
		}

		if attempt >= p.MaxRetries {
			logger.Warn().
				Int("max_retries", p.MaxRetries).
				Int("status_code", statusCode).
				Err(lastErr).
				Msg("Retry budget exhausted")
			return statusCode, lastErr
		}

		backoff := p.Backoff(attempt + 1)
		logger.Debug().
			Int("attempt", attempt+1).
			Int("status_code", statusCode).
			Err(lastErr).
			Dur("backoff", backoff).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			return statusCode, ctx.Err()
		case <-time.After(backoff):
		}
	}
}
