package sheets

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBurst is the token bucket burst for Sheets requests.
const DefaultBurst = 2

const (
	// defaultBackoff applies when a 429 carries no Retry-After hint.
	defaultBackoff = 2 * time.Second
	// DefaultMaxBackoff caps any backoff, including a server-supplied Retry-After.
	DefaultMaxBackoff = 5 * time.Second
)

// RateLimiter paces Sheets API requests. After a 429 it holds all requests until the
// backoff period has passed.
type RateLimiter struct {
	mu         sync.Mutex
	limiter    *rate.Limiter
	retryAt    time.Time
	maxBackoff time.Duration
}

// LimiterOption configures a RateLimiter.
type LimiterOption func(*RateLimiter)

// WithMaxBackoff caps the hold after a 429. Callers with a per-request deadline should
// keep it well below that deadline so the retried request still reaches the API.
func WithMaxBackoff(d time.Duration) LimiterOption {
	return func(r *RateLimiter) {
		if d > 0 {
			r.maxBackoff = d
		}
	}
}

// NewRateLimiter creates a limiter allowing requestsPerSecond sustained requests.
// A non-positive rate disables pacing.
func NewRateLimiter(requestsPerSecond float64, opts ...LimiterOption) *RateLimiter {
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}
	r := &RateLimiter{limiter: rate.NewLimiter(limit, DefaultBurst), maxBackoff: DefaultMaxBackoff}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Wait blocks until a request can be made.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if time.Now().Before(retryAt) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(retryAt)):
		}
	}

	return r.limiter.Wait(ctx)
}

// RecordRateLimitError sets a backoff period after a 429 response. A non-positive backoff
// uses the default; any value is capped at the limiter's maximum. It returns the applied backoff.
func (r *RateLimiter) RecordRateLimitError(backoff time.Duration) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if backoff <= 0 {
		backoff = defaultBackoff
	}
	if backoff > r.maxBackoff {
		backoff = r.maxBackoff
	}
	r.retryAt = time.Now().Add(backoff)
	return backoff
}
