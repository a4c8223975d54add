// Package ratelimit provides the per-source download throttle and the
// per-caller request limiters used by the chat and HTTP boundaries.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// DefaultBackoff is used when a server asks to slow down without saying how long.
const DefaultBackoff = 60 * time.Second

// Ensure Throttle implements the interface.
var _ driven.Throttle = (*Throttle)(nil)

// Throttle spaces requests to one upstream at a minimum interval.
// It uses a token bucket of size one plus a backoff deadline for 429 responses.
type Throttle struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// NewThrottle creates a throttle allowing one request per interval.
// A non-positive interval disables pacing.
func NewThrottle(interval time.Duration) *Throttle {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Throttle{limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the next request may start.
// It also respects any backoff period set by Backoff.
func (t *Throttle) Wait(ctx context.Context) error {
	for {
		t.mu.Lock()
		retryAt := t.retryAt
		t.mu.Unlock()

		wait := time.Until(retryAt)
		if wait <= 0 {
			break
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return t.limiter.Wait(ctx)
}

// Backoff pauses the throttle for d. A later deadline is never shortened.
func (t *Throttle) Backoff(d time.Duration) {
	if d <= 0 {
		d = DefaultBackoff
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if until := time.Now().Add(d); until.After(t.retryAt) {
		t.retryAt = until
	}
}
