package driven

import (
	"context"
	"time"
)

// CallerLimiter enforces a request budget per caller key (e.g. client IP).
type CallerLimiter interface {
	// Allow consumes one request from the caller's budget.
	// Returns false when the caller is over the limit.
	Allow(ctx context.Context, caller string) (bool, error)
}

// Throttle paces requests to one upstream source.
type Throttle interface {
	// Wait blocks until the next request may start or ctx is done.
	Wait(ctx context.Context) error

	// Backoff pauses the throttle for d, e.g. after an HTTP 429.
	Backoff(d time.Duration)
}
