package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// Ensure MemoryLimiter implements the interface.
var _ driven.CallerLimiter = (*MemoryLimiter)(nil)

// MemoryLimiter keeps a token bucket per caller in process memory.
// A caller may spend up to limit requests at once, refilled evenly over window.
type MemoryLimiter struct {
	limit  int
	window time.Duration

	mu        sync.Mutex
	callers   map[string]*callerBucket
	lastPrune time.Time

	now func() time.Time
}

type callerBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemoryLimiter creates a limiter allowing limit requests per window per caller.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		callers: make(map[string]*callerBucket),
		now:     time.Now,
	}
}

// Allow consumes one request from caller's budget.
func (l *MemoryLimiter) Allow(_ context.Context, caller string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	b, ok := l.callers[caller]
	if !ok {
		every := l.window / time.Duration(l.limit)
		b = &callerBucket{limiter: rate.NewLimiter(rate.Every(every), l.limit)}
		l.callers[caller] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1), nil
}

// prune drops callers idle for longer than a window; their buckets are full again.
func (l *MemoryLimiter) prune(now time.Time) {
	if now.Sub(l.lastPrune) < l.window {
		return
	}
	l.lastPrune = now
	for caller, b := range l.callers {
		if now.Sub(b.lastSeen) > l.window {
			delete(l.callers, caller)
		}
	}
}
