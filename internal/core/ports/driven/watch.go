package driven

import (
	"context"
	"time"
)

// ChangeWatcher reports file changes under a directory tree.
type ChangeWatcher interface {
	// Watch sends on the returned channel after files with one of the given
	// extensions change under root. Bursts of changes collapse into a single
	// signal. The channel is closed when ctx is done.
	Watch(ctx context.Context, root string, extensions []string) (<-chan struct{}, error)
}

// Schedule computes run times from cron expressions.
type Schedule interface {
	// Next returns the first activation of expr strictly after t.
	// Invalid expressions return an error wrapping domain.ErrInvalidInput.
	Next(expr string, t time.Time) (time.Time, error)
}
