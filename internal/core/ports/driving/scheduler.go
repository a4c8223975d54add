package driving

import "context"

// Scheduler runs the pipeline tasks (acquire, extract, lexical_update,
// vector_ingest) on their cron schedules.
type Scheduler interface {
	// Start begins running scheduled tasks.
	// Blocks until context is cancelled or an error occurs.
	Start(ctx context.Context) error

	// Stop gracefully stops all running tasks.
	Stop() error

	// RunNow runs one task immediately, regardless of its schedule.
	RunNow(ctx context.Context, taskID string) error
}
