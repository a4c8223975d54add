package domain

import "time"

// ScheduledTask represents a recurring background task.
type ScheduledTask struct {
	// ID is the unique identifier for the task.
	ID string

	// Name is a human-readable name for the task.
	Name string

	// Schedule is a cron expression (e.g. "0 */6 * * *" or "@daily").
	Schedule string

	// LastRun is when the task last ran.
	LastRun time.Time

	// NextRun is when the task should run next.
	NextRun time.Time

	// LastError contains the last error message, if any.
	LastError string

	// LastSuccess is when the task last completed successfully.
	LastSuccess time.Time

	// Enabled indicates whether the task is active.
	Enabled bool
}

// TaskResult represents the outcome of a task execution.
type TaskResult struct {
	// TaskID identifies which task was run.
	TaskID string

	// StartedAt is when the task started.
	StartedAt time.Time

	// EndedAt is when the task completed.
	EndedAt time.Time

	// Success indicates whether the task completed without error.
	Success bool

	// Error contains the error message if Success is false.
	Error string

	// ItemsProcessed is a count of items handled (documents downloaded, chunks embedded).
	ItemsProcessed int
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	// Enabled is the master switch for the scheduler.
	Enabled bool

	// TaskConfigs holds per-task configuration.
	TaskConfigs map[string]TaskConfig
}

// TaskConfig holds configuration for a single task.
type TaskConfig struct {
	// Enabled indicates whether this task should run.
	Enabled bool

	// Schedule is a cron expression.
	Schedule string
}

// GetTaskConfig returns the configuration for a specific task.
// Returns a zero TaskConfig if the task is not configured.
func (c *SchedulerConfig) GetTaskConfig(taskID string) TaskConfig {
	if c.TaskConfigs == nil {
		return TaskConfig{}
	}
	return c.TaskConfigs[taskID]
}

// Task IDs for built-in tasks, in pipeline order.
const (
	TaskIDAcquire       = "acquire"
	TaskIDExtract       = "extract"
	TaskIDLexicalUpdate = "lexical_update"
	TaskIDVectorIngest  = "vector_ingest"
)

// TaskIDs lists the built-in tasks in pipeline order.
var TaskIDs = []string{TaskIDAcquire, TaskIDExtract, TaskIDLexicalUpdate, TaskIDVectorIngest}

// DefaultSchedulerConfig returns sensible defaults for the scheduler.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		TaskConfigs: map[string]TaskConfig{
			TaskIDAcquire:       {Enabled: true, Schedule: "0 3 * * *"},
			TaskIDExtract:       {Enabled: true, Schedule: "30 * * * *"},
			TaskIDLexicalUpdate: {Enabled: true, Schedule: "45 * * * *"},
			TaskIDVectorIngest:  {Enabled: true, Schedule: "50 * * * *"},
		},
	}
}
