package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/core/ports/driving"
	"github.com/custodia-labs/dossier/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// DefaultHistoryKeep is how many results are kept per task.
const DefaultHistoryKeep = 100

// TaskFunc runs one scheduled task and returns how many items it handled.
type TaskFunc func(ctx context.Context) (int, error)

var taskNames = map[string]string{
	domain.TaskIDAcquire:       "Acquire documents",
	domain.TaskIDExtract:       "Extract text",
	domain.TaskIDLexicalUpdate: "Update lexical index",
	domain.TaskIDVectorIngest:  "Ingest vectors",
}

// PipelineTasks binds the built-in task IDs to the pipeline services.
// A nil service leaves its task unregistered.
func PipelineTasks(
	acquisition driving.AcquisitionService,
	extraction driving.ExtractionService,
	index driving.IndexService,
	ingestion driving.IngestionService,
) map[string]TaskFunc {
	tasks := make(map[string]TaskFunc)
	if acquisition != nil {
		tasks[domain.TaskIDAcquire] = func(ctx context.Context) (int, error) {
			reports, err := acquisition.RunAll(ctx, nil, driving.AcquireOptions{})
			n := 0
			for _, r := range reports {
				n += r.Downloaded
			}
			return n, err
		}
	}
	if extraction != nil {
		tasks[domain.TaskIDExtract] = func(ctx context.Context) (int, error) {
			report, err := extraction.RunPending(ctx, driving.ExtractOptions{})
			if report == nil {
				return 0, err
			}
			return report.Succeeded, err
		}
	}
	if index != nil {
		tasks[domain.TaskIDLexicalUpdate] = func(ctx context.Context) (int, error) {
			report, err := index.Update(ctx)
			if report == nil {
				return 0, err
			}
			return report.Indexed, err
		}
	}
	if ingestion != nil {
		tasks[domain.TaskIDVectorIngest] = func(ctx context.Context) (int, error) {
			report, err := ingestion.Run(ctx)
			if report == nil {
				return 0, err
			}
			return report.Chunks, err
		}
	}
	return tasks
}

// Scheduler runs the pipeline tasks on their cron schedules.
// It is a pure core service with no external control API.
type Scheduler struct {
	config   domain.SchedulerConfig
	store    driven.SchedulerStore
	schedule driven.Schedule
	tasks    map[string]TaskFunc

	tick time.Duration
	now  func() time.Time

	mu      sync.Mutex
	running bool
	active  map[string]bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler with configuration.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	schedule driven.Schedule,
	tasks map[string]TaskFunc,
) *Scheduler {
	return &Scheduler{
		config:   config,
		store:    store,
		schedule: schedule,
		tasks:    tasks,
		tick:     time.Minute,
		now:      time.Now,
		active:   make(map[string]bool),
	}
}

// Start begins the scheduler loop. This method blocks until Stop is called
// or ctx is cancelled, then waits for running tasks to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		logger.Info("Scheduler disabled in configuration")
		return nil
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	if err := s.initialiseTasks(ctx); err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("initialise tasks: %w", err)
	}

	err := s.run(ctx, stopCh)
	s.wg.Wait()
	return err
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// RunNow runs a task immediately and waits for it, regardless of its schedule.
func (s *Scheduler) RunNow(ctx context.Context, taskID string) error {
	if _, ok := s.tasks[taskID]; !ok {
		return fmt.Errorf("%w: task %q", domain.ErrNotFound, taskID)
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("get task %s: %w", taskID, err)
	}
	if task == nil {
		task = s.newTask(taskID, s.config.GetTaskConfig(taskID))
	}
	if !s.claim(taskID) {
		return fmt.Errorf("%w: task %s", domain.ErrRunInProgress, taskID)
	}
	s.wg.Add(1)
	return s.execute(ctx, task)
}

// initialiseTasks ensures every registered task exists in the store.
func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	var errs []error
	for _, id := range domain.TaskIDs {
		if _, ok := s.tasks[id]; !ok {
			continue
		}
		if err := s.ensureTask(ctx, id, s.config.GetTaskConfig(id)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// ensureTask creates or updates a task in the store.
func (s *Scheduler) ensureTask(ctx context.Context, id string, cfg domain.TaskConfig) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if task == nil {
		task = s.newTask(id, cfg)
	} else {
		task.Enabled = cfg.Enabled
		if task.Schedule != cfg.Schedule {
			task.Schedule = cfg.Schedule
			task.NextRun = time.Time{}
		}
	}

	if task.Enabled && task.NextRun.IsZero() {
		next, err := s.schedule.Next(task.Schedule, s.now())
		if err != nil {
			return err
		}
		task.NextRun = next
	}
	return s.store.SaveTask(ctx, task)
}

func (s *Scheduler) newTask(id string, cfg domain.TaskConfig) *domain.ScheduledTask {
	name := taskNames[id]
	if name == "" {
		name = id
	}
	return &domain.ScheduledTask{
		ID:       id,
		Name:     name,
		Schedule: cfg.Schedule,
		Enabled:  cfg.Enabled,
	}
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}) error {
	s.checkAndRunDueTasks(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

// checkAndRunDueTasks starts every enabled task whose next run has passed
// and which is not already running.
func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Error("scheduler: list tasks: %v", err)
		return
	}

	now := s.now()
	for i := range tasks {
		task := tasks[i]
		if !task.Enabled || task.NextRun.After(now) {
			continue
		}
		if _, ok := s.tasks[task.ID]; !ok {
			logger.Warn("scheduler: no handler for task %s", task.ID)
			continue
		}
		if !s.claim(task.ID) {
			logger.Debug("scheduler: %s still running, skipping", task.ID)
			continue
		}
		s.wg.Add(1)
		go s.execute(ctx, &task)
	}
}

func (s *Scheduler) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[id] {
		return false
	}
	s.active[id] = true
	return true
}

func (s *Scheduler) release(id string) {
	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
}

// execute runs a claimed task, then persists its state and result.
func (s *Scheduler) execute(ctx context.Context, task *domain.ScheduledTask) error {
	defer s.wg.Done()
	defer s.release(task.ID)

	logger.Section("Task: " + task.Name)
	result := &domain.TaskResult{
		TaskID:    task.ID,
		StartedAt: s.now(),
	}

	items, err := s.tasks[task.ID](ctx)
	result.EndedAt = s.now()
	result.ItemsProcessed = items
	if err != nil {
		result.Error = err.Error()
		task.LastError = err.Error()
		logger.Error("Task %s failed after %s: %v", task.ID, result.EndedAt.Sub(result.StartedAt).Round(time.Millisecond), err)
	} else {
		result.Success = true
		task.LastError = ""
		task.LastSuccess = result.EndedAt
		logger.Info("Task %s finished: %d item(s)", task.ID, items)
	}

	task.LastRun = result.StartedAt
	if next, nextErr := s.schedule.Next(task.Schedule, result.EndedAt); nextErr != nil {
		logger.Warn("scheduler: %s: %v", task.ID, nextErr)
	} else {
		task.NextRun = next
	}

	// State writes outlive cancellation so an interrupted run is still recorded.
	store := context.WithoutCancel(ctx)
	if saveErr := s.store.SaveTask(store, task); saveErr != nil {
		logger.Error("scheduler: save task %s: %v", task.ID, saveErr)
	}
	if recordErr := s.store.RecordResult(store, result); recordErr != nil {
		logger.Error("scheduler: record result for %s: %v", task.ID, recordErr)
	}
	if pruneErr := s.store.PruneHistory(store, DefaultHistoryKeep); pruneErr != nil {
		logger.Error("scheduler: prune history: %v", pruneErr)
	}
	return err
}
