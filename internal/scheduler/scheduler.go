// Package scheduler runs the periodic work of the service: the escalation
// email poll and the metrics gauge refresh.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sitewatch/inspection-engine/internal/config"
)

// TaskHandler is one periodic job.
type TaskHandler interface {
	Execute(ctx context.Context) error
	Name() string
}

// ScheduledTask tracks one cron entry and its run statistics.
type ScheduledTask struct {
	ID          string
	Schedule    string
	Handler     TaskHandler
	Enabled     bool
	LastRun     time.Time
	RunCount    int64
	ErrorCount  int64
	cronEntryID cron.EntryID
}

// Scheduler manages the cron entries.
type Scheduler struct {
	config     *config.Config
	logger     *slog.Logger
	cron       *cron.Cron
	tasks      map[string]*ScheduledTask
	tasksMutex sync.RWMutex
}

// NewScheduler creates a scheduler with the given task handlers registered
// against their configured schedules.
func NewScheduler(cfg *config.Config, logger *slog.Logger, escalation, metricsRefresh TaskHandler) *Scheduler {
	s := &Scheduler{
		config: cfg,
		logger: logger,
		cron:   cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC)),
		tasks:  make(map[string]*ScheduledTask),
	}

	s.tasks["escalation_processor"] = &ScheduledTask{
		ID:       "escalation_processor",
		Schedule: cfg.Scheduler.EscalationProcessorSchedule,
		Handler:  escalation,
		Enabled:  cfg.Scheduler.EscalationProcessorEnabled,
	}
	s.tasks["metrics_refresh"] = &ScheduledTask{
		ID:       "metrics_refresh",
		Schedule: cfg.Scheduler.MetricsRefreshSchedule,
		Handler:  metricsRefresh,
		Enabled:  cfg.Scheduler.MetricsRefreshEnabled,
	}

	return s
}

// Start schedules the enabled tasks and starts the cron loop.
func (s *Scheduler) Start() error {
	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()

	for _, task := range s.tasks {
		if !task.Enabled {
			continue
		}
		task := task
		entryID, err := s.cron.AddFunc(task.Schedule, func() {
			s.executeTask(task)
		})
		if err != nil {
			return fmt.Errorf("failed to schedule task %s: %w", task.ID, err)
		}
		task.cronEntryID = entryID
	}

	s.cron.Start()
	s.logger.Info("Scheduler started", "tasks", len(s.tasks))
	return nil
}

// Stop stops the cron loop and waits for running tasks.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

// ExecuteTaskNow runs a task immediately, outside its schedule.
func (s *Scheduler) ExecuteTaskNow(taskID string) error {
	s.tasksMutex.RLock()
	task, exists := s.tasks[taskID]
	s.tasksMutex.RUnlock()

	if !exists {
		return fmt.Errorf("task %s not found", taskID)
	}

	go s.executeTask(task)
	return nil
}

// Tasks returns a snapshot of the registered tasks. Copies are returned so
// callers never race the cron goroutines updating the run counters.
func (s *Scheduler) Tasks() []ScheduledTask {
	s.tasksMutex.RLock()
	defer s.tasksMutex.RUnlock()

	tasks := make([]ScheduledTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, *task)
	}
	return tasks
}

func (s *Scheduler) executeTask(task *ScheduledTask) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	start := time.Now()
	s.tasksMutex.Lock()
	task.LastRun = start
	task.RunCount++
	s.tasksMutex.Unlock()

	if err := task.Handler.Execute(ctx); err != nil {
		s.tasksMutex.Lock()
		task.ErrorCount++
		s.tasksMutex.Unlock()
		s.logger.Error("Scheduled task failed",
			"task_id", task.ID,
			"error", err,
			"execution_time", time.Since(start))
		return
	}

	s.logger.Debug("Scheduled task completed",
		"task_id", task.ID,
		"execution_time", time.Since(start))
}
