package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitewatch/inspection-engine/internal/config"
)

type signallingHandler struct {
	name string
	err  error
	runs chan struct{}
}

func (h *signallingHandler) Execute(context.Context) error {
	h.runs <- struct{}{}
	return h.err
}

func (h *signallingHandler) Name() string { return h.name }

func newTestScheduler(escalation, metricsRefresh TaskHandler) *Scheduler {
	cfg := &config.Config{
		Scheduler: config.SchedulerConfig{
			Enabled:                     true,
			EscalationProcessorSchedule: "0 */5 * * * *",
			EscalationProcessorEnabled:  true,
			MetricsRefreshSchedule:      "30 * * * * *",
			MetricsRefreshEnabled:       true,
		},
	}
	return NewScheduler(cfg, slog.Default(), escalation, metricsRefresh)
}

func taskByID(t *testing.T, s *Scheduler, id string) ScheduledTask {
	t.Helper()
	for _, task := range s.Tasks() {
		if task.ID == id {
			return task
		}
	}
	t.Fatalf("task %s not registered", id)
	return ScheduledTask{}
}

func TestExecuteTaskNowUnknownTask(t *testing.T) {
	s := newTestScheduler(&signallingHandler{name: "a"}, &signallingHandler{name: "b"})
	assert.Error(t, s.ExecuteTaskNow("nope"))
}

func TestExecuteTaskNowCountsRunsAndErrors(t *testing.T) {
	escalation := &signallingHandler{name: "escalation", err: errors.New("poll failed"), runs: make(chan struct{}, 8)}
	s := newTestScheduler(escalation, &signallingHandler{name: "metrics"})

	for i := 0; i < 3; i++ {
		require.NoError(t, s.ExecuteTaskNow("escalation_processor"))
		<-escalation.runs
	}

	// the error count is written after Execute returns
	assert.Eventually(t, func() bool {
		task := taskByID(t, s, "escalation_processor")
		return task.RunCount == 3 && task.ErrorCount == 3
	}, time.Second, 5*time.Millisecond)

	task := taskByID(t, s, "escalation_processor")
	assert.False(t, task.LastRun.IsZero())
}

func TestTasksSnapshotSafeDuringExecution(t *testing.T) {
	escalation := &signallingHandler{name: "escalation", runs: make(chan struct{}, 64)}
	s := newTestScheduler(escalation, &signallingHandler{name: "metrics"})

	const runs = 20
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < runs; i++ {
			_ = s.ExecuteTaskNow("escalation_processor")
		}
	}()

	// status reads race the cron-style goroutines; snapshots must stay safe
	go func() {
		defer wg.Done()
		for i := 0; i < runs*5; i++ {
			for _, task := range s.Tasks() {
				_ = task.RunCount
				_ = task.LastRun
			}
		}
	}()

	wg.Wait()
	for i := 0; i < runs; i++ {
		<-escalation.runs
	}

	assert.Eventually(t, func() bool {
		return taskByID(t, s, "escalation_processor").RunCount == runs
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, taskByID(t, s, "escalation_processor").ErrorCount)
}
