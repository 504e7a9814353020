// Package runtime runs a service's long-lived background tasks and restarts
// any that fail, so a transient crash in one loop never takes the process
// down with it.
package runtime

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is a long-running loop. It should return only when ctx is cancelled
// or it hit an unrecoverable-in-place error; the supervisor restarts it.
type Task func(ctx context.Context) error

const (
	initialRestartBackoff = time.Second
	maxRestartBackoff     = time.Minute
	// A task that survives this long is considered healthy again and its
	// backoff resets.
	healthyRuntime = 5 * time.Minute
)

type namedTask struct {
	name string
	run  Task
}

// Supervisor owns a set of named tasks.
type Supervisor struct {
	tasks  []namedTask
	logger *zap.Logger
}

// NewSupervisor creates an empty supervisor.
func NewSupervisor(logger *zap.Logger) *Supervisor {
	return &Supervisor{logger: logger}
}

// Add registers a task. Must be called before Run.
func (s *Supervisor) Add(name string, task Task) {
	s.tasks = append(s.tasks, namedTask{name: name, run: task})
}

// Run starts every task and blocks until ctx is cancelled and all tasks
// have returned. Failed tasks are restarted with exponential backoff.
func (s *Supervisor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, task := range s.tasks {
		wg.Add(1)
		go func(task namedTask) {
			defer wg.Done()
			s.supervise(ctx, task)
		}(task)
	}
	wg.Wait()
}

func (s *Supervisor) supervise(ctx context.Context, task namedTask) {
	backoff := initialRestartBackoff

	for {
		started := time.Now()
		err := task.run(ctx)

		if ctx.Err() != nil {
			s.logger.Info("task stopped", zap.String("task", task.name))
			return
		}

		if time.Since(started) >= healthyRuntime {
			backoff = initialRestartBackoff
		}

		s.logger.Error("task exited, restarting",
			zap.String("task", task.name),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxRestartBackoff {
			backoff = maxRestartBackoff
		}
	}
}
