// Package sched runs the periodic task kinds (trade cycle, supervisor
// sweep, janitor sweep) on fixed intervals. Each task kind is
// non-reentrant: a tick is skipped while the previous run of the same
// task is still in flight. Different task kinds run concurrently.
package sched

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Task is one periodic job.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)

	mu sync.Mutex
}

// tick runs the task unless a previous run is still in flight.
func (t *Task) tick(ctx context.Context) {
	if !t.mu.TryLock() {
		log.Warn().Str("task", t.Name).Msg("tick | previous run still in flight, skipping")
		return
	}
	defer t.mu.Unlock()
	t.Run(ctx)
}

// Runner drives a set of tasks until the context is canceled.
type Runner struct {
	tasks []*Task
}

func NewRunner(tasks ...*Task) *Runner {
	return &Runner{tasks: tasks}
}

// Start launches one ticker loop per task and blocks until ctx is done
// and all in-flight runs have returned.
func (r *Runner) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, task := range r.tasks {
		wg.Add(1)
		go func(t *Task) {
			defer wg.Done()
			ticker := time.NewTicker(t.Interval)
			defer ticker.Stop()
			log.Info().Str("task", t.Name).Dur("interval", t.Interval).Msg("Start | task scheduled")
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					t.tick(ctx)
				}
			}
		}(task)
	}
	wg.Wait()
}
