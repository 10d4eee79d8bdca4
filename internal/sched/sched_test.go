package sched

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTickSkipsWhileRunning(t *testing.T) {
	var running atomic.Int32
	var overlapped atomic.Bool
	release := make(chan struct{})

	task := &Task{
		Name:     "slow",
		Interval: time.Hour,
		Run: func(ctx context.Context) {
			if running.Add(1) > 1 {
				overlapped.Store(true)
			}
			<-release
			running.Add(-1)
		},
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task.tick(context.Background())
		}()
	}

	// Let the goroutines contend, then release the one holding the lock.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.False(t, overlapped.Load(), "at most one run of a task kind in flight")
}

func TestRunnerStopsOnContextCancel(t *testing.T) {
	var runs atomic.Int32
	task := &Task{
		Name:     "fast",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) {
			runs.Add(1)
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewRunner(task).Start(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancel")
	}
	assert.Greater(t, runs.Load(), int32(0), "task ran at least once before cancel")
}

func TestGate(t *testing.T) {
	g := NewGate()
	assert.True(t, g.Enabled(), "gate starts enabled")
	g.Disable()
	assert.False(t, g.Enabled())
	g.Enable()
	assert.True(t, g.Enabled())
}
