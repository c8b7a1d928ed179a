// Copyright (c) 2026 Wardstone Team
// Wardstone - security posture monitoring engine
// This source code is licensed under the MIT license found in the LICENSE file.

package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/toeirei/wardstone/internal/logging"
)

// Task is a named periodic job owned by the Scheduler.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)
}

// Scheduler owns independently configured periodic tasks. Start is
// idempotent, Stop cancels pending timer activations; in-flight executions
// run to completion but no task begins a new execution once Stop has been
// observed.
type Scheduler struct {
	mu      sync.Mutex
	clock   Clock
	tasks   []Task
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewScheduler creates a scheduler for the given tasks. A nil clock falls
// back to the system clock.
func NewScheduler(clock Clock, tasks ...Task) *Scheduler {
	if clock == nil {
		clock = NewRealClock()
	}
	return &Scheduler{clock: clock, tasks: tasks}
}

// Start launches one timer loop per task and reports whether this call
// performed the start. Calling Start while already running is a logged
// no-op, never an error.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		logging.Infof("scheduler: already running, ignoring start request")
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.runTask(ctx, task)
	}
	logging.Infof("scheduler: started %d periodic task(s)", len(s.tasks))
	return true
}

// runTask drives one task's timer loop until the scheduler context is
// cancelled.
func (s *Scheduler) runTask(ctx context.Context, task Task) {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			// A tick may already be buffered when Stop races the timer;
			// re-check cancellation so no new execution starts after Stop.
			if ctx.Err() != nil {
				return
			}
			logging.Debugf("scheduler: task %s firing", task.Name)
			task.Run(ctx)
		}
	}
}

// Stop cancels all pending timer activations and waits for in-flight task
// executions to finish. Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	logging.Infof("scheduler: stopped")
}

// Running reports whether the scheduler currently has active timer loops.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
