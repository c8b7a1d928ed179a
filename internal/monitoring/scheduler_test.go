package monitoring

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSchedulerStart_Idempotent(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	s := NewScheduler(clock,
		Task{Name: "a", Interval: time.Hour, Run: func(context.Context) {}},
		Task{Name: "b", Interval: time.Minute, Run: func(context.Context) {}},
	)

	require.True(t, s.Start())
	require.False(t, s.Start()) // logged no-op
	defer s.Stop()

	require.True(t, s.Running())
	// Exactly one ticker per task, not two.
	require.Equal(t, 2, clock.tickerCount())
}

func TestSchedulerTick_RunsTask(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	var runs atomic.Int32
	done := make(chan struct{}, 4)

	s := NewScheduler(clock, Task{Name: "audit", Interval: time.Hour, Run: func(context.Context) {
		runs.Add(1)
		done <- struct{}{}
	}})
	s.Start()
	defer s.Stop()

	clock.ticker(0).fire(clock.Now())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run after tick")
	}
	require.Equal(t, int32(1), runs.Load())
}

func TestSchedulerStop_CancelsPendingTicks(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	var runs atomic.Int32

	started := make(chan struct{})
	s := NewScheduler(clock, Task{Name: "slow", Interval: time.Hour, Run: func(ctx context.Context) {
		runs.Add(1)
		close(started)
		// Simulate an execution still in flight when Stop arrives; it
		// only finishes once cancellation has been issued.
		<-ctx.Done()
	}})
	s.Start()

	clock.ticker(0).fire(clock.Now())
	<-started

	// Buffer another tick while the first execution is still in flight,
	// then stop. The in-flight run completes; the buffered tick must not
	// start a new execution.
	clock.ticker(0).fire(clock.Now())

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after in-flight task finished")
	}

	require.False(t, s.Running())
	require.Equal(t, int32(1), runs.Load(), "no new execution may start after stop")
	require.True(t, clock.ticker(0).isStopped())
}

func TestSchedulerStop_Idempotent(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	s := NewScheduler(clock, Task{Name: "a", Interval: time.Hour, Run: func(context.Context) {}})

	s.Stop() // never started, no-op
	s.Start()
	s.Stop()
	s.Stop() // second stop, no-op
	require.False(t, s.Running())
}

func TestSchedulerRestart_CreatesFreshTickers(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	s := NewScheduler(clock, Task{Name: "a", Interval: time.Hour, Run: func(context.Context) {}})

	s.Start()
	s.Stop()
	s.Start()
	defer s.Stop()

	require.Equal(t, 2, clock.tickerCount())
	require.True(t, s.Running())
}
