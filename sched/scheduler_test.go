package sched

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veridian-os/kernel/task"
)

type fakeClock struct{ ticks uint64 }

func (c *fakeClock) Ticks() uint64          { return c.ticks }
func (c *fakeClock) TicksPerSecond() uint64 { return 1000 }

func newTestScheduler(t *testing.T, cpuCount int) (*Scheduler, *fakeClock) {
	t.Helper()
	clock := &fakeClock{}
	s := New(Config{CPUCount: cpuCount}, clock, NullInterruptController{})
	return s, clock
}

func newReadyTask(tid task.TID) *task.Task {
	return task.New(uint64(tid), tid, "t", 0, 0, 0)
}

func TestSchedulerEnqueuePickNext(t *testing.T) {
	s, _ := newTestScheduler(t, 1)
	tk := newReadyTask(1)
	require.NoError(t, s.Enqueue(tk))

	got, err := s.PickNext(0)
	require.NoError(t, err)
	require.Same(t, tk, got)
	require.Equal(t, task.StateRunning, got.State)
}

func TestSchedulerPickNextEmptyReturnsNil(t *testing.T) {
	s, _ := newTestScheduler(t, 1)
	got, err := s.PickNext(0)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSchedulerInvalidCPU(t *testing.T) {
	s, _ := newTestScheduler(t, 1)
	_, err := s.PickNext(5)
	require.Error(t, err)
}

// Scenario D, at the Scheduler level this time: three PIDs pushed
// straight onto CPU0's raw queue of a 2-CPU scheduler; Rebalance moves
// one of them to CPU1, leaving the queues 2/1.
func TestSchedulerRebalanceDelegates(t *testing.T) {
	s, _ := newTestScheduler(t, 2)
	require.NoError(t, s.perCPU.Push(0, 1))
	require.NoError(t, s.perCPU.Push(0, 2))
	require.NoError(t, s.perCPU.Push(0, 3))

	moved := s.Rebalance()
	require.Equal(t, 1, moved)
}

func TestSchedulerRealTimeNeverPreemptedByNormal(t *testing.T) {
	s, _ := newTestScheduler(t, 1)
	rt := newReadyTask(1)
	rt.Priority = task.PriorityRealTimeHigh
	rt.SchedClass = task.SchedClassRealTime
	require.NoError(t, s.Enqueue(rt))
	_, err := s.PickNext(0)
	require.NoError(t, err)

	normal := newReadyTask(2)
	require.False(t, s.ShouldPreempt(0, normal, 0))
}

func TestSchedulerPreemptsOnTimeSliceExpiry(t *testing.T) {
	s, clock := newTestScheduler(t, 1)
	first := newReadyTask(1)
	require.NoError(t, s.Enqueue(first))
	_, err := s.PickNext(0)
	require.NoError(t, err)

	clock.ticks = s.timeSlice
	second := newReadyTask(2)
	require.True(t, s.ShouldPreempt(0, second, clock.Ticks()))
}

func TestSchedulerBlockAndWakeFromIPC(t *testing.T) {
	s, _ := newTestScheduler(t, 1)
	tk := newReadyTask(1)
	s.BlockOnIPC(tk, 42)
	require.Equal(t, task.StateBlocked, tk.State)

	woken := s.WakeFromIPC(42, 0)
	require.Len(t, woken, 1)
	require.Same(t, tk, woken[0])
	require.Equal(t, task.StateReady, tk.State)
}

func TestSchedulerExitAndSweepCleanup(t *testing.T) {
	s, clock := newTestScheduler(t, 1)
	tk := newReadyTask(1)
	require.NoError(t, s.Enqueue(tk))

	s.Exit(tk, 0)
	require.Equal(t, task.StateDead, tk.State)

	require.Equal(t, 0, s.SweepCleanup())

	clock.ticks = task.CleanupDelayTicks
	var reclaimed *task.Task
	s.OnReclaim(func(t *task.Task) { reclaimed = t })
	require.Equal(t, 1, s.SweepCleanup())
	require.Same(t, tk, reclaimed)

	_, ok := s.Lookup(tk.TID)
	require.False(t, ok)
}

func TestSchedulerLoadBalanceMovesImbalancedTasks(t *testing.T) {
	s, _ := newTestScheduler(t, 2)
	for i := 1; i <= 5; i++ {
		tk := newReadyTask(task.TID(i))
		require.NoError(t, s.enqueueOn(0, tk))
	}

	moved := s.LoadBalance()
	require.Greater(t, moved, 0)
	require.LessOrEqual(t, moved, MaxLoadBalanceMigrations)
	require.Less(t, s.Len(0), 5)
	require.Greater(t, s.Len(1), 0)
}

func TestSchedulerLoadBalanceNoopWhenBalanced(t *testing.T) {
	s, _ := newTestScheduler(t, 2)
	require.NoError(t, s.enqueueOn(0, newReadyTask(1)))
	require.NoError(t, s.enqueueOn(1, newReadyTask(2)))

	require.Equal(t, 0, s.LoadBalance())
}

func TestSchedulerAffinityRestrictsPlacement(t *testing.T) {
	s, _ := newTestScheduler(t, 2)
	tk := newReadyTask(1)
	tk.CPUAffinity = task.SingleCPU(1)

	require.NoError(t, s.Enqueue(tk))
	require.Equal(t, 0, s.Len(0))
	require.Equal(t, 1, s.Len(1))
}
