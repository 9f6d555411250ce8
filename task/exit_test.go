package task

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExitMarksDeadAndSeversLink(t *testing.T) {
	thread := NewThread(1, AllocTID(), "w", 0)
	tsk := CreateTaskFromThread(thread)

	entry := Exit(tsk, 7, 1000)
	require.Equal(t, StateDead, tsk.State)
	require.Nil(t, thread.TaskPtr())
	require.Equal(t, ThreadStateDead, thread.GetState())
	require.Equal(t, uint32(7), thread.ExitCode.Load())
	require.Equal(t, uint64(1000+CleanupDelayTicks), entry.CleanupTick)
}

func TestCleanupQueueSweepRespectsDeadline(t *testing.T) {
	q := NewCleanupQueue()
	thread := NewThread(1, AllocTID(), "w", 0)
	tsk := CreateTaskFromThread(thread)
	entry := Exit(tsk, 0, 0)
	q.Push(entry)

	require.Empty(t, q.Sweep(50))
	require.Equal(t, 1, q.Len())

	ready := q.Sweep(CleanupDelayTicks)
	require.Len(t, ready, 1)
	require.Equal(t, 0, q.Len())
}
