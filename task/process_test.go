package task

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProcessThreadRegistration(t *testing.T) {
	p := NewProcess("init", 0, PriorityUserNormal)
	thread := NewThread(p.PID, AllocTID(), "main", 0)
	p.AddThread(thread)

	got, ok := p.GetThread(thread.TID)
	require.True(t, ok)
	require.Same(t, thread, got)
}

func TestProcessTableAddGetRemove(t *testing.T) {
	table := NewProcessTable()
	p := NewProcess("worker", 1, PriorityUserNormal)
	table.Add(p)

	got, ok := table.Get(p.PID)
	require.True(t, ok)
	require.Same(t, p, got)

	table.Remove(p.PID)
	_, ok = table.Get(p.PID)
	require.False(t, ok)
}

func TestProcessStateTransitions(t *testing.T) {
	p := NewProcess("init", 0, PriorityUserNormal)
	require.Equal(t, ProcessStateNew, p.State())
	p.SetState(ProcessStateReady)
	require.Equal(t, ProcessStateReady, p.State())
}
