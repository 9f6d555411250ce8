package task

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromNumericBands(t *testing.T) {
	require.Equal(t, PriorityRealTimeHigh, FromNumeric(5))
	require.Equal(t, PriorityRealTimeLow, FromNumeric(25))
	require.Equal(t, PriorityUserNormal, FromNumeric(65))
	require.Equal(t, PriorityIdle, FromNumeric(95))
}

func TestClassForBands(t *testing.T) {
	require.Equal(t, SchedClassRealTime, ClassFor(PriorityRealTimeLow))
	require.Equal(t, SchedClassIdle, ClassFor(PriorityIdle))
	require.Equal(t, SchedClassNormal, ClassFor(PriorityUserNormal))
}

func TestNewTaskDefaults(t *testing.T) {
	tsk := New(1, AllocTID(), "init", 0x1000, 0x2000, 0x3000)
	require.Equal(t, PriorityUserNormal, tsk.Priority)
	require.Equal(t, SchedClassNormal, tsk.SchedClass)
	require.Equal(t, SchedPolicyCFS, tsk.SchedPolicy)
	require.Equal(t, DefaultTimeSlice, tsk.TimeSlice)
	require.Equal(t, StateReady, tsk.State)
	require.True(t, tsk.CanRunOn(0))
	require.True(t, tsk.CanRunOn(MaxCPUs-1))
}

func TestEffectivePriorityRealTimeStatic(t *testing.T) {
	tsk := New(1, AllocTID(), "rt", 0, 0, 0)
	tsk.SchedClass = SchedClassRealTime
	tsk.Priority = PriorityRealTimeNormal
	require.Equal(t, PriorityRealTimeNormal, tsk.EffectivePriority(100_000))
}

func TestEffectivePriorityNormalBoost(t *testing.T) {
	tsk := New(1, AllocTID(), "n", 0, 0, 0)
	tsk.Priority = PriorityUserNormal
	tsk.LastRun = 0

	// 250 ticks of wait -> boost of 2 (250/100).
	require.Equal(t, tsk.Priority.SaturatingSub(2), tsk.EffectivePriority(250))

	// Past 2000 ticks the boost saturates at 20.
	require.Equal(t, tsk.Priority.SaturatingSub(20), tsk.EffectivePriority(5000))
}

func TestEffectivePriorityIdleAlwaysLowest(t *testing.T) {
	tsk := New(1, AllocTID(), "idle", 0, 0, 0)
	tsk.SchedClass = SchedClassIdle
	require.Equal(t, PriorityIdle, tsk.EffectivePriority(999999))
}

func TestCreateTaskFromThread(t *testing.T) {
	thread := NewThread(1, AllocTID(), "worker", 0x4000)
	thread.Priority = 35 // SystemHigh band
	thread.CPUAffinity.Store(uint64(SingleCPU(2)))

	tsk := CreateTaskFromThread(thread)
	require.Equal(t, PrioritySystemHigh, tsk.Priority)
	require.Equal(t, SchedClassNormal, tsk.SchedClass)
	require.True(t, tsk.CPUAffinity.Contains(2))
	require.False(t, tsk.CPUAffinity.Contains(3))
	require.Same(t, thread, tsk.ThreadRef)
	require.Same(t, tsk, thread.TaskPtr())
	require.Equal(t, ThreadStateRunnable, thread.GetState())
}
