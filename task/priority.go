// Package task implements the kernel's task control blocks, threads,
// and process-level clone/exec/exit semantics.
package task

// Priority is a static scheduling priority band. Lower numeric values
// run first. Values and names are taken directly from
// original_source/kernel/src/sched/task.rs's Priority enum.
type Priority uint8

const (
	PriorityRealTimeHigh   Priority = 0
	PriorityRealTimeNormal Priority = 10
	PriorityRealTimeLow    Priority = 20
	PrioritySystemHigh     Priority = 30
	PrioritySystemNormal   Priority = 40
	PriorityUserHigh       Priority = 50
	PriorityUserNormal     Priority = 60 // default
	PriorityUserLow        Priority = 70
	PriorityIdle           Priority = 99
)

// FromNumeric maps a raw 0-100 thread priority value (as stored on a
// process thread) to the nearest Priority band, mirroring
// task_management.rs::create_task_from_thread's match arms exactly.
func FromNumeric(value uint8) Priority {
	switch {
	case value <= 10:
		return PriorityRealTimeHigh
	case value <= 20:
		return PriorityRealTimeNormal
	case value <= 30:
		return PriorityRealTimeLow
	case value <= 40:
		return PrioritySystemHigh
	case value <= 50:
		return PrioritySystemNormal
	case value <= 60:
		return PriorityUserHigh
	case value <= 70:
		return PriorityUserNormal
	case value <= 80:
		return PriorityUserLow
	default:
		return PriorityIdle
	}
}

// SaturatingSub returns p boosted by up to amount, never crossing below
// PriorityRealTimeHigh (0).
func (p Priority) SaturatingSub(amount uint8) Priority {
	if uint8(p) < amount {
		return 0
	}
	return Priority(uint8(p) - amount)
}

// SchedClass is the coarse scheduling class derived from a task's
// Priority.
type SchedClass uint8

const (
	SchedClassRealTime SchedClass = iota
	SchedClassNormal
	SchedClassIdle
)

// ClassFor returns the scheduling class for priority, matching
// create_task_from_thread's derivation: RealTime for anything at or
// below RealTimeLow, Idle for exactly Idle, Normal otherwise.
func ClassFor(priority Priority) SchedClass {
	switch {
	case priority <= PriorityRealTimeLow:
		return SchedClassRealTime
	case priority == PriorityIdle:
		return SchedClassIdle
	default:
		return SchedClassNormal
	}
}

// SchedPolicy selects the queueing discipline within a class.
type SchedPolicy uint8

const (
	SchedPolicyFifo SchedPolicy = iota
	SchedPolicyRoundRobin
	SchedPolicyCFS
	SchedPolicyIdle
)
