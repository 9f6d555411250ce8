package task

import (
	"sync"
	"sync/atomic"
)

// DefaultTimeSlice is the number of ticks a freshly scheduled Normal
// task runs before round-robin rotation, matching
// original_source/kernel/src/sched/task.rs's DEFAULT_TIME_SLICE.
const DefaultTimeSlice = 10

// PriorityBoostInterval controls how fast a Normal task's effective
// priority improves while it waits: one point of boost per this many
// ticks of wait time, capped at 20.
const PriorityBoostInterval = 100

// State is a task's coarse scheduling state.
type State uint8

const (
	StateReady State = iota
	StateRunning
	StateBlocked
	StateDead
)

// Stats accumulates per-task runtime counters, all updated with
// atomics so the scheduler can read them without holding the task's
// lock.
type Stats struct {
	Runtime             atomic.Uint64
	RunCount            atomic.Uint64
	VoluntarySwitches   atomic.Uint64
	InvoluntarySwitches atomic.Uint64
	LastRun             atomic.Uint64
}

// TID identifies a Task uniquely across the system's lifetime.
type TID uint64

var tidCounter atomic.Uint64

// AllocTID returns the next thread/task ID, starting at 1, matching
// task.rs::alloc_tid.
func AllocTID() TID { return TID(tidCounter.Add(1)) }

// Task is the scheduler's view of a runnable unit of work: a kernel
// stack, a priority, and bookkeeping shared between the scheduler and
// the owning Thread. Grounded field-for-field on
// original_source/kernel/src/sched/task.rs's Task struct, minus fields
// that only make sense with a real MMU/hardware context (raw page
// table roots, physical stack addresses) which are represented here as
// opaque handles supplied by a collaborator.
type Task struct {
	mu sync.Mutex

	PID  uint64
	TID  TID
	Name string

	EntryPoint uint64
	KernelSP   uint64
	UserSP     uint64
	PageTable  uint64
	TLSBase    uint64

	Priority    Priority
	SchedClass  SchedClass
	SchedPolicy SchedPolicy
	TimeSlice   int

	State       State
	CPUAffinity CpuSet
	CurrentCPU  *int

	VRuntime uint64
	LastRun  uint64

	Migrations uint64
	LastCPU    int

	ThreadRef *Thread

	Context Context

	Stats Stats
}

// New constructs a task in the Ready state with Normal/CFS scheduling
// defaults, matching Task::new.
func New(pid uint64, tid TID, name string, entryPoint, kernelSP, pageTable uint64) *Task {
	return &Task{
		PID:         pid,
		TID:         tid,
		Name:        name,
		EntryPoint:  entryPoint,
		KernelSP:    kernelSP,
		PageTable:   pageTable,
		Priority:    PriorityUserNormal,
		SchedClass:  SchedClassNormal,
		SchedPolicy: SchedPolicyCFS,
		TimeSlice:   DefaultTimeSlice,
		State:       StateReady,
		CPUAffinity: AllCPUs(),
		LastCPU:     -1,
	}
}

// CanRunOn reports whether the task's affinity mask permits cpu.
func (t *Task) CanRunOn(cpu int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.CPUAffinity.Contains(cpu)
}

// UpdateRuntime adds ticks to the task's accumulated runtime and
// vruntime, and bumps its run count.
func (t *Task) UpdateRuntime(ticks uint64) {
	t.Stats.Runtime.Add(ticks)
	t.Stats.RunCount.Add(1)

	t.mu.Lock()
	t.VRuntime += ticks
	t.mu.Unlock()
}

// MarkScheduled records that the task started running on cpu, tagging
// the context switch as voluntary or not.
func (t *Task) MarkScheduled(cpu int, voluntary bool, now uint64) {
	t.mu.Lock()
	t.CurrentCPU = &cpu
	t.State = StateRunning
	t.LastRun = now
	t.mu.Unlock()

	t.Stats.LastRun.Store(now)
	if voluntary {
		t.Stats.VoluntarySwitches.Add(1)
	} else {
		t.Stats.InvoluntarySwitches.Add(1)
	}
}

// EffectivePriority computes the task's current scheduling priority,
// implementing task.rs::effective_priority exactly: RealTime tasks
// keep their static priority, Idle tasks are always lowest priority,
// and Normal tasks get a wait-time boost capped at 20 points.
func (t *Task) EffectivePriority(now uint64) Priority {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.SchedClass {
	case SchedClassRealTime:
		return t.Priority
	case SchedClassIdle:
		return PriorityIdle
	default:
		waitTime := now - t.LastRun
		boost := waitTime / PriorityBoostInterval
		if boost > 20 {
			boost = 20
		}
		return t.Priority.SaturatingSub(uint8(boost))
	}
}

// RecordMigration bumps the task's migration counter and last-known
// CPU, called by the scheduler's load balancer.
func (t *Task) RecordMigration(cpu int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Migrations++
	t.LastCPU = cpu
}
