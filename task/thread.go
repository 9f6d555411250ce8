package task

import (
	"sync"
	"sync/atomic"
)

// ThreadState mirrors a thread's lifecycle independently of its
// scheduler-side Task, since a thread can exist (e.g. just created)
// before it has ever been scheduled.
type ThreadState uint8

const (
	ThreadStateNew ThreadState = iota
	ThreadStateRunnable
	ThreadStateBlocked
	ThreadStateDead
)

// Thread is a process's unit of execution before it is handed to the
// scheduler as a Task. The Task<->Thread link is bidirectional: a
// Thread points at its scheduler Task once scheduled, and a Task holds
// a back-reference so task exit can clear the thread's state without a
// table lookup.
type Thread struct {
	mu sync.Mutex

	PID  uint64
	TID  TID
	Name string

	Priority    uint8 // 0-100 raw scale, converted via FromNumeric
	CPUAffinity atomic.Uint64

	State    ThreadState
	ExitCode atomic.Uint32

	EntryPoint  uint64
	KernelStack uint64
	UserStack   uint64
	TLSBase     uint64

	taskRef *Task

	ChildTIDPtr      uint64 // set by CLONE_CHILD_SETTID/CLEARTID
	ClearChildOnExit bool
}

// NewThread constructs a thread in the New state.
func NewThread(pid uint64, tid TID, name string, entryPoint uint64) *Thread {
	return &Thread{
		PID:        pid,
		TID:        tid,
		Name:       name,
		EntryPoint: entryPoint,
		State:      ThreadStateNew,
	}
}

// SetTaskPtr installs or clears the thread's back-reference to its
// scheduler Task.
func (t *Thread) SetTaskPtr(task *Task) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.taskRef = task
}

// TaskPtr returns the thread's current scheduler Task, or nil.
func (t *Thread) TaskPtr() *Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.taskRef
}

// SetState updates the thread's lifecycle state.
func (t *Thread) SetState(state ThreadState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.State = state
}

// GetState returns the thread's current lifecycle state.
func (t *Thread) GetState() ThreadState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.State
}

// Table is the process-wide thread registry, keyed by TID. Grounded on
// the teacher's catrate.Limiter category map: a sync.Map avoids a
// single global mutex on the hot lookup path, since reads vastly
// outnumber inserts/deletes once a process is running.
type Table struct {
	threads sync.Map // TID -> *Thread
}

// NewTable returns an empty thread table.
func NewTable() *Table { return &Table{} }

// Insert registers thread under its TID.
func (tb *Table) Insert(thread *Thread) { tb.threads.Store(thread.TID, thread) }

// Lookup returns the thread registered for tid, if any.
func (tb *Table) Lookup(tid TID) (*Thread, bool) {
	v, ok := tb.threads.Load(tid)
	if !ok {
		return nil, false
	}
	return v.(*Thread), true
}

// Remove deregisters tid.
func (tb *Table) Remove(tid TID) { tb.threads.Delete(tid) }

// Range calls fn for every thread currently registered, stopping early
// if fn returns false.
func (tb *Table) Range(fn func(thread *Thread) bool) {
	tb.threads.Range(func(_, v any) bool { return fn(v.(*Thread)) })
}
