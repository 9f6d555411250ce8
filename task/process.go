package task

import (
	"sync"
	"sync/atomic"
)

// ProcessState is a process's coarse lifecycle state.
type ProcessState uint8

const (
	ProcessStateNew ProcessState = iota
	ProcessStateReady
	ProcessStateRunning
	ProcessStateZombie
	ProcessStateDead
)

var pidCounter atomic.Uint64

// AllocPID returns the next process ID, starting at 1.
func AllocPID() uint64 { return pidCounter.Add(1) }

// Process is the process-table entry owning a thread table and a
// parent/child relationship. Memory-space and file-table ownership
// live with the mm and syscall packages respectively; Process only
// tracks what the task/thread model itself needs.
type Process struct {
	PID      uint64
	Parent   uint64
	Name     string
	Priority Priority

	Threads *Table

	state atomic.Uint32
}

// NewProcess allocates a PID and returns a process in the New state.
func NewProcess(name string, parent uint64, priority Priority) *Process {
	return &Process{
		PID:      AllocPID(),
		Parent:   parent,
		Name:     name,
		Priority: priority,
		Threads:  NewTable(),
	}
}

// State returns the process's current lifecycle state.
func (p *Process) State() ProcessState { return ProcessState(p.state.Load()) }

// SetState updates the process's lifecycle state.
func (p *Process) SetState(s ProcessState) { p.state.Store(uint32(s)) }

// AddThread registers thread under this process's thread table.
func (p *Process) AddThread(thread *Thread) { p.Threads.Insert(thread) }

// GetThread looks up a thread by TID within this process.
func (p *Process) GetThread(tid TID) (*Thread, bool) { return p.Threads.Lookup(tid) }

// ProcessTable is the system-wide PID -> Process registry, using a
// sync.Map for the same read-heavy reason as Table.
type ProcessTable struct {
	byPID sync.Map // uint64 -> *Process
}

// NewProcessTable returns an empty process table.
func NewProcessTable() *ProcessTable { return &ProcessTable{} }

// Add registers process under its PID.
func (t *ProcessTable) Add(p *Process) { t.byPID.Store(p.PID, p) }

// Get looks up a process by PID.
func (t *ProcessTable) Get(pid uint64) (*Process, bool) {
	v, ok := t.byPID.Load(pid)
	if !ok {
		return nil, false
	}
	return v.(*Process), true
}

// Remove deregisters pid.
func (t *ProcessTable) Remove(pid uint64) { t.byPID.Delete(pid) }
