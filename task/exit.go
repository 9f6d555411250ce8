package task

import "sync"

// CleanupDelayTicks is the minimum number of ticks a dead task's TCB
// must survive after exit before it is safe to free, bounding the
// window in which another CPU might still hold a raw reference to it.
// Matches original_source's "cleanup after 100 ticks" comment in
// task_management.rs::exit_task.
const CleanupDelayTicks = 100

// Exit marks task Dead, severs its thread<->task link, records the
// exit code, clears its scheduler queue links, and returns the
// cleanup-queue entry the caller (the scheduler) should enqueue.
// Implements spec.md §4.5.4.
func Exit(task *Task, exitCode int32, now uint64) CleanupEntry {
	task.mu.Lock()
	task.State = StateDead
	task.CurrentCPU = nil
	thread := task.ThreadRef
	task.mu.Unlock()

	if thread != nil {
		thread.SetTaskPtr(nil)
		thread.SetState(ThreadStateDead)
		thread.ExitCode.Store(uint32(exitCode))

		if thread.ClearChildOnExit && thread.ChildTIDPtr != 0 {
			// Neither Exit nor the syscall layer zeroes *ChildTIDPtr or
			// wakes futex waiters; the request stays recorded in the
			// thread's ClearChildOnExit and ChildTIDPtr fields.
		}
	}

	return CleanupEntry{Task: task, CleanupTick: now + CleanupDelayTicks}
}

// CleanupEntry pairs a dead task with the tick at which it becomes safe
// to free.
type CleanupEntry struct {
	Task        *Task
	CleanupTick uint64
}

// CleanupQueue is the global deferred-reclamation queue for dead tasks,
// matching task_management.rs::exit_task's CLEANUP_QUEUE: entries are
// processed under a mutex, but any release callback runs after the
// lock is dropped.
type CleanupQueue struct {
	mu      sync.Mutex
	entries []CleanupEntry
}

// NewCleanupQueue returns an empty queue.
func NewCleanupQueue() *CleanupQueue { return &CleanupQueue{} }

// Push enqueues entry.
func (q *CleanupQueue) Push(entry CleanupEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, entry)
}

// Sweep removes and returns every entry whose CleanupTick has passed,
// matching sched/load_balance.rs::cleanup_dead_tasks's swap-remove
// pass. The caller is responsible for actually releasing each
// returned Task (e.g. removing it from a process's task table).
func (q *CleanupQueue) Sweep(currentTick uint64) []CleanupEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	var ready []CleanupEntry
	remaining := q.entries[:0]
	for _, e := range q.entries {
		if currentTick >= e.CleanupTick {
			ready = append(ready, e)
		} else {
			remaining = append(remaining, e)
		}
	}
	q.entries = remaining
	return ready
}

// Len reports the number of entries still pending.
func (q *CleanupQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
