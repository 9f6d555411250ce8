// Package sched implements VeridianOS's scheduler core: per-CPU ready
// queues with work stealing, priority-class dispatch, preemption,
// IPC-blocking integration, deferred task cleanup, and affinity-aware
// load balancing. Grounded directly on
// original_source/kernel/src/sched/percpu_queue.rs (ported test suite)
// and sched/task.rs/load_balance.rs, per spec.md §4.6.
package sched

import (
	"sync"
	"sync/atomic"

	"github.com/veridian-os/kernel/kernelerr"
)

// StealThreshold is the minimum queue length a victim CPU must have
// before [PerCpuQueue.Steal] will take anything from it, matching
// spec.md §4.6.1's STEAL_THRESHOLD.
const StealThreshold = 2

// PerCpuQueue is a single CPU's ready queue: a mutex-protected deque of
// PIDs plus an atomic length counter so [PerCpuQueue.Len] never
// contends the mutex, matching percpu_queue.rs's PerCpuQueue exactly
// (push at tail, pop from head, steal from tail).
type PerCpuQueue struct {
	mu      sync.Mutex
	entries []uint64
	length  atomic.Int64
}

// NewPerCpuQueue returns an empty queue.
func NewPerCpuQueue() *PerCpuQueue { return &PerCpuQueue{} }

// Push appends pid to the tail.
func (q *PerCpuQueue) Push(pid uint64) {
	q.mu.Lock()
	q.entries = append(q.entries, pid)
	q.mu.Unlock()
	q.length.Add(1)
}

// Pop removes and returns the head entry.
func (q *PerCpuQueue) Pop() (uint64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return 0, false
	}
	pid := q.entries[0]
	q.entries = q.entries[1:]
	q.length.Add(-1)
	return pid, true
}

// Steal removes up to ceil(len/2) entries from the tail, and only if
// the queue currently holds at least [StealThreshold] entries,
// matching percpu_queue.rs's steal. Returns the stolen entries in the
// order they should be pushed onto the stealer's own queue (oldest
// stolen first).
func (q *PerCpuQueue) Steal() []uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.entries)
	if n < StealThreshold {
		return nil
	}
	take := (n + 1) / 2
	split := n - take
	stolen := append([]uint64{}, q.entries[split:]...)
	q.entries = q.entries[:split]
	q.length.Add(-int64(take))
	return stolen
}

// Len returns the queue's current length without acquiring the mutex.
func (q *PerCpuQueue) Len() int64 { return q.length.Load() }

// PerCpuScheduler is the generic, class-agnostic work-stealing
// substrate described in spec.md §4.6.1: an array of [MaxCPUs]
// [PerCpuQueue]s plus push/pop/steal-for/rebalance/find-least-loaded
// operations over raw PIDs. The priority-class dispatch logic in
// [Scheduler] is layered on top of this, not inside it — a deliberate
// split so TestRebalance-style invariants can be checked independently
// of any particular priority policy.
type PerCpuScheduler struct {
	cpuCount int
	queues   [MaxCPUs]*PerCpuQueue
}

// MaxCPUs bounds the fixed per-CPU array, matching spec.md's MAX_CPUS.
const MaxCPUs = 16

// NewPerCpuScheduler returns a scheduler view over cpuCount CPUs (1 to
// MaxCPUs inclusive).
func NewPerCpuScheduler(cpuCount int) *PerCpuScheduler {
	s := &PerCpuScheduler{cpuCount: cpuCount}
	for i := 0; i < cpuCount; i++ {
		s.queues[i] = NewPerCpuQueue()
	}
	return s
}

// CPUCount returns the number of CPUs this scheduler manages.
func (s *PerCpuScheduler) CPUCount() int { return s.cpuCount }

func (s *PerCpuScheduler) queue(cpu int) (*PerCpuQueue, error) {
	if cpu < 0 || cpu >= s.cpuCount {
		return nil, kernelerr.Scheduler(kernelerr.SchedInvalidCPUID)
	}
	return s.queues[cpu], nil
}

// Push enqueues pid onto cpu's ready queue.
func (s *PerCpuScheduler) Push(cpu int, pid uint64) error {
	q, err := s.queue(cpu)
	if err != nil {
		return err
	}
	q.Push(pid)
	return nil
}

// Pop dequeues the next pid from cpu's own queue.
func (s *PerCpuScheduler) Pop(cpu int) (uint64, error) {
	q, err := s.queue(cpu)
	if err != nil {
		return 0, err
	}
	pid, ok := q.Pop()
	if !ok {
		return 0, kernelerr.Scheduler(kernelerr.SchedQueueEmpty)
	}
	return pid, nil
}

// StealFor picks the busiest other CPU by current length and steals
// from its tail, pushing everything but the first stolen entry onto
// cpu's own queue and returning that first entry to the caller — the
// task the stealer itself will run next. Matches spec.md's steal_for.
func (s *PerCpuScheduler) StealFor(cpu int) (uint64, error) {
	if _, err := s.queue(cpu); err != nil {
		return 0, err
	}

	busiest := -1
	var busiestLen int64
	for i := 0; i < s.cpuCount; i++ {
		if i == cpu {
			continue
		}
		if l := s.queues[i].Len(); l > busiestLen {
			busiest = i
			busiestLen = l
		}
	}
	if busiest == -1 {
		return 0, kernelerr.Scheduler(kernelerr.SchedQueueEmpty)
	}

	stolen := s.queues[busiest].Steal()
	if len(stolen) == 0 {
		return 0, kernelerr.Scheduler(kernelerr.SchedQueueEmpty)
	}
	first := stolen[0]
	for _, pid := range stolen[1:] {
		s.queues[cpu].Push(pid)
	}
	return first, nil
}

// FindLeastLoaded returns the CPU with the smallest current queue
// length.
func (s *PerCpuScheduler) FindLeastLoaded() int {
	least := 0
	var leastLen int64 = -1
	for i := 0; i < s.cpuCount; i++ {
		if l := s.queues[i].Len(); leastLen == -1 || l < leastLen {
			least = i
			leastLen = l
		}
	}
	return least
}

func (s *PerCpuScheduler) findMostLoaded() int {
	most := 0
	var mostLen int64 = -1
	for i := 0; i < s.cpuCount; i++ {
		if l := s.queues[i].Len(); l > mostLen {
			most = i
			mostLen = l
		}
	}
	return most
}

// Len returns cpu's current queue length.
func (s *PerCpuScheduler) Len(cpu int) (int64, error) {
	q, err := s.queue(cpu)
	if err != nil {
		return 0, err
	}
	return q.Len(), nil
}

// Rebalance performs spec.md §4.6.1's periodic pass: find the min- and
// max-loaded CPUs, and if max exceeds min by more than
// [StealThreshold], move half of max's tasks to min. Returns the
// number of tasks migrated.
func (s *PerCpuScheduler) Rebalance() int {
	if s.cpuCount < 2 {
		return 0
	}
	maxCPU := s.findMostLoaded()
	minCPU := s.FindLeastLoaded()
	if maxCPU == minCPU {
		return 0
	}
	maxLen := s.queues[maxCPU].Len()
	minLen := s.queues[minCPU].Len()
	if maxLen <= minLen+StealThreshold {
		return 0
	}

	q := s.queues[maxCPU]
	q.mu.Lock()
	take := len(q.entries) / 2
	split := len(q.entries) - take
	moved := append([]uint64{}, q.entries[split:]...)
	q.entries = q.entries[:split]
	q.length.Add(-int64(take))
	q.mu.Unlock()
	for _, pid := range moved {
		s.queues[minCPU].Push(pid)
	}
	return len(moved)
}
