package sched

import (
	"sync"

	"github.com/veridian-os/kernel/task"
)

// classQueue is one CPU's priority-class-aware ready structure,
// distinct from the generic [PerCpuQueue]: real-time tasks are pure
// FIFO (never preempted by peers, spec.md §4.6.3), Normal tasks are
// kept in a slice re-sorted by effective priority with vruntime as the
// tiebreaker on every pick (the "CFS-like" queue of §4.6.2), and Idle
// is a single fallback slot.
type classQueue struct {
	mu       sync.Mutex
	realTime []*task.Task
	normal   []*task.Task
	idle     *task.Task
}

func newClassQueue() *classQueue { return &classQueue{} }

func (c *classQueue) push(t *task.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch t.SchedClass {
	case task.SchedClassRealTime:
		c.realTime = append(c.realTime, t)
	case task.SchedClassIdle:
		c.idle = t
	default:
		c.normal = append(c.normal, t)
	}
}

// pickNext implements spec.md §4.6.2's pick-next rule: among the
// highest-priority class with work, pick the lowest effective-priority
// value, tie-broken by vruntime then FIFO order.
func (c *classQueue) pickNext(now uint64) *task.Task {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.realTime) > 0 {
		t := c.realTime[0]
		c.realTime = c.realTime[1:]
		return t
	}

	if len(c.normal) > 0 {
		bestIdx := 0
		bestPrio := c.normal[0].EffectivePriority(now)
		bestVR := c.normal[0].VRuntime
		for i := 1; i < len(c.normal); i++ {
			t := c.normal[i]
			prio := t.EffectivePriority(now)
			if prio < bestPrio || (prio == bestPrio && t.VRuntime < bestVR) {
				bestIdx = i
				bestPrio = prio
				bestVR = t.VRuntime
			}
		}
		t := c.normal[bestIdx]
		c.normal = append(c.normal[:bestIdx], c.normal[bestIdx+1:]...)
		return t
	}

	if c.idle != nil {
		t := c.idle
		return t
	}
	return nil
}

func (c *classQueue) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.realTime) + len(c.normal)
	if c.idle != nil {
		n++
	}
	return n
}

// remove deletes t from whichever sub-slice it's in (used for
// migration during load balancing). Reports whether it was found.
func (c *classQueue) remove(t *task.Task) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, candidate := range c.realTime {
		if candidate == t {
			c.realTime = append(c.realTime[:i], c.realTime[i+1:]...)
			return true
		}
	}
	for i, candidate := range c.normal {
		if candidate == t {
			c.normal = append(c.normal[:i], c.normal[i+1:]...)
			return true
		}
	}
	if c.idle == t {
		c.idle = nil
		return true
	}
	return false
}

// steal takes up to ceil(n/2) Normal-class tasks from the tail of c,
// mirroring [PerCpuQueue.Steal]'s policy but at task granularity.
// Real-time tasks are never stolen: they are pinned to the CPU that
// admitted them per spec.md §4.6.3.
func (c *classQueue) steal() []*task.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.normal)
	if n < StealThreshold {
		return nil
	}
	take := (n + 1) / 2
	split := n - take
	stolen := append([]*task.Task{}, c.normal[split:]...)
	c.normal = c.normal[:split]
	return stolen
}

// snapshot returns every runnable (non-idle) task currently queued,
// used by LoadBalance to compute per-CPU load and candidates to
// migrate.
func (c *classQueue) snapshot() []*task.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*task.Task, 0, len(c.realTime)+len(c.normal))
	out = append(out, c.realTime...)
	out = append(out, c.normal...)
	return out
}
