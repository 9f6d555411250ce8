package ksync

import (
	"sync"
	"sync/atomic"
)

// RCUCallback is a deferred cleanup function registered via
// [RCUDomain.CallRCU]. It runs once every CPU has passed through a
// quiescent state observed after registration.
type RCUCallback func()

type rcuCallback struct {
	fn       RCUCallback
	gp       uint64 // grace period after which fn becomes eligible to run
}

// RCUDomain implements epoch-based reclamation: read-side critical
// sections increment/decrement a per-CPU nesting counter with no memory
// fence beyond relaxed atomics, and [RCUDomain.SynchronizeRCU] blocks
// until every CPU has reported a nesting count of zero at or after the
// new grace period. This mirrors
// original_source/kernel/src/sync/rcu.rs's RCU_NESTING/RCU_GP_COUNTER/
// RCU_CPU_GP design exactly, substituting goroutine-safe atomics for the
// bare-metal per-CPU statics.
type RCUDomain struct {
	nesting    PerCPU[atomic.Int64]
	observedGP PerCPU[atomic.Uint64]
	gpCounter  atomic.Uint64

	mu        sync.Mutex
	callbacks []rcuCallback
}

// NewRCUDomain returns a domain with all CPUs initially quiescent.
func NewRCUDomain() *RCUDomain {
	return &RCUDomain{}
}

// ReadLock marks cpu as inside an RCU read-side critical section. Nested
// calls on the same cpu are supported via the nesting counter.
func (d *RCUDomain) ReadLock(cpu int) {
	d.nesting.At(cpu).Add(1)
}

// ReadUnlock ends one level of RCU read-side critical section on cpu.
func (d *RCUDomain) ReadUnlock(cpu int) {
	d.nesting.At(cpu).Add(-1)
}

// IsReading reports whether cpu is currently inside a read-side critical
// section.
func (d *RCUDomain) IsReading(cpu int) bool {
	return d.nesting.At(cpu).Load() > 0
}

// Quiescent records that cpu has reached a quiescent state (no RCU
// read-side reference held) at the current grace period. The scheduler
// calls this on every context switch and when a CPU goes idle.
func (d *RCUDomain) Quiescent(cpu int) {
	if d.nesting.At(cpu).Load() == 0 {
		d.observedGP.At(cpu).Store(d.gpCounter.Load())
	}
}

// SynchronizeRCU blocks the calling goroutine until every CPU in
// [0, cpuCount) has observed the new grace period while quiescent. It
// busy-polls rather than parking, matching the spin-wait the original
// specifies ("spins until every online CPU has ... observed_gp >=
// new_gp"); callers on a real scheduler should invoke this from a
// context that is itself willing to yield (e.g. not the only runnable
// goroutine on GOMAXPROCS=1).
func (d *RCUDomain) SynchronizeRCU(cpuCount int) {
	newGP := d.gpCounter.Add(1)
	for {
		done := true
		for cpu := 0; cpu < cpuCount; cpu++ {
			if d.nesting.At(cpu).Load() != 0 {
				done = false
				break
			}
			if d.observedGP.At(cpu).Load() < newGP {
				done = false
				break
			}
		}
		if done {
			break
		}
	}
	d.processCallbacks(newGP)
}

// CallRCU registers fn to run after the next grace period that starts
// at or after this call.
func (d *RCUDomain) CallRCU(fn RCUCallback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callbacks = append(d.callbacks, rcuCallback{fn: fn, gp: d.gpCounter.Load() + 1})
}

func (d *RCUDomain) processCallbacks(completedGP uint64) {
	d.mu.Lock()
	var ready []RCUCallback
	remaining := d.callbacks[:0]
	for _, cb := range d.callbacks {
		if cb.gp <= completedGP {
			ready = append(ready, cb.fn)
		} else {
			remaining = append(remaining, cb)
		}
	}
	d.callbacks = remaining
	d.mu.Unlock()

	for _, fn := range ready {
		fn()
	}
}
