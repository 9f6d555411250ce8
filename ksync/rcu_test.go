package ksync_test

import (
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/veridian-os/kernel/ksync"
)

func TestRCUReadLockNesting(t *testing.T) {
	d := ksync.NewRCUDomain()
	require.False(t, d.IsReading(0))
	d.ReadLock(0)
	d.ReadLock(0)
	require.True(t, d.IsReading(0))
	d.ReadUnlock(0)
	require.True(t, d.IsReading(0))
	d.ReadUnlock(0)
	require.False(t, d.IsReading(0))
}

// synchronize runs SynchronizeRCU(cpus) while every CPU keeps reporting
// quiescent states, as a scheduler does at each context switch, and
// returns once the grace period has completed.
func synchronize(d *ksync.RCUDomain, cpus int) {
	done := make(chan struct{})
	go func() {
		d.SynchronizeRCU(cpus)
		close(done)
	}()
	quiesceUntil(d, cpus, done)
}

// quiesceUntil reports a quiescent state on every CPU, over and over,
// until done is closed.
func quiesceUntil(d *ksync.RCUDomain, cpus int, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}
		for cpu := 0; cpu < cpus; cpu++ {
			d.Quiescent(cpu)
		}
		runtime.Gosched()
	}
}

func TestSynchronizeRCUWaitsForQuiescence(t *testing.T) {
	d := ksync.NewRCUDomain()
	const cpus = 4
	// no CPU holds a read lock and every CPU keeps passing through
	// quiescent states; this must return promptly.
	synchronize(d, cpus)

	d.ReadLock(1)
	done := make(chan struct{})
	go func() {
		d.SynchronizeRCU(cpus)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("SynchronizeRCU returned while CPU 1 still holds a read lock")
	default:
	}

	d.ReadUnlock(1)
	quiesceUntil(d, cpus, done)
}

func TestCallRCURunsAfterGracePeriod(t *testing.T) {
	d := ksync.NewRCUDomain()
	var fired atomic.Bool
	d.CallRCU(func() { fired.Store(true) })

	require.False(t, fired.Load())
	synchronize(d, 1)
	require.True(t, fired.Load())
}
