package ipc

import (
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
)

// defaultCycleHz is used when a [PerfStats] is constructed via
// [NewPerfStats] without an explicit frequency. Unlike the original,
// which hardcodes a 2GHz assumption, this is just a starting default —
// call [PerfStats.SetCycleHz] once the host's actual TSC/counter
// frequency is known.
const defaultCycleHz = 2_000_000_000

// PerfStats accumulates IPC latency and fast-path-ratio statistics
// across the lifetime of the kernel, matching
// original_source/kernel/src/ipc/perf.rs's IpcPerfStats field-for-field.
// In addition to the original's all-time counters, RecordOperation
// records each fast/slow-path event in recentPath, a one-second sliding
// window; no method reads that window back, so [PerfStats.Report] is
// computed from the all-time counters only.
type PerfStats struct {
	totalOps      atomic.Uint64
	totalCycles   atomic.Uint64
	minLatency    atomic.Uint64
	maxLatency    atomic.Uint64
	fastPathCount atomic.Uint64
	slowPathCount atomic.Uint64

	cycleHz atomic.Uint64

	recentPath *catrate.Limiter
}

// NewPerfStats returns a stats collector seeded at defaultCycleHz, whose
// recentPath counts fast/slow-path events over a trailing one-second
// window via catrate's sliding-window event tracker.
func NewPerfStats() *PerfStats {
	s := &PerfStats{
		recentPath: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 1 << 30, // effectively unbounded; used as an event counter, not a limiter
		}),
	}
	s.minLatency.Store(^uint64(0))
	s.cycleHz.Store(defaultCycleHz)
	return s
}

// SetCycleHz overrides the assumed cycle/timestamp-counter frequency
// used by [PerfStats.CyclesToNanos]. The original hardcodes 2GHz;
// here it is configurable because the host running this module is not
// necessarily the target hardware.
func (s *PerfStats) SetCycleHz(hz uint64) {
	if hz == 0 {
		return
	}
	s.cycleHz.Store(hz)
}

// RecordOperation records one IPC operation's latency in cycles and
// whether it took the fast or slow path, exactly mirroring
// IpcPerfStats::record_operation's CAS-loop min/max update.
func (s *PerfStats) RecordOperation(cycles uint64, fastPath bool) {
	s.totalOps.Add(1)
	s.totalCycles.Add(cycles)

	for {
		current := s.minLatency.Load()
		if cycles >= current {
			break
		}
		if s.minLatency.CompareAndSwap(current, cycles) {
			break
		}
	}
	for {
		current := s.maxLatency.Load()
		if cycles <= current {
			break
		}
		if s.maxLatency.CompareAndSwap(current, cycles) {
			break
		}
	}

	if fastPath {
		s.fastPathCount.Add(1)
		s.recentPath.Allow("fast")
	} else {
		s.slowPathCount.Add(1)
		s.recentPath.Allow("slow")
	}
}

// AverageLatencyCycles returns the mean per-operation latency in
// cycles, or 0 if no operations have been recorded.
func (s *PerfStats) AverageLatencyCycles() uint64 {
	ops := s.totalOps.Load()
	if ops == 0 {
		return 0
	}
	return s.totalCycles.Load() / ops
}

// CyclesToNanos converts a cycle count to nanoseconds using the
// configured cycle frequency.
func (s *PerfStats) CyclesToNanos(cycles uint64) uint64 {
	hz := s.cycleHz.Load()
	if hz == 0 {
		return 0
	}
	return cycles * uint64(time.Second) / hz
}

// Report is a point-in-time snapshot of [PerfStats], analogous to
// IpcPerfReport.
type Report struct {
	TotalOperations      uint64
	AverageLatencyCycles uint64
	MinLatencyCycles     uint64
	MaxLatencyCycles     uint64
	FastPathPercentage   uint64
	AverageLatencyNanos  uint64
	MinLatencyNanos      uint64
	MaxLatencyNanos      uint64
}

// Report builds a snapshot of the current statistics.
func (s *PerfStats) Report() Report {
	totalOps := s.totalOps.Load()
	fastPath := s.fastPathCount.Load()
	avgCycles := s.AverageLatencyCycles()
	minCycles := s.minLatency.Load()
	if totalOps == 0 {
		minCycles = 0
	}
	maxCycles := s.maxLatency.Load()

	var fastPathPct uint64
	if totalOps > 0 {
		fastPathPct = (fastPath * 100) / totalOps
	}

	return Report{
		TotalOperations:      totalOps,
		AverageLatencyCycles: avgCycles,
		MinLatencyCycles:     minCycles,
		MaxLatencyCycles:     maxCycles,
		FastPathPercentage:   fastPathPct,
		AverageLatencyNanos:  s.CyclesToNanos(avgCycles),
		MinLatencyNanos:      s.CyclesToNanos(minCycles),
		MaxLatencyNanos:      s.CyclesToNanos(maxCycles),
	}
}

// MeetsLatencyTarget reports whether the report satisfies the fast-path
// latency budget: average under 5us and worst-case under 10us. Renamed
// from the original's meets_phase1_targets — this module has no
// notion of development phases, only a steady-state target.
func (r Report) MeetsLatencyTarget() bool {
	return r.AverageLatencyNanos < 5000 && r.MaxLatencyNanos < 10000
}

// MeetsFastPathRatio reports whether the report satisfies the
// sub-microsecond average-latency target. Renamed from the original's
// meets_phase5_targets.
func (r Report) MeetsFastPathRatio() bool {
	return r.AverageLatencyNanos < 1000
}

// MeasureOperation runs fn, recording its wall-clock duration (as
// nanosecond-equivalent "cycles" at the configured frequency) against s
// and tagging it fast or slow path. It stands in for the original's
// rdtsc-based measure_ipc_operation, since this module runs hosted
// rather than on bare metal.
func (s *PerfStats) MeasureOperation(fastPath bool, fn func()) {
	start := time.Now()
	fn()
	elapsed := time.Since(start)
	cycles := uint64(elapsed) * s.cycleHz.Load() / uint64(time.Second)
	s.RecordOperation(cycles, fastPath)
}
