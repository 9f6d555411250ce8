package sched

// Config tunes a [Scheduler], following the same nil-or-zero-value
// idiom the teacher's `microbatch.BatcherConfig` uses: a caller passes
// a [Config] with only the fields it cares about set, and
// [Config.setDefaults] fills in the rest.
type Config struct {
	// CPUCount is the number of simulated CPUs, 1 to [MaxCPUs]
	// inclusive. Defaults to 1.
	CPUCount int

	// TimeSlice is the number of ticks a Normal task runs before it
	// becomes eligible for round-robin preemption by an equal-priority
	// peer. Defaults to [task.DefaultTimeSlice].
	TimeSlice uint64

	// RebalanceInterval is how often, in ticks, a CPU's run loop should
	// invoke [Scheduler.Rebalance] and [Scheduler.LoadBalance].
	// Defaults to 1000.
	RebalanceInterval uint64

	// CleanupInterval is how often, in ticks, a CPU's run loop should
	// invoke [Scheduler.SweepCleanup]. Defaults to 100, matching
	// [task.CleanupDelayTicks].
	CleanupInterval uint64
}

const (
	defaultTimeSlice         = 10
	defaultRebalanceInterval = 1000
	defaultCleanupInterval   = 100
)

func (c *Config) setDefaults() {
	if c.CPUCount <= 0 {
		c.CPUCount = 1
	}
	if c.CPUCount > MaxCPUs {
		c.CPUCount = MaxCPUs
	}
	if c.TimeSlice == 0 {
		c.TimeSlice = defaultTimeSlice
	}
	if c.RebalanceInterval == 0 {
		c.RebalanceInterval = defaultRebalanceInterval
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = defaultCleanupInterval
	}
}
