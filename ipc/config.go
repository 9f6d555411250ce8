package ipc

// Config tunes the IPC subsystem, following the same nil-or-zero-value
// idiom as the teacher's `microbatch.BatcherConfig`: construct with
// only the fields that matter and call [Config.setDefaults] (done
// automatically by [NewSubsystem]) to fill in the rest.
type Config struct {
	// QueueCapacity is passed to [NewChannel] for every [Channel] the
	// [Subsystem] mints; NewChannel does not bound a channel's queue by
	// it. Defaults to [MaxChannelQueueSize].
	QueueCapacity int

	// CycleHz is the host's TSC/cycle-counter frequency used to convert
	// [PerfStats] cycle counts to durations. Defaults to
	// defaultCycleHz.
	CycleHz uint64
}

func (c *Config) setDefaults() {
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = MaxChannelQueueSize
	}
	if c.CycleHz == 0 {
		c.CycleHz = defaultCycleHz
	}
}

// Subsystem bundles the shared [PerfStats] collector with the
// configuration it passes to every [Channel] it mints, so callers
// don't have to thread both through separately.
type Subsystem struct {
	cfg   Config
	Stats *PerfStats
}

// NewSubsystem applies cfg's defaults and returns a ready Subsystem.
func NewSubsystem(cfg Config) *Subsystem {
	cfg.setDefaults()
	stats := NewPerfStats()
	stats.SetCycleHz(cfg.CycleHz)
	return &Subsystem{cfg: cfg, Stats: stats}
}

// NewEndpoint mints an [Endpoint] owned by owner, wired to this
// subsystem's shared stats collector.
func (s *Subsystem) NewEndpoint(owner uint64) *Endpoint { return NewEndpoint(owner, s.Stats) }

// NewChannel mints a [Channel] owned by owner, using the subsystem's
// configured queue capacity and shared stats collector.
func (s *Subsystem) NewChannel(owner uint64) *Channel {
	return NewChannel(owner, s.cfg.QueueCapacity, s.Stats)
}
