package sched

import (
	"context"
	"time"

	"github.com/joeycumines/go-eventloop"
	"github.com/veridian-os/kernel/task"
)

// TickInterval is the simulated timer-interrupt period driving each
// [CPU]'s dispatch cycle.
const TickInterval = time.Millisecond

// CPU is one simulated processor's run loop: it repeatedly asks its
// [Scheduler] for the next task, "runs" it (in this host-side
// simulation, that means invoking the caller-supplied dispatch hook
// and yielding back on the next tick), and periodically sweeps dead
// tasks and rebalances load. Built directly on the teacher's
// `eventloop.Loop` — `ScheduleTimer` drives the periodic dispatch/
// rebalance/cleanup cadence and `Submit`/`Wake` deliver cross-CPU IPIs
// exactly the way `eventloop` documents `Wake` for "another goroutine
// needs the loop to reconsider its poll timeout", which is precisely
// what [Scheduler.enqueueOn]'s SendIPI call needs.
type CPU struct {
	id    int
	sched *Scheduler
	loop  *eventloop.Loop
	cfg   Config

	// Dispatch is invoked with the task selected by PickNext on every
	// tick; it should run the task for up to one time slice and return.
	// A nil Dispatch (the default used by tests) just advances
	// accounting without simulating real execution.
	Dispatch func(t *task.Task)
}

// NewCPU constructs CPU id's run loop. sched must already have at
// least id+1 CPUs configured.
func NewCPU(id int, sched *Scheduler, cfg Config) (*CPU, error) {
	loop, err := eventloop.New()
	if err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &CPU{id: id, sched: sched, loop: loop, cfg: cfg}, nil
}

// ID returns this CPU's index.
func (c *CPU) ID() int { return c.id }

// Wake interrupts the run loop's current poll so it immediately
// reconsiders PickNext, the target of [InterruptController.SendIPI].
func (c *CPU) Wake() error { return c.loop.Wake() }

// Run drives the dispatch cycle until ctx is cancelled or
// [CPU.Shutdown] is called. It arms one tick timer on the underlying
// eventloop.Loop and re-arms it from each tick; the tick handler also
// runs a rebalance sweep every RebalanceInterval ticks and a cleanup
// sweep every CleanupInterval ticks.
func (c *CPU) Run(ctx context.Context) error {
	var tickCount uint64
	var onTick func()
	onTick = func() {
		tickCount++
		c.dispatchOnce()
		if tickCount%c.cfg.RebalanceInterval == 0 {
			c.sched.Rebalance()
			c.sched.LoadBalance()
		}
		if tickCount%c.cfg.CleanupInterval == 0 {
			c.sched.SweepCleanup()
		}
		if err := c.loop.ScheduleTimer(TickInterval, onTick); err != nil {
			return
		}
	}

	if err := c.loop.ScheduleTimer(TickInterval, onTick); err != nil {
		return err
	}

	return c.loop.Run(ctx)
}

func (c *CPU) dispatchOnce() {
	c.sched.Tick(c.id)
	next, err := c.sched.PickNext(c.id)
	if err != nil || next == nil {
		return
	}
	if c.Dispatch != nil {
		c.Dispatch(next)
	}
}

// Shutdown stops the run loop, waiting up to ctx's deadline for the
// current tick to finish.
func (c *CPU) Shutdown(ctx context.Context) error { return c.loop.Shutdown(ctx) }
