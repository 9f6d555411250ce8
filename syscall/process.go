package syscall

import (
	"context"

	"github.com/joeycumines/go-longpoll"

	"github.com/veridian-os/kernel/kernelerr"
	"github.com/veridian-os/kernel/task"
)

// ExitInfo is what [Kernel.Wait] delivers for each child that exits,
// the payload of spec.md §6's wait syscall.
type ExitInfo struct {
	PID      uint64
	TID      task.TID
	ExitCode int32
}

// SpawnInitialThread creates and schedules a process's first thread,
// bypassing [task.Clone] (which only makes sense once a parent task
// already exists and is running) — this is the bootstrap path used
// once per [Kernel.NewProcess], analogous to the original kernel's
// "process 0" special case.
func (k *Kernel) SpawnInitialThread(process *task.Process, name string, entryPoint, stackTop uint64) (task.TID, error) {
	thread := task.NewThread(process.PID, task.AllocTID(), name, entryPoint)
	thread.UserStack = stackTop
	thread.Priority = uint8(process.Priority)
	thread.State = task.ThreadStateRunnable
	process.AddThread(thread)

	t := task.New(process.PID, thread.TID, name, entryPoint, 0, 0)
	t.UserSP = stackTop
	t.Priority = process.Priority
	t.SchedClass = task.ClassFor(t.Priority)
	t.ThreadRef = thread
	thread.SetTaskPtr(t)

	if err := k.Sched.Enqueue(t); err != nil {
		return 0, err
	}
	return thread.TID, nil
}

// ThreadClone implements spec.md §6's thread_clone: validate and apply
// req against the parent thread's process (via [task.Clone]), admit
// the resulting [task.Task] to the scheduler, and return its new TID.
func (k *Kernel) ThreadClone(pid uint64, parentTID task.TID, req task.CloneRequest, name string) (task.TID, error) {
	process, ok := k.Processes.Get(pid)
	if !ok {
		return 0, kernelerr.ProcessNotFound(pid)
	}
	parentThread, ok := process.GetThread(parentTID)
	if !ok {
		return 0, kernelerr.ThreadNotFound(uint64(parentTID))
	}
	parentTask := parentThread.TaskPtr()
	if parentTask == nil {
		return 0, kernelerr.InvalidState("scheduled task", "unscheduled thread")
	}

	validator, err := k.vspaceFor(pid)
	if err != nil {
		return 0, err
	}

	child, err := task.Clone(parentTask, req, validator, name)
	if err != nil {
		return 0, err
	}
	process.AddThread(child)

	childTask := task.New(pid, child.TID, name, child.EntryPoint, child.KernelStack, parentTask.PageTable)
	childTask.UserSP = child.UserStack
	childTask.TLSBase = child.TLSBase
	childTask.Priority = task.FromNumeric(child.Priority)
	childTask.SchedClass = task.ClassFor(childTask.Priority)
	childTask.CPUAffinity = task.CpuSetFromMask(child.CPUAffinity.Load())
	childTask.ThreadRef = child
	child.SetTaskPtr(childTask)

	if err := k.Sched.Enqueue(childTask); err != nil {
		return 0, err
	}
	return child.TID, nil
}

// Exec implements spec.md §6's exec: replace tid's process image with
// the binary at req.Path.
func (k *Kernel) Exec(pid uint64, tid task.TID, req task.ExecRequest, fs task.Filesystem) (task.ExecResult, error) {
	process, ok := k.Processes.Get(pid)
	if !ok {
		return task.ExecResult{}, kernelerr.ProcessNotFound(pid)
	}
	thread, ok := process.GetThread(tid)
	if !ok {
		return task.ExecResult{}, kernelerr.ThreadNotFound(uint64(tid))
	}
	space, err := k.vspaceFor(pid)
	if err != nil {
		return task.ExecResult{}, err
	}

	result, err := task.Exec(thread, space, fs, req)
	if err != nil {
		return task.ExecResult{}, err
	}

	if t := thread.TaskPtr(); t != nil {
		t.EntryPoint = result.EntryPoint
		t.UserSP = result.StackTop
	}
	return result, nil
}

// Exit implements spec.md §6's exit: retire tid via the scheduler's
// deferred-cleanup path and queue an [ExitInfo] for [Kernel.Wait] on
// pid, whether a waiter is already blocked or calls Wait later.
func (k *Kernel) Exit(pid uint64, tid task.TID, exitCode int32) error {
	t, ok := k.Sched.Lookup(tid)
	if !ok {
		return kernelerr.ThreadNotFound(uint64(tid))
	}
	k.Sched.Exit(t, exitCode)

	k.exitChannel(pid) <- ExitInfo{PID: pid, TID: tid, ExitCode: exitCode}
	return nil
}

// exitChannel returns (creating if necessary) the buffered exit-event
// channel for pid's children, grounded on the teacher's `longpoll`
// generic-channel consumer pattern: producers (Exit) just send, and
// [Kernel.Wait] wraps the receive side in longpoll.Channel for
// min/max-batch, partial-timeout semantics instead of a bespoke loop.
func (k *Kernel) exitChannel(pid uint64) chan ExitInfo {
	k.exitMu.Lock()
	defer k.exitMu.Unlock()
	ch, ok := k.exitCh[pid]
	if !ok {
		ch = make(chan ExitInfo, 64)
		k.exitCh[pid] = ch
	}
	return ch
}

// Wait implements spec.md §6's wait: block until at least one (up to
// cfg's bounds) of pid's children has exited, invoking handler for
// each. cfg may be nil for longpoll's documented defaults.
func (k *Kernel) Wait(ctx context.Context, pid uint64, cfg *longpoll.ChannelConfig, handler func(ExitInfo) error) error {
	return longpoll.Channel(ctx, cfg, k.exitChannel(pid), handler)
}
