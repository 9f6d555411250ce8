package task

// CreateTaskFromThread allocates a scheduler Task from an already
// created Thread, converting its raw numeric priority into a Priority
// band and scheduling class, copying CPU affinity and TLS base, and
// installing the bidirectional task<->thread link. Implements
// original_source/kernel/src/sched/task_management.rs::create_task_from_thread.
func CreateTaskFromThread(thread *Thread) *Task {
	t := New(thread.PID, thread.TID, thread.Name, thread.EntryPoint, thread.KernelStack, 0)

	t.Priority = FromNumeric(thread.Priority)
	t.SchedClass = ClassFor(t.Priority)
	t.CPUAffinity = CpuSetFromMask(thread.CPUAffinity.Load())
	t.TLSBase = thread.TLSBase
	t.UserSP = thread.UserStack
	t.ThreadRef = thread

	thread.SetTaskPtr(t)
	thread.SetState(ThreadStateRunnable)

	return t
}
