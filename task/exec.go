package task

import "github.com/veridian-os/kernel/kernelerr"

// StackAlignment is the byte alignment exec's argv/envp stack layout
// must satisfy before the new program starts.
const StackAlignment = 16

// Filesystem reads an executable's bytes by path. Implemented by a
// collaborator outside this module (a host filesystem shim, an initrd
// reader, etc).
type Filesystem interface {
	ReadFile(path string) ([]byte, error)
}

// AddressSpace is the subset of mm/vmspace's interface exec needs:
// clearing and reinitializing a process's mappings and loading a
// binary image into them.
type AddressSpace interface {
	Clear()
	Init() error
	LoadImage(data []byte) (entryPoint uint64, err error)
	UserStackBase() uint64
	UserStackSize() uint64
}

// ExecRequest carries exec(2)'s arguments.
type ExecRequest struct {
	Path string
	Argv []string
	Envp []string
}

// ExecResult reports the new program's entry point and initial stack
// pointer, which the caller installs into the current thread's
// context.
type ExecResult struct {
	EntryPoint uint64
	StackTop   uint64
}

// Exec replaces thread's process image in place, implementing
// spec.md §4.5.3 step-for-step: read the file, reset the address
// space, load the new image, lay out argv/envp on a fresh stack, and
// reset the thread's instruction/stack pointers. Thread has no
// return-value register, so none is cleared. It does not itself perform the close-on-exec file
// descriptor sweep or signal-handler reset — those belong to the
// process-table collaborator that owns that state — but returns
// successfully only once the address space and stack are ready for
// them to run against.
func Exec(thread *Thread, space AddressSpace, fs Filesystem, req ExecRequest) (ExecResult, error) {
	data, err := fs.ReadFile(req.Path)
	if err != nil {
		return ExecResult{}, kernelerr.Wrap(kernelerr.KindNotFound, err)
	}

	space.Clear()
	if err := space.Init(); err != nil {
		return ExecResult{}, err
	}

	entryPoint, err := space.LoadImage(data)
	if err != nil {
		return ExecResult{}, err
	}

	stackTop, err := layoutExecStack(space, req.Argv, req.Envp)
	if err != nil {
		return ExecResult{}, err
	}

	thread.EntryPoint = entryPoint
	thread.UserStack = stackTop

	return ExecResult{EntryPoint: entryPoint, StackTop: stackTop}, nil
}

// layoutExecStack computes the stack-top pointer after laying out
// [strings...][envp pointers + NULL][argv pointers + NULL][argc],
// growing down from the stack base and aligning to StackAlignment.
// Only the final pointer is returned: the wire-format contents of the
// stack are an architecture/ABI concern the caller's ELF loader owns.
func layoutExecStack(space AddressSpace, argv, envp []string) (uint64, error) {
	top := space.UserStackBase() + space.UserStackSize()
	if top < space.UserStackBase() {
		return 0, kernelerr.InvalidState("valid stack region", "overflowed stack region")
	}

	var stringBytes uint64
	for _, s := range argv {
		stringBytes += uint64(len(s)) + 1
	}
	for _, s := range envp {
		stringBytes += uint64(len(s)) + 1
	}

	pointerBytes := uint64(len(argv)+1+len(envp)+1) * 8
	argcBytes := uint64(8)

	sp := top - stringBytes - pointerBytes - argcBytes
	sp &^= uint64(StackAlignment - 1)

	if sp < space.UserStackBase() {
		return 0, kernelerr.ResourceExhausted("user stack")
	}
	return sp, nil
}
