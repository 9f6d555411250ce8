package task

// Context is the ISA-agnostic record of everything a context switch
// must preserve: callee-saved registers, program counter, stack
// pointer, and a pointer to lazily-saved FPU state. Matching spec.md
// §3's Task.context, the registers are plain uint64 slots (CalleeSaved
// is a fixed 32-slot array, of which an ISA uses its own subset) rather
// than named machine registers — naming them is the architecture
// layer's job (§1, out of scope); this module only guarantees the slots
// exist and are copied whole.
type Context struct {
	ProgramCounter uint64
	StackPointer   uint64
	Flags          uint64
	CalleeSaved    [32]uint64 // ISA-specific subset actually used
	FPUState       []byte     // lazily allocated, nil until first use
}

// ContextSwitcher is the architecture collaborator spec.md §4.6.4
// requires: an implementation per ISA that knows how to actually save
// and restore a Context on real hardware. The scheduler core depends
// only on this interface so it compiles and is testable against a
// mock, per the Design Notes' "FFI to ISA layer" requirement.
type ContextSwitcher interface {
	// Save copies the live register state into t.Context.
	Save(t *Task)
	// Restore installs t.Context's saved state as the live register
	// state, including switching the page table if t.PageTable differs
	// from the currently installed one.
	Restore(t *Task)
}

// MockContextSwitcher is a pure-software ContextSwitcher used by tests
// and cmd/veridiand's simulated CPUs: it round-trips Context values
// through plain field copies instead of touching real registers,
// satisfying the Design Notes' "core must compile against a mock
// implementation for tests" requirement.
type MockContextSwitcher struct {
	SaveCount    int
	RestoreCount int
}

// Save records the call and, having no live hardware state to read
// back in a host-side simulation, sets t.Context's program counter and
// stack pointer from t.EntryPoint and t.UserSP.
func (m *MockContextSwitcher) Save(t *Task) {
	m.SaveCount++
	t.mu.Lock()
	t.Context.ProgramCounter = t.EntryPoint
	t.Context.StackPointer = t.UserSP
	t.mu.Unlock()
}

// Restore records the call; a real implementation would reprogram the
// CPU here.
func (m *MockContextSwitcher) Restore(t *Task) {
	m.RestoreCount++
}
