package syscall

import (
	"sync"

	"github.com/veridian-os/kernel/capability"
	"github.com/veridian-os/kernel/ipc"
	"github.com/veridian-os/kernel/kernelerr"
	"github.com/veridian-os/kernel/mm/frame"
	"github.com/veridian-os/kernel/mm/vmspace"
	"github.com/veridian-os/kernel/sched"
	"github.com/veridian-os/kernel/task"
)

// Config bundles the sizing knobs for [NewKernel]'s collaborators,
// following the same optional-Config idiom as [sched.Config] and
// [ipc.Config].
type Config struct {
	Sched sched.Config
	IPC   ipc.Config
	Frame frame.Config

	// InitialFrames, if nonzero, initializes NUMA node 0 of the frame
	// allocator with this many frames so [Kernel.NewProcess]'s address
	// spaces have something to map. Zero leaves the allocator nodeless;
	// callers that need multiple NUMA nodes should call
	// Kernel.Frames.InitNUMANode directly instead.
	InitialFrames uint64
}

// Kernel is the syscall layer's view of the whole system: it owns the
// process table, the global capability manager, the scheduler, the IPC
// subsystem, and the physical frame allocator, and is the only type in
// this module that touches all of them at once. Every exported method
// is a syscall implementation, named after spec.md §6's external
// interface table.
type Kernel struct {
	Caps      *capability.Manager
	Processes *task.ProcessTable
	Sched     *sched.Scheduler
	IPCSub    *ipc.Subsystem
	Frames    *frame.Allocator
	Replies   *ipc.ReplyRegistry

	mu        sync.RWMutex
	spaces    map[uint64]*capability.Space
	vspaces   map[uint64]*vmspace.Space
	endpoints map[uint64]*ipc.Endpoint // keyed by ipc.EndpointID
	channels  map[uint64]*ipc.Channel  // keyed by ipc.EndpointID of the send half
	regions   map[uint64]*ipc.Region   // keyed by ipc.RegionID

	exitMu sync.Mutex
	exitCh map[uint64]chan ExitInfo // PID -> channel fed by Exit
}

// NewKernel constructs a Kernel with fresh collaborators. clock and
// interrupts are forwarded to [sched.New]; see its doc for the
// permitted-nil defaults.
func NewKernel(cfg Config, clock sched.Clock, interrupts sched.InterruptController) *Kernel {
	frames := frame.NewAllocator(cfg.Frame)
	if cfg.InitialFrames > 0 {
		_ = frames.InitNUMANode(0, 0, cfg.InitialFrames)
	}
	caps := capability.NewManager()
	ipcSub := ipc.NewSubsystem(cfg.IPC)

	k := &Kernel{
		Caps:      caps,
		Processes: task.NewProcessTable(),
		Sched:     sched.New(cfg.Sched, clock, interrupts),
		IPCSub:    ipcSub,
		Frames:    frames,
		Replies:   ipc.NewReplyRegistry(ipcSub.Stats),
		spaces:    make(map[uint64]*capability.Space),
		vspaces:   make(map[uint64]*vmspace.Space),
		endpoints: make(map[uint64]*ipc.Endpoint),
		channels:  make(map[uint64]*ipc.Channel),
		regions:   make(map[uint64]*ipc.Region),
		exitCh:    make(map[uint64]chan ExitInfo),
	}

	// On every revocation (§4.3.5), bump the generation of every live
	// process's capability space, not just the central registry; the
	// revoked entries themselves stay in those spaces.
	caps.Subscribe(func(r capability.Revoked) {
		k.mu.RLock()
		spaces := make([]*capability.Space, 0, len(k.spaces))
		for _, s := range k.spaces {
			spaces = append(spaces, s)
		}
		k.mu.RUnlock()
		for _, s := range spaces {
			s.IncrementGeneration()
		}
	})

	return k
}

// NewProcess allocates a process, its capability space, and its
// address space, and registers all three under the returned PID.
func (k *Kernel) NewProcess(name string, parent uint64, priority task.Priority) *task.Process {
	p := task.NewProcess(name, parent, priority)

	vs := vmspace.New(k.Frames)
	_ = vs.Init()

	k.mu.Lock()
	k.spaces[p.PID] = capability.NewSpace()
	k.vspaces[p.PID] = vs
	k.mu.Unlock()

	k.Processes.Add(p)
	return p
}

// CapabilitySpace returns pid's capability space, for introspection
// callers outside this package (e.g. the debug service in cmd/veridiand).
func (k *Kernel) CapabilitySpace(pid uint64) (*capability.Space, error) {
	return k.spaceFor(pid)
}

func (k *Kernel) spaceFor(pid uint64) (*capability.Space, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	s, ok := k.spaces[pid]
	if !ok {
		return nil, kernelerr.ProcessNotFound(pid)
	}
	return s, nil
}

func (k *Kernel) vspaceFor(pid uint64) (*vmspace.Space, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	s, ok := k.vspaces[pid]
	if !ok {
		return nil, kernelerr.ProcessNotFound(pid)
	}
	return s, nil
}

func (k *Kernel) registerEndpoint(e *ipc.Endpoint) {
	k.mu.Lock()
	k.endpoints[uint64(e.ID())] = e
	k.mu.Unlock()
}

func (k *Kernel) endpointByID(id uint64) (*ipc.Endpoint, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, ok := k.endpoints[id]
	return e, ok
}

func (k *Kernel) registerRegion(r *ipc.Region) {
	k.mu.Lock()
	k.regions[uint64(r.ID())] = r
	k.mu.Unlock()
}

func (k *Kernel) regionByID(id uint64) (*ipc.Region, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	r, ok := k.regions[id]
	return r, ok
}
