// Package vmspace implements VeridianOS's per-process virtual address
// space abstraction: kernel-mapping installation, user page map/unmap,
// scoped region mappings, and the exec-path image loader. It is a
// host-side simulation of a page table — there is no real MMU behind
// it — tracking which virtual pages are mapped, to what backing frame,
// and with what flags, matching spec.md §4.2's contract exactly.
package vmspace

import (
	"sync"

	"github.com/veridian-os/kernel/kernelerr"
	"github.com/veridian-os/kernel/mm/frame"
)

// PageSize matches frame.FrameSize; address-space operations always
// deal in whole pages.
const PageSize = frame.FrameSize

// PageFlags describes the permissions and cacheability of a mapped
// page.
type PageFlags uint32

const (
	FlagReadable PageFlags = 1 << iota
	FlagWritable
	FlagExecutable
	FlagUser
)

// RegionKind tags what a [MapRegion] call is for, mirroring the
// original kernel's distinction between heap, stack, mmap, and shared
// mappings for accounting purposes.
type RegionKind uint8

const (
	RegionAnonymous RegionKind = iota
	RegionHeap
	RegionStack
	RegionSharedMemory
	RegionExecutable
)

// Filesystem reads an executable's bytes by path, the exec-path
// collaborator interface named in spec.md §6.
type Filesystem interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
}

type pageEntry struct {
	frame frame.FrameNumber
	flags PageFlags
	// kernel marks pages installed by Init, which Clear must never
	// touch.
	kernel bool
}

// Space is a process's virtual address space: a flat map of mapped
// virtual pages to backing frames plus flags, with a fixed kernel
// mapping shared by every Space instance (installed by Init, untouched
// by Clear). Implements spec.md §4.2.
type Space struct {
	mu    sync.RWMutex
	pages map[uint64]pageEntry

	allocator *frame.Allocator

	userStackBase uint64
	userStackSize uint64
}

// kernelMapping is the shared kernel page set (matching spec.md's
// "kernel mappings are identical across all address spaces"): tracked
// once, globally, under its own lock, and copied into each Space's own
// page map, marked kernel, by [Space.Init].
var kernelMapping struct {
	mu    sync.RWMutex
	pages map[uint64]pageEntry
}

func init() {
	kernelMapping.pages = make(map[uint64]pageEntry)
}

// DefaultUserStackBase and DefaultUserStackSize are applied by [New]
// when the caller does not override them.
const (
	DefaultUserStackBase = 0x0000_7fff_0000_0000
	DefaultUserStackSize = 8 * 1024 * 1024
)

// New returns an address space backed by allocator for its frame
// needs, with the default user stack region. Call [Space.Init] before
// use.
func New(allocator *frame.Allocator) *Space {
	return &Space{
		pages:         make(map[uint64]pageEntry),
		allocator:     allocator,
		userStackBase: DefaultUserStackBase,
		userStackSize: DefaultUserStackSize,
	}
}

// Init installs the kernel mapping into this space. Idempotent.
func (s *Space) Init() error {
	kernelMapping.mu.RLock()
	defer kernelMapping.mu.RUnlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	for vaddr, entry := range kernelMapping.pages {
		s.pages[vaddr] = entry
	}
	return nil
}

// MapKernelPage installs a page into the shared kernel mapping, made
// visible to every Space (existing and future) via Init. Used at boot
// to set up the kernel's own identity/higher-half window.
func MapKernelPage(vaddr uint64, f frame.FrameNumber, flags PageFlags) {
	kernelMapping.mu.Lock()
	defer kernelMapping.mu.Unlock()
	kernelMapping.pages[vaddr] = pageEntry{frame: f, flags: flags, kernel: true}
}

// Clear releases every user mapping, leaving kernel mappings
// untouched, matching spec.md's exec-path semantics exactly.
func (s *Space) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for vaddr, entry := range s.pages {
		if !entry.kernel {
			delete(s.pages, vaddr)
		}
	}
}

// MapPage installs a single-page mapping at vaddr, allocating a
// backing frame from the allocator.
func (s *Space) MapPage(vaddr uint64, flags PageFlags) error {
	start, _, err := s.allocator.AllocateFrames(1, nil)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[vaddr] = pageEntry{frame: start, flags: flags}
	return nil
}

// unmapPage releases the page at vaddr, freeing its backing frame.
// debugAssert selects the failure mode spec.md §4.2 requires:
// unmapping a non-present page panics when debugAssert is true
// (exec-clear path) and returns kernelerr.NotFound otherwise (explicit
// unmap syscall path).
func (s *Space) unmapPage(vaddr uint64, debugAssert bool) error {
	s.mu.Lock()
	entry, ok := s.pages[vaddr]
	if ok {
		delete(s.pages, vaddr)
	}
	s.mu.Unlock()

	if !ok {
		if debugAssert {
			panic("vmspace: unmap of non-present page on exec-clear path")
		}
		return kernelerr.NotFound("page", vaddr)
	}
	if entry.kernel {
		return nil
	}
	return s.allocator.FreeFrames(entry.frame, 1)
}

// UnmapPage is the explicit-unmap syscall path: unmapping a page that
// isn't present returns kernelerr.NotFound rather than panicking.
func (s *Space) UnmapPage(vaddr uint64) error { return s.unmapPage(vaddr, false) }

// IsMapped reports whether vaddr currently has a present mapping.
func (s *Space) IsMapped(vaddr uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pages[vaddr]
	return ok
}

// UserStackBase returns the base address of the user stack region.
func (s *Space) UserStackBase() uint64 { return s.userStackBase }

// UserStackSize returns the size, in bytes, of the user stack region.
func (s *Space) UserStackSize() uint64 { return s.userStackSize }

// ValidateWritable implements task.UserPointerValidator: addr..addr+size
// must lie within a mapped, writable page range. Used by clone(2)'s
// TID-pointer checks.
func (s *Space) ValidateWritable(addr, size uint64) error {
	if size == 0 {
		return nil
	}
	first := addr &^ (PageSize - 1)
	last := (addr + size - 1) &^ (PageSize - 1)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for page := first; page <= last; page += PageSize {
		entry, ok := s.pages[page]
		if !ok || entry.flags&FlagWritable == 0 {
			return kernelerr.InvalidAddress(addr)
		}
	}
	return nil
}

// LoadImage parses a (trivially flat) binary image, maps its single
// executable segment at a fixed base, and returns its entry point.
// Real ELF parsing is a loader concern outside this module's scope
// (§1's out-of-scope boot/driver glue); this implements just enough to
// exercise exec's contract end to end in tests and cmd/veridiand.
func (s *Space) LoadImage(data []byte) (uint64, error) {
	const imageBase = 0x0000_0000_0040_0000
	if len(data) == 0 {
		return 0, kernelerr.InvalidArgument("image", "empty")
	}
	pages := (uint64(len(data)) + PageSize - 1) / PageSize
	for i := uint64(0); i < pages; i++ {
		if err := s.MapPage(imageBase+i*PageSize, FlagReadable|FlagExecutable|FlagUser); err != nil {
			return 0, err
		}
	}
	return imageBase, nil
}
