package vmspace

import (
	"sync"

	"github.com/veridian-os/kernel/kernelerr"
)

// MappingGuard is a scoped resource returned by [Space.MapRegion]: on
// [MappingGuard.Close] it unmaps every page in the region, and
// [MappingGuard.Leak] cancels that behavior for callers that want the
// mapping to outlive the guard (e.g. the initial process image).
// Grounded on microbatch.Batcher's sync.Once-guarded Shutdown/Close
// pair, generalized from "shut down once" to "release-unless-leaked
// once".
type MappingGuard struct {
	once    sync.Once
	space   *Space
	vaddr   uint64
	pages   uint64
	ownerPID uint64
	kind    RegionKind
	leaked  bool
}

// MapRegion maps len bytes (rounded up to whole pages) at vaddr for
// owner, tagged as kind, returning a guard that unmaps it automatically
// unless leaked. Implements spec.md §4.2's map_region.
func (s *Space) MapRegion(vaddr uint64, length uint64, kind RegionKind, owner uint64) (*MappingGuard, error) {
	if length == 0 {
		return nil, kernelerr.InvalidArgument("len", "zero")
	}
	pages := (length + PageSize - 1) / PageSize

	flags := FlagReadable | FlagUser
	switch kind {
	case RegionStack, RegionHeap, RegionAnonymous, RegionSharedMemory:
		flags |= FlagWritable
	case RegionExecutable:
		flags |= FlagExecutable
	}

	mapped := uint64(0)
	for i := uint64(0); i < pages; i++ {
		if err := s.MapPage(vaddr+i*PageSize, flags); err != nil {
			// roll back everything already mapped in this call so a
			// partial failure never leaves a half-mapped region.
			for j := uint64(0); j < mapped; j++ {
				_ = s.unmapPage(vaddr+j*PageSize, false)
			}
			return nil, err
		}
		mapped++
	}

	return &MappingGuard{space: s, vaddr: vaddr, pages: pages, ownerPID: owner, kind: kind}, nil
}

// Close unmaps the region, unless it has been [MappingGuard.Leak]ed.
// Safe to call more than once.
func (g *MappingGuard) Close() error {
	var err error
	g.once.Do(func() {
		if g.leaked {
			return
		}
		for i := uint64(0); i < g.pages; i++ {
			if e := g.space.unmapPage(g.vaddr+i*PageSize, false); e != nil && err == nil {
				err = e
			}
		}
	})
	return err
}

// Leak cancels the unmap-on-Close behavior, for callers that want the
// mapping to persist for the lifetime of the address space (e.g. the
// exec-loaded executable image).
func (g *MappingGuard) Leak() {
	g.leaked = true
}

// VAddr returns the region's base virtual address.
func (g *MappingGuard) VAddr() uint64 { return g.vaddr }

// Pages returns the number of pages the region spans.
func (g *MappingGuard) Pages() uint64 { return g.pages }
