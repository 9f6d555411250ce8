package syscall

import "github.com/veridian-os/kernel/mm/vmspace"

// MmapRegion implements spec.md §6's mmap_region: map length bytes
// starting at vaddr into pid's address space as kind, returning a
// [vmspace.MappingGuard] the caller must [vmspace.MappingGuard.Close]
// (via [Kernel.Munmap]) or [vmspace.MappingGuard.Leak] if the mapping
// should outlive this call's stack frame (e.g. installed into a
// process's VMA list).
func (k *Kernel) MmapRegion(pid uint64, vaddr, length uint64, kind vmspace.RegionKind) (*vmspace.MappingGuard, error) {
	space, err := k.vspaceFor(pid)
	if err != nil {
		return nil, err
	}
	return space.MapRegion(vaddr, length, kind, pid)
}

// Munmap implements spec.md §6's munmap: release a mapping obtained
// from [Kernel.MmapRegion].
func (k *Kernel) Munmap(guard *vmspace.MappingGuard) error {
	return guard.Close()
}
