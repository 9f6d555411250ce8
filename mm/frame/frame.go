// Package frame implements VeridianOS's physical-frame allocator: a
// per-NUMA-node bitmap for small requests, a per-node buddy allocator
// for large ones, reserved-region exclusion, and double-free detection
// via an allocation ledger. Grounded on spec.md §4.1's textual
// description; no corresponding original_source file exists (only the
// boot-time memory map is implemented there), so the locking shape is
// borrowed from the teacher's catrate.categoryData idiom — one mutex
// per keyed bucket of state, here one per NUMA node.
package frame

// FrameSize is the fixed page/frame size the allocator hands out,
// matching spec.md's 4 KiB frame.
const FrameSize = 4096

// FrameNumber is a physical frame index (PhysicalAddress / FrameSize).
type FrameNumber uint64

// PhysicalAddress is a byte address in physical memory.
type PhysicalAddress uint64

// ToPhysicalAddress converts a frame number to its base physical
// address.
func (f FrameNumber) ToPhysicalAddress() PhysicalAddress {
	return PhysicalAddress(uint64(f) * FrameSize)
}

// FrameNumberOf converts a physical address down to its containing
// frame number, truncating any offset within the frame.
func FrameNumberOf(addr PhysicalAddress) FrameNumber {
	return FrameNumber(uint64(addr) / FrameSize)
}

// ReservedRegion marks a span of frames the allocator must never hand
// out, e.g. ACPI tables or the kernel image itself, matching spec.md's
// ReservedRegion.
type ReservedRegion struct {
	StartFrame  FrameNumber
	EndFrame    FrameNumber // exclusive
	Description string
}

func (r ReservedRegion) overlaps(start FrameNumber, count uint64) bool {
	end := start + FrameNumber(count)
	return start < r.EndFrame && r.StartFrame < end
}

// Stats is a point-in-time snapshot of allocator-wide counters.
type Stats struct {
	TotalFrames     uint64
	FreeFrames      uint64
	AllocatedFrames uint64
	NUMAFallbacks   uint64
	BitmapAllocs    uint64
	BuddyAllocs     uint64
}
