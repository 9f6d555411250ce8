package frame

import (
	"sync"

	"github.com/veridian-os/kernel/kernelerr"
)

// MaxNUMANodes bounds the fixed per-node array, analogous to
// sched.PerCpuScheduler's fixed [MaxCPUs] queue array.
const MaxNUMANodes = 8

// Config carries the allocator's construction-time settings. It
// describes no NUMA nodes: none exists until [Allocator.InitNUMANode]
// is called.
type Config struct {
	// ReservedRegions seeds the allocator's initial exclusion list, in
	// addition to any added later via AddReservedRegion. May be nil.
	ReservedRegions []ReservedRegion
}

type allocationRecord struct {
	node  int
	count uint64
}

// nodeState is one NUMA node's frame pool: at most one of bitmap/buddy
// is non-nil per live allocation, but both back ends coexist in the
// same node so small and large requests against the same node share
// its reserved-region list. Guarded by its own mutex, the per-node
// locking idiom grounded on catrate.categoryData's one-mutex-per-key
// bucket.
type nodeState struct {
	mu     sync.Mutex
	base   FrameNumber
	frames uint64
	bitmap *bitmapAllocator
	buddy  *buddyAllocator
}

// Allocator is VeridianOS's physical frame allocator: per-NUMA-node
// bitmap (small path, < SmallPathThreshold frames) and buddy (large
// path) back ends, reserved-region exclusion, NUMA-hint-with-fallback,
// and double-free detection via an allocation ledger. Implements
// spec.md §4.1.
type Allocator struct {
	mu       sync.Mutex
	nodes    [MaxNUMANodes]*nodeState
	nodeList []int // insertion order, for nearest-fallback iteration

	reserved []ReservedRegion

	ledgerMu sync.Mutex
	ledger   map[FrameNumber]allocationRecord

	stats Stats
}

// NewAllocator returns an allocator with no NUMA nodes initialized;
// call [Allocator.InitNUMANode] at least once before allocating.
func NewAllocator(cfg Config) *Allocator {
	a := &Allocator{ledger: make(map[FrameNumber]allocationRecord)}
	a.reserved = append(a.reserved, cfg.ReservedRegions...)
	return a
}

// InitNUMANode registers a pool of numFrames frames starting at start
// as belonging to node, matching spec.md's init_numa_node(node, start,
// n). node must be in [0, MaxNUMANodes).
func (a *Allocator) InitNUMANode(node int, start FrameNumber, numFrames uint64) error {
	if node < 0 || node >= MaxNUMANodes {
		return kernelerr.InvalidArgument("node", "out of range")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.nodes[node] == nil {
		a.nodeList = append(a.nodeList, node)
	}
	a.nodes[node] = &nodeState{
		base:   start,
		frames: numFrames,
		bitmap: newBitmapAllocator(start, numFrames),
		buddy:  newBuddyAllocator(start, numFrames),
	}
	a.stats.TotalFrames += numFrames
	a.stats.FreeFrames += numFrames
	return nil
}

// AddReservedRegion excludes r from every future allocation on every
// node, matching spec.md's add_reserved_region.
func (a *Allocator) AddReservedRegion(r ReservedRegion) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reserved = append(a.reserved, r)
}

// AllocateFrames reserves count contiguous frames, preferring numaHint
// if non-nil and not exhausted, falling back to the nearest
// initialized node by index otherwise. Requests under
// SmallPathThreshold use the bitmap back end; larger ones use buddy.
// Returns kernelerr.OutOfMemory if no node can satisfy the request.
// Allocations are zeroed before return (represented here as a
// zero-valued byte slice, since this module has no real physical
// memory backing).
func (a *Allocator) AllocateFrames(count uint64, numaHint *int) (FrameNumber, []byte, error) {
	if count == 0 {
		return 0, nil, kernelerr.InvalidArgument("count", "zero")
	}

	order := a.orderedNodes(numaHint)
	fallback := false
	for _, node := range order {
		start, ok := a.allocateOnNode(node, count)
		if !ok {
			fallback = numaHint != nil
			continue
		}
		a.ledgerMu.Lock()
		a.ledger[start] = allocationRecord{node: node, count: count}
		a.ledgerMu.Unlock()

		a.mu.Lock()
		a.stats.FreeFrames -= count
		a.stats.AllocatedFrames += count
		if fallback {
			a.stats.NUMAFallbacks++
		}
		if count < SmallPathThreshold {
			a.stats.BitmapAllocs++
		} else {
			a.stats.BuddyAllocs++
		}
		a.mu.Unlock()

		return start, make([]byte, count*FrameSize), nil
	}
	return 0, nil, kernelerr.OutOfMemory(count, a.Stats().FreeFrames)
}

// orderedNodes returns initialized node indices, hint first (if any
// and initialized) then the rest in ascending distance from the hint.
func (a *Allocator) orderedNodes(numaHint *int) []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	nodes := append([]int{}, a.nodeList...)
	if numaHint == nil {
		return nodes
	}
	hint := *numaHint
	out := make([]int, 0, len(nodes))
	rest := make([]int, 0, len(nodes))
	for _, n := range nodes {
		if n == hint {
			out = append(out, n)
		} else {
			rest = append(rest, n)
		}
	}
	// nearest-by-index fallback ordering
	for d := 1; d < MaxNUMANodes; d++ {
		for _, n := range rest {
			if n == hint+d || n == hint-d {
				out = append(out, n)
			}
		}
	}
	seen := make(map[int]bool, len(out))
	dedup := out[:0]
	for _, n := range out {
		if !seen[n] {
			seen[n] = true
			dedup = append(dedup, n)
		}
	}
	return dedup
}

func (a *Allocator) allocateOnNode(node int, count uint64) (FrameNumber, bool) {
	a.mu.Lock()
	ns := a.nodes[node]
	reserved := append([]ReservedRegion{}, a.reserved...)
	a.mu.Unlock()
	if ns == nil {
		return 0, false
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	if count < SmallPathThreshold {
		offset, ok := ns.bitmap.findFirstFit(count, reserved)
		if !ok {
			return 0, false
		}
		ns.bitmap.allocate(offset, count)
		return ns.base + FrameNumber(offset), true
	}

	order := orderOf(count)
	offset, ok := ns.buddy.allocateOrder(order, reserved)
	if !ok {
		return 0, false
	}
	return ns.base + FrameNumber(offset), true
}

// FreeFrames releases the count frames starting at start. It fails
// with kernelerr.InvalidArgument if (start, count) does not exactly
// match a prior [Allocator.AllocateFrames] extent — the double-free
// and partial-free protection spec.md §4.1 requires, enforced via the
// allocation ledger rather than any user-visible API.
func (a *Allocator) FreeFrames(start FrameNumber, count uint64) error {
	a.ledgerMu.Lock()
	rec, ok := a.ledger[start]
	if !ok || rec.count != count {
		a.ledgerMu.Unlock()
		return kernelerr.InvalidArgument("start,count", "not a live allocation extent")
	}
	delete(a.ledger, start)
	a.ledgerMu.Unlock()

	a.mu.Lock()
	ns := a.nodes[rec.node]
	a.mu.Unlock()
	if ns == nil {
		return kernelerr.InvalidState("initialized node", "missing node")
	}

	offset := uint64(start - ns.base)
	ns.mu.Lock()
	var freed bool
	if count < SmallPathThreshold {
		freed = ns.bitmap.free(offset, count)
	} else {
		freed = ns.buddy.free(offset)
	}
	ns.mu.Unlock()
	if !freed {
		return kernelerr.InvalidState("allocated frames", "already free")
	}

	a.mu.Lock()
	a.stats.FreeFrames += count
	a.stats.AllocatedFrames -= count
	a.mu.Unlock()
	return nil
}

// Stats returns a snapshot of allocator-wide counters.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}
