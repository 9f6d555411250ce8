package frame

import "math/bits"

// orderOf returns the smallest order such that 2^order >= n, matching
// spec.md §4.1's "order = ceil(log2(n))".
func orderOf(n uint64) uint {
	if n <= 1 {
		return 0
	}
	return uint(bits.Len64(n - 1))
}

// buddyAllocator is a classic power-of-two buddy allocator over a
// node's frame range, the large-request (>= SmallPathThreshold) back
// end. freeList[order] holds the relative offsets (multiples of
// 2^order) of currently free blocks of that order.
type buddyAllocator struct {
	base     FrameNumber
	maxOrder uint
	size     uint64 // 2^maxOrder, the padded total frame count
	freeList map[uint][]uint64
	// blockOrder records the order of every currently allocated block,
	// keyed by its relative start offset, so Free can locate the right
	// free list without the caller re-deriving the order.
	blockOrder map[uint64]uint
}

func newBuddyAllocator(base FrameNumber, numFrames uint64) *buddyAllocator {
	maxOrder := orderOf(numFrames)
	size := uint64(1) << maxOrder
	b := &buddyAllocator{
		base:       base,
		maxOrder:   maxOrder,
		size:       size,
		freeList:   make(map[uint][]uint64),
		blockOrder: make(map[uint64]uint),
	}
	b.freeList[maxOrder] = []uint64{0}
	return b
}

func (b *buddyAllocator) popFreeBlock(order uint) (uint64, bool) {
	list := b.freeList[order]
	if len(list) == 0 {
		return 0, false
	}
	offset := list[len(list)-1]
	b.freeList[order] = list[:len(list)-1]
	return offset, true
}

func (b *buddyAllocator) pushFreeBlock(order, offset uint64) {
	b.freeList[uint(order)] = append(b.freeList[uint(order)], offset)
}

// allocateOrder locates a free block of exactly order that does not
// overlap any reserved region and removes it from the free lists. When
// only a larger block is free, it splits that block itself via split(),
// which pushes the unused halves back onto the free lists.
func (b *buddyAllocator) allocateOrder(order uint, reserved []ReservedRegion) (uint64, bool) {
	if order > b.maxOrder {
		return 0, false
	}
	// find the smallest available order >= requested that yields an
	// acceptable (non-reserved-overlapping) block once split down.
	for tryOrder := order; tryOrder <= b.maxOrder; tryOrder++ {
		if len(b.freeList[tryOrder]) == 0 {
			continue
		}
		for i, offset := range b.freeList[tryOrder] {
			startFrame := b.base + FrameNumber(offset)
			if reservedOverlap(startFrame, uint64(1)<<tryOrder, reserved) {
				continue
			}
			// remove this block from the free list
			b.freeList[tryOrder] = append(append([]uint64{}, b.freeList[tryOrder][:i]...), b.freeList[tryOrder][i+1:]...)
			return b.split(offset, tryOrder, order), true
		}
	}
	return 0, false
}

// split breaks a block of fromOrder down to toOrder, pushing every
// resulting buddy half that is not needed back onto the free lists,
// and returns the offset of the toOrder-sized block retained.
func (b *buddyAllocator) split(offset uint64, fromOrder, toOrder uint) uint64 {
	for o := fromOrder; o > toOrder; o-- {
		half := uint64(1) << (o - 1)
		buddy := offset + half
		b.pushFreeBlock(uint64(o-1), buddy)
	}
	b.blockOrder[offset] = toOrder
	return offset
}

// free releases the block at offset (as recorded by blockOrder),
// merging with its buddy repeatedly while the buddy is also free.
// Returns false if offset was not a known allocated block.
func (b *buddyAllocator) free(offset uint64) bool {
	order, ok := b.blockOrder[offset]
	if !ok {
		return false
	}
	delete(b.blockOrder, offset)

	for order < b.maxOrder {
		buddy := offset ^ (uint64(1) << order)
		idx := -1
		for i, o := range b.freeList[order] {
			if o == buddy {
				idx = i
				break
			}
		}
		if idx == -1 {
			break
		}
		b.freeList[order] = append(b.freeList[order][:idx], b.freeList[order][idx+1:]...)
		if buddy < offset {
			offset = buddy
		}
		order++
	}
	b.pushFreeBlock(uint64(order), offset)
	return true
}

func (b *buddyAllocator) freeFrameCount() uint64 {
	var total uint64
	for order, list := range b.freeList {
		total += uint64(len(list)) * (uint64(1) << order)
	}
	return total
}

func reservedOverlap(start FrameNumber, count uint64, reserved []ReservedRegion) bool {
	for _, r := range reserved {
		if r.overlaps(start, count) {
			return true
		}
	}
	return false
}
