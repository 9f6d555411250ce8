package capability

import (
	"sync"

	"github.com/veridian-os/kernel/kernelerr"
)

// l1Slots is the number of directly indexed slots in a Space's first
// level, matching spec.md §4.3.1's 256-entry L1 table.
const l1Slots = 256

// l2PageSlots is the number of entries in each lazily allocated L2 page.
const l2PageSlots = 256

// CapIndex addresses a slot within a [Space]: the low byte selects a
// slot within an L1 entry or an L2 page, the high byte selects which L2
// page (0 means "use L1 directly").
type CapIndex uint16

func (i CapIndex) page() uint8 { return uint8(i >> 8) }
func (i CapIndex) slot() uint8 { return uint8(i) }

// capEntry is one occupied slot: the token handed to user space, the
// rights granted for it in this space, and a local cache of the
// object it refers to (so rights checks and cascading revocation don't
// need a round trip to the [Manager]).
type capEntry struct {
	token  Token
	rights Rights
	object ObjectRef
}

// Space is a process's two-level capability table: 256 directly indexed
// L1 slots (page 0) plus up to 255 lazily allocated 256-entry L2 pages, giving
// each process room for 65,536 live capabilities without preallocating
// a flat 64K-entry array. Grounded on spec.md §4.3.1/§4.3.2's two-level
// design and original_source/kernel/src/cap/space.rs's sparse L2
// page map.
type Space struct {
	mu         sync.RWMutex
	l1         [l1Slots]*capEntry
	l2         map[uint8]*[l2PageSlots]*capEntry
	generation uint64
}

// NewSpace returns an empty capability space.
func NewSpace() *Space {
	return &Space{l2: make(map[uint8]*[l2PageSlots]*capEntry)}
}

func (s *Space) slotRef(index CapIndex, create bool) **capEntry {
	if index.page() == 0 {
		return &s.l1[index.slot()]
	}
	page := s.l2[index.page()]
	if page == nil {
		if !create {
			return nil
		}
		page = new([l2PageSlots]*capEntry)
		s.l2[index.page()] = page
	}
	return &page[index.slot()]
}

// Insert places token, with the given rights over object, at index.
// Overwrites whatever occupied index previously.
func (s *Space) Insert(index CapIndex, token Token, rights Rights, object ObjectRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := s.slotRef(index, true)
	*ref = &capEntry{token: token, rights: rights, object: object}
}

// Lookup returns the token and rights stored at index.
func (s *Space) Lookup(index CapIndex) (Token, Rights, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref := s.slotRef(index, false)
	if ref == nil || *ref == nil {
		return 0, 0, false
	}
	return (*ref).token, (*ref).rights, true
}

// Remove clears index, returning kernelerr.NotFound if it was already
// empty.
func (s *Space) Remove(index CapIndex) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := s.slotRef(index, false)
	if ref == nil || *ref == nil {
		return kernelerr.NotFound("capability_slot", uint64(index))
	}
	*ref = nil
	return nil
}

// CheckRights reports whether the capability at index grants every bit
// set in required, returning kernelerr.InsufficientRights otherwise.
func (s *Space) CheckRights(index CapIndex, required Rights) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref := s.slotRef(index, false)
	if ref == nil || *ref == nil {
		return kernelerr.InvalidCapability(uint64(index), kernelerr.CapNotFound)
	}
	entry := *ref
	if !entry.rights.Contains(required) {
		return kernelerr.InsufficientRights(uint16(required), uint16(entry.rights))
	}
	return nil
}

// IncrementGeneration bumps the space-local generation counter reported
// by [Space.Generation]. The syscall layer calls it on every live
// process's Space whenever a capability is revoked.
func (s *Space) IncrementGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return s.generation
}

// Generation returns the current space-local generation counter.
func (s *Space) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Clear empties every L1 and L2 slot, e.g. when a process exits.
func (s *Space) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.l1 {
		s.l1[i] = nil
	}
	s.l2 = make(map[uint8]*[l2PageSlots]*capEntry)
	s.generation++
}

// lookupEntry finds the object and rights associated with token
// anywhere in the space, used by [Manager.RevokeCascading] to find the
// parent entry's rights before walking siblings.
func (s *Space) lookupEntry(token Token) (ObjectRef, Rights, bool) {
	var found *capEntry
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, entry := range s.l1 {
		if entry != nil && entry.token == token {
			found = entry
			break
		}
	}
	if found == nil {
		for _, page := range s.l2 {
			for _, entry := range page {
				if entry != nil && entry.token == token {
					found = entry
					break
				}
			}
			if found != nil {
				break
			}
		}
	}
	if found == nil {
		return ObjectRef{}, 0, false
	}
	return found.object, found.rights, true
}

// iterate calls fn for every occupied slot until fn returns false.
func (s *Space) iterate(fn func(token Token, object ObjectRef, rights Rights) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, entry := range s.l1 {
		if entry == nil {
			continue
		}
		if !fn(entry.token, entry.object, entry.rights) {
			return
		}
	}
	for _, page := range s.l2 {
		for _, entry := range page {
			if entry == nil {
				continue
			}
			if !fn(entry.token, entry.object, entry.rights) {
				return
			}
		}
	}
}

// Range calls fn for every occupied slot in the space, including its
// index, until fn returns false. Exported for introspection callers
// (e.g. the debug service) that need the index alongside the entry;
// [Space.iterate] is the index-less internal variant used by revocation.
func (s *Space) Range(fn func(index CapIndex, token Token, object ObjectRef, rights Rights) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for slot, entry := range s.l1 {
		if entry == nil {
			continue
		}
		if !fn(CapIndex(slot), entry.token, entry.object, entry.rights) {
			return
		}
	}
	for page, entries := range s.l2 {
		for slot, entry := range entries {
			if entry == nil {
				continue
			}
			idx := CapIndex(uint16(page)<<8 | uint16(slot))
			if !fn(idx, entry.token, entry.object, entry.rights) {
				return
			}
		}
	}
}
