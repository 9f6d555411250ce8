package capability

import (
	"sync"
	"sync/atomic"

	"github.com/veridian-os/kernel/kernelerr"
)

// RegistryEntry is the manager's bookkeeping record for one capability
// ID, grounded on original_source/kernel/src/cap/manager.rs's
// RegistryEntry.
type RegistryEntry struct {
	Object     ObjectRef
	Generation uint8
	Revoked    bool
}

// ManagerStats mirrors CapManagerStats from the original manager: coarse
// counters useful for a debug/introspection surface.
type ManagerStats struct {
	Created  uint64
	Revoked  uint64
	Deleted  uint64
	Active   uint64
}

// Revoked describes a revocation event delivered to subscribers
// registered via [Manager.Subscribe]. This realizes the broadcast
// behavior of original_source's broadcast_revocation: every process
// capability space gets a chance to purge the token, not just the
// central registry.
type Revoked struct {
	Token  Token
	Object ObjectRef
}

// idAllocator hands out monotonically increasing 48-bit IDs, reusing
// deleted IDs via a recycled set first (original_source/manager.rs's
// IdAllocator).
type idAllocator struct {
	mu        sync.Mutex
	next      uint64
	recycled  []uint64
}

func newIDAllocator() *idAllocator {
	return &idAllocator{next: 1}
}

func (a *idAllocator) allocate() (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n := len(a.recycled); n > 0 {
		id := a.recycled[n-1]
		a.recycled = a.recycled[:n-1]
		return id, nil
	}
	if a.next > MaxID {
		return 0, kernelerr.OutOfMemory(1, 0)
	}
	id := a.next
	a.next++
	return id, nil
}

func (a *idAllocator) recycle(id uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recycled = append(a.recycled, id)
}

// Manager is the global capability registry: ID allocation, the
// authoritative (object, generation, revoked) record per ID, and a
// revocation list shared with every per-CPU [RevocationCache]. A process's [Space] only
// ever stores a copy of a Token plus the rights it was granted; the
// Manager is the single source of truth for whether that Token is still
// valid.
type Manager struct {
	ids      *idAllocator
	mu       sync.RWMutex
	registry map[uint64]*RegistryEntry

	globalGeneration atomic.Uint64

	revocation *RevocationList

	subMu       sync.Mutex
	subscribers []func(Revoked)

	stats ManagerStats
}

// NewManager constructs an empty capability manager with a fresh
// revocation list.
func NewManager() *Manager {
	return &Manager{
		ids:        newIDAllocator(),
		registry:   make(map[uint64]*RegistryEntry),
		revocation: NewRevocationList(),
	}
}

// Subscribe registers fn to be invoked synchronously, before Revoke or
// RevokeCascading return, for every capability revocation. The syscall
// package's NewKernel uses it to bump the generation of every live
// process's Space.
func (m *Manager) Subscribe(fn func(Revoked)) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

func (m *Manager) broadcast(r Revoked) {
	m.subMu.Lock()
	subs := make([]func(Revoked), len(m.subscribers))
	copy(subs, m.subscribers)
	m.subMu.Unlock()
	for _, fn := range subs {
		fn(r)
	}
}

// CreateCapability validates object, allocates an ID, and registers a
// new capability for it. This implements
// original_source/manager.rs::create_capability step-for-step: validate
// object, allocate ID (recycled first), pack the token at the manager's
// current global generation and the object's type code, insert with
// revoked=false.
func (m *Manager) CreateCapability(object ObjectRef) (Token, error) {
	if !object.IsValid() {
		return 0, kernelerr.InvalidCapability(0, kernelerr.CapInvalidObject)
	}
	id, err := m.ids.allocate()
	if err != nil {
		return 0, err
	}
	generation := uint8(m.globalGeneration.Load())
	token := NewToken(id, generation, object.TypeCode())

	m.mu.Lock()
	m.registry[id] = &RegistryEntry{Object: object, Generation: generation}
	m.stats.Created++
	m.stats.Active++
	m.mu.Unlock()

	return token, nil
}

// Lookup returns the registry entry for token's ID, regardless of
// whether token's own generation is stale; callers that need validity
// should use [Manager.IsValid] or [Manager.CheckCapability].
func (m *Manager) Lookup(token Token) (RegistryEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.registry[token.ID()]
	if !ok {
		return RegistryEntry{}, false
	}
	return *entry, true
}

// IsValid reports whether token exists, is not revoked, and its
// embedded generation matches the registry's current generation for
// that ID — the validity predicate specified in §4.3.4.
func (m *Manager) IsValid(token Token) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.registry[token.ID()]
	if !ok {
		return false
	}
	return !entry.Revoked && entry.Generation == token.Generation()
}

// CheckCapability is the fast validity + rights-independent helper used
// by syscall dispatch before a [Space] rights check; it mirrors
// check_capability in the original manager.
func (m *Manager) CheckCapability(token Token) error {
	if !m.IsValid(token) {
		m.mu.RLock()
		entry, ok := m.registry[token.ID()]
		m.mu.RUnlock()
		if ok && entry.Revoked {
			return kernelerr.CapabilityRevoked(token.ID())
		}
		return kernelerr.InvalidCapability(token.ID(), kernelerr.CapNotFound)
	}
	return nil
}

// Delete removes token's registry entry entirely (distinct from
// Revoke, which keeps the entry but marks it invalid) and recycles its
// ID. Used when the last capability referencing an object's ID is
// dropped and the object itself is torn down.
func (m *Manager) Delete(token Token) error {
	m.mu.Lock()
	_, ok := m.registry[token.ID()]
	if !ok {
		m.mu.Unlock()
		return kernelerr.InvalidCapability(token.ID(), kernelerr.CapNotFound)
	}
	delete(m.registry, token.ID())
	m.stats.Deleted++
	m.stats.Active--
	m.mu.Unlock()
	m.ids.recycle(token.ID())
	return nil
}

// Revoke marks token's registry entry revoked, bumps its generation,
// records it on the revocation list, and broadcasts the event to every
// subscriber. Idempotent: revoking an already-revoked token is a no-op
// that still returns nil.
func (m *Manager) Revoke(token Token) error {
	m.mu.Lock()
	entry, ok := m.registry[token.ID()]
	if !ok {
		m.mu.Unlock()
		return kernelerr.InvalidCapability(token.ID(), kernelerr.CapNotFound)
	}
	if entry.Revoked {
		m.mu.Unlock()
		return nil
	}
	oldGeneration := entry.Generation
	entry.Revoked = true
	entry.Generation++
	object := entry.Object
	m.stats.Revoked++
	m.mu.Unlock()

	revokedToken := token.withGeneration(oldGeneration)
	m.revocation.Add(revokedToken)
	m.broadcast(Revoked{Token: revokedToken, Object: object})
	return nil
}

// Stats returns a snapshot of manager-wide counters.
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// Revocation returns the manager's revocation list, shared by every
// per-CPU [RevocationCache].
func (m *Manager) Revocation() *RevocationList { return m.revocation }

// sameObject reports whether two entries refer to the same object,
// used by RevokeCascading to find siblings.
func sameObject(a, b ObjectRef) bool { return a.Equal(b) }
