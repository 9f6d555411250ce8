package capability

import (
	"sync"
	"sync/atomic"
)

type revokedKey struct {
	id         uint64
	generation uint8
}

// RevocationList is the global set of revoked (id, generation) pairs
// plus a monotonically increasing epoch, grounded directly on
// original_source/kernel/src/cap/revocation.rs's RevocationList.
type RevocationList struct {
	mu      sync.RWMutex
	revoked map[revokedKey]struct{}
	epoch   atomic.Uint64
}

// NewRevocationList returns an empty list at epoch 0.
func NewRevocationList() *RevocationList {
	return &RevocationList{revoked: make(map[revokedKey]struct{})}
}

// Add records token as revoked and advances the epoch, invalidating
// every [RevocationCache] snapshot taken before this call.
func (l *RevocationList) Add(token Token) {
	l.mu.Lock()
	l.revoked[revokedKey{token.ID(), token.Generation()}] = struct{}{}
	l.mu.Unlock()
	l.epoch.Add(1)
}

// IsRevoked reports whether token's exact (id, generation) pair was
// ever added to the list.
func (l *RevocationList) IsRevoked(token Token) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.revoked[revokedKey{token.ID(), token.Generation()}]
	return ok
}

// Epoch returns the current revocation epoch.
func (l *RevocationList) Epoch() uint64 { return l.epoch.Load() }

// Cleanup trims the list once it holds more than 2*keepRecent entries,
// matching original_source's cleanup(keep_recent) garbage collection.
// Map iteration order is unspecified, so unlike the original (which
// keeps literally the most recent BTreeSet entries) this keeps an
// arbitrary keepRecent-sized subset; callers only rely on the list not
// growing without bound, not on which stale entries survive.
func (l *RevocationList) Cleanup(keepRecent int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.revoked) <= keepRecent*2 {
		return
	}
	toRemove := len(l.revoked) - keepRecent
	for k := range l.revoked {
		if toRemove <= 0 {
			break
		}
		delete(l.revoked, k)
		toRemove--
	}
}

func (l *RevocationList) snapshot() (map[revokedKey]struct{}, uint64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[revokedKey]struct{}, len(l.revoked))
	for k := range l.revoked {
		out[k] = struct{}{}
	}
	return out, l.epoch.Load()
}

// RevocationCache is a per-CPU snapshot of the global [RevocationList],
// refreshed lazily whenever the cached epoch falls behind, matching
// original_source's RevocationCache::is_revoked refresh trigger exactly
// (compare cached vs. global epoch, rebuild wholesale on mismatch).
type RevocationCache struct {
	list        *RevocationList
	mu          sync.RWMutex
	cache       map[revokedKey]struct{}
	cachedEpoch atomic.Uint64
}

// NewRevocationCache returns a cache backed by list.
func NewRevocationCache(list *RevocationList) *RevocationCache {
	return &RevocationCache{list: list, cache: make(map[revokedKey]struct{})}
}

// IsRevoked checks token against the cache, refreshing from the global
// list first if the cache is stale.
func (c *RevocationCache) IsRevoked(token Token) bool {
	current := c.list.Epoch()
	if current != c.cachedEpoch.Load() {
		c.refresh()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.cache[revokedKey{token.ID(), token.Generation()}]
	return ok
}

func (c *RevocationCache) refresh() {
	snap, epoch := c.list.snapshot()
	c.mu.Lock()
	c.cache = snap
	c.mu.Unlock()
	c.cachedEpoch.Store(epoch)
}

// RevokeCascading revokes token and every entry in space that refers to
// the same object but holds strictly weaker rights (a proper subset of
// token's rights) — this resolves the spec's open question about
// whether cascading revocation should also revoke equal-or-stronger
// siblings reached by a different delegation path: it must not.
// Siblings whose rights are incomparable with token's are kept too.
// Grounded on original_source/kernel/src/cap/revocation.rs::revoke_cascading.
func (m *Manager) RevokeCascading(token Token, space *Space) (int, error) {
	object, parentRights, ok := space.lookupEntry(token)
	if !ok {
		// still attempt the primary revoke; the caller may be revoking
		// a capability not present in this particular space.
		if err := m.Revoke(token); err != nil {
			return 0, err
		}
		return 1, nil
	}

	if err := m.Revoke(token); err != nil {
		return 0, err
	}
	revokedCount := 1

	var toRevoke []Token
	space.iterate(func(candidate Token, candidateObject ObjectRef, rights Rights) bool {
		if !sameObject(candidateObject, object) || candidate == token {
			return true
		}
		if rights != parentRights && parentRights.Contains(rights) {
			toRevoke = append(toRevoke, candidate)
		}
		return true
	})

	for _, derived := range toRevoke {
		if err := m.Revoke(derived); err == nil {
			revokedCount++
		}
	}

	return revokedCount, nil
}
