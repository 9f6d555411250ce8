package capability

import "github.com/veridian-os/kernel/ksync"

// cacheWays is the number of lines in each per-CPU [CapabilityCache]
// set. Lookup scans every line for a matching index and Fill replaces
// lines in clock-hand order, so a set is fully associative rather than
// direct-mapped by index.
const cacheWays = 16

type cacheLine struct {
	valid  bool
	index  CapIndex
	token  Token
	rights Rights
}

type cacheSet struct {
	lines [cacheWays]cacheLine
	clock int
}

// CapabilityCache is a per-CPU lookaside cache in front of a [Space],
// avoiding the L1/L2 walk (and its lock) on the hot syscall-dispatch
// path. Each CPU owns one set via [ksync.PerCPU], so no cache line is
// ever touched by two CPUs under normal operation. Lookup drops a line
// whose token the backing [RevocationCache] reports revoked; an advance
// of the revocation epoch does not by itself invalidate other lines.
type CapabilityCache struct {
	sets       ksync.PerCPU[cacheSet]
	revocation *RevocationCache
}

// NewCapabilityCache returns a cache that consults revocation for
// liveness before trusting a cached entry.
func NewCapabilityCache(revocation *RevocationCache) *CapabilityCache {
	return &CapabilityCache{revocation: revocation}
}

// Lookup returns the cached (token, rights) for index on the given CPU,
// or ok=false on a cache miss or when the cached token has been revoked
// (the line is then dropped). Callers must fall
// back to the [Space] on a miss and call [CapabilityCache.Fill].
func (c *CapabilityCache) Lookup(cpu int, index CapIndex) (Token, Rights, bool) {
	set := c.sets.At(cpu)
	for i := range set.lines {
		line := &set.lines[i]
		if !line.valid || line.index != index {
			continue
		}
		if c.revocation.IsRevoked(line.token) {
			line.valid = false
			return 0, 0, false
		}
		return line.token, line.rights, true
	}
	return 0, 0, false
}

// Fill installs (token, rights) for index on the given CPU, evicting the
// clock-hand line in that CPU's set.
func (c *CapabilityCache) Fill(cpu int, index CapIndex, token Token, rights Rights) {
	set := c.sets.At(cpu)
	way := set.clock % cacheWays
	set.clock++
	set.lines[way] = cacheLine{valid: true, index: index, token: token, rights: rights}
}

// InvalidateAll clears every cached line on every CPU, used when a
// [Space] is cleared wholesale (e.g. process exit).
func (c *CapabilityCache) InvalidateAll() {
	c.sets.Each(func(_ int, set *cacheSet) {
		for i := range set.lines {
			set.lines[i].valid = false
		}
	})
}
