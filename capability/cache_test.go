package capability

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCapabilityCacheFillAndLookup(t *testing.T) {
	revocation := NewRevocationCache(NewRevocationList())
	cache := NewCapabilityCache(revocation)

	tok := NewToken(1, 0, uint8(ObjectEndpoint))
	_, _, ok := cache.Lookup(0, CapIndex(4))
	require.False(t, ok)

	cache.Fill(0, CapIndex(4), tok, Read)
	got, rights, ok := cache.Lookup(0, CapIndex(4))
	require.True(t, ok)
	require.Equal(t, tok, got)
	require.Equal(t, Read, rights)

	// A different CPU's set is independent.
	_, _, ok = cache.Lookup(1, CapIndex(4))
	require.False(t, ok)
}

func TestCapabilityCacheEvictsRevokedEntry(t *testing.T) {
	list := NewRevocationList()
	revocation := NewRevocationCache(list)
	cache := NewCapabilityCache(revocation)

	tok := NewToken(2, 0, uint8(ObjectChannel))
	cache.Fill(0, CapIndex(1), tok, Send)

	list.Add(tok)
	_, _, ok := cache.Lookup(0, CapIndex(1))
	require.False(t, ok)
}

func TestCapabilityCacheInvalidateAll(t *testing.T) {
	cache := NewCapabilityCache(NewRevocationCache(NewRevocationList()))
	tok := NewToken(3, 0, uint8(ObjectEndpoint))
	cache.Fill(0, CapIndex(2), tok, Read)
	cache.Fill(5, CapIndex(2), tok, Read)

	cache.InvalidateAll()

	_, _, ok := cache.Lookup(0, CapIndex(2))
	require.False(t, ok)
	_, _, ok = cache.Lookup(5, CapIndex(2))
	require.False(t, ok)
}
