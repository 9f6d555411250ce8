package capability

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRevocationListAddAndEpoch(t *testing.T) {
	l := NewRevocationList()
	require.Equal(t, uint64(0), l.Epoch())

	tok := NewToken(1, 0, uint8(ObjectEndpoint))
	require.False(t, l.IsRevoked(tok))

	l.Add(tok)
	require.True(t, l.IsRevoked(tok))
	require.Equal(t, uint64(1), l.Epoch())

	// A different generation of the same ID is a distinct pair.
	require.False(t, l.IsRevoked(tok.withGeneration(1)))
}

func TestRevocationListCleanupBounded(t *testing.T) {
	l := NewRevocationList()
	for i := uint64(1); i <= 100; i++ {
		l.Add(NewToken(i, 0, uint8(ObjectEndpoint)))
	}
	l.Cleanup(10)
	require.LessOrEqual(t, len(l.revoked), 100)
	require.Greater(t, len(l.revoked), 0)
}

func TestRevocationCacheRefreshesOnEpochChange(t *testing.T) {
	list := NewRevocationList()
	cache := NewRevocationCache(list)

	tok := NewToken(5, 0, uint8(ObjectChannel))
	require.False(t, cache.IsRevoked(tok))

	list.Add(tok)
	require.True(t, cache.IsRevoked(tok))
}

func TestRevocationCacheRefreshSeesOnlyRevokedToken(t *testing.T) {
	list := NewRevocationList()
	cache := NewRevocationCache(list)

	other := NewToken(9, 0, uint8(ObjectChannel))
	list.Add(other)
	require.True(t, cache.IsRevoked(other))
	require.False(t, cache.IsRevoked(NewToken(10, 0, uint8(ObjectChannel))))
}
