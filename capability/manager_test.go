package capability

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veridian-os/kernel/kernelerr"
)

func TestCreateCapabilityAndLookup(t *testing.T) {
	m := NewManager()
	obj := EndpointObject(42)

	tok, err := m.CreateCapability(obj)
	require.NoError(t, err)
	require.True(t, m.IsValid(tok))

	entry, ok := m.Lookup(tok)
	require.True(t, ok)
	require.Equal(t, obj, entry.Object)
	require.False(t, entry.Revoked)
}

func TestCreateCapabilityRejectsInvalidObject(t *testing.T) {
	m := NewManager()
	_, err := m.CreateCapability(ObjectRef{Kind: ObjectSharedRegion, RegionSize: 0})
	require.Error(t, err)
	require.Equal(t, kernelerr.KindInvalidCapability, kernelerr.KindOf(err))
}

func TestRevokeInvalidatesToken(t *testing.T) {
	m := NewManager()
	tok, err := m.CreateCapability(ChannelObject(7))
	require.NoError(t, err)

	require.NoError(t, m.Revoke(tok))
	require.False(t, m.IsValid(tok))
	require.True(t, m.Revocation().IsRevoked(tok))

	err = m.CheckCapability(tok)
	require.Error(t, err)
	require.True(t, errors.Is(err, &kernelerr.Error{Kind: kernelerr.KindCapabilityRevoked}))
}

func TestRevokeIsIdempotent(t *testing.T) {
	m := NewManager()
	tok, err := m.CreateCapability(ChannelObject(7))
	require.NoError(t, err)

	require.NoError(t, m.Revoke(tok))
	require.NoError(t, m.Revoke(tok))
}

func TestRevokeBroadcastsToSubscribers(t *testing.T) {
	m := NewManager()
	obj := EndpointObject(1)
	tok, err := m.CreateCapability(obj)
	require.NoError(t, err)

	var got Revoked
	m.Subscribe(func(r Revoked) { got = r })

	require.NoError(t, m.Revoke(tok))
	require.Equal(t, tok.ID(), got.Token.ID())
	require.Equal(t, obj, got.Object)
}

func TestDeleteRecyclesID(t *testing.T) {
	m := NewManager()
	tok, err := m.CreateCapability(EndpointObject(1))
	require.NoError(t, err)

	require.NoError(t, m.Delete(tok))
	_, ok := m.Lookup(tok)
	require.False(t, ok)

	tok2, err := m.CreateCapability(EndpointObject(2))
	require.NoError(t, err)
	require.Equal(t, tok.ID(), tok2.ID())
}

// TestRevokeCascadingOnlyWeakerSiblings exercises the resolved Open
// Question: revoking a delegated token must revoke tokens derived from
// it with strictly weaker rights, but never a sibling holding equal or
// stronger rights reached via a different delegation path.
func TestRevokeCascadingOnlyWeakerSiblings(t *testing.T) {
	m := NewManager()
	obj := RegionObject(1, 4096, Read|Write)

	parent, err := m.CreateCapability(obj)
	require.NoError(t, err)
	weaker, err := m.CreateCapability(obj)
	require.NoError(t, err)
	equal, err := m.CreateCapability(obj)
	require.NoError(t, err)

	space := NewSpace()
	space.Insert(CapIndex(0), parent, Read|Write, obj)
	space.Insert(CapIndex(1), weaker, Read, obj)      // strictly weaker, must cascade
	space.Insert(CapIndex(2), equal, Read|Write, obj) // equal, must survive

	n, err := m.RevokeCascading(parent, space)
	require.NoError(t, err)
	require.Equal(t, 2, n) // parent itself + the strictly-weaker sibling

	require.True(t, m.Revocation().IsRevoked(parent))
	require.True(t, m.Revocation().IsRevoked(weaker))
	require.False(t, m.Revocation().IsRevoked(equal))
}
