package capability

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veridian-os/kernel/kernelerr"
)

func TestSpaceInsertLookupL1(t *testing.T) {
	s := NewSpace()
	tok := NewToken(1, 0, uint8(ObjectEndpoint))
	s.Insert(CapIndex(3), tok, Read, EndpointObject(1))

	got, rights, ok := s.Lookup(CapIndex(3))
	require.True(t, ok)
	require.Equal(t, tok, got)
	require.Equal(t, Read, rights)
}

func TestSpaceInsertLookupL2(t *testing.T) {
	s := NewSpace()
	// page 1, slot 10 -> beyond the 256-slot L1 range.
	index := CapIndex(1)<<8 | CapIndex(10)
	tok := NewToken(2, 0, uint8(ObjectChannel))
	s.Insert(index, tok, Send|Receive, ChannelObject(2))

	got, rights, ok := s.Lookup(index)
	require.True(t, ok)
	require.Equal(t, tok, got)
	require.Equal(t, Send|Receive, rights)

	// An unrelated slot on the same L2 page stays empty.
	_, _, ok = s.Lookup(CapIndex(1)<<8 | CapIndex(11))
	require.False(t, ok)
}

func TestSpaceRemove(t *testing.T) {
	s := NewSpace()
	tok := NewToken(1, 0, uint8(ObjectEndpoint))
	s.Insert(CapIndex(0), tok, Read, EndpointObject(1))

	require.NoError(t, s.Remove(CapIndex(0)))
	_, _, ok := s.Lookup(CapIndex(0))
	require.False(t, ok)

	err := s.Remove(CapIndex(0))
	require.Error(t, err)
	require.Equal(t, kernelerr.KindNotFound, kernelerr.KindOf(err))
}

func TestSpaceCheckRights(t *testing.T) {
	s := NewSpace()
	tok := NewToken(1, 0, uint8(ObjectEndpoint))
	s.Insert(CapIndex(0), tok, Read, EndpointObject(1))

	require.NoError(t, s.CheckRights(CapIndex(0), Read))
	err := s.CheckRights(CapIndex(0), Read|Write)
	require.Error(t, err)
	require.Equal(t, kernelerr.KindInsufficientRights, kernelerr.KindOf(err))
}

func TestSpaceClearBumpsGeneration(t *testing.T) {
	s := NewSpace()
	tok := NewToken(1, 0, uint8(ObjectEndpoint))
	s.Insert(CapIndex(0), tok, Read, EndpointObject(1))
	before := s.Generation()

	s.Clear()
	require.Greater(t, s.Generation(), before)
	_, _, ok := s.Lookup(CapIndex(0))
	require.False(t, ok)
}

func TestSpaceIterateVisitsL1AndL2(t *testing.T) {
	s := NewSpace()
	s.Insert(CapIndex(0), NewToken(1, 0, uint8(ObjectEndpoint)), Read, EndpointObject(1))
	s.Insert(CapIndex(2)<<8|CapIndex(5), NewToken(2, 0, uint8(ObjectChannel)), Send, ChannelObject(2))

	seen := 0
	s.iterate(func(Token, ObjectRef, Rights) bool {
		seen++
		return true
	})
	require.Equal(t, 2, seen)
}
