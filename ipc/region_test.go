package ipc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegionRetainReleaseFreesAtZero(t *testing.T) {
	freed := false
	r := NewRegion(4096, PermRead|PermWrite, func(*Region) { freed = true })

	require.NoError(t, r.Retain())
	require.Equal(t, int64(2), r.RefCount())

	require.False(t, r.Release())
	require.False(t, freed)

	require.True(t, r.Release())
	require.True(t, freed)
}

func TestRegionRetainAfterFreeFails(t *testing.T) {
	r := NewRegion(4096, PermRead, nil)
	require.True(t, r.Release())
	require.Error(t, r.Retain())
}

func TestRegionDescriptor(t *testing.T) {
	r := NewRegion(8192, PermRead|PermExecute, nil)
	desc := r.Descriptor(0x2000)
	require.Equal(t, uint64(0x2000), desc.BaseAddr)
	require.Equal(t, uint64(8192), desc.Size)
	require.Equal(t, PermRead|PermExecute, desc.Permissions)
}
