package vmspace

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veridian-os/kernel/mm/frame"
)

func newTestSpace(t *testing.T) *Space {
	t.Helper()
	alloc := frame.NewAllocator(frame.Config{})
	require.NoError(t, alloc.InitNUMANode(0, 0, 100_000))
	s := New(alloc)
	require.NoError(t, s.Init())
	return s
}

func TestInitInstallsKernelMapping(t *testing.T) {
	MapKernelPage(0xffff_8000_0000_0000, 1, FlagReadable|FlagWritable)
	s := newTestSpace(t)
	require.True(t, s.IsMapped(0xffff_8000_0000_0000))
}

func TestClearPreservesKernelMapping(t *testing.T) {
	MapKernelPage(0xffff_8000_0001_0000, 2, FlagReadable)
	s := newTestSpace(t)
	require.NoError(t, s.MapPage(0x1000, FlagReadable|FlagWritable))
	s.Clear()
	require.False(t, s.IsMapped(0x1000))
	require.True(t, s.IsMapped(0xffff_8000_0001_0000))
}

func TestMapUnmapPage(t *testing.T) {
	s := newTestSpace(t)
	require.NoError(t, s.MapPage(0x2000, FlagReadable))
	require.True(t, s.IsMapped(0x2000))
	require.NoError(t, s.UnmapPage(0x2000))
	require.False(t, s.IsMapped(0x2000))
}

func TestUnmapPageNotFound(t *testing.T) {
	s := newTestSpace(t)
	require.Error(t, s.UnmapPage(0x3000))
}

func TestUnmapExecClearPanics(t *testing.T) {
	s := newTestSpace(t)
	require.Panics(t, func() { _ = s.unmapPage(0x4000, true) })
}

func TestMapRegionGuardUnmapsOnClose(t *testing.T) {
	s := newTestSpace(t)
	guard, err := s.MapRegion(0x5000, PageSize*3, RegionHeap, 1)
	require.NoError(t, err)
	require.True(t, s.IsMapped(0x5000))
	require.NoError(t, guard.Close())
	require.False(t, s.IsMapped(0x5000))
}

func TestMapRegionGuardLeak(t *testing.T) {
	s := newTestSpace(t)
	guard, err := s.MapRegion(0x6000, PageSize, RegionExecutable, 1)
	require.NoError(t, err)
	guard.Leak()
	require.NoError(t, guard.Close())
	require.True(t, s.IsMapped(0x6000))
}

func TestLoadImageReturnsEntryPoint(t *testing.T) {
	s := newTestSpace(t)
	entry, err := s.LoadImage([]byte{0x90, 0x90, 0x90})
	require.NoError(t, err)
	require.NotZero(t, entry)
	require.True(t, s.IsMapped(entry))
}

func TestValidateWritableRejectsReadOnly(t *testing.T) {
	s := newTestSpace(t)
	require.NoError(t, s.MapPage(0x7000, FlagReadable))
	require.Error(t, s.ValidateWritable(0x7000, 4))
}
