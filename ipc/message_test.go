package ipc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSmallMessageRoundTrip(t *testing.T) {
	msg := NewSmallMessage(0x1234, 42).WithFlags(FlagUrgent).WithData(0, 99)
	wrapped := SmallMsg(msg)

	require.Equal(t, uint64(0x1234), wrapped.Capability())
	require.Equal(t, uint32(42), wrapped.Opcode())
	require.Equal(t, FlagUrgent, wrapped.Flags())
	require.Equal(t, uint64(99), wrapped.Small.Data[0])
}

func TestSmallMessageDataOutOfRangeIgnored(t *testing.T) {
	msg := NewSmallMessage(1, 1).WithData(DataRegisters, 5)
	require.Equal(t, [DataRegisters]uint64{}, msg.Data)
}

func TestLargeMessageRoundTrip(t *testing.T) {
	region := NewMemoryRegion(0x1000, 4096).WithPermissions(PermRead | PermWrite)
	large := NewLargeMessage(0x5678, 84, region).WithInlineData([]byte("hello"))
	wrapped := LargeMsg(large)

	require.Equal(t, uint64(0x5678), wrapped.Capability())
	require.Equal(t, uint32(84), wrapped.Opcode())
	require.Equal(t, uint64(4096), wrapped.Large.Header.TotalSize)
	require.Equal(t, []byte("hello"), wrapped.Large.InlineBytes())
}

func TestLargeMessageInlineDataTruncated(t *testing.T) {
	oversized := make([]byte, SmallMessageMaxSize+10)
	for i := range oversized {
		oversized[i] = byte(i)
	}
	large := NewLargeMessage(1, 1, NewMemoryRegion(0, 1)).WithInlineData(oversized)
	require.Len(t, large.InlineBytes(), SmallMessageMaxSize)
}

func TestMessageSetFlags(t *testing.T) {
	msg := SmallMsg(NewSmallMessage(1, 1))
	msg.SetFlags(FlagNeedsAck)
	require.Equal(t, FlagNeedsAck, msg.Flags())

	large := LargeMsg(NewLargeMessage(1, 1, NewMemoryRegion(0, 1)))
	large.SetFlags(FlagIsReply)
	require.Equal(t, FlagIsReply, large.Flags())
}
