package kernelerr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/veridian-os/kernel/kernelerr"
)

func TestErrorMessages(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"oom", kernelerr.OutOfMemory(10, 4), "out of memory: requested 10, available 4"},
		{"revoked", kernelerr.CapabilityRevoked(7), "capability 7 has been revoked"},
		{"insufficient", kernelerr.InsufficientRights(0x6, 0x2), "insufficient rights: required 0x6, have 0x2"},
		{"notfound", kernelerr.NotFound("endpoint", 3), "endpoint 3 not found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.err.Error())
		})
	}
}

func TestKindOf(t *testing.T) {
	err := kernelerr.CapabilityRevoked(1)
	require.Equal(t, kernelerr.KindCapabilityRevoked, kernelerr.KindOf(err))
	require.Equal(t, kernelerr.KindUnknown, kernelerr.KindOf(errors.New("plain")))
}

func TestErrorIs(t *testing.T) {
	err := kernelerr.IPC(kernelerr.IPCQueueFull)
	require.True(t, errors.Is(err, kernelerr.IPC(kernelerr.IPCWouldBlock)))

	wrapped := fmt.Errorf("send failed: %w", err)
	require.True(t, errors.Is(wrapped, kernelerr.IPC(kernelerr.IPCQueueFull)))
	require.False(t, errors.Is(wrapped, kernelerr.CapabilityRevoked(1)))
}

func TestWrapPreservesUnderlying(t *testing.T) {
	base := errors.New("disk read failed")
	wrapped := kernelerr.Wrap(kernelerr.KindHardware, base)
	require.ErrorIs(t, wrapped, base)
	require.Equal(t, kernelerr.KindHardware, kernelerr.KindOf(wrapped))
}

func TestWrapNil(t *testing.T) {
	require.NoError(t, kernelerr.Wrap(kernelerr.KindHardware, nil))
}
