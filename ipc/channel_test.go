package ipc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestChannelSendReceive(t *testing.T) {
	ch := NewChannel(1, 16, nil)
	defer ch.Close()

	require.NotEqual(t, ch.SendID(), ch.ReceiveID())
	require.NoError(t, ch.Send(SmallMsg(NewSmallMessage(7, 1))))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := ch.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(7), msg.Capability())
}

func TestChannelCapacityClampedToMax(t *testing.T) {
	ch := NewChannel(1, MaxChannelQueueSize*2, nil)
	defer ch.Close()
	for i := 0; i < MaxChannelQueueSize; i++ {
		require.NoError(t, ch.Send(SmallMsg(NewSmallMessage(uint64(i), 0))))
	}
	require.Error(t, ch.Send(SmallMsg(NewSmallMessage(999, 0))))
}

func TestBatchSenderCoalescesSends(t *testing.T) {
	ep := NewEndpoint(1, nil)
	bs := NewBatchSender(4, 10*time.Millisecond)
	defer bs.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 3)
	for i := 0; i < 3; i++ {
		i := i
		go func() {
			done <- bs.Send(ctx, ep, SmallMsg(NewSmallMessage(uint64(i), 0)))
		}()
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, <-done)
	}
	require.Equal(t, 3, ep.QueueLen())
}
