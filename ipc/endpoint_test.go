package ipc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/veridian-os/kernel/kernelerr"
)

// TestEndpointFastPathDirectHandoff exercises Scenario A: a receiver
// already parked in Receive gets the message directly, without it ever
// touching the queue.
func TestEndpointFastPathDirectHandoff(t *testing.T) {
	stats := NewPerfStats()
	ep := NewEndpoint(1, stats)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	received := make(chan Message, 1)
	go func() {
		msg, err := ep.Receive(ctx)
		require.NoError(t, err)
		received <- msg
	}()

	// Give the receiver goroutine a moment to park.
	require.Eventually(t, func() bool {
		ep.mu.Lock()
		defer ep.mu.Unlock()
		return len(ep.waiters) == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, ep.Send(SmallMsg(NewSmallMessage(0xABCD, 1))))

	msg := <-received
	require.Equal(t, uint64(0xABCD), msg.Capability())
	require.Equal(t, 0, ep.QueueLen())

	report := stats.Report()
	require.Equal(t, uint64(1), report.TotalOperations)
	require.Equal(t, uint64(100), report.FastPathPercentage)
}

// TestEndpointSlowPathQueues checks the slow path: with nobody waiting,
// Send queues the message and TryReceive/Receive later picks it up.
func TestEndpointSlowPathQueues(t *testing.T) {
	stats := NewPerfStats()
	ep := NewEndpoint(1, stats)

	require.NoError(t, ep.Send(SmallMsg(NewSmallMessage(1, 1))))
	require.Equal(t, 1, ep.QueueLen())

	msg, err := ep.TryReceive()
	require.NoError(t, err)
	require.Equal(t, uint64(1), msg.Capability())

	report := stats.Report()
	require.Equal(t, uint64(0), report.FastPathPercentage)
}

func TestEndpointQueueFullReturnsError(t *testing.T) {
	ep := NewEndpoint(1, nil)
	for i := 0; i < MaxChannelQueueSize; i++ {
		require.NoError(t, ep.Send(SmallMsg(NewSmallMessage(uint64(i), 0))))
	}
	err := ep.Send(SmallMsg(NewSmallMessage(999, 0)))
	require.Error(t, err)
	require.Equal(t, kernelerr.KindIPC, kernelerr.KindOf(err))
}

func TestEndpointReceiveContextCancel(t *testing.T) {
	ep := NewEndpoint(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ep.Receive(ctx)
	require.Error(t, err)
}

func TestEndpointCloseReleasesWaiters(t *testing.T) {
	ep := NewEndpoint(1, nil)
	ctx := context.Background()

	errCh := make(chan error, 1)
	go func() {
		_, err := ep.Receive(ctx)
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		ep.mu.Lock()
		defer ep.mu.Unlock()
		return len(ep.waiters) == 1
	}, time.Second, time.Millisecond)

	ep.Close()
	err := <-errCh
	require.Error(t, err)
}

func TestEndpointBindTwiceFails(t *testing.T) {
	ep := NewEndpoint(1, nil)
	require.NoError(t, ep.Bind(2))
	require.Error(t, ep.Bind(3))
}
