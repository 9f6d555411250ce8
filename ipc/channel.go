package ipc

import "context"

// Channel is an asynchronous one-way pipe built from two [Endpoint]s,
// matching original_source's Channel (send and receive endpoints):
// [Channel.Send] queues onto the receive-side endpoint, from which
// [Channel.Receive] and [Channel.TryReceive] take messages.
type Channel struct {
	send    *Endpoint
	receive *Endpoint
}

// NewChannel returns a channel owned by owner. capacity is clamped to
// [MaxChannelQueueSize] and then not stored: each endpoint's queue holds
// up to MaxChannelQueueSize messages whatever capacity is given.
func NewChannel(owner uint64, capacity int, stats *PerfStats) *Channel {
	if capacity > MaxChannelQueueSize || capacity <= 0 {
		capacity = MaxChannelQueueSize
	}
	return &Channel{
		send:    NewEndpoint(owner, stats),
		receive: NewEndpoint(owner, stats),
	}
}

// SendID returns the send-side endpoint's ID.
func (c *Channel) SendID() EndpointID { return c.send.ID() }

// ReceiveID returns the receive-side endpoint's ID.
func (c *Channel) ReceiveID() EndpointID { return c.receive.ID() }

// Send queues msg without blocking.
func (c *Channel) Send(msg Message) error { return c.receive.Send(msg) }

// Receive returns the next message, blocking until one is queued or
// ctx is cancelled.
func (c *Channel) Receive(ctx context.Context) (Message, error) { return c.receive.Receive(ctx) }

// TryReceive returns the next message without blocking.
func (c *Channel) TryReceive() (Message, error) { return c.receive.TryReceive() }

// Close shuts down both endpoints.
func (c *Channel) Close() {
	c.send.Close()
	c.receive.Close()
}
