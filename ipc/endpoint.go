package ipc

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/veridian-os/kernel/kernelerr"
)

// MaxChannelQueueSize bounds the number of messages an [Endpoint] will
// buffer for a receiver that isn't currently waiting, matching
// original_source/kernel/src/ipc/channel.rs's MAX_CHANNEL_QUEUE_SIZE.
const MaxChannelQueueSize = 1024

var endpointCounter atomic.Uint64

// EndpointID identifies an [Endpoint] for capability and routing
// purposes.
type EndpointID uint64

func nextEndpointID() EndpointID {
	return EndpointID(endpointCounter.Add(1))
}

// Endpoint is a bidirectional IPC handoff point. A receiver parked in
// [Endpoint.Receive] is handed a message directly from [Endpoint.Send]
// with no intermediate queueing — the fast path. If no receiver is
// waiting, the message is placed on a bounded queue and the sender
// returns immediately — the slow path. This realizes
// original_source/kernel/src/ipc/channel.rs's Endpoint, replacing its
// TODO-stubbed waiting-process lists with a direct Go channel handoff.
type Endpoint struct {
	id    EndpointID
	owner uint64

	mu      sync.Mutex
	bound   *uint64
	waiters []chan Message
	queue   []Message
	active  atomic.Bool

	stats *PerfStats
}

// NewEndpoint returns a fresh, active endpoint owned by owner (a
// process ID). stats may be nil, in which case operations on this
// endpoint are not recorded.
func NewEndpoint(owner uint64, stats *PerfStats) *Endpoint {
	e := &Endpoint{id: nextEndpointID(), owner: owner, stats: stats}
	e.active.Store(true)
	return e
}

// ID returns the endpoint's unique identifier.
func (e *Endpoint) ID() EndpointID { return e.id }

// Owner returns the process ID that created this endpoint.
func (e *Endpoint) Owner() uint64 { return e.owner }

// Bind associates this endpoint with target, so later lookups can
// route without a capability round trip. Returns an error if already
// bound.
func (e *Endpoint) Bind(target uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.bound != nil {
		return kernelerr.IPC(kernelerr.IPCEndpointNotFound)
	}
	e.bound = &target
	return nil
}

// Send delivers msg through the endpoint. If a receiver is already
// parked in [Endpoint.Receive], msg is handed to it directly (fast
// path); otherwise it is appended to the bounded queue (slow path).
// Send never blocks.
func (e *Endpoint) Send(msg Message) error {
	if !e.active.Load() {
		return kernelerr.IPC(kernelerr.IPCEndpointNotFound)
	}

	e.mu.Lock()
	if n := len(e.waiters); n > 0 {
		w := e.waiters[n-1]
		e.waiters = e.waiters[:n-1]
		e.mu.Unlock()
		w <- msg
		if e.stats != nil {
			e.stats.RecordOperation(0, msg.Kind == MessageKindSmall)
		}
		return nil
	}

	if len(e.queue) >= MaxChannelQueueSize {
		e.mu.Unlock()
		return kernelerr.IPC(kernelerr.IPCQueueFull)
	}
	e.queue = append(e.queue, msg)
	e.mu.Unlock()
	if e.stats != nil {
		e.stats.RecordOperation(0, false)
	}
	return nil
}

// Receive blocks until a message is available, ctx is cancelled, or the
// endpoint is closed. A message already queued is returned immediately
// (still counted as slow path, since it did not reach a waiting
// receiver directly).
func (e *Endpoint) Receive(ctx context.Context) (Message, error) {
	if !e.active.Load() {
		return Message{}, kernelerr.IPC(kernelerr.IPCEndpointNotFound)
	}

	e.mu.Lock()
	if len(e.queue) > 0 {
		msg := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()
		return msg, nil
	}
	wait := make(chan Message, 1)
	e.waiters = append(e.waiters, wait)
	e.mu.Unlock()

	select {
	case msg, ok := <-wait:
		if !ok {
			return Message{}, kernelerr.IPC(kernelerr.IPCEndpointNotFound)
		}
		return msg, nil
	case <-ctx.Done():
		e.removeWaiter(wait)
		return Message{}, kernelerr.IPC(kernelerr.IPCTimeout)
	}
}

func (e *Endpoint) removeWaiter(target chan Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, w := range e.waiters {
		if w == target {
			e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
			return
		}
	}
}

// TryReceive returns the next queued message without blocking, or
// kernelerr.IPCQueueEmpty if none is available.
func (e *Endpoint) TryReceive() (Message, error) {
	if !e.active.Load() {
		return Message{}, kernelerr.IPC(kernelerr.IPCEndpointNotFound)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return Message{}, kernelerr.IPC(kernelerr.IPCQueueEmpty)
	}
	msg := e.queue[0]
	e.queue = e.queue[1:]
	return msg, nil
}

// Close deactivates the endpoint and releases every parked receiver
// with an error.
func (e *Endpoint) Close() {
	e.active.Store(false)
	e.mu.Lock()
	waiters := e.waiters
	e.waiters = nil
	e.mu.Unlock()
	for _, w := range waiters {
		close(w)
	}
}

// QueueLen reports the number of messages currently queued (not yet
// handed to a receiver).
func (e *Endpoint) QueueLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}
