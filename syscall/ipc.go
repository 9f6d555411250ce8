package syscall

import (
	"context"

	"github.com/veridian-os/kernel/capability"
	"github.com/veridian-os/kernel/ipc"
	"github.com/veridian-os/kernel/kernelerr"
	"github.com/veridian-os/kernel/task"
)

// IPCCreateEndpoint mints an endpoint owned by pid, registers both the
// live [ipc.Endpoint] and a Send|Receive capability for it at index,
// and returns the new endpoint's ID.
func (k *Kernel) IPCCreateEndpoint(pid uint64, index capability.CapIndex) (ipc.EndpointID, error) {
	space, err := k.spaceFor(pid)
	if err != nil {
		return 0, err
	}
	ep := k.IPCSub.NewEndpoint(pid)
	k.registerEndpoint(ep)

	object := capability.EndpointObject(uint64(ep.ID()))
	token, err := k.Caps.CreateCapability(object)
	if err != nil {
		return 0, err
	}
	space.Insert(index, token, capability.Send|capability.Receive, object)
	return ep.ID(), nil
}

func (k *Kernel) endpointFor(pid uint64, index capability.CapIndex, required capability.Rights) (*ipc.Endpoint, error) {
	_, object, err := k.lookupChecked(pid, index, required)
	if err != nil {
		return nil, err
	}
	if object.Kind != capability.ObjectEndpoint && object.Kind != capability.ObjectChannel {
		return nil, kernelerr.InvalidCapability(0, kernelerr.CapInvalidObject)
	}
	ep, ok := k.endpointByID(object.EndpointID)
	if !ok {
		return nil, kernelerr.NotFound("endpoint", object.EndpointID)
	}
	return ep, nil
}

// IPCSend implements spec.md §6's ipc_send: validate the caller holds
// Send rights over the endpoint named by index, then hand msg to the
// fast- or slow-path dispatch in [ipc.Endpoint.Send].
func (k *Kernel) IPCSend(pid uint64, index capability.CapIndex, msg ipc.Message) error {
	ep, err := k.endpointFor(pid, index, capability.Send)
	if err != nil {
		return err
	}
	return ep.Send(msg)
}

// IPCRecv implements spec.md §6's ipc_recv: validate Receive rights,
// then block the calling task at the scheduler level (§4.6.5) while
// the endpoint's own goroutine-parked fast path waits for a sender.
// callerTID identifies the scheduler-level [task.Task] to mark
// Blocked/Ready around the wait; pass 0 to skip scheduler bookkeeping
// (e.g. from a test harness with no registered task).
func (k *Kernel) IPCRecv(ctx context.Context, pid uint64, index capability.CapIndex, callerTID task.TID) (ipc.Message, error) {
	ep, err := k.endpointFor(pid, index, capability.Receive)
	if err != nil {
		return ipc.Message{}, err
	}

	waitChan := uint64(ep.ID())
	if t, ok := k.Sched.Lookup(callerTID); ok {
		k.Sched.BlockOnIPC(t, waitChan)
	}

	msg, err := ep.Receive(ctx)

	if _, ok := k.Sched.Lookup(callerTID); ok {
		k.Sched.WakeFromIPC(waitChan, 1)
	}
	return msg, err
}

// IPCCall implements spec.md §6's ipc_call: send request to the
// endpoint named by index and block for the matching reply, via
// [ipc.ReplyRegistry.Call].
func (k *Kernel) IPCCall(ctx context.Context, pid uint64, index capability.CapIndex, request ipc.Message) (ipc.Message, error) {
	ep, err := k.endpointFor(pid, index, capability.Send)
	if err != nil {
		return ipc.Message{}, err
	}
	return k.Replies.Call(ctx, ep, pid, request)
}

// IPCReply implements spec.md §6's ipc_reply: deliver response to
// whichever caller is blocked in a matching [Kernel.IPCCall] from
// callerPID.
func (k *Kernel) IPCReply(callerPID uint64, response ipc.Message) error {
	return k.Replies.Reply(callerPID, response)
}

// IPCCreateChannel mints a bidirectional [ipc.Channel] owned by pid
// and installs Send|Receive capabilities for its two endpoint halves
// at sendIndex and recvIndex.
func (k *Kernel) IPCCreateChannel(pid uint64, sendIndex, recvIndex capability.CapIndex) (*ipc.Channel, error) {
	space, err := k.spaceFor(pid)
	if err != nil {
		return nil, err
	}
	ch := k.IPCSub.NewChannel(pid)

	sendObject := capability.ChannelObject(uint64(ch.SendID()))
	sendToken, err := k.Caps.CreateCapability(sendObject)
	if err != nil {
		return nil, err
	}
	recvObject := capability.ChannelObject(uint64(ch.ReceiveID()))
	recvToken, err := k.Caps.CreateCapability(recvObject)
	if err != nil {
		return nil, err
	}

	space.Insert(sendIndex, sendToken, capability.Send, sendObject)
	space.Insert(recvIndex, recvToken, capability.Receive, recvObject)

	k.mu.Lock()
	k.channels[uint64(ch.SendID())] = ch
	k.mu.Unlock()

	return ch, nil
}

// IPCCreateRegion allocates a shared-memory region of size bytes with
// permissions perms, installs a Map capability for it at index, and
// registers the region for later Share/lookup. Implements the memory-
// object half of spec.md §4.4.5. It takes a reference on the new
// [ipc.Region], whose onFree callback drops the region from the
// kernel's registry when the count reaches zero; no syscall calls
// [ipc.Region.Release], and removing the capability does not either.
func (k *Kernel) IPCCreateRegion(pid uint64, index capability.CapIndex, size uint64, perms ipc.RegionPermission) (ipc.RegionID, error) {
	space, err := k.spaceFor(pid)
	if err != nil {
		return 0, err
	}

	region := ipc.NewRegion(size, perms, func(r *ipc.Region) {
		k.mu.Lock()
		delete(k.regions, uint64(r.ID()))
		k.mu.Unlock()
	})
	k.registerRegion(region)

	rights := capability.Map | capability.Read
	if perms&ipc.PermWrite != 0 {
		rights |= capability.Write
	}
	object := capability.RegionObject(uint64(region.ID()), size, rights)
	token, err := k.Caps.CreateCapability(object)
	if err != nil {
		return 0, err
	}
	if err := region.Retain(); err != nil {
		return 0, err
	}
	space.Insert(index, token, rights, object)
	return region.ID(), nil
}
