package syscall

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-longpoll"

	"github.com/veridian-os/kernel/capability"
	"github.com/veridian-os/kernel/ipc"
	"github.com/veridian-os/kernel/mm/vmspace"
	"github.com/veridian-os/kernel/sched"
	"github.com/veridian-os/kernel/task"
)

func newTestKernel(t *testing.T) *Kernel {
	t.Helper()
	cfg := Config{
		Sched:         sched.Config{CPUCount: 2},
		InitialFrames: 4096,
	}
	return NewKernel(cfg, nil, sched.NullInterruptController{})
}

type stubFilesystem struct{ data []byte }

func (f stubFilesystem) ReadFile(path string) ([]byte, error) { return f.data, nil }

func TestKernelCapCreateDelegateRevoke(t *testing.T) {
	k := newTestKernel(t)
	producer := k.NewProcess("producer", 0, task.PriorityUserNormal)
	consumer := k.NewProcess("consumer", 0, task.PriorityUserNormal)

	token, err := k.CapCreate(producer.PID, 10, capability.ProcessObject(producer.PID), capability.Read|capability.Grant)
	require.NoError(t, err)
	require.True(t, k.Caps.IsValid(token))

	require.NoError(t, k.CapDelegate(producer.PID, 10, consumer.PID, 20, capability.Read))
	require.NoError(t, k.CapCheck(consumer.PID, 20, capability.Read))
	require.Error(t, k.CapCheck(consumer.PID, 20, capability.Write))

	// delegating more than held fails.
	require.Error(t, k.CapDelegate(producer.PID, 10, consumer.PID, 21, capability.Write))

	n, err := k.CapRevoke(producer.PID, 10, false)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.False(t, k.Caps.IsValid(token))
}

func TestKernelIPCSendRecvRequiresCapability(t *testing.T) {
	k := newTestKernel(t)
	p := k.NewProcess("p", 0, task.PriorityUserNormal)

	epID, err := k.IPCCreateEndpoint(p.PID, 1)
	require.NoError(t, err)
	require.NotZero(t, epID)

	msg := ipc.SmallMsg(ipc.NewSmallMessage(0, 42))
	require.NoError(t, k.IPCSend(p.PID, 1, msg))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := k.IPCRecv(ctx, p.PID, 1, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(42), got.Opcode())

	other := k.NewProcess("other", 0, task.PriorityUserNormal)
	require.Error(t, k.IPCSend(other.PID, 1, msg))
}

func TestKernelIPCCallReply(t *testing.T) {
	k := newTestKernel(t)
	client := k.NewProcess("client", 0, task.PriorityUserNormal)
	server := k.NewProcess("server", 0, task.PriorityUserNormal)

	_, err := k.IPCCreateEndpoint(server.PID, 1)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		req, err := k.endpointFor(server.PID, 1, capability.Receive)
		if err != nil {
			errCh <- err
			return
		}
		msg, err := req.Receive(ctx)
		if err != nil {
			errCh <- err
			return
		}
		errCh <- k.IPCReply(client.PID, msg)
	}()

	// give the client a capability pointing at the server's endpoint.
	serverEP, err := k.endpointFor(server.PID, 1, capability.Receive)
	require.NoError(t, err)
	obj := capability.EndpointObject(uint64(serverEP.ID()))
	token, err := k.Caps.CreateCapability(obj)
	require.NoError(t, err)
	clientSpace, err := k.spaceFor(client.PID)
	require.NoError(t, err)
	clientSpace.Insert(5, token, capability.Send, obj)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := k.IPCCall(ctx, client.PID, 5, ipc.SmallMsg(ipc.NewSmallMessage(0, 7)))
	require.NoError(t, err)
	require.Equal(t, uint32(7), resp.Opcode())
	require.NoError(t, <-errCh)
}

func TestKernelThreadLifecycle(t *testing.T) {
	k := newTestKernel(t)
	p := k.NewProcess("init", 0, task.PriorityUserNormal)

	tid, err := k.SpawnInitialThread(p, "main", 0x1000, 0x2000)
	require.NoError(t, err)

	parentTask, ok := k.Sched.Lookup(tid)
	require.True(t, ok)
	require.NotNil(t, parentTask)

	space, err := k.vspaceFor(p.PID)
	require.NoError(t, err)
	require.NoError(t, space.MapPage(0x3000, vmspace.FlagWritable))

	childTID, err := k.ThreadClone(p.PID, tid, task.CloneRequest{
		Flags:        task.CloneVM | task.CloneFiles | task.CloneSighand | task.CloneThread | task.CloneParentSetTID,
		ChildStackSP: 0x4000,
		ParentTIDPtr: 0x3000,
	}, "child")
	require.NoError(t, err)
	require.NotEqual(t, tid, childTID)

	_, ok = k.Sched.Lookup(childTID)
	require.True(t, ok)

	result, err := k.Exec(p.PID, tid, task.ExecRequest{Path: "/bin/init"}, stubFilesystem{data: []byte{1, 2, 3, 4}})
	require.NoError(t, err)
	require.NotZero(t, result.EntryPoint)

	require.NoError(t, k.Exit(p.PID, childTID, 0))

	received := make(chan ExitInfo, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err = k.Wait(ctx, p.PID, &longpoll.ChannelConfig{MaxSize: 1, MinSize: 1}, func(info ExitInfo) error {
		received <- info
		return nil
	})
	require.NoError(t, err)
	info := <-received
	require.Equal(t, childTID, info.TID)
}

func TestKernelMmapMunmap(t *testing.T) {
	k := newTestKernel(t)
	p := k.NewProcess("p", 0, task.PriorityUserNormal)

	guard, err := k.MmapRegion(p.PID, 0x5000, 8192, vmspace.RegionAnonymous)
	require.NoError(t, err)
	require.Equal(t, uint64(2), guard.Pages())

	require.NoError(t, k.Munmap(guard))
}

func TestCodeForMapsKinds(t *testing.T) {
	require.Equal(t, CodeSuccess, CodeFor(nil))
	require.Equal(t, CodeProcessNotFound, CodeFor(errNotFoundForTest()))
}

func errNotFoundForTest() error {
	_, err := (&Kernel{}).spaceFor(999)
	return err
}
