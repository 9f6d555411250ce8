package main

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/veridian-os/kernel/capability"
	"github.com/veridian-os/kernel/syscall"
)

// debugServer implements the kernel's introspection surface over
// inprocgrpc: DescribeScheduler dumps per-CPU run-queue occupancy and
// DescribeCapabilitySpace dumps a process's live capability table.
// Requests/responses use the well-known wrappers/structpb types instead
// of a hand-generated .proto package, the same "no bespoke message
// types" shortcut the teacher's own inprocgrpc tests take with
// wrapperspb.StringValue.
type debugServer struct {
	kernel *syscall.Kernel
}

func (d *debugServer) DescribeScheduler(ctx context.Context, _ *wrapperspb.Int64Value) (*structpb.Struct, error) {
	cpus := make([]any, 0, d.kernel.Sched.CPUCount())
	for cpu := 0; cpu < d.kernel.Sched.CPUCount(); cpu++ {
		entry := map[string]any{
			"cpu":       int64(cpu),
			"queueLen":  int64(d.kernel.Sched.Len(cpu)),
			"isRunning": d.kernel.Sched.Running(cpu) != nil,
		}
		if t := d.kernel.Sched.Running(cpu); t != nil {
			entry["runningTID"] = int64(t.TID)
		}
		cpus = append(cpus, entry)
	}
	return structpb.NewStruct(map[string]any{"cpus": cpus})
}

func (d *debugServer) DescribeCapabilitySpace(ctx context.Context, pid *wrapperspb.UInt64Value) (*structpb.Struct, error) {
	space, err := d.kernel.CapabilitySpace(pid.GetValue())
	if err != nil {
		return nil, err
	}
	var entries []any
	space.Range(func(index capability.CapIndex, token capability.Token, object capability.ObjectRef, rights capability.Rights) bool {
		entries = append(entries, map[string]any{
			"index":  int64(index),
			"rights": rights.String(),
			"kind":   int64(object.Kind),
		})
		return true
	})
	return structpb.NewStruct(map[string]any{
		"pid":          int64(pid.GetValue()),
		"generation":   int64(space.Generation()),
		"capabilities": entries,
	})
}

type debugServiceServer interface {
	DescribeScheduler(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
	DescribeCapabilitySpace(context.Context, *wrapperspb.UInt64Value) (*structpb.Struct, error)
}

var debugServiceDesc = grpc.ServiceDesc{
	ServiceName: "veridian.debug.DebugService",
	HandlerType: (*debugServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "DescribeScheduler",
			Handler:    describeSchedulerHandler,
		},
		{
			MethodName: "DescribeCapabilitySpace",
			Handler:    describeCapabilitySpaceHandler,
		},
	},
	Metadata: "veridiand/debug.proto",
}

func describeSchedulerHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.Int64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(debugServiceServer).DescribeScheduler(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/veridian.debug.DebugService/DescribeScheduler"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(debugServiceServer).DescribeScheduler(ctx, req.(*wrapperspb.Int64Value))
	}
	return interceptor(ctx, in, info, handler)
}

func describeCapabilitySpaceHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.UInt64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(debugServiceServer).DescribeCapabilitySpace(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/veridian.debug.DebugService/DescribeCapabilitySpace"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(debugServiceServer).DescribeCapabilitySpace(ctx, req.(*wrapperspb.UInt64Value))
	}
	return interceptor(ctx, in, info, handler)
}
