// Command veridiand boots a simulated VeridianOS kernel core: the
// capability manager, scheduler, IPC subsystem, and frame allocator
// wired together by syscall.Kernel, one sched.CPU run loop per
// simulated CPU, and an inprocgrpc debug service for introspection.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joeycumines/go-eventloop"
	inprocgrpc "github.com/joeycumines/go-inprocgrpc"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"

	"github.com/veridian-os/kernel/mm/frame"
	"github.com/veridian-os/kernel/sched"
	"github.com/veridian-os/kernel/task"
	veridiansyscall "github.com/veridian-os/kernel/syscall"
)

const cpuCount = 4

func main() {
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(os.Stdout)),
		stumpy.L.WithLevel(logiface.LevelDebug),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kernel := veridiansyscall.NewKernel(veridiansyscall.Config{
		Sched:         sched.Config{CPUCount: cpuCount},
		Frame:         frame.Config{},
		InitialFrames: 1 << 20,
	}, nil, sched.NullInterruptController{})

	loop, err := eventloop.New()
	if err != nil {
		logger.Emerg().Err(err).Log("failed to create debug-service event loop")
		os.Exit(1)
	}
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Err().Err(err).Log("debug-service event loop exited")
		}
	}()

	debugChannel := inprocgrpc.NewChannel(inprocgrpc.WithLoop(loop))
	debugChannel.RegisterService(&debugServiceDesc, &debugServer{kernel: kernel})

	cpus := make([]*sched.CPU, 0, cpuCount)
	for i := 0; i < cpuCount; i++ {
		cpu, err := sched.NewCPU(i, kernel.Sched, sched.Config{CPUCount: cpuCount})
		if err != nil {
			logger.Emerg().Err(err).Int64("cpu", int64(i)).Log("failed to create CPU run loop")
			os.Exit(1)
		}
		cpu.Dispatch = func(t *task.Task) {
			logger.Debug().Int64("tid", int64(t.TID)).Int64("cpu", int64(i)).Log("dispatched task")
		}
		cpus = append(cpus, cpu)
	}

	for _, cpu := range cpus {
		cpu := cpu
		go func() {
			if err := cpu.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Err().Err(err).Log("CPU run loop exited")
			}
		}()
	}

	initProcess := kernel.NewProcess("init", 0, task.PriorityUserNormal)
	initTID, err := kernel.SpawnInitialThread(initProcess, "init", 0x400000, 0)
	if err != nil {
		logger.Emerg().Err(err).Log("failed to spawn init thread")
		os.Exit(1)
	}
	logger.Info().
		Int64("pid", int64(initProcess.PID)).
		Int64("tid", int64(initTID)).
		Log("init process spawned")

	reportTicker := time.NewTicker(5 * time.Second)
	defer reportTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Log("shutdown requested, stopping CPU run loops")
			for _, cpu := range cpus {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				_ = cpu.Shutdown(shutdownCtx)
				cancel()
			}
			_ = loop.Shutdown(context.Background())
			<-loopDone
			return
		case <-reportTicker.C:
			for i := 0; i < kernel.Sched.CPUCount(); i++ {
				logger.Info().
					Int64("cpu", int64(i)).
					Int64("queueLen", int64(kernel.Sched.Len(i))).
					Log("scheduler report")
			}
			if n := kernel.Sched.SweepCleanup(); n > 0 {
				logger.Debug().Int64("reclaimed", int64(n)).Log("swept exited tasks")
			}
			kernel.Sched.Rebalance()
		}
	}
}
