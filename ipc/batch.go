package ipc

import (
	"context"
	"time"

	"github.com/joeycumines/go-microbatch"
)

// pendingSend is one message queued for coalesced asynchronous delivery
// through a [BatchSender].
type pendingSend struct {
	endpoint *Endpoint
	message  Message
	err      error
}

// BatchSender coalesces many concurrent asynchronous Channel.Send calls
// into small batches before acquiring each target endpoint's lock,
// trading a little latency for much better throughput when many
// processes flood a small number of endpoints — the IPC-engine
// analogue of request coalescing. Endpoints sent through directly via
// [Endpoint.Send] bypass this entirely; BatchSender is opt-in for
// high-throughput async producers.
type BatchSender struct {
	batcher *microbatch.Batcher[*pendingSend]
}

// NewBatchSender returns a sender that flushes batches of up to maxSize
// messages, or every flushInterval, whichever comes first. Zero values
// fall back to microbatch's own defaults (16 messages / 50ms).
func NewBatchSender(maxSize int, flushInterval time.Duration) *BatchSender {
	bs := &BatchSender{}
	bs.batcher = microbatch.NewBatcher(&microbatch.BatcherConfig{
		MaxSize:       maxSize,
		FlushInterval: flushInterval,
	}, bs.process)
	return bs
}

func (bs *BatchSender) process(_ context.Context, jobs []*pendingSend) error {
	for _, job := range jobs {
		job.err = job.endpoint.Send(job.message)
	}
	return nil
}

// Send enqueues msg for batched delivery to endpoint, returning once
// the batch containing it has been flushed.
func (bs *BatchSender) Send(ctx context.Context, endpoint *Endpoint, msg Message) error {
	result, err := bs.batcher.Submit(ctx, &pendingSend{endpoint: endpoint, message: msg})
	if err != nil {
		return err
	}
	if err := result.Wait(ctx); err != nil {
		return err
	}
	return result.Job.err
}

// Close releases the underlying batcher's background goroutine.
func (bs *BatchSender) Close() error { return bs.batcher.Close() }
