package ksync_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/veridian-os/kernel/ksync"
)

func TestMPSCQueuePushPop(t *testing.T) {
	q := ksync.NewMPSCQueue[int]()
	require.True(t, q.IsEmpty())

	q.Push(1)
	q.Push(2)
	q.Push(3)
	require.EqualValues(t, 3, q.Len())

	for _, want := range []int{1, 2, 3} {
		got, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, want, got)
	}

	_, ok := q.Pop()
	require.False(t, ok)
	require.True(t, q.IsEmpty())
}

func TestMPSCQueueConcurrentProducers(t *testing.T) {
	q := ksync.NewMPSCQueue[int]()
	const producers = 8
	const perProducer = 500

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(base + i)
			}
		}(p * perProducer)
	}
	wg.Wait()

	seen := 0
	for {
		_, ok := q.Pop()
		if !ok {
			break
		}
		seen++
	}
	require.Equal(t, producers*perProducer, seen)
}
