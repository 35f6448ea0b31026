package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestDrainQueueFIFO asserts that items are drained in insertion order and
// that a drain empties the queue.
func TestDrainQueueFIFO(t *testing.T) {
	t.Parallel()

	q := NewDrainQueue[int]()
	require.True(t, q.IsEmpty())
	require.Nil(t, q.DrainAll())

	for i := 0; i < 5; i++ {
		q.Enqueue(i)
	}
	require.False(t, q.IsEmpty())
	require.Equal(t, 5, q.Len())

	require.Equal(t, []int{0, 1, 2, 3, 4}, q.DrainAll())
	require.True(t, q.IsEmpty())
	require.Nil(t, q.DrainAll())
}

// TestDrainQueueNoAliasing makes sure items enqueued after a drain never show
// up in a previously returned snapshot.
func TestDrainQueueNoAliasing(t *testing.T) {
	t.Parallel()

	q := NewDrainQueue[string]()
	q.Enqueue("a")
	q.Enqueue("b")

	first := q.DrainAll()

	q.Enqueue("c")
	require.Equal(t, []string{"a", "b"}, first)
	require.Equal(t, []string{"c"}, q.DrainAll())
}

// TestDrainQueueProperty checks, for arbitrary interleavings of enqueues and
// drains, that the concatenation of all drains equals the enqueued sequence.
func TestDrainQueueProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		q := NewDrainQueue[int]()

		var (
			enqueued []int
			drained  []int
		)
		ops := rapid.SliceOf(rapid.IntRange(-1, 100)).Draw(t, "ops")
		for _, op := range ops {
			// A negative op drains, anything else is enqueued.
			if op < 0 {
				drained = append(drained, q.DrainAll()...)
				require.True(t, q.IsEmpty())
				continue
			}

			q.Enqueue(op)
			enqueued = append(enqueued, op)
			require.False(t, q.IsEmpty())
		}
		drained = append(drained, q.DrainAll()...)

		require.Equal(t, len(enqueued), len(drained))
		for i := range enqueued {
			require.Equal(t, enqueued[i], drained[i])
		}
	})
}

// TestDrainQueueConcurrent asserts that concurrent producers racing with a
// concurrent drainer neither lose nor duplicate items.
func TestDrainQueueConcurrent(t *testing.T) {
	t.Parallel()

	const (
		numProducers = 16
		perProducer  = 250
	)

	q := NewDrainQueue[int]()

	var wg sync.WaitGroup
	for p := 0; p < numProducers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()

			for i := 0; i < perProducer; i++ {
				q.Enqueue(p*perProducer + i)
			}
		}(p)
	}

	done := make(chan struct{})
	collected := make(chan []int, 1)
	go func() {
		var all []int
		for {
			select {
			case <-done:
				all = append(all, q.DrainAll()...)
				collected <- all
				return

			default:
				all = append(all, q.DrainAll()...)
			}
		}
	}()

	wg.Wait()
	close(done)
	all := <-collected

	require.Len(t, all, numProducers*perProducer)

	// Every item must appear exactly once, and each producer's items must
	// keep their relative order.
	seen := make(map[int]struct{}, len(all))
	last := make(map[int]int)
	for _, item := range all {
		_, dup := seen[item]
		require.False(t, dup, "duplicate item %d", item)
		seen[item] = struct{}{}

		producer := item / perProducer
		if prev, ok := last[producer]; ok {
			require.Less(t, prev, item)
		}
		last[producer] = item
	}
}
