package spsc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPopFIFO(t *testing.T) {
	q := New[int](8)
	require.True(t, q.Push(1))
	require.True(t, q.Push(2))
	require.True(t, q.Push(3))

	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, 2, v)

	v, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, 3, v)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestFullReturnsFalse(t *testing.T) {
	q := New[int](4) // capacity rounds to 4, usable = 3
	require.True(t, q.Push(1))
	require.True(t, q.Push(2))
	require.True(t, q.Push(3))
	assert.False(t, q.Push(4), "queue should report full at capacity-1 items")

	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.True(t, q.Push(4), "popping one slot should free capacity")
}

func TestEmptyPop(t *testing.T) {
	q := New[string](4)
	assert.True(t, q.Empty())
	_, ok := q.Pop()
	assert.False(t, ok)
}

// TestConcurrentSPSC exercises the queue under its intended concurrency
// contract: one producer goroutine, one consumer goroutine, racing on a
// realistic interleaving. Run with -race to validate the fence placement.
func TestConcurrentSPSC(t *testing.T) {
	const n = 200000
	q := New[int](1024)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			for !q.Push(i) {
			}
		}
	}()

	received := make([]int, 0, n)
	go func() {
		defer wg.Done()
		for len(received) < n {
			if v, ok := q.Pop(); ok {
				received = append(received, v)
			}
		}
	}()

	wg.Wait()

	for i, v := range received {
		require.Equal(t, i, v, "items must be delivered in FIFO order with no loss or duplication")
	}
}
