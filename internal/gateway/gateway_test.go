package gateway

import (
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, timeout time.Duration, want int) (func(Event), func() []Event) {
	t.Helper()
	var mu sync.Mutex
	var events []Event
	done := make(chan struct{})
	var closeOnce sync.Once

	cb := func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		n := len(events)
		mu.Unlock()
		if n >= want {
			closeOnce.Do(func() { close(done) })
		}
	}
	wait := func() []Event {
		select {
		case <-done:
		case <-time.After(timeout):
		}
		mu.Lock()
		defer mu.Unlock()
		return append([]Event(nil), events...)
	}
	return cb, wait
}

func TestSubmitProducesAckThenFill(t *testing.T) {
	cb, wait := collect(t, time.Second, 2)
	g, err := New(Config{QueueSize: 16, FillProbability: 1.0, Workers: 2}, cb, nil)
	require.NoError(t, err)
	defer g.Shutdown()

	require.True(t, g.Submit(Request{OrderID: 1, Symbol: "BTC-USD", Price: 10000, Quantity: 100, Now: 1}))

	events := wait()
	require.Len(t, events, 2)
	assert.Equal(t, EventAck, events[0].Kind)
	assert.Equal(t, EventFill, events[1].Kind)
	assert.GreaterOrEqual(t, events[1].Quantity, uint32(50))
	assert.LessOrEqual(t, events[1].Quantity, uint32(100))
}

func TestSubmitNeverFillsBelowProbabilityZero(t *testing.T) {
	cb, wait := collect(t, 200*time.Millisecond, 1)
	g, err := New(Config{QueueSize: 16, FillProbability: 0, Workers: 2}, cb, nil)
	require.NoError(t, err)
	defer g.Shutdown()

	require.True(t, g.Submit(Request{OrderID: 1, Symbol: "BTC-USD", Price: 10000, Quantity: 10, Now: 1}))

	events := wait()
	require.Len(t, events, 1)
	assert.Equal(t, EventAck, events[0].Kind)
}

func TestFillQuantityNeverRoundsToZero(t *testing.T) {
	cb, wait := collect(t, time.Second, 2)
	g, err := New(Config{QueueSize: 16, FillProbability: 1.0, Workers: 2}, cb, nil)
	require.NoError(t, err)
	defer g.Shutdown()

	require.True(t, g.Submit(Request{OrderID: 1, Symbol: "BTC-USD", Price: 10000, Quantity: 1, Now: 1}))

	events := wait()
	require.Len(t, events, 2)
	assert.GreaterOrEqual(t, events[1].Quantity, uint32(1))
}

func TestCancelBeforeExecutionRejectsInsteadOfSimulating(t *testing.T) {
	cb, wait := collect(t, time.Second, 1)
	g, err := New(Config{QueueSize: 16, FillProbability: 1.0, Workers: 2}, cb, nil)
	require.NoError(t, err)
	defer g.Shutdown()

	require.True(t, g.Cancel(1))
	require.True(t, g.Submit(Request{OrderID: 1, Symbol: "BTC-USD", Price: 10000, Quantity: 100, Now: 1}))

	events := wait()
	require.Len(t, events, 1)
	assert.Equal(t, EventCancelled, events[0].Kind)
}

func TestEventsAreDeliveredFIFOPerOrderID(t *testing.T) {
	const n = 200
	var mu sync.Mutex
	seen := map[uint64][]EventKind{}
	done := make(chan struct{})
	var closeOnce sync.Once
	count := 0

	cb := func(ev Event) {
		mu.Lock()
		seen[ev.OrderID] = append(seen[ev.OrderID], ev.Kind)
		count++
		if count >= n*2 {
			closeOnce.Do(func() { close(done) })
		}
		mu.Unlock()
	}

	g, err := New(Config{QueueSize: 4096, FillProbability: 1.0, Workers: 8}, cb, nil)
	require.NoError(t, err)
	defer g.Shutdown()

	for i := uint64(1); i <= n; i++ {
		require.True(t, g.Submit(Request{OrderID: i, Symbol: "BTC-USD", Price: 10000, Quantity: 10, Now: 1}))
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, n)
	for id, kinds := range seen {
		require.Len(t, kinds, 2, "order %d should see exactly ack then fill", id)
		assert.Equal(t, EventAck, kinds[0], "order %d", id)
		assert.Equal(t, EventFill, kinds[1], "order %d", id)
	}
}

func TestSubmitReturnsFalseWhenQueueFull(t *testing.T) {
	g, err := New(Config{QueueSize: 2, FillProbability: 0, Workers: 1}, func(Event) {}, nil)
	require.NoError(t, err)
	defer g.Shutdown()

	ok := true
	for i := 0; i < 10000 && ok; i++ {
		ok = g.Submit(Request{OrderID: uint64(i), Quantity: 1})
	}
	assert.False(t, ok, "a bounded queue must eventually report backpressure")
}

func TestBreakerStateChangeCallbackReceivesOpenState(t *testing.T) {
	states := make(chan float64, 8)
	settings := gobreaker.Settings{
		ReadyToTrip: func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 1 },
	}

	g, err := New(Config{
		QueueSize:            16,
		FillProbability:      0,
		Workers:              1,
		CircuitBreaker:       settings,
		OnBreakerStateChange: func(state float64) { states <- state },
	}, func(Event) {}, nil)
	require.NoError(t, err)
	defer g.Shutdown()

	// A single forced failure trips ReadyToTrip above straight to open.
	_, _ = g.breaker.Execute(func() (interface{}, error) { return nil, assert.AnError })

	select {
	case state := <-states:
		assert.Equal(t, float64(2), state, "a tripped breaker reports the open state")
	case <-time.After(time.Second):
		t.Fatal("breaker state change callback was never invoked")
	}
}
