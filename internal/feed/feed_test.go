package feed

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/hftcore/internal/strategy"
)

func TestGeneratorEmitsTicksForConfiguredSymbol(t *testing.T) {
	var mu sync.Mutex
	var ticks []strategy.MarketData

	g := New(Config{Symbol: "BTC-USD", StartPrice: 10000, TickSize: 1, SpreadTicks: 2, Interval: time.Millisecond}, func(d strategy.MarketData) {
		mu.Lock()
		ticks = append(ticks, d)
		mu.Unlock()
	})
	g.Start()
	defer g.Stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ticks) >= 3
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, tick := range ticks {
		assert.Equal(t, "BTC-USD", tick.Symbol)
		assert.Less(t, tick.BestBid, tick.BestAsk)
	}
}

func TestGeneratorStopHaltsEmission(t *testing.T) {
	var mu sync.Mutex
	count := 0
	g := New(Config{Symbol: "X", StartPrice: 100, Interval: time.Millisecond}, func(strategy.MarketData) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	g.Start()
	time.Sleep(20 * time.Millisecond)
	g.Stop()

	mu.Lock()
	after := count
	mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, after, count, "no more ticks should arrive once stopped")
}

func TestGeneratorNeverWalksBelowOneTick(t *testing.T) {
	var mu sync.Mutex
	minBid := int64(1 << 62)
	g := New(Config{Symbol: "X", StartPrice: 1, TickSize: 1, SpreadTicks: 1, Interval: time.Millisecond}, func(d strategy.MarketData) {
		mu.Lock()
		if d.BestBid < minBid {
			minBid = d.BestBid
		}
		mu.Unlock()
	})
	g.Start()
	time.Sleep(30 * time.Millisecond)
	g.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, minBid, int64(0))
}
