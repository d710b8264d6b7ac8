package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/hftcore/internal/oms"
	"github.com/abdoElHodaky/hftcore/internal/orderbook"
)

func feed(s *StatArb, mids []float64) {
	for i, m := range mids {
		half := m - 1
		s.OnMarketData(MarketData{Symbol: "X", BestBid: int64(half), BestAsk: int64(half + 2), Timestamp: int64(i)})
	}
}

func TestStatArbEntersLongOnNegativeZScore(t *testing.T) {
	s := NewStatArb(StatArbConfig{Symbol: "X", WindowSize: 5, EntryZ: 1.5, ExitZ: 0.25, OrderSize: 10})
	require.NoError(t, s.Start())

	var intents []OrderIntent
	s.OnOrder = func(i OrderIntent) { intents = append(intents, i) }

	feed(s, []float64{100, 100, 100, 100, 100})
	assert.Empty(t, intents, "a flat window carries no signal")

	s.OnMarketData(MarketData{Symbol: "X", BestBid: 79, BestAsk: 81, Timestamp: 5})
	require.Len(t, intents, 1)
	assert.Equal(t, orderbook.Buy, intents[0].Side)
	assert.Equal(t, Long, s.state)
}

func TestStatArbEntersShortOnPositiveZScore(t *testing.T) {
	s := NewStatArb(StatArbConfig{Symbol: "X", WindowSize: 5, EntryZ: 1.5, ExitZ: 0.25, OrderSize: 10})
	require.NoError(t, s.Start())
	feed(s, []float64{100, 100, 100, 100, 100})

	var intents []OrderIntent
	s.OnOrder = func(i OrderIntent) { intents = append(intents, i) }

	s.OnMarketData(MarketData{Symbol: "X", BestBid: 119, BestAsk: 121, Timestamp: 5})
	require.Len(t, intents, 1)
	assert.Equal(t, orderbook.Sell, intents[0].Side)
	assert.Equal(t, Short, s.state)
}

func TestStatArbExitsOnReversion(t *testing.T) {
	s := NewStatArb(StatArbConfig{Symbol: "X", WindowSize: 5, EntryZ: 1.5, ExitZ: 0.25, OrderSize: 10})
	require.NoError(t, s.Start())
	feed(s, []float64{100, 100, 100, 100, 100})
	s.OnMarketData(MarketData{Symbol: "X", BestBid: 79, BestAsk: 81, Timestamp: 5})
	require.Equal(t, Long, s.state)
	s.OnFill(oms.OrderState{Request: oms.Request{Side: orderbook.Buy}}, oms.Fill{Quantity: 10})

	var intents []OrderIntent
	s.OnOrder = func(i OrderIntent) { intents = append(intents, i) }

	s.OnMarketData(MarketData{Symbol: "X", BestBid: 99, BestAsk: 101, Timestamp: 6})
	require.Len(t, intents, 1)
	assert.Equal(t, orderbook.Sell, intents[0].Side, "exiting a long sells to flatten")
	assert.Equal(t, uint32(10), intents[0].Quantity, "exit sizes the full filled position")
	assert.Equal(t, Flat, s.state)
}

func TestStatArbExitSizesToPartialFillNotOrderSize(t *testing.T) {
	s := NewStatArb(StatArbConfig{Symbol: "X", WindowSize: 5, EntryZ: 1.5, ExitZ: 0.25, OrderSize: 10})
	require.NoError(t, s.Start())
	feed(s, []float64{100, 100, 100, 100, 100})
	s.OnMarketData(MarketData{Symbol: "X", BestBid: 79, BestAsk: 81, Timestamp: 5})
	require.Equal(t, Long, s.state)

	// The gateway only filled 60% of the entry order.
	s.OnFill(oms.OrderState{Request: oms.Request{Side: orderbook.Buy}}, oms.Fill{Quantity: 6})

	var intents []OrderIntent
	s.OnOrder = func(i OrderIntent) { intents = append(intents, i) }

	s.OnMarketData(MarketData{Symbol: "X", BestBid: 99, BestAsk: 101, Timestamp: 6})
	require.Len(t, intents, 1)
	assert.Equal(t, uint32(6), intents[0].Quantity, "exiting a partial fill must not overshoot flat")
}

func TestStatArbExitNoopsWhenNoPositionAccumulated(t *testing.T) {
	s := NewStatArb(StatArbConfig{Symbol: "X", WindowSize: 5, EntryZ: 1.5, ExitZ: 0.25, OrderSize: 10})
	require.NoError(t, s.Start())
	feed(s, []float64{100, 100, 100, 100, 100})
	s.OnMarketData(MarketData{Symbol: "X", BestBid: 79, BestAsk: 81, Timestamp: 5})
	require.Equal(t, Long, s.state)

	// The entry order never actually filled (still resting, or rejected).
	var intents []OrderIntent
	s.OnOrder = func(i OrderIntent) { intents = append(intents, i) }

	s.OnMarketData(MarketData{Symbol: "X", BestBid: 99, BestAsk: 101, Timestamp: 6})
	assert.Empty(t, intents, "nothing to flatten when the entry never filled")
	assert.Equal(t, Flat, s.state)
}

func TestStatArbIgnoresOtherSymbols(t *testing.T) {
	s := NewStatArb(StatArbConfig{Symbol: "X", WindowSize: 3, EntryZ: 1, ExitZ: 0.5, OrderSize: 10})
	require.NoError(t, s.Start())
	calls := 0
	s.OnOrder = func(OrderIntent) { calls++ }
	s.OnMarketData(MarketData{Symbol: "Y", BestBid: 100, BestAsk: 102, Timestamp: 1})
	assert.Equal(t, 0, calls)
}
