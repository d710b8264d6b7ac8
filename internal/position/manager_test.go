package position

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAndExtendBlendsAveragePrice(t *testing.T) {
	m := NewManager()
	m.ApplyFill("BTC-USD", 10, 100, 1)
	pos := m.ApplyFill("BTC-USD", 10, 110, 2)

	assert.Equal(t, int64(20), pos.Quantity)
	assert.InDelta(t, 105, pos.AvgPrice, 0.0001)
	assert.Equal(t, float64(0), pos.RealizedPnL)
}

func TestPartialCloseRealizesPnLKeepsAverage(t *testing.T) {
	m := NewManager()
	m.ApplyFill("BTC-USD", 10, 100, 1)
	pos := m.ApplyFill("BTC-USD", -4, 120, 2)

	assert.Equal(t, int64(6), pos.Quantity)
	assert.InDelta(t, 100, pos.AvgPrice, 0.0001, "average price unchanged on a partial close")
	assert.InDelta(t, 80, pos.RealizedPnL, 0.0001, "4 * (120-100)")
}

func TestFullCloseResetsAveragePrice(t *testing.T) {
	m := NewManager()
	m.ApplyFill("BTC-USD", 10, 100, 1)
	pos := m.ApplyFill("BTC-USD", -10, 130, 2)

	assert.Equal(t, int64(0), pos.Quantity)
	assert.Equal(t, float64(0), pos.AvgPrice)
	assert.InDelta(t, 300, pos.RealizedPnL, 0.0001)
}

func TestCrossThroughZeroOpensOppositeSideAtFillPrice(t *testing.T) {
	m := NewManager()
	m.ApplyFill("BTC-USD", 10, 100, 1)
	pos := m.ApplyFill("BTC-USD", -15, 120, 2)

	assert.Equal(t, int64(-5), pos.Quantity)
	assert.InDelta(t, 120, pos.AvgPrice, 0.0001, "the new short leg opens at the fill price")
	assert.InDelta(t, 200, pos.RealizedPnL, 0.0001, "10 * (120-100) realized on the closed long")
}

func TestShortPositionProfitsOnPriceDrop(t *testing.T) {
	m := NewManager()
	m.ApplyFill("BTC-USD", -10, 100, 1)
	pos := m.ApplyFill("BTC-USD", 10, 90, 2)

	assert.Equal(t, int64(0), pos.Quantity)
	assert.Equal(t, float64(0), pos.AvgPrice)
	assert.InDelta(t, 100, pos.RealizedPnL, 0.0001, "buying back a short below entry is profitable")
}

func TestUnrealizedPnLTracksMarkPrice(t *testing.T) {
	m := NewManager()
	m.ApplyFill("BTC-USD", 10, 100, 1)
	m.SetMarkPrice("BTC-USD", 115)

	pos, ok := m.Get("BTC-USD")
	require.True(t, ok)
	assert.InDelta(t, 150, pos.UnrealizedPnL, 0.0001)
}

func TestAvgPriceZeroIffQuantityZero(t *testing.T) {
	m := NewManager()
	pos := m.ApplyFill("BTC-USD", 10, 100, 1)
	assert.NotEqual(t, float64(0), pos.AvgPrice)

	pos = m.ApplyFill("BTC-USD", -10, 105, 2)
	assert.Equal(t, int64(0), pos.Quantity)
	assert.Equal(t, float64(0), pos.AvgPrice)
}

func TestTotalPnLAggregatesAcrossSymbols(t *testing.T) {
	m := NewManager()
	m.ApplyFill("BTC-USD", 10, 100, 1)
	m.ApplyFill("BTC-USD", -10, 110, 2)
	m.ApplyFill("ETH-USD", 5, 2000, 3)
	m.SetMarkPrice("ETH-USD", 2100)

	assert.InDelta(t, 100, m.TotalRealizedPnL(), 0.0001)
	assert.InDelta(t, 100+500, m.TotalPnL(), 0.0001)
}

func TestSnapshotReturnsAllTrackedPositions(t *testing.T) {
	m := NewManager()
	m.ApplyFill("BTC-USD", 10, 100, 1)
	m.ApplyFill("ETH-USD", 5, 2000, 1)

	snap := m.Snapshot()
	assert.Len(t, snap, 2)
}
