// Package strategy defines the shared driver interface every trading
// strategy implements, plus a rolling-window helper used to compute
// moving statistics over recent prices. Grounded on
// abdoElHodaky/tradSys's internal/strategy.Strategy interface (the
// initialize/start/stop/on_market_data/on_order_update lifecycle) and its
// internal/strategy/incremental_statistics.go, reworked from an unbounded
// Welford accumulator onto a fixed-size lookback window backed by
// github.com/markcheno/go-talib, since spec.md's strategies need a moving
// average and standard deviation over the trailing N observations, not an
// all-time one.
package strategy

import (
	talib "github.com/markcheno/go-talib"

	"github.com/abdoElHodaky/hftcore/internal/oms"
)

// MarketData is one top-of-book update a strategy reacts to.
type MarketData struct {
	Symbol    string
	BestBid   int64
	BestAsk   int64
	Timestamp int64
}

// Mid returns the midpoint price, or 0 if either side is empty.
func (d MarketData) Mid() float64 {
	if d.BestBid == 0 || d.BestAsk == 0 {
		return 0
	}
	return float64(d.BestBid+d.BestAsk) / 2
}

// Driver is the interface every strategy implements, mirroring the
// teacher's Strategy interface but over the in-process types this module
// produces instead of the teacher's protobuf market-data/order messages.
type Driver interface {
	Initialize() error
	Start() error
	Stop() error
	Shutdown() error
	OnMarketData(MarketData)
	OnOrderUpdate(oms.OrderState)
	OnFill(oms.OrderState, oms.Fill)
}

// RollingWindow holds the last N price observations and computes their
// moving mean and standard deviation via go-talib, the same library the
// teacher's market_data/timeframe indicators use for Sma/StdDev.
type RollingWindow struct {
	capacity int
	buf      []float64
	pos      int
	full     bool
}

// NewRollingWindow constructs a window over the trailing `capacity`
// observations.
func NewRollingWindow(capacity int) *RollingWindow {
	return &RollingWindow{capacity: capacity, buf: make([]float64, capacity)}
}

// Push records a new observation, overwriting the oldest once the window
// is at capacity.
func (w *RollingWindow) Push(v float64) {
	w.buf[w.pos] = v
	w.pos = (w.pos + 1) % w.capacity
	if w.pos == 0 {
		w.full = true
	}
}

// Ready reports whether the window has accumulated a full `capacity`
// observations — statistics are meaningless before that.
func (w *RollingWindow) Ready() bool { return w.full }

// ordered returns the buffered values in chronological order, oldest
// first, as go-talib expects.
func (w *RollingWindow) ordered() []float64 {
	if !w.full {
		return append([]float64(nil), w.buf[:w.pos]...)
	}
	out := make([]float64, 0, w.capacity)
	out = append(out, w.buf[w.pos:]...)
	out = append(out, w.buf[:w.pos]...)
	return out
}

// Mean returns the window's simple moving average. It is only meaningful
// once Ready reports true.
func (w *RollingWindow) Mean() float64 {
	series := w.ordered()
	sma := talib.Sma(series, len(series))
	return lastValid(sma)
}

// StdDev returns the window's (population) standard deviation.
func (w *RollingWindow) StdDev() float64 {
	series := w.ordered()
	dev := talib.StdDev(series, len(series), 1.0)
	return lastValid(dev)
}

// ZScore returns (latest-mean)/stddev, or 0 if stddev is zero (a flat
// window carries no signal).
func (w *RollingWindow) ZScore(latest float64) float64 {
	sd := w.StdDev()
	if sd == 0 {
		return 0
	}
	return (latest - w.Mean()) / sd
}

func lastValid(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}
