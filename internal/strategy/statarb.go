package strategy

import (
	"github.com/abdoElHodaky/hftcore/internal/oms"
	"github.com/abdoElHodaky/hftcore/internal/orderbook"
)

// PositionState is the statistical-arbitrage driver's state machine
// position.
type PositionState uint8

const (
	Flat PositionState = iota
	Long
	Short
)

// StatArbConfig tunes the rolling z-score mean-reversion driver.
type StatArbConfig struct {
	Symbol     string
	WindowSize int
	EntryZ     float64
	ExitZ      float64
	OrderSize  uint32
}

// StatArb enters a position when the observed mid deviates from its
// rolling mean by more than EntryZ standard deviations, and flattens it
// once the deviation reverts inside ExitZ.
type StatArb struct {
	cfg      StatArbConfig
	window   *RollingWindow
	state    PositionState
	running  bool
	position int64 // signed, updated from fills as entries partially fill

	// OnOrder is invoked whenever the state machine decides to enter or
	// exit a position.
	OnOrder func(OrderIntent)
}

// NewStatArb constructs a statistical-arbitrage driver.
func NewStatArb(cfg StatArbConfig) *StatArb {
	return &StatArb{cfg: cfg, window: NewRollingWindow(cfg.WindowSize)}
}

func (s *StatArb) Initialize() error { return nil }
func (s *StatArb) Start() error      { s.running = true; return nil }
func (s *StatArb) Stop() error       { s.running = false; return nil }
func (s *StatArb) Shutdown() error   { s.running = false; return nil }

// OnMarketData feeds the rolling window and drives the FLAT/LONG/SHORT
// state machine off the resulting z-score.
func (s *StatArb) OnMarketData(d MarketData) {
	if !s.running || d.Symbol != s.cfg.Symbol {
		return
	}
	mid := d.Mid()
	if mid == 0 {
		return
	}
	s.window.Push(mid)
	if !s.window.Ready() {
		return
	}

	z := s.window.ZScore(mid)

	switch s.state {
	case Flat:
		switch {
		case z < -s.cfg.EntryZ:
			s.enter(Long, orderbook.Buy)
		case z > s.cfg.EntryZ:
			s.enter(Short, orderbook.Sell)
		}
	case Long:
		if z > -s.cfg.ExitZ {
			s.exit(orderbook.Sell)
		}
	case Short:
		if z < s.cfg.ExitZ {
			s.exit(orderbook.Buy)
		}
	}
}

func (s *StatArb) enter(next PositionState, side orderbook.Side) {
	s.state = next
	if s.OnOrder != nil {
		s.OnOrder(OrderIntent{Symbol: s.cfg.Symbol, Side: side, Quantity: s.cfg.OrderSize})
	}
}

// exit flattens whatever is actually outstanding, not the static configured
// order size — the gateway fills 50-100% of a requested quantity, so an
// entry can be partially filled and a fixed-size exit would overshoot flat
// and flip the position onto the opposite side.
func (s *StatArb) exit(side orderbook.Side) {
	s.state = Flat
	qty := s.position
	if qty < 0 {
		qty = -qty
	}
	if qty == 0 {
		return
	}
	if s.OnOrder != nil {
		s.OnOrder(OrderIntent{Symbol: s.cfg.Symbol, Side: side, Quantity: uint32(qty)})
	}
}

func (s *StatArb) OnOrderUpdate(oms.OrderState) {}

// OnFill accumulates realized position so exit knows the true size to
// flatten instead of assuming every entry filled in full.
func (s *StatArb) OnFill(st oms.OrderState, fill oms.Fill) {
	if st.Request.Side == orderbook.Buy {
		s.position += int64(fill.Quantity)
	} else {
		s.position -= int64(fill.Quantity)
	}
}
