package strategy

import (
	"github.com/abdoElHodaky/hftcore/internal/oms"
	"github.com/abdoElHodaky/hftcore/internal/orderbook"
)

// OrderIntent is a strategy's request to place a new order, handed to
// whatever wires the strategy to the OMS.
type OrderIntent struct {
	Symbol   string
	Side     orderbook.Side
	Price    int64
	Quantity uint32
}

// MarketMakingConfig tunes the symmetric quoting strategy.
type MarketMakingConfig struct {
	Symbol          string
	TickSize        int64
	HalfSpreadTicks int64
	BaseQuoteSize   uint32
	MaxPosition     int64
	QuoteRefreshMs  int64
	MaxSpreadTicks  int64 // market spreads wider than this suppress quoting entirely
}

// MarketMaker quotes symmetrically around the observed mid, shrinking
// quote size as its position approaches MaxPosition and suppressing the
// side that would grow an already-maxed-out position.
type MarketMaker struct {
	cfg           MarketMakingConfig
	position      int64
	lastQuoteTime int64
	quoted        bool // whether lastQuoteTime holds a real refresh yet
	running       bool

	bidOrderID, askOrderID uint64
	hasBid, hasAsk         bool

	// OnCancel, if set, is invoked with the order id of a still-resting
	// quote immediately before a refresh replaces it, so a caller can
	// cancel it at the gateway. Called at most once per side per refresh.
	OnCancel func(orderID uint64)

	// OnQuote is invoked with the new bid/ask intents whenever the
	// strategy decides to refresh its quotes. Either side may be a
	// zero-Quantity intent, meaning "withdraw this side".
	OnQuote func(bid, ask OrderIntent)
}

// RecordQuoteIDs stores the order ids assigned to the quotes just
// submitted from the most recent OnQuote call, so the next refresh knows
// what to cancel first. ok reports whether that side actually reached the
// book (a zero-quantity intent or a pre-trade rejection never does).
func (m *MarketMaker) RecordQuoteIDs(bidID uint64, bidOK bool, askID uint64, askOK bool) {
	m.bidOrderID, m.hasBid = bidID, bidOK
	m.askOrderID, m.hasAsk = askID, askOK
}

// cancelOutstanding cancels whatever quotes are still resting from the
// prior refresh, so quotes never accumulate unboundedly across ticks.
func (m *MarketMaker) cancelOutstanding() {
	if m.OnCancel == nil {
		return
	}
	if m.hasBid {
		m.OnCancel(m.bidOrderID)
		m.hasBid = false
	}
	if m.hasAsk {
		m.OnCancel(m.askOrderID)
		m.hasAsk = false
	}
}

// NewMarketMaker constructs a market-making driver.
func NewMarketMaker(cfg MarketMakingConfig) *MarketMaker {
	return &MarketMaker{cfg: cfg}
}

func (m *MarketMaker) Initialize() error { return nil }
func (m *MarketMaker) Start() error      { m.running = true; return nil }
func (m *MarketMaker) Stop() error       { m.running = false; return nil }
func (m *MarketMaker) Shutdown() error   { m.running = false; return nil }

// OnMarketData refreshes quotes, subject to quote_refresh_ms gating and a
// sanity check against an implausibly wide observed spread.
func (m *MarketMaker) OnMarketData(d MarketData) {
	if !m.running || d.Symbol != m.cfg.Symbol {
		return
	}
	if m.quoted && d.Timestamp-m.lastQuoteTime < m.cfg.QuoteRefreshMs {
		return
	}
	if d.BestBid == 0 || d.BestAsk == 0 {
		return
	}
	spread := d.BestAsk - d.BestBid
	if m.cfg.MaxSpreadTicks > 0 && spread > m.cfg.MaxSpreadTicks*m.cfg.TickSize {
		return
	}

	mid := d.Mid()
	bidPrice := roundDownToTick(int64(mid)-m.cfg.HalfSpreadTicks*m.cfg.TickSize, m.cfg.TickSize)
	askPrice := roundUpToTick(int64(mid)+m.cfg.HalfSpreadTicks*m.cfg.TickSize, m.cfg.TickSize)

	bidSize, askSize := m.sizeQuotes()
	m.lastQuoteTime = d.Timestamp
	m.quoted = true

	m.cancelOutstanding()

	if m.OnQuote != nil {
		m.OnQuote(
			OrderIntent{Symbol: m.cfg.Symbol, Side: orderbook.Buy, Price: bidPrice, Quantity: bidSize},
			OrderIntent{Symbol: m.cfg.Symbol, Side: orderbook.Sell, Price: askPrice, Quantity: askSize},
		)
	}
}

// sizeQuotes reduces each side proportionally to how far the current
// position already leans that way, suppressing a side entirely once the
// position has reached the configured limit on that side.
func (m *MarketMaker) sizeQuotes() (bidSize, askSize uint32) {
	bidSize, askSize = m.cfg.BaseQuoteSize, m.cfg.BaseQuoteSize
	if m.cfg.MaxPosition <= 0 {
		return
	}

	utilization := float64(m.position) / float64(m.cfg.MaxPosition)
	switch {
	case utilization > 0:
		bidSize = shrink(bidSize, utilization)
		if m.position >= m.cfg.MaxPosition {
			bidSize = 0
		}
	case utilization < 0:
		askSize = shrink(askSize, -utilization)
		if m.position <= -m.cfg.MaxPosition {
			askSize = 0
		}
	}
	return
}

// shrink scales size down by fraction, floored at 1 unit whenever size
// started out nonzero. A position utilization shy of MaxPosition should
// thin the quote, never silently withdraw it; the separate MaxPosition
// branches in sizeQuotes are what zero a side out entirely.
func shrink(size uint32, fraction float64) uint32 {
	if size == 0 {
		return 0
	}
	if fraction > 1 {
		fraction = 1
	}
	shrunk := uint32(float64(size) * (1 - fraction))
	if shrunk < 1 {
		shrunk = 1
	}
	return shrunk
}

func roundDownToTick(price, tick int64) int64 {
	if tick <= 0 {
		return price
	}
	return (price / tick) * tick
}

func roundUpToTick(price, tick int64) int64 {
	if tick <= 0 {
		return price
	}
	return ((price + tick - 1) / tick) * tick
}

func (m *MarketMaker) OnOrderUpdate(oms.OrderState) {}

// OnFill adjusts the tracked position so future quotes account for it.
func (m *MarketMaker) OnFill(st oms.OrderState, fill oms.Fill) {
	if st.Request.Side == orderbook.Buy {
		m.position += int64(fill.Quantity)
	} else {
		m.position -= int64(fill.Quantity)
	}
}
