// Package position tracks per-symbol net exposure and PnL. Grounded on
// abdoElHodaky/tradSys's internal/trading/positions.PositionManager (the
// mutex-guarded map-of-positions shape, average-price-on-extend /
// realized-on-close bookkeeping) but reworked from float64 quantities onto
// the signed-int64/uint32-tick types orderbook.Trade produces, and
// extended to decompose a fill that crosses through zero into a close of
// the old side followed by an open of the new one (§4.5).
package position

import "sync"

// Position is one symbol's net exposure and accumulated PnL.
type Position struct {
	Symbol         string
	Quantity       int64 // signed: positive long, negative short
	AvgPrice       float64
	RealizedPnL    float64
	UnrealizedPnL  float64
	LastUpdateTime int64
}

// Manager tracks positions across symbols under a single lock, mirroring
// the teacher's PositionManager concurrency contract.
type Manager struct {
	mu         sync.Mutex
	positions  map[string]*Position
	markPrices map[string]float64
}

// NewManager constructs an empty position manager.
func NewManager() *Manager {
	return &Manager{
		positions:  make(map[string]*Position),
		markPrices: make(map[string]float64),
	}
}

// ApplyFill folds one execution into the symbol's position, decomposing a
// sign-crossing fill into a close of the existing side followed by an open
// of the new one. It returns a snapshot of the resulting position.
func (m *Manager) ApplyFill(symbol string, signedQty int64, price float64, timestamp int64) Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[symbol]
	if !ok {
		pos = &Position{Symbol: symbol}
		m.positions[symbol] = pos
	}

	old := pos.Quantity
	newQty := old + signedQty

	switch {
	case old == 0 || sameSign(old, signedQty):
		// Flat-to-open or adding to an existing position: blend average price.
		pos.AvgPrice = (float64(old)*pos.AvgPrice + float64(signedQty)*price) / float64(newQty)
	case sameSign(newQty, old) || newQty == 0:
		// Partial or exact close: average price is unchanged (or reset to
		// zero when fully flat), realize PnL on the closed quantity.
		closeAmt := absInt64(signedQty)
		if closeAmt > absInt64(old) {
			closeAmt = absInt64(old)
		}
		pos.RealizedPnL += float64(closeAmt) * (price - pos.AvgPrice) * sign(old)
		if newQty == 0 {
			pos.AvgPrice = 0
		}
	default:
		// Crossed through zero: realize PnL on the entire old position,
		// then open the remainder fresh at the fill price.
		pos.RealizedPnL += float64(absInt64(old)) * (price - pos.AvgPrice) * sign(old)
		pos.AvgPrice = price
	}

	pos.Quantity = newQty
	pos.LastUpdateTime = timestamp
	m.markLocked(pos)
	return *pos
}

// SetMarkPrice updates the reference price used for unrealized PnL and
// recomputes it for the symbol's position, if one exists.
func (m *Manager) SetMarkPrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markPrices[symbol] = price
	if pos, ok := m.positions[symbol]; ok {
		m.markLocked(pos)
	}
}

func (m *Manager) markLocked(pos *Position) {
	mark, ok := m.markPrices[pos.Symbol]
	if !ok || pos.Quantity == 0 {
		pos.UnrealizedPnL = 0
		return
	}
	pos.UnrealizedPnL = float64(pos.Quantity) * (mark - pos.AvgPrice)
}

// Get returns a snapshot of a symbol's position.
func (m *Manager) Get(symbol string) (Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// TotalRealizedPnL sums realized PnL across every tracked symbol.
func (m *Manager) TotalRealizedPnL() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total float64
	for _, pos := range m.positions {
		total += pos.RealizedPnL
	}
	return total
}

// TotalPnL sums realized plus unrealized PnL across every tracked symbol.
func (m *Manager) TotalPnL() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total float64
	for _, pos := range m.positions {
		total += pos.RealizedPnL + pos.UnrealizedPnL
	}
	return total
}

// Snapshot returns every tracked position, for reporting and risk checks.
func (m *Manager) Snapshot() []Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Position, 0, len(m.positions))
	for _, pos := range m.positions {
		out = append(out, *pos)
	}
	return out
}

func sameSign(a, b int64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func sign(a int64) float64 {
	if a < 0 {
		return -1
	}
	return 1
}

func absInt64(a int64) int64 {
	if a < 0 {
		return -a
	}
	return a
}
