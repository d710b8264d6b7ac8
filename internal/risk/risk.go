// Package risk runs the pre-trade and post-trade checks the order flow
// passes through before reaching the gateway. Grounded on
// abdoElHodaky/tradSys's internal/trading/risk_management.Service — the
// per-symbol RiskLimit/CircuitBreaker shape and its use of
// github.com/patrickmn/go-cache for frequently-read limits — reworked onto
// spec.md's fixed, ordered check list instead of the teacher's
// configurable RiskLimitType table.
package risk

import (
	"time"

	cache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Verdict categorizes the outcome of a pre-trade check.
type Verdict uint8

const (
	Pass Verdict = iota
	FailOrderSize
	FailPositionLimit
	FailPriceCollar
	FailOrderRate
	FailPnLLimit
)

func (v Verdict) String() string {
	switch v {
	case Pass:
		return "PASS"
	case FailOrderSize:
		return "FAIL_ORDER_SIZE"
	case FailPositionLimit:
		return "FAIL_POSITION_LIMIT"
	case FailPriceCollar:
		return "FAIL_PRICE_COLLAR"
	case FailOrderRate:
		return "FAIL_ORDER_RATE"
	case FailPnLLimit:
		return "FAIL_PNL_LIMIT"
	default:
		return "UNKNOWN"
	}
}

// Limits is the fixed set of per-symbol thresholds the risk manager
// enforces. A zero CollarBps disables the price-collar check.
type Limits struct {
	MaxOrderSize      uint32
	MaxPosition       int64
	CollarBps         float64
	MaxOrdersPerSec   int
	MaxPnLDrawdown    float64
}

// OrderRequest is the candidate order a pre-trade check evaluates.
type OrderRequest struct {
	Symbol       string
	Side         int8 // +1 buy, -1 sell, matches orderbook.Side via caller mapping
	Price        int64
	Quantity     uint32
	CurrentPos   int64
	ReferencePrice int64 // 0 means "no reference available", skips the collar check
}

// Manager enforces ordered pre-trade checks and a post-trade PnL check.
// Per-symbol limits are cached with github.com/patrickmn/go-cache so a hot
// symbol's lookup never touches the backing map under lock contention,
// matching the teacher's PositionCache usage.
type Manager struct {
	limits *cache.Cache
	rates  map[string][]int64 // symbol -> recent order timestamps (unix nanos), pruned to the window
	logger *zap.Logger
}

// NewManager builds a risk manager. Its limits cache never expires entries;
// SetLimits installs and replaces them explicitly.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		limits: cache.New(cache.NoExpiration, time.Minute),
		rates:  make(map[string][]int64),
		logger: logger,
	}
}

// SetLimits installs or replaces the limits for a symbol.
func (m *Manager) SetLimits(symbol string, l Limits) {
	m.limits.Set(symbol, l, cache.NoExpiration)
}

func (m *Manager) limitsFor(symbol string) (Limits, bool) {
	v, ok := m.limits.Get(symbol)
	if !ok {
		return Limits{}, false
	}
	return v.(Limits), true
}

// CheckOrder runs the ordered pre-trade checks: order size, projected
// position, price collar, then per-symbol order rate. The first failing
// check short-circuits the rest.
func (m *Manager) CheckOrder(req OrderRequest, nowNanos int64) Verdict {
	limits, ok := m.limitsFor(req.Symbol)
	if !ok {
		return Pass // an unconfigured symbol carries no limits
	}

	if limits.MaxOrderSize > 0 && req.Quantity > limits.MaxOrderSize {
		m.logger.Warn("order rejected: size", zap.String("symbol", req.Symbol), zap.Uint32("quantity", req.Quantity))
		return FailOrderSize
	}

	if limits.MaxPosition > 0 {
		projected := req.CurrentPos + int64(req.Side)*int64(req.Quantity)
		if projected > limits.MaxPosition || projected < -limits.MaxPosition {
			m.logger.Warn("order rejected: position limit", zap.String("symbol", req.Symbol), zap.Int64("projected", projected))
			return FailPositionLimit
		}
	}

	if limits.CollarBps > 0 && req.ReferencePrice != 0 {
		deviation := float64(req.Price-req.ReferencePrice) / float64(req.ReferencePrice) * 10000
		if deviation < 0 {
			deviation = -deviation
		}
		if deviation > limits.CollarBps {
			m.logger.Warn("order rejected: price collar", zap.String("symbol", req.Symbol), zap.Float64("deviation_bps", deviation))
			return FailPriceCollar
		}
	}

	if limits.MaxOrdersPerSec > 0 && m.rateExceeded(req.Symbol, limits.MaxOrdersPerSec, nowNanos) {
		m.logger.Warn("order rejected: rate limit", zap.String("symbol", req.Symbol))
		return FailOrderRate
	}

	return Pass
}

// rateExceeded records the attempt and reports whether the symbol has
// already issued MaxOrdersPerSec orders within the trailing 1-second
// window. A rejected attempt is still recorded, matching the teacher's
// circuit-breaker convention of tracking every observation.
func (m *Manager) rateExceeded(symbol string, max int, nowNanos int64) bool {
	const window = int64(time.Second)
	stamps := m.rates[symbol]

	cutoff := nowNanos - window
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts > cutoff {
			kept = append(kept, ts)
		}
	}

	exceeded := len(kept) >= max
	m.rates[symbol] = append(kept, nowNanos)
	return exceeded
}

// CheckPnL runs the post-trade drawdown check against a symbol's current
// PnL. A zero MaxPnLDrawdown disables the check.
func (m *Manager) CheckPnL(symbol string, pnl float64) Verdict {
	limits, ok := m.limitsFor(symbol)
	if !ok || limits.MaxPnLDrawdown == 0 {
		return Pass
	}
	if pnl < -limits.MaxPnLDrawdown {
		m.logger.Warn("PnL breach", zap.String("symbol", symbol), zap.Float64("pnl", pnl))
		return FailPnLLimit
	}
	return Pass
}
