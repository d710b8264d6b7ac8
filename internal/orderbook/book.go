package orderbook

import (
	"math"

	"github.com/google/uuid"

	"github.com/abdoElHodaky/hftcore/internal/arena"
)

// Book is a single-instrument limit order book over a dense, array-indexed
// price ladder. Level i on either side corresponds to integer price
// basePrice+i. Prices outside [basePrice, basePrice+levels) are rejected.
//
// A Book is owned exclusively by one goroutine (the book/OMS thread in
// §5); it does no internal locking.
type Book struct {
	Symbol    string
	basePrice int64
	levels    int

	bids []priceLevel
	asks []priceLevel

	bestBidIdx int // -1 when no bids rest
	bestAskIdx int // == levels when no asks rest

	orders map[uint64]*Order
	arena  *arena.Arena[Order]

	// OnTrade is invoked synchronously, once per resting order matched,
	// in resting-price/time order, for every trade produced by AddOrder.
	OnTrade func(Trade)

	ordersProcessed uint64
	tradesExecuted  uint64
}

// Stats is a snapshot of the book's lifetime aggregate counters, the
// engine-level bookkeeping the teacher's OrderMatchingEngine.GetStats
// exposes.
type Stats struct {
	OrdersProcessed uint64
	TradesExecuted  uint64
}

// Stats returns the book's lifetime counters.
func (b *Book) Stats() Stats {
	return Stats{OrdersProcessed: b.ordersProcessed, TradesExecuted: b.tradesExecuted}
}

// New creates a book spanning [basePrice, basePrice+levels).
func New(symbol string, basePrice int64, levels int) *Book {
	return &Book{
		Symbol:     symbol,
		basePrice:  basePrice,
		levels:     levels,
		bids:       make([]priceLevel, levels),
		asks:       make([]priceLevel, levels),
		bestBidIdx: -1,
		bestAskIdx: levels,
		orders:     make(map[uint64]*Order),
		arena:      arena.New[Order](256),
	}
}

// AddOrder matches the incoming order against the book, emitting a Trade
// via OnTrade for every resting order it crosses, then — per its Type —
// either rests any remaining quantity or discards it. It returns the
// trades produced and whether the order was accepted at all (false only
// for a non-market price outside the ladder, or a FOK that can't fill).
func (b *Book) AddOrder(id uint64, side Side, otype Type, price int64, qty uint32, timestamp int64) ([]Trade, bool) {
	b.ordersProcessed++
	if otype != Market {
		idx := price - b.basePrice
		if idx < 0 || idx >= int64(b.levels) {
			return nil, false
		}
	}

	agg := Order{ID: id, Symbol: b.Symbol, Price: price, Quantity: qty, Side: side, Type: otype, Timestamp: timestamp}

	if otype == FOK && !b.canFillFully(&agg) {
		return nil, false
	}

	trades := b.matchAgainst(&agg)

	if agg.Quantity > 0 {
		switch otype {
		case Market, IOC:
			// residual is not rested (§9 open question (b))
		default:
			node := b.arena.Allocate()
			*node = agg
			b.rest(node)
		}
	}

	return trades, true
}

// canFillFully reports whether o could be matched down to zero remaining
// quantity against the book as it currently stands, without mutating it.
// Used only for the FOK pre-check.
func (b *Book) canFillFully(o *Order) bool {
	need := o.Quantity
	if o.Side == Buy {
		for idx := b.bestAskIdx; idx < b.levels && need > 0; idx++ {
			price := b.basePrice + int64(idx)
			if price > o.Price {
				break
			}
			need = subtractAvailable(need, b.asks[idx].totalQuantity)
		}
	} else {
		for idx := b.bestBidIdx; idx >= 0 && need > 0; idx-- {
			price := b.basePrice + int64(idx)
			if price < o.Price {
				break
			}
			need = subtractAvailable(need, b.bids[idx].totalQuantity)
		}
	}
	return need == 0
}

func subtractAvailable(need, available uint32) uint32 {
	if available >= need {
		return 0
	}
	return need - available
}

// matchAgainst walks the opposite side of the book from best price
// outward, consuming resting orders in strict price-time priority while
// the aggressor still has quantity and the opposing best price crosses.
func (b *Book) matchAgainst(agg *Order) []Trade {
	var trades []Trade
	for agg.Quantity > 0 {
		if agg.Side == Buy {
			if b.bestAskIdx >= b.levels {
				break
			}
			price := b.basePrice + int64(b.bestAskIdx)
			if agg.Type != Market && agg.Price < price {
				break
			}
			idx := b.bestAskIdx
			trades = b.executeAtLevel(agg, &b.asks[idx], trades)
			if b.asks[idx].empty() {
				b.recomputeBestAsk(idx)
			}
		} else {
			if b.bestBidIdx < 0 {
				break
			}
			price := b.basePrice + int64(b.bestBidIdx)
			if agg.Type != Market && agg.Price > price {
				break
			}
			idx := b.bestBidIdx
			trades = b.executeAtLevel(agg, &b.bids[idx], trades)
			if b.bids[idx].empty() {
				b.recomputeBestBid(idx)
			}
		}
	}
	return trades
}

// executeAtLevel drains resting orders at lvl's head, FIFO, against the
// aggressor until one side is exhausted.
func (b *Book) executeAtLevel(agg *Order, lvl *priceLevel, trades []Trade) []Trade {
	for agg.Quantity > 0 && lvl.orderCount > 0 {
		resting := lvl.head
		qty := agg.Quantity
		if resting.Quantity < qty {
			qty = resting.Quantity
		}

		trade := Trade{Price: resting.Price, Quantity: qty, Timestamp: agg.Timestamp, ExecID: uuid.NewString()}
		if agg.Side == Buy {
			trade.BuyOrderID, trade.SellOrderID = agg.ID, resting.ID
		} else {
			trade.BuyOrderID, trade.SellOrderID = resting.ID, agg.ID
		}

		agg.Quantity -= qty
		resting.Quantity -= qty
		lvl.totalQuantity -= qty

		if resting.Quantity == 0 {
			lvl.remove(resting)
			delete(b.orders, resting.ID)
			b.arena.Free(resting)
		}

		trades = append(trades, trade)
		b.tradesExecuted++
		if b.OnTrade != nil {
			b.OnTrade(trade)
		}
	}
	return trades
}

// rest appends an arena-allocated node to the tail of its price level and
// extends the cached best price if needed.
func (b *Book) rest(o *Order) {
	idx := int(o.Price - b.basePrice)
	if o.Side == Buy {
		lvl := &b.bids[idx]
		if lvl.empty() {
			lvl.price = o.Price
		}
		lvl.pushBack(o)
		if b.bestBidIdx == -1 || idx > b.bestBidIdx {
			b.bestBidIdx = idx
		}
	} else {
		lvl := &b.asks[idx]
		if lvl.empty() {
			lvl.price = o.Price
		}
		lvl.pushBack(o)
		if b.bestAskIdx == b.levels || idx < b.bestAskIdx {
			b.bestAskIdx = idx
		}
	}
	b.orders[o.ID] = o
}

// CancelOrder removes a resting order in O(1). It returns false, firing no
// callback, if the id is unknown.
func (b *Book) CancelOrder(id uint64) bool {
	o, ok := b.orders[id]
	if !ok {
		return false
	}
	idx := int(o.Price - b.basePrice)
	if o.Side == Buy {
		b.bids[idx].remove(o)
		if idx == b.bestBidIdx && b.bids[idx].empty() {
			b.recomputeBestBid(idx)
		}
	} else {
		b.asks[idx].remove(o)
		if idx == b.bestAskIdx && b.asks[idx].empty() {
			b.recomputeBestAsk(idx)
		}
	}
	delete(b.orders, id)
	b.arena.Free(o)
	return true
}

// ModifyOrder changes a resting order's quantity in place. Per §4.3 /
// §9 open question (a), a size increase keeps the order's existing time
// priority rather than re-queuing it to the tail — this preserves the
// teacher repo's observed (if market-convention-breaking) behavior.
func (b *Book) ModifyOrder(id uint64, newQty uint32) bool {
	if newQty == 0 {
		return false
	}
	o, ok := b.orders[id]
	if !ok {
		return false
	}
	idx := int(o.Price - b.basePrice)
	var lvl *priceLevel
	if o.Side == Buy {
		lvl = &b.bids[idx]
	} else {
		lvl = &b.asks[idx]
	}
	lvl.totalQuantity = lvl.totalQuantity - o.Quantity + newQty
	o.Quantity = newQty
	return true
}

// recomputeBestBid scans from fromIdx toward 0 for the next non-empty
// bid level, per §4.3's "scan from last known best toward the other end".
func (b *Book) recomputeBestBid(fromIdx int) {
	for idx := fromIdx; idx >= 0; idx-- {
		if !b.bids[idx].empty() {
			b.bestBidIdx = idx
			return
		}
	}
	b.bestBidIdx = -1
}

func (b *Book) recomputeBestAsk(fromIdx int) {
	for idx := fromIdx; idx < b.levels; idx++ {
		if !b.asks[idx].empty() {
			b.bestAskIdx = idx
			return
		}
	}
	b.bestAskIdx = b.levels
}

// BestBid returns the highest resting buy price, or 0 when the bid side is
// empty.
func (b *Book) BestBid() int64 {
	if b.bestBidIdx < 0 {
		return 0
	}
	return b.basePrice + int64(b.bestBidIdx)
}

// BestAsk returns the lowest resting sell price, or math.MaxInt64 when the
// ask side is empty.
func (b *Book) BestAsk() int64 {
	if b.bestAskIdx >= b.levels {
		return math.MaxInt64
	}
	return b.basePrice + int64(b.bestAskIdx)
}

// Mid returns the arithmetic mean of best bid and best ask, or 0 when
// either side is empty.
func (b *Book) Mid() int64 {
	if b.bestBidIdx < 0 || b.bestAskIdx >= b.levels {
		return 0
	}
	return (b.BestBid() + b.BestAsk()) / 2
}

// Spread returns BestAsk - BestBid, or 0 when either side is empty.
func (b *Book) Spread() int64 {
	if b.bestBidIdx < 0 || b.bestAskIdx >= b.levels {
		return 0
	}
	return b.BestAsk() - b.BestBid()
}

// Depth returns up to n non-empty levels per side, ordered from best
// price outward.
func (b *Book) Depth(n int) (bidLevels, askLevels []Level) {
	bidLevels = make([]Level, 0, n)
	for idx := b.bestBidIdx; idx >= 0 && len(bidLevels) < n; idx-- {
		if !b.bids[idx].empty() {
			bidLevels = append(bidLevels, levelOf(&b.bids[idx], b.basePrice+int64(idx)))
		}
	}
	askLevels = make([]Level, 0, n)
	for idx := b.bestAskIdx; idx < b.levels && len(askLevels) < n; idx++ {
		if !b.asks[idx].empty() {
			askLevels = append(askLevels, levelOf(&b.asks[idx], b.basePrice+int64(idx)))
		}
	}
	return bidLevels, askLevels
}

func levelOf(l *priceLevel, price int64) Level {
	return Level{Price: price, TotalQuantity: l.totalQuantity, OrderCount: l.orderCount}
}

// OrderCount returns the number of orders the book currently tracks,
// across both sides.
func (b *Book) OrderCount() int {
	return len(b.orders)
}
