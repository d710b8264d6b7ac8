// Package oms implements the order-management state machine from §4.4:
// internal order-id assignment, lifecycle transitions, VWAP fill
// aggregation, and callback fan-out. Grounded on
// abdoElHodaky/tradSys's internal/trading/order_management and
// internal/trading/risk_management.Service patterns (batching channels,
// zap logging), reworked onto the literal state machine spec.md defines.
//
// Submit is expected to be called from the book/OMS thread; ApplyFill from
// the gateway thread (§5). The Service therefore guards its state map with
// a mutex rather than relying on single-thread confinement, since the two
// callback sites genuinely run on different goroutines.
package oms

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/abdoElHodaky/hftcore/internal/orderbook"
)

// Status is an OMS order's lifecycle state.
type Status uint8

const (
	Pending Status = iota
	Sent
	Acknowledged
	PartiallyFilled
	Filled
	Cancelled
	Rejected
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Sent:
		return "SENT"
	case Acknowledged:
		return "ACKNOWLEDGED"
	case PartiallyFilled:
		return "PARTIALLY_FILLED"
	case Filled:
		return "FILLED"
	case Cancelled:
		return "CANCELLED"
	case Rejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

func (s Status) terminal() bool {
	return s == Filled || s == Cancelled || s == Rejected
}

// Request is the original client intent behind an OMS record.
type Request struct {
	Symbol   string
	Side     orderbook.Side
	Type     orderbook.Type
	Price    int64
	Quantity uint32
}

// Fill is one execution report applied against an order.
type Fill struct {
	OrderID   uint64
	ExecID    string
	Price     int64
	Quantity  uint32
	Timestamp int64
}

// OrderState is the OMS's record for one submitted order.
type OrderState struct {
	ID               uint64
	Request          Request
	Status           Status
	FilledQuantity   uint32
	AverageFillPrice float64
	RejectReason     string
	LastUpdateTime   int64

	fillValue float64 // running sum of price*quantity, for VWAP
}

// snapshot returns a value copy safe to hand to callbacks outside the lock.
func (o *OrderState) snapshot() OrderState {
	cp := *o
	return cp
}

// OnStateChange is invoked after every successful transition.
type OnStateChange func(OrderState)

// OnFill is invoked once per applied fill, before the OnStateChange
// callback for that same fill (§4.4).
type OnFill func(OrderState, Fill)

// Service is the OMS: it assigns ids, stores records, and drives the
// state machine.
type Service struct {
	mu     sync.Mutex
	states map[uint64]*OrderState
	nextID uint64

	logger        *zap.Logger
	onStateChange OnStateChange
	onFill        OnFill
}

// NewService constructs an OMS. A nil logger falls back to zap.NewNop(),
// matching the teacher's NewOrderMatchingEngine convention.
func NewService(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		states: make(map[uint64]*OrderState),
		logger: logger,
	}
}

// OnStateChange registers the callback fired after every transition.
func (s *Service) OnStateChange(fn OnStateChange) { s.onStateChange = fn }

// OnFill registers the callback fired for every applied fill.
func (s *Service) OnFill(fn OnFill) { s.onFill = fn }

// Submit creates a new PENDING record and assigns it a monotonically
// increasing internal order id.
func (s *Service) Submit(req Request, now int64) OrderState {
	id := atomic.AddUint64(&s.nextID, 1)
	st := &OrderState{ID: id, Request: req, Status: Pending, LastUpdateTime: now}

	s.mu.Lock()
	s.states[id] = st
	s.mu.Unlock()

	return st.snapshot()
}

// Get returns a snapshot of the current record, if any.
func (s *Service) Get(id uint64) (OrderState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[id]
	if !ok {
		return OrderState{}, false
	}
	return st.snapshot(), true
}

// MarkSent transitions PENDING -> SENT, on gateway enqueue.
func (s *Service) MarkSent(id uint64, now int64) bool {
	return s.transition(id, func(st *OrderState) bool {
		return st.Status == Pending
	}, Sent, now)
}

// MarkAcknowledged transitions SENT -> ACKNOWLEDGED, on exchange ack.
func (s *Service) MarkAcknowledged(id uint64, now int64) bool {
	return s.transition(id, func(st *OrderState) bool {
		return st.Status == Sent
	}, Acknowledged, now)
}

// Cancel transitions any non-terminal state to CANCELLED.
func (s *Service) Cancel(id uint64, now int64) bool {
	return s.transition(id, func(st *OrderState) bool {
		return !st.Status.terminal()
	}, Cancelled, now)
}

// Reject transitions any non-terminal state to REJECTED, recording reason.
func (s *Service) Reject(id uint64, reason string, now int64) bool {
	var snap OrderState
	var ok bool

	s.mu.Lock()
	st, found := s.states[id]
	if found && !st.Status.terminal() {
		st.Status = Rejected
		st.RejectReason = reason
		st.LastUpdateTime = now
		snap = st.snapshot()
		ok = true
	} else if found {
		s.logger.Warn("terminal state mutation rejected", zap.Uint64("order_id", id), zap.String("status", st.Status.String()))
	}
	s.mu.Unlock()

	if ok && s.onStateChange != nil {
		s.onStateChange(snap)
	}
	return ok
}

// ApplyFill aggregates a fill into the order's VWAP, transitioning
// ACKNOWLEDGED/PARTIALLY_FILLED -> PARTIALLY_FILLED or FILLED. The fill
// callback fires before the state-change callback, per §4.4.
func (s *Service) ApplyFill(fill Fill) bool {
	var snap OrderState
	var fireFill, fireState bool

	s.mu.Lock()
	st, ok := s.states[fill.OrderID]
	switch {
	case !ok:
		s.logger.Warn("fill for unknown order", zap.Uint64("order_id", fill.OrderID))
	case st.Status.terminal():
		s.logger.Warn("terminal state mutation rejected", zap.Uint64("order_id", fill.OrderID), zap.String("status", st.Status.String()))
	case st.Status != Acknowledged && st.Status != PartiallyFilled:
		s.logger.Warn("fill before acknowledgement", zap.Uint64("order_id", fill.OrderID), zap.String("status", st.Status.String()))
	default:
		qty := fill.Quantity
		if remaining := st.Request.Quantity - st.FilledQuantity; qty > remaining {
			qty = remaining
		}
		st.FilledQuantity += qty
		st.fillValue += float64(fill.Price) * float64(qty)
		st.AverageFillPrice = st.fillValue / float64(st.FilledQuantity)
		st.LastUpdateTime = fill.Timestamp
		if st.FilledQuantity == st.Request.Quantity {
			st.Status = Filled
		} else {
			st.Status = PartiallyFilled
		}
		snap = st.snapshot()
		fireFill, fireState = true, true
	}
	s.mu.Unlock()

	if fireFill && s.onFill != nil {
		s.onFill(snap, fill)
	}
	if fireState && s.onStateChange != nil {
		s.onStateChange(snap)
	}
	return fireState
}

// transition applies a guarded status change and fires the state-change
// callback outside the lock. Terminal-state mutation attempts return false
// and are logged, never panicking (§7).
func (s *Service) transition(id uint64, allowed func(*OrderState) bool, to Status, now int64) bool {
	var snap OrderState
	var ok bool

	s.mu.Lock()
	st, found := s.states[id]
	if found && allowed(st) {
		st.Status = to
		st.LastUpdateTime = now
		snap = st.snapshot()
		ok = true
	} else if found {
		s.logger.Warn("invalid OMS transition", zap.Uint64("order_id", id), zap.String("from", st.Status.String()), zap.String("to", to.String()))
	}
	s.mu.Unlock()

	if ok && s.onStateChange != nil {
		s.onStateChange(snap)
	}
	return ok
}
