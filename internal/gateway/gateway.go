// Package gateway simulates the exchange-facing edge of the pipeline: an
// async executor draining its own SPSC queue, producing probabilistic
// acks and partial/full fills, and fanning callbacks out through a bounded
// set of per-order-id shards so two events for the same order can never be
// observed out of order. Grounded on abdoElHodaky/tradSys's
// internal/architecture/fx/resilience.CircuitBreakerFactory (gobreaker
// wiring and state-change logging) and
// internal/architecture/fx/workerpool.WorkerPoolFactory (ants.Pool
// sizing), reworked from their fx-DI factories onto a single
// purpose-built executor, plus internal/spsc for the submit queue spec.md
// requires.
package gateway

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/hftcore/internal/hftcore/errs"
	"github.com/abdoElHodaky/hftcore/internal/oms"
	"github.com/abdoElHodaky/hftcore/internal/spsc"
)

// Request is one outbound order submission.
type Request struct {
	OrderID  uint64
	Symbol   string
	Price    int64
	Quantity uint32
	Now      int64
}

// Callback receives ack/fill/reject/cancel notifications. Two events for
// the same order id are always delivered in the order they were produced —
// see the per-order-id shard scheme on Gateway.
type Callback func(Event)

// EventKind distinguishes the notification shapes a Callback sees.
type EventKind uint8

const (
	EventAck EventKind = iota
	EventFill
	EventReject
	EventCancelled
)

// Event is one asynchronous notification from the simulated exchange.
type Event struct {
	Kind      EventKind
	OrderID   uint64
	Price     int64
	Quantity  uint32
	Timestamp int64
	ExecID    string
}

// Config tunes the simulated exchange's behavior.
type Config struct {
	QueueSize       int
	FillProbability float64 // 0..1, probability a submitted order gets any fill at all
	Workers         int     // also the number of per-order-id callback shards
	// CircuitBreaker, when zero-valued, uses sensible defaults matching
	// the teacher's resilience.DefaultSettings.
	CircuitBreaker gobreaker.Settings
	// OnBreakerStateChange, if set, is invoked with the breaker's new
	// state (0=closed, 1=half-open, 2=open) on every transition, so a
	// caller can feed it straight into a telemetry gauge.
	OnBreakerStateChange func(state float64)
}

// Gateway is the async executor sitting between the OMS and the simulated
// exchange. Submit enqueues onto an SPSC queue; a single goroutine drains
// it, calls through a circuit breaker, and dispatches the resulting events
// onto a fixed set of shards — one per order_id % len(shards) — each
// drained by exactly one long-lived ants-pool worker, so the ack and any
// following fill for one order are always observed in submission order
// even though different orders execute concurrently.
type Gateway struct {
	queue    *spsc.Queue[Request]
	breaker  *gobreaker.CircuitBreaker
	pool     *ants.Pool
	callback Callback
	logger   *zap.Logger
	fillProb float64

	cancelled sync.Map // order id -> struct{}, orders cancelled before execute()

	shards    []chan Event
	shardDone sync.WaitGroup

	stop chan struct{}
	done chan struct{}
}

// New constructs a gateway. cb receives every Event; it is never called
// concurrently for the same order id, and never out of order for it.
func New(cfg Config, cb Callback, logger *zap.Logger) (*Gateway, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.FillProbability < 0 {
		cfg.FillProbability = 0
	}

	settings := cfg.CircuitBreaker
	if settings.Name == "" {
		settings.Name = "gateway"
	}
	if settings.ReadyToTrip == nil {
		settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.5
		}
	}
	settings.OnStateChange = func(name string, from gobreaker.State, to gobreaker.State) {
		logger.Info("gateway circuit breaker state changed", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		if cfg.OnBreakerStateChange != nil {
			cfg.OnBreakerStateChange(breakerStateValue(to))
		}
	}

	pool, err := ants.NewPool(cfg.Workers, ants.WithPreAlloc(true), ants.WithPanicHandler(func(i interface{}) {
		logger.Error("gateway callback panicked", zap.Any("recover", i))
	}))
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeGatewayInit, "failed to construct callback worker pool")
	}

	g := &Gateway{
		queue:    spsc.New[Request](cfg.QueueSize),
		breaker:  gobreaker.NewCircuitBreaker(settings),
		pool:     pool,
		callback: cb,
		logger:   logger,
		fillProb: cfg.FillProbability,
		shards:   make([]chan Event, cfg.Workers),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	for i := range g.shards {
		ch := make(chan Event, 256)
		g.shards[i] = ch
		g.shardDone.Add(1)
		if err := pool.Submit(func() { g.drainShard(ch) }); err != nil {
			return nil, errs.Wrap(err, errs.CodeGatewayInit, "failed to start callback shard")
		}
	}

	go g.run()
	return g, nil
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// Submit enqueues an order for simulated execution. It returns false if
// the queue is full — the caller (OMS) is expected to treat that as
// backpressure, not a rejection.
func (g *Gateway) Submit(req Request) bool {
	return g.queue.Push(req)
}

// Cancel requests that orderID never execute. An SPSC ring buffer can't
// remove an arbitrary in-flight element, so Cancel instead marks the id:
// if execute() reaches it before it has been simulated, it is rejected
// with EventCancelled instead of acked/filled. Returns true unconditionally
// — whether the order was still cancellable is observable only from the
// resulting callback (an EventCancelled vs. an EventAck that already won
// the race).
func (g *Gateway) Cancel(orderID uint64) bool {
	g.cancelled.Store(orderID, struct{}{})
	return true
}

// run drains the queue on a single goroutine, matching the SPSC contract:
// exactly one consumer. Once stopped, it executes whatever is still queued
// before returning.
func (g *Gateway) run() {
	defer close(g.done)
	for {
		select {
		case <-g.stop:
			for {
				req, ok := g.queue.Pop()
				if !ok {
					return
				}
				g.execute(req)
			}
		default:
		}

		req, ok := g.queue.Pop()
		if !ok {
			time.Sleep(time.Microsecond * 50)
			continue
		}
		g.execute(req)
	}
}

func (g *Gateway) execute(req Request) {
	if _, cancelled := g.cancelled.LoadAndDelete(req.OrderID); cancelled {
		g.dispatch(Event{Kind: EventCancelled, OrderID: req.OrderID, Timestamp: req.Now})
		return
	}

	_, err := g.breaker.Execute(func() (interface{}, error) {
		g.simulate(req)
		return nil, nil
	})
	if err != nil {
		g.dispatch(Event{Kind: EventReject, OrderID: req.OrderID, Timestamp: req.Now})
	}
}

// simulate produces an ack followed by at most one fill, per
// fillProbability, filling 50-100% of the requested quantity, clamped to at least 1 unit so a tiny order can't round to a
// zero-quantity fill.
func (g *Gateway) simulate(req Request) {
	g.dispatch(Event{Kind: EventAck, OrderID: req.OrderID, Timestamp: req.Now})

	if rand.Float64() > g.fillProb {
		return
	}

	ratio := 0.5 + rand.Float64()*0.5
	qty := uint32(float64(req.Quantity) * ratio)
	if qty < 1 {
		qty = 1
	}
	if qty > req.Quantity {
		qty = req.Quantity
	}

	g.dispatch(Event{Kind: EventFill, OrderID: req.OrderID, Price: req.Price, Quantity: qty, Timestamp: req.Now, ExecID: uuid.NewString()})
}

// dispatch routes ev to its order id's shard, never across shards, so a
// slow callback for one order can't reorder another order's events and
// can't stall orders hashed to a different shard either.
func (g *Gateway) dispatch(ev Event) {
	if g.callback == nil || len(g.shards) == 0 {
		return
	}
	shard := g.shards[ev.OrderID%uint64(len(g.shards))]
	select {
	case shard <- ev:
	default:
		g.logger.Warn("gateway callback dropped, shard full", zap.Uint64("order_id", ev.OrderID))
	}
}

// drainShard is the body of one long-lived worker: it owns exactly one
// shard channel for the gateway's lifetime, so events it drains are
// delivered to the callback in the exact order dispatch enqueued them.
func (g *Gateway) drainShard(ch chan Event) {
	defer g.shardDone.Done()
	for ev := range ch {
		g.callback(ev)
	}
}

// Shutdown stops the drain loop (after it executes any still-queued
// requests), closes every shard once it can no longer
// receive new events, waits for them to empty, then releases the pool.
func (g *Gateway) Shutdown() {
	close(g.stop)
	<-g.done
	for _, ch := range g.shards {
		close(ch)
	}
	g.shardDone.Wait()
	g.pool.Release()
}

// FillToOMS adapts a gateway Event into an oms.Fill, for callers wiring
// the two packages together.
func FillToOMS(ev Event) oms.Fill {
	return oms.Fill{OrderID: ev.OrderID, ExecID: ev.ExecID, Price: ev.Price, Quantity: ev.Quantity, Timestamp: ev.Timestamp}
}
