// Package feed is the simulated market-data generator §1 calls out as an
// external collaborator: the core only ever consumes the MarketData shape
// strategy.Driver.OnMarketData takes, never this package's internals.
// Grounded on abdoElHodaky/tradSys's internal/trading/market_data
// types (symbol/bid/ask/timestamp shape) but generating a synthetic
// random walk instead of connecting to a real venue.
package feed

import (
	"math/rand"
	"time"

	"github.com/abdoElHodaky/hftcore/internal/strategy"
)

// Config tunes the synthetic tick generator.
type Config struct {
	Symbol      string
	StartPrice  int64
	TickSize    int64
	SpreadTicks int64
	Interval    time.Duration
}

// Generator emits synthetic top-of-book ticks on its own goroutine at a
// fixed interval, via a random walk of the mid price.
type Generator struct {
	cfg    Config
	mid    int64
	stop   chan struct{}
	done   chan struct{}
	onTick func(strategy.MarketData)
}

// New constructs a generator. onTick is called from the generator's own
// goroutine; callers that aren't safe for concurrent access from it
// should hand off through their own queue.
func New(cfg Config, onTick func(strategy.MarketData)) *Generator {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Millisecond
	}
	if cfg.TickSize <= 0 {
		cfg.TickSize = 1
	}
	if cfg.SpreadTicks <= 0 {
		cfg.SpreadTicks = 1
	}
	return &Generator{
		cfg:    cfg,
		mid:    cfg.StartPrice,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		onTick: onTick,
	}
}

// Start launches the generator's background goroutine.
func (g *Generator) Start() {
	go g.run()
}

func (g *Generator) run() {
	defer close(g.done)
	ticker := time.NewTicker(g.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stop:
			return
		case t := <-ticker.C:
			g.step(t.UnixNano())
		}
	}
}

// step applies one random-walk increment and emits the resulting
// top-of-book quote.
func (g *Generator) step(now int64) {
	delta := g.cfg.TickSize
	if rand.Intn(2) == 0 {
		delta = -delta
	}
	g.mid += delta
	if g.mid < g.cfg.TickSize {
		g.mid = g.cfg.TickSize
	}

	half := g.cfg.SpreadTicks * g.cfg.TickSize
	tick := strategy.MarketData{
		Symbol:    g.cfg.Symbol,
		BestBid:   g.mid - half,
		BestAsk:   g.mid + half,
		Timestamp: now,
	}
	if g.onTick != nil {
		g.onTick(tick)
	}
}

// Stop halts the generator and waits for its goroutine to exit.
func (g *Generator) Stop() {
	close(g.stop)
	<-g.done
}
