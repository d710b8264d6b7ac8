// Command hftcore is the single-process trading engine binary: it loads a
// key=value configuration file, wires the feed/book/OMS/risk/gateway/
// strategy pipeline described across internal/, and runs until SIGINT or
// SIGTERM, at which point it shuts down leaf-first — stop producing new
// market data, stop the strategy, drain the gateway, flush the log.
// Grounded on abdoElHodaky/tradSys's cmd/server/main.go (flag parsing,
// signal.Notify, staged graceful shutdown, log.Fatalf on init failure).
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/abdoElHodaky/hftcore/internal/config"
	"github.com/abdoElHodaky/hftcore/internal/gateway"
	"github.com/abdoElHodaky/hftcore/internal/logging"
	"github.com/abdoElHodaky/hftcore/internal/oms"
	"github.com/abdoElHodaky/hftcore/internal/orderbook"
	"github.com/abdoElHodaky/hftcore/internal/position"
	"github.com/abdoElHodaky/hftcore/internal/risk"
	"github.com/abdoElHodaky/hftcore/internal/strategy"
	"github.com/abdoElHodaky/hftcore/internal/telemetry"

	"github.com/abdoElHodaky/hftcore/internal/feed"
)

const (
	appName    = "hftcore"
	appVersion = "v1.0.0"

	// The ladder the internal book spans. Not user-configurable: it is an
	// implementation bound, not a trading parameter.
	bookBasePrice   = 1
	bookLevels      = 1_000_000
	feedStartPrice  = 500_000
	feedTickSize    = 1
	feedSpreadTicks = 2
)

func main() {
	configPath := flag.String("config", "hftcore.conf", "path to the engine's key=value configuration file")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Printf("%s %s\n", appName, appVersion)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hftcore: failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	zapLogger, writer, err := newZapLogger(cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hftcore: failed to open log file: %v\n", err)
		os.Exit(1)
	}
	sink := logging.New(zapLogger, logging.Config{MinLevel: logging.Info})
	defer sink.Close()

	sink.Log(logging.Info, "starting engine", zap.String("symbol", cfg.Symbol), zap.String("strategy", cfg.Strategy))

	registry := prometheus.NewRegistry()
	collector := telemetry.NewCollector(registry)

	book := orderbook.New(cfg.Symbol, bookBasePrice, bookLevels)
	omsSvc := oms.NewService(zapLogger)
	posManager := position.NewManager()
	riskManager := risk.NewManager(zapLogger)
	riskManager.SetLimits(cfg.Symbol, risk.Limits{
		MaxOrderSize:    cfg.MaxOrderSize,
		MaxPosition:     cfg.MaxPosition,
		CollarBps:       cfg.PriceCollarBps,
		MaxOrdersPerSec: cfg.MaxOrdersPerSec,
		MaxPnLDrawdown:  cfg.MaxLoss,
	})

	var driver strategy.Driver

	omsSvc.OnStateChange(func(st oms.OrderState) {
		if driver != nil {
			driver.OnOrderUpdate(st)
		}
		if st.Status == oms.Rejected {
			collector.IncReject(st.Request.Symbol, st.RejectReason)
		}
	})
	omsSvc.OnFill(func(st oms.OrderState, fill oms.Fill) {
		signedQty := int64(fill.Quantity)
		if st.Request.Side == orderbook.Sell {
			signedQty = -signedQty
		}
		posManager.ApplyFill(st.Request.Symbol, signedQty, float64(fill.Price), fill.Timestamp)
		collector.IncFill(st.Request.Symbol)
		if driver != nil {
			driver.OnFill(st, fill)
		}
	})

	gw, err := gateway.New(gateway.Config{
		QueueSize:       4096,
		FillProbability: 0.9,
		Workers:         8,
		OnBreakerStateChange: func(state float64) {
			collector.SetBreakerState("gateway", state)
		},
	}, func(ev gateway.Event) {
		switch ev.Kind {
		case gateway.EventAck:
			omsSvc.MarkAcknowledged(ev.OrderID, ev.Timestamp)
		case gateway.EventFill:
			omsSvc.ApplyFill(gateway.FillToOMS(ev))
		case gateway.EventReject:
			omsSvc.Reject(ev.OrderID, "gateway circuit breaker open", ev.Timestamp)
		case gateway.EventCancelled:
			omsSvc.Cancel(ev.OrderID, ev.Timestamp)
		}
	}, zapLogger)
	if err != nil {
		sink.Log(logging.Critical, "failed to start gateway", zap.Error(err))
		os.Exit(1)
	}

	// submit returns the assigned order id and whether it actually reached
	// the book and gateway, so callers (the market maker's quote refresh)
	// can track it for a future cancel.
	submit := func(intent strategy.OrderIntent, otype orderbook.Type, now int64) (uint64, bool) {
		if intent.Quantity == 0 {
			return 0, false
		}

		pos, _ := posManager.Get(intent.Symbol)
		sideSign := int8(1)
		if intent.Side == orderbook.Sell {
			sideSign = -1
		}
		verdict := riskManager.CheckOrder(risk.OrderRequest{
			Symbol:         intent.Symbol,
			Side:           sideSign,
			Price:          intent.Price,
			Quantity:       intent.Quantity,
			CurrentPos:     pos.Quantity,
			ReferencePrice: book.Mid(),
		}, now)
		if verdict != risk.Pass {
			collector.IncReject(intent.Symbol, verdict.String())
			sink.Log(logging.Warning, "order rejected by risk manager",
				zap.String("symbol", intent.Symbol), zap.String("verdict", verdict.String()))
			return 0, false
		}
		collector.IncOrder(intent.Symbol, intent.Side.String(), orderTypeLabel(otype))

		st := omsSvc.Submit(oms.Request{
			Symbol: intent.Symbol, Side: intent.Side, Type: otype,
			Price: intent.Price, Quantity: intent.Quantity,
		}, now)

		start := time.Now()
		_, accepted := book.AddOrder(st.ID, intent.Side, otype, intent.Price, intent.Quantity, now)
		collector.ObserveOrderLatency(intent.Symbol, "add_order", time.Since(start))
		if !accepted {
			omsSvc.Reject(st.ID, "rejected by order book", now)
			return 0, false
		}

		omsSvc.MarkSent(st.ID, now)
		if !gw.Submit(gateway.Request{OrderID: st.ID, Symbol: intent.Symbol, Price: intent.Price, Quantity: intent.Quantity, Now: now}) {
			sink.Log(logging.Warning, "gateway queue full, order stalled", zap.Uint64("order_id", st.ID))
			return st.ID, false
		}
		return st.ID, true
	}

	switch cfg.Strategy {
	case "stat_arb":
		sa := strategy.NewStatArb(strategy.StatArbConfig{
			Symbol:     cfg.Symbol,
			WindowSize: cfg.LookbackPeriod,
			EntryZ:     cfg.EntryThreshold,
			ExitZ:      cfg.ExitThreshold,
			OrderSize:  cfg.QuoteSize,
		})
		sa.OnOrder = func(intent strategy.OrderIntent) {
			_, _ = submit(intent, orderbook.Market, time.Now().UnixNano())
		}
		driver = sa
	default:
		mm := strategy.NewMarketMaker(strategy.MarketMakingConfig{
			Symbol:          cfg.Symbol,
			TickSize:        feedTickSize,
			HalfSpreadTicks: int64(cfg.SpreadBps),
			BaseQuoteSize:   cfg.QuoteSize,
			MaxPosition:     cfg.MaxPosition,
			QuoteRefreshMs:  50,
			MaxSpreadTicks:  feedSpreadTicks * 10,
		})
		// gw.Cancel only wins the race if the gateway hasn't executed the
		// order yet; the OMS transition to CANCELLED happens off the
		// resulting EventCancelled callback, not here, so an order that
		// already acked or filled isn't forced into an inconsistent state.
		mm.OnCancel = func(orderID uint64) {
			gw.Cancel(orderID)
		}
		mm.OnQuote = func(bid, ask strategy.OrderIntent) {
			now := time.Now().UnixNano()
			bidID, bidOK := submit(bid, orderbook.Limit, now)
			askID, askOK := submit(ask, orderbook.Limit, now)
			mm.RecordQuoteIDs(bidID, bidOK, askID, askOK)
		}
		driver = mm
	}

	if err := driver.Initialize(); err != nil {
		sink.Log(logging.Critical, "strategy failed to initialize", zap.Error(err))
		os.Exit(1)
	}
	if err := driver.Start(); err != nil {
		sink.Log(logging.Critical, "strategy failed to start", zap.Error(err))
		os.Exit(1)
	}

	feedGen := feed.New(feed.Config{
		Symbol:      cfg.Symbol,
		StartPrice:  feedStartPrice,
		TickSize:    feedTickSize,
		SpreadTicks: feedSpreadTicks,
		Interval:    time.Millisecond,
	}, func(d strategy.MarketData) {
		posManager.SetMarkPrice(d.Symbol, d.Mid())
		driver.OnMarketData(d)

		if pos, ok := posManager.Get(d.Symbol); ok {
			if riskManager.CheckPnL(d.Symbol, pos.RealizedPnL+pos.UnrealizedPnL) == risk.FailPnLLimit {
				sink.Log(logging.Critical, "PnL drawdown breached, halting strategy", zap.String("symbol", d.Symbol))
				driver.Stop()
			}
		}
	})
	feedGen.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sink.Log(logging.Info, "shutting down", zap.String("symbol", cfg.Symbol))

	// Leaf-first: stop producing new market data, stop the strategy from
	// issuing new orders, drain whatever the gateway still has in flight,
	// flush the log last.
	feedGen.Stop()
	_ = driver.Shutdown()
	gw.Shutdown()
	if err := writer.Rotate(); err != nil {
		sink.Log(logging.Warning, "final log rotation failed", zap.Error(err))
	}
}

func orderTypeLabel(t orderbook.Type) string {
	switch t {
	case orderbook.Market:
		return "MARKET"
	case orderbook.IOC:
		return "IOC"
	case orderbook.FOK:
		return "FOK"
	default:
		return "LIMIT"
	}
}

// rotatingWriter is the subset of logging's gzip rotating file writer main
// needs: it satisfies zapcore.WriteSyncer plus an explicit Rotate hook for
// the final flush-before-exit.
type rotatingWriter interface {
	zapcore.WriteSyncer
	Rotate() error
}

// newZapLogger builds a zap.Logger writing JSON lines through a gzip-on-
// rotate file sink, the way the teacher's services/common.NewLogger
// configures zap.NewProductionConfig but over a custom WriteSyncer instead
// of stdout.
func newZapLogger(path string) (*zap.Logger, rotatingWriter, error) {
	writer, err := logging.NewGzipRotatingWriter(path)
	if err != nil {
		return nil, nil, err
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), writer, zapcore.DebugLevel)
	logger := zap.New(core, zap.AddCaller())
	return logger, writer, nil
}
