// Package telemetry is the "basic latency-percentile bookkeeping" external
// collaborator referenced only through its call sites in §6: order-book
// operation latency, fill/reject counters, circuit-breaker state. Grounded
// on abdoElHodaky/tradSys's internal/monitoring.MetricsCollector — the
// promauto registration shapes and exponential latency buckets — trimmed
// to the subset this core actually emits (no websocket/db metrics, since
// those subsystems don't exist here).
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector exposes the counters and histograms the pipeline emits into.
// A nil *Collector is not valid; use NewCollector with a dedicated
// registry so tests don't collide with the global default registry.
type Collector struct {
	orderLatency *prometheus.HistogramVec
	ordersTotal  *prometheus.CounterVec
	fillsTotal   *prometheus.CounterVec
	rejectsTotal *prometheus.CounterVec
	breakerState *prometheus.GaugeVec
}

// NewCollector registers the pipeline's metrics against reg. Passing
// prometheus.NewRegistry() (rather than the global DefaultRegisterer)
// keeps repeated construction in tests collision-free.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		orderLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hftcore_order_latency_seconds",
				Help:    "Latency of order book operations in seconds",
				Buckets: prometheus.ExponentialBuckets(0.000001, 2, 16), // 1µs to ~33ms
			},
			[]string{"symbol", "op"},
		),
		ordersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hftcore_orders_total",
				Help: "Total number of orders submitted to the book",
			},
			[]string{"symbol", "side", "type"},
		),
		fillsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hftcore_fills_total",
				Help: "Total number of fills applied to OMS orders",
			},
			[]string{"symbol"},
		),
		rejectsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hftcore_rejects_total",
				Help: "Total number of orders rejected, by reason",
			},
			[]string{"symbol", "reason"},
		),
		breakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hftcore_gateway_circuit_breaker_state",
				Help: "Gateway circuit breaker state: 0=closed, 1=half-open, 2=open",
			},
			[]string{"name"},
		),
	}
}

// ObserveOrderLatency records how long an order-book operation took.
func (c *Collector) ObserveOrderLatency(symbol, op string, d time.Duration) {
	c.orderLatency.WithLabelValues(symbol, op).Observe(d.Seconds())
}

// IncOrder counts one order reaching the book.
func (c *Collector) IncOrder(symbol, side, otype string) {
	c.ordersTotal.WithLabelValues(symbol, side, otype).Inc()
}

// IncFill counts one fill applied to an OMS order.
func (c *Collector) IncFill(symbol string) {
	c.fillsTotal.WithLabelValues(symbol).Inc()
}

// IncReject counts one rejected order, tagged by reason.
func (c *Collector) IncReject(symbol, reason string) {
	c.rejectsTotal.WithLabelValues(symbol, reason).Inc()
}

// SetBreakerState records the gateway circuit breaker's current state.
func (c *Collector) SetBreakerState(name string, state float64) {
	c.breakerState.WithLabelValues(name).Set(state)
}
