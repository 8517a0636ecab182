// Package metrics exposes prometheus instrumentation for the pipeline and the
// signal/order lifecycle.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesIngested counts raw trades applied to the per-symbol buffers.
	TradesIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trades_ingested_total", Help: "Raw trades ingested from the feed"},
		[]string{"symbol"},
	)
	// EntitiesCreated counts market entities synthesized into windows.
	EntitiesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "entities_created_total", Help: "Market entities pushed into windows"},
		[]string{"symbol"},
	)
	// WindowsEvaluated counts ready-window evaluations.
	WindowsEvaluated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "windows_evaluated_total", Help: "Ready windows evaluated into market information"},
		[]string{"symbol"},
	)
	// SignalsOpened counts opened market signals.
	SignalsOpened = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_opened_total", Help: "Market signals opened"},
		[]string{"symbol", "direction"},
	)
	// SignalsClosed counts closed market signals by close reason.
	SignalsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_closed_total", Help: "Market signals closed"},
		[]string{"symbol", "reason"},
	)
	// OrdersPlaced counts orders submitted through the gateway.
	OrdersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_placed_total", Help: "Orders submitted to the gateway"},
		[]string{"symbol", "side"},
	)
	// RealizedPnL tracks the realized profit and loss of the run.
	RealizedPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "realized_pnl", Help: "Cumulative realized PnL"},
	)
)

func init() {
	prometheus.MustRegister(
		TradesIngested, EntitiesCreated, WindowsEvaluated,
		SignalsOpened, SignalsClosed, OrdersPlaced, RealizedPnL,
	)
}

// Handler returns the promhttp handler for mounting on the HTTP server.
func Handler() http.Handler {
	return promhttp.Handler()
}
