// Package metrics registers the Prometheus instruments exposed on the
// control server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SignalsFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiertrader_signals_fetched_total",
		Help: "Signals returned by the feed after filtering.",
	})

	OrdersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tiertrader_orders_placed_total",
		Help: "Entry orders placed, by order style.",
	}, []string{"style"})

	EntriesBlocked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiertrader_entries_blocked_total",
		Help: "Entries refused because the symbol was mid-lifecycle.",
	})

	Closures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tiertrader_closures_total",
		Help: "Positions closed, by reason.",
	}, []string{"reason"})

	ProtectiveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiertrader_protective_order_failures_total",
		Help: "Entries left without full protection.",
	})

	BrokerErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiertrader_broker_errors_total",
		Help: "Broker calls that failed.",
	})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tiertrader_sweep_duration_seconds",
		Help:    "Supervisor sweep duration.",
		Buckets: prometheus.DefBuckets,
	})

	TradingEnabled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tiertrader_trading_enabled",
		Help: "1 when trade-entry cycles are enabled, 0 when halted.",
	})
)
