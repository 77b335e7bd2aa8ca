package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	OrdersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momo_orders_submitted_total",
			Help: "Total number of orders submitted (by strategy and side).",
		},
		[]string{"strategy", "side"},
	)

	DecisionPasses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "momo_decision_passes_total",
			Help: "Total number of completed decision passes.",
		},
	)

	DataFetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momo_data_fetch_errors_total",
			Help: "Total number of failed ticker fetches per instrument.",
		},
		[]string{"instrument"},
	)

	PositionsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "momo_positions_open",
			Help: "Current number of open positions.",
		},
	)

	RealizedPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "momo_realized_pnl",
			Help: "Cumulative realized profit and loss.",
		},
	)
)

func init() {
	prometheus.MustRegister(OrdersSubmitted, DecisionPasses, DataFetchErrors, PositionsOpen, RealizedPnL)
}
