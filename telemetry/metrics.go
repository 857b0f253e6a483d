// Package telemetry exports prometheus counters for the decision loop.
// Components take *Metrics explicitly; there is no package-level registry
// writing.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	CyclesTotal       prometheus.Counter
	InstrumentErrors  *prometheus.CounterVec
	OrdersSubmitted   *prometheus.CounterVec
	OrdersRejected    *prometheus.CounterVec
	ReconAdjustments  *prometheus.CounterVec
	RealizedPnL       *prometheus.GaugeVec
}

// New registers the metric set on the given registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "splitbot_cycles_total",
			Help: "Decision cycles completed.",
		}),
		InstrumentErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "splitbot_instrument_errors_total",
			Help: "Per-instrument cycle failures, isolated from other instruments.",
		}, []string{"instrument"}),
		OrdersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "splitbot_orders_submitted_total",
			Help: "Orders accepted by the brokerage.",
		}, []string{"instrument", "side"}),
		OrdersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "splitbot_orders_rejected_total",
			Help: "Orders the brokerage refused; retried next cycle.",
		}, []string{"instrument", "side"}),
		ReconAdjustments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "splitbot_recon_adjustments_total",
			Help: "Reconciliation corrections applied to the ledger.",
		}, []string{"instrument", "kind"}),
		RealizedPnL: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "splitbot_realized_pnl",
			Help: "Realized P&L per instrument for the current round.",
		}, []string{"instrument"}),
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.InstrumentErrors,
		m.OrdersSubmitted,
		m.OrdersRejected,
		m.ReconAdjustments,
		m.RealizedPnL,
	)
	return m
}

// Nop returns an unregistered metric set for tests.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}
