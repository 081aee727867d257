package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the engine's execution counters. Exposition over HTTP is the
// host process's business; the engine only increments.
type Metrics struct {
	OrdersSubmitted prometheus.Counter
	OrdersRejected  prometheus.Counter
	SignalsCapped   prometheus.Counter
	SignalsRejected prometheus.Counter
	EngineErrors    prometheus.Counter
	EngineHalts     prometheus.Counter
}

// New registers the counters with the given registerer. Pass a fresh
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradebot_orders_submitted_total",
			Help: "Orders successfully submitted to the broker.",
		}),
		OrdersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradebot_orders_rejected_total",
			Help: "Orders rejected by broker business rules.",
		}),
		SignalsCapped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradebot_signals_capped_total",
			Help: "Signals whose quantity the risk gate reduced.",
		}),
		SignalsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradebot_signals_rejected_total",
			Help: "Signals rejected by the risk gate.",
		}),
		EngineErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradebot_engine_errors_total",
			Help: "Submission failures counted against the error threshold.",
		}),
		EngineHalts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradebot_engine_halts_total",
			Help: "Times the engine transitioned to halted.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.OrdersSubmitted, m.OrdersRejected,
			m.SignalsCapped, m.SignalsRejected,
			m.EngineErrors, m.EngineHalts,
		)
	}
	return m
}

// Nop returns unregistered counters, for callers that do not collect.
func Nop() *Metrics { return New(nil) }
