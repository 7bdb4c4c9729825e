// Package metrics holds the Prometheus series the trader updates. They are
// registered in init() and served at /metrics by the webhook module.
//
//   - trader_signals_total{action}               signals accepted for execution
//   - trader_orders_total{result}                order placements (placed|rejected|skipped)
//   - trader_closes_total{stage,result}          close calls by stage (tp1|tp2|tp3|signal)
//   - trader_execution_errors_total{kind}        failures by error kind
//   - trader_trades_total{result}                fully closed trades (win|loss)
//   - trader_cumulative_pnl                      running realized pnl in points
//   - trader_monitor_ticks_total                 monitor passes
package metrics

import (
	"signal_trader/internal/models"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	signals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_signals_total",
			Help: "Signals accepted for execution",
		},
		[]string{"action"},
	)

	orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_orders_total",
			Help: "Order placements by result",
		},
		[]string{"result"},
	)

	closes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_closes_total",
			Help: "Position close calls by stage and result",
		},
		[]string{"stage", "result"},
	)

	execErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_execution_errors_total",
			Help: "Execution failures by error kind",
		},
		[]string{"kind"},
	)

	trades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_trades_total",
			Help: "Fully closed trades by result",
		},
		[]string{"result"},
	)

	pnl = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trader_cumulative_pnl",
			Help: "Realized pnl of closed trades since start, in price points",
		},
	)

	ticks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trader_monitor_ticks_total",
			Help: "Position monitor passes",
		},
	)
)

func init() {
	prometheus.MustRegister(signals, orders, closes, execErrors, trades, pnl, ticks)
}

// Recorder is the set of hooks the executor and monitor report through.
// Prom is the live implementation, Nop discards.
type Recorder interface {
	Signal(action models.Action)
	Order(result string)
	Close(stage, result string)
	Failure(err error)
	Trade(pnl float64)
	Tick()
}

type Prom struct{}

func (Prom) Signal(action models.Action) { signals.WithLabelValues(string(action)).Inc() }
func (Prom) Order(result string)         { orders.WithLabelValues(result).Inc() }
func (Prom) Close(stage, result string)  { closes.WithLabelValues(stage, result).Inc() }
func (Prom) Tick()                       { ticks.Inc() }

func (Prom) Failure(err error) {
	kind := string(models.KindOf(err))
	if kind == "" {
		kind = "unknown"
	}
	execErrors.WithLabelValues(kind).Inc()
}

func (Prom) Trade(v float64) {
	result := "loss"
	if models.IsWin(v) {
		result = "win"
	}
	trades.WithLabelValues(result).Inc()
	pnl.Add(v)
}

type Nop struct{}

func (Nop) Signal(models.Action) {}
func (Nop) Order(string)         {}
func (Nop) Close(string, string) {}
func (Nop) Failure(error)        {}
func (Nop) Trade(float64)        {}
func (Nop) Tick()                {}

var (
	_ Recorder = Prom{}
	_ Recorder = Nop{}
)
