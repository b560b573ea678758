// Package metrics holds the engine's prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "hedger_fetch_total", Help: "Quote fetch attempts"},
		[]string{"source", "instrument"},
	)
	FetchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "hedger_fetch_failures_total", Help: "Quote fetch failures by kind"},
		[]string{"source", "kind"},
	)
	DegradedCycles = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "hedger_degraded_cycles_total", Help: "Cycles that reused stale prices"},
	)
	CycleSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "hedger_cycle_seconds", Help: "Poll-compute-emit cycle duration", Buckets: prometheus.DefBuckets},
	)
	Verdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "hedger_verdicts_total", Help: "Verdicts emitted by state"},
		[]string{"state"},
	)
	Correlation = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "hedger_correlation", Help: "Latest primary/reference correlation"},
		[]string{"reference"},
	)
	KillSwitch = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "hedger_kill_switch", Help: "1 when the risk kill switch is engaged"},
	)
	StreamConnected = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "hedger_stream_connected", Help: "1 when a push feed is connected"},
		[]string{"stream"},
	)
	TradesRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "hedger_trades_recorded_total", Help: "Trades written to the journal"},
		[]string{"direction"},
	)
)

func init() {
	prometheus.MustRegister(
		FetchTotal, FetchFailures, DegradedCycles, CycleSeconds,
		Verdicts, Correlation, KillSwitch, StreamConnected, TradesRecorded,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Bool converts a flag to a gauge value.
func Bool(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
