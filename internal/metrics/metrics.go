// Package metrics exposes the trader's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// regimeCodes gives every regime a stable gauge value.
var regimeCodes = map[string]float64{
	"UNKNOWN":        0,
	"RANGE_BOUND":    1,
	"MEAN_REVERSION": 2,
	"TREND":          3,
	"CAUTION":        4,
	"CHAOS":          5,
}

// Recorder holds every collector. A nil *Recorder is valid and records
// nothing, so components can be built without metrics in tests.
type Recorder struct {
	iterations     *prometheus.CounterVec
	iterationSecs  *prometheus.HistogramVec
	regime         *prometheus.GaugeVec
	confidence     *prometheus.GaugeVec
	breaker        prometheus.Gauge
	losers         prometheus.Gauge
	drawdown       prometheus.Gauge
	slippageAlerts *prometheus.CounterVec
	retries        *prometheus.CounterVec
	ticks          *prometheus.CounterVec
	lastPrice      *prometheus.GaugeVec
	mlCalls        *prometheus.CounterVec
}

// New registers the collectors on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		iterations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trader_iterations_total",
				Help: "Loop iterations by instrument and outcome",
			},
			[]string{"instrument", "outcome"},
		),
		iterationSecs: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trader_iteration_duration_seconds",
				Help:    "Duration of one loop iteration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"instrument"},
		),
		regime: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trader_regime",
				Help: "Current regime code (0=UNKNOWN 1=RANGE_BOUND 2=MEAN_REVERSION 3=TREND 4=CAUTION 5=CHAOS)",
			},
			[]string{"instrument"},
		),
		confidence: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trader_regime_confidence",
				Help: "Confidence of the current regime",
			},
			[]string{"instrument"},
		),
		breaker: f.NewGauge(prometheus.GaugeOpts{
			Name: "trader_circuit_breaker_active",
			Help: "1 when the circuit breaker blocks new entries",
		}),
		losers: f.NewGauge(prometheus.GaugeOpts{
			Name: "trader_consecutive_losers",
			Help: "Current losing streak",
		}),
		drawdown: f.NewGauge(prometheus.GaugeOpts{
			Name: "trader_drawdown",
			Help: "Cumulative P&L below its high watermark",
		}),
		slippageAlerts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trader_slippage_alerts_total",
				Help: "Slippage alerts by level",
			},
			[]string{"level"},
		),
		retries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trader_broker_retries_total",
				Help: "Broker call retries by operation and error kind",
			},
			[]string{"operation", "kind"},
		),
		ticks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trader_ticks_total",
				Help: "Ticks written to the price cache by source",
			},
			[]string{"source"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trader_last_price",
				Help: "Last traded price seen by the price cache",
			},
			[]string{"instrument"},
		),
		mlCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trader_ml_predictions_total",
				Help: "External classifier calls by result",
			},
			[]string{"result"},
		),
	}
}

func (r *Recorder) RecordIteration(instrument, outcome string, seconds float64) {
	if r == nil {
		return
	}
	r.iterations.WithLabelValues(instrument, outcome).Inc()
	r.iterationSecs.WithLabelValues(instrument).Observe(seconds)
}

func (r *Recorder) RecordRegime(instrument, regime string, confidence float64) {
	if r == nil {
		return
	}
	r.regime.WithLabelValues(instrument).Set(regimeCodes[regime])
	r.confidence.WithLabelValues(instrument).Set(confidence)
}

func (r *Recorder) RecordRisk(breakerActive bool, consecutiveLosers int, drawdown float64) {
	if r == nil {
		return
	}
	v := 0.0
	if breakerActive {
		v = 1
	}
	r.breaker.Set(v)
	r.losers.Set(float64(consecutiveLosers))
	r.drawdown.Set(drawdown)
}

func (r *Recorder) RecordSlippageAlert(level string) {
	if r == nil {
		return
	}
	r.slippageAlerts.WithLabelValues(level).Inc()
}

func (r *Recorder) RecordRetry(operation, kind string) {
	if r == nil {
		return
	}
	r.retries.WithLabelValues(operation, kind).Inc()
}

func (r *Recorder) RecordTick(source, instrument string, price float64) {
	if r == nil {
		return
	}
	r.ticks.WithLabelValues(source).Inc()
	r.lastPrice.WithLabelValues(instrument).Set(price)
}

func (r *Recorder) RecordMLCall(result string) {
	if r == nil {
		return
	}
	r.mlCalls.WithLabelValues(result).Inc()
}
