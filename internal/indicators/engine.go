// Package indicators turns bar series into the RegimeMetrics snapshot used
// by the regime classifier.
package indicators

import (
	"math"

	"github.com/creasty/defaults"

	"regime-trader/internal/ta"
	"regime-trader/internal/types"
)

// Neutral values reported when an input window is too short or a
// computation is not finite.
const (
	DefaultTrendStrength  = 20.0
	DefaultMomentum       = 50.0
	DefaultATR            = 0.0
	DefaultRealizedVol    = 0.0
	DefaultVolPercentile  = 50.0
	DefaultBandWidthRatio = 1.0
	DefaultVolumeRatio    = 1.0
)

type Config struct {
	ADXPeriod        int     `yaml:"adx_period" default:"14" validate:"gt=0"`
	RSIPeriod        int     `yaml:"rsi_period" default:"14" validate:"gt=0"`
	ATRPeriod        int     `yaml:"atr_period" default:"14" validate:"gt=0"`
	RVWindow         int     `yaml:"rv_window" default:"20" validate:"gt=1"`
	PercentileWindow int     `yaml:"percentile_window" default:"252" validate:"gt=1"`
	BBWindow         int     `yaml:"bb_window" default:"20" validate:"gt=1"`
	BBStdDev         float64 `yaml:"bb_stddev" default:"2" validate:"gt=0"`
	BandAvgWindow    int     `yaml:"band_avg_window" default:"20" validate:"gt=0"`
	VolumeWindow     int     `yaml:"volume_window" default:"20" validate:"gt=0"`
	PeriodsPerYear   float64 `yaml:"periods_per_year" default:"252" validate:"gt=0"`
}

// DefaultConfig returns the config with every default tag applied.
func DefaultConfig() Config {
	var c Config
	_ = defaults.Set(&c)
	return c
}

// Engine computes RegimeMetrics. It holds no state between calls.
type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Inputs groups the series the engine reads. Reference is an optional
// daily volatility index series (for example India VIX closes); ImpliedVol
// is an optional annualised implied vol as a fraction.
type Inputs struct {
	Intraday   []types.Bar
	Daily      []types.Bar
	Reference  []types.Bar
	ImpliedVol float64
}

func (e *Engine) Compute(in Inputs) types.RegimeMetrics {
	m := types.RegimeMetrics{
		TrendStrength:  DefaultTrendStrength,
		Momentum:       DefaultMomentum,
		ATR:            DefaultATR,
		RealizedVol:    DefaultRealizedVol,
		VolPercentile:  DefaultVolPercentile,
		VolEstimator:   types.VolEstimatorDefault,
		BandWidthRatio: DefaultBandWidthRatio,
		VolumeRatio:    DefaultVolumeRatio,
	}

	h, l, c := types.HLC(in.Intraday)
	m.TrendStrength = orDefault(ta.ADX(h, l, c, e.cfg.ADXPeriod), DefaultTrendStrength)
	m.Momentum = orDefault(ta.RSI(c, e.cfg.RSIPeriod), DefaultMomentum)
	m.ATR = orDefault(ta.ATR(h, l, c, e.cfg.ATRPeriod), DefaultATR)
	m.BandWidthRatio = e.bandWidthRatio(c)
	m.VolumeRatio = volumeRatio(types.Volumes(in.Intraday), e.cfg.VolumeWindow)

	daily := types.Closes(in.Daily)
	m.RealizedVol = orDefault(ta.RealizedVol(daily, e.cfg.RVWindow, e.cfg.PeriodsPerYear), DefaultRealizedVol)
	m.VolPercentile, m.VolEstimator = e.volPercentile(daily, types.Closes(in.Reference))

	if in.ImpliedVol > 0 && ta.Finite(in.ImpliedVol) {
		m.ImpliedVol = in.ImpliedVol
		if m.RealizedVol > 0 {
			m.RVIVRatio = m.RealizedVol / in.ImpliedVol
		}
	}
	return m
}

func (e *Engine) bandWidthRatio(closes []float64) float64 {
	widths := ta.BandWidths(closes, e.cfg.BBWindow, e.cfg.BBStdDev)
	if len(widths) < e.cfg.BandAvgWindow {
		return DefaultBandWidthRatio
	}
	avg := ta.SMA(widths, e.cfg.BandAvgWindow)
	cur := widths[len(widths)-1]
	if !ta.Finite(avg) || !ta.Finite(cur) || avg == 0 {
		return DefaultBandWidthRatio
	}
	return cur / avg
}

func volumeRatio(vols []float64, window int) float64 {
	if len(vols) < window+1 {
		return DefaultVolumeRatio
	}
	// average of the bars before the current one
	avg := ta.SMA(vols[:len(vols)-1], window)
	if !ta.Finite(avg) || avg == 0 {
		return DefaultVolumeRatio
	}
	return orDefault(vols[len(vols)-1]/avg, DefaultVolumeRatio)
}

// volPercentile ranks the latest reference value within its lookback, or
// falls back to ranking realized vol of the daily series.
func (e *Engine) volPercentile(daily, reference []float64) (float64, string) {
	if len(reference) >= 2 {
		win := tail(reference, e.cfg.PercentileWindow)
		if p := ta.PercentileRank(win, win[len(win)-1]); ta.Finite(p) {
			return p, types.VolEstimatorReference
		}
	}

	rv := ta.RollingRealizedVol(daily, e.cfg.RVWindow, e.cfg.PeriodsPerYear)
	if len(rv) >= 2 {
		win := tail(rv, e.cfg.PercentileWindow)
		if p := ta.PercentileRank(win, win[len(win)-1]); ta.Finite(p) {
			return p, types.VolEstimatorProxy
		}
	}
	return DefaultVolPercentile, types.VolEstimatorDefault
}

func tail(v []float64, n int) []float64 {
	if n <= 0 || len(v) <= n {
		return v
	}
	return v[len(v)-n:]
}

func orDefault(v, def float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}
