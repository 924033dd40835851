package indicators

import (
	"math"
	"testing"
	"time"

	"regime-trader/internal/types"
)

func synthBars(n int, start time.Time, step time.Duration, price func(i int) float64, vol func(i int) float64) []types.Bar {
	out := make([]types.Bar, n)
	for i := 0; i < n; i++ {
		p := price(i)
		out[i] = types.Bar{
			Ts:     start.Add(time.Duration(i) * step),
			Open:   p,
			High:   p * 1.002,
			Low:    p * 0.998,
			Close:  p,
			Volume: vol(i),
		}
	}
	return out
}

func TestComputeEmptyInputsUsesDefaults(t *testing.T) {
	m := New(DefaultConfig()).Compute(Inputs{})

	if m.TrendStrength != DefaultTrendStrength {
		t.Errorf("Expected trend strength %f, got %f", DefaultTrendStrength, m.TrendStrength)
	}
	if m.Momentum != DefaultMomentum {
		t.Errorf("Expected momentum %f, got %f", DefaultMomentum, m.Momentum)
	}
	if m.VolPercentile != DefaultVolPercentile {
		t.Errorf("Expected vol percentile %f, got %f", DefaultVolPercentile, m.VolPercentile)
	}
	if m.VolEstimator != types.VolEstimatorDefault {
		t.Errorf("Expected estimator %s, got %s", types.VolEstimatorDefault, m.VolEstimator)
	}
	if m.BandWidthRatio != DefaultBandWidthRatio || m.VolumeRatio != DefaultVolumeRatio {
		t.Errorf("Expected neutral ratios, got band=%f volume=%f", m.BandWidthRatio, m.VolumeRatio)
	}
}

func TestComputeZeroVolumeStaysFinite(t *testing.T) {
	start := time.Date(2024, 3, 4, 9, 15, 0, 0, time.UTC)
	intraday := synthBars(80, start, 5*time.Minute,
		func(i int) float64 { return 100 },
		func(i int) float64 { return 0 })

	m := New(DefaultConfig()).Compute(Inputs{Intraday: intraday})

	for name, v := range map[string]float64{
		"trend": m.TrendStrength, "momentum": m.Momentum, "atr": m.ATR,
		"band": m.BandWidthRatio, "volume": m.VolumeRatio,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("Expected finite %s, got %f", name, v)
		}
	}
	if m.VolumeRatio != DefaultVolumeRatio {
		t.Errorf("Expected default volume ratio with zero volume, got %f", m.VolumeRatio)
	}
}

func TestComputeUsesReferenceSeries(t *testing.T) {
	start := time.Date(2023, 1, 2, 15, 30, 0, 0, time.UTC)
	ref := synthBars(100, start, 24*time.Hour,
		func(i int) float64 { return 10 + float64(i%10) },
		func(i int) float64 { return 1 })
	ref[len(ref)-1].Close = 100

	m := New(DefaultConfig()).Compute(Inputs{Reference: ref})

	if m.VolEstimator != types.VolEstimatorReference {
		t.Errorf("Expected reference estimator, got %s", m.VolEstimator)
	}
	if m.VolPercentile != 100 {
		t.Errorf("Expected percentile 100 for the series maximum, got %f", m.VolPercentile)
	}
}

func TestComputeProxyPercentileAndRVIV(t *testing.T) {
	start := time.Date(2023, 1, 2, 15, 30, 0, 0, time.UTC)
	daily := synthBars(120, start, 24*time.Hour,
		func(i int) float64 { return 100 + 3*math.Sin(float64(i)) },
		func(i int) float64 { return 1000 })

	m := New(DefaultConfig()).Compute(Inputs{Daily: daily, ImpliedVol: 0.2})

	if m.VolEstimator != types.VolEstimatorProxy {
		t.Errorf("Expected proxy estimator, got %s", m.VolEstimator)
	}
	if m.RealizedVol <= 0 {
		t.Errorf("Expected positive realized vol, got %f", m.RealizedVol)
	}
	if math.Abs(m.RVIVRatio-m.RealizedVol/0.2) > 1e-12 {
		t.Errorf("Expected rv/iv %f, got %f", m.RealizedVol/0.2, m.RVIVRatio)
	}
}
