package ta

import (
	"math"
	"testing"
)

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestSMAShortInput(t *testing.T) {
	if v := SMA([]float64{1, 2}, 3); !math.IsNaN(v) {
		t.Errorf("Expected NaN for short input, got %f", v)
	}
	if v := SMA([]float64{1, 2, 3, 4}, 2); v != 3.5 {
		t.Errorf("Expected 3.5, got %f", v)
	}
}

func TestRSIExtremes(t *testing.T) {
	up := ramp(30, 100, 1)
	if v := RSI(up, 14); v != 100 {
		t.Errorf("Expected RSI 100 on a rising series, got %f", v)
	}
	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 100
	}
	if v := RSI(flat, 14); v != 50 {
		t.Errorf("Expected RSI 50 on a flat series, got %f", v)
	}
}

func TestADXStrongTrend(t *testing.T) {
	closes := ramp(60, 100, 2)
	highs := ramp(60, 101, 2)
	lows := ramp(60, 99, 2)
	v := ADX(highs, lows, closes, 14)
	if math.IsNaN(v) || v < 25 {
		t.Errorf("Expected ADX above 25 for a steady trend, got %f", v)
	}
	if v := ADX(highs[:20], lows[:20], closes[:20], 14); !math.IsNaN(v) {
		t.Errorf("Expected NaN with fewer than 2*period+1 bars, got %f", v)
	}
}

func TestATRConstantRange(t *testing.T) {
	n := 30
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i := 0; i < n; i++ {
		closes[i] = 100
		highs[i] = 101
		lows[i] = 99
	}
	if v := ATR(highs, lows, closes, 14); math.Abs(v-2) > 1e-9 {
		t.Errorf("Expected ATR 2, got %f", v)
	}
}

func TestPercentileRank(t *testing.T) {
	series := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if v := PercentileRank(series, 2); v != 20 {
		t.Errorf("Expected 20, got %f", v)
	}
	if v := PercentileRank(series, 10); v != 100 {
		t.Errorf("Expected 100, got %f", v)
	}
	if v := PercentileRank(nil, 1); !math.IsNaN(v) {
		t.Errorf("Expected NaN for empty series, got %f", v)
	}
}

func TestCorrelation(t *testing.T) {
	a := ramp(10, 1, 1)
	b := ramp(10, 5, 2)
	if v := Correlation(a, b); math.Abs(v-1) > 1e-9 {
		t.Errorf("Expected correlation 1, got %f", v)
	}
	flat := []float64{1, 1, 1, 1}
	if v := Correlation(flat, a); !math.IsNaN(v) {
		t.Errorf("Expected NaN for zero variance, got %f", v)
	}
}

func TestRealizedVolFlatSeries(t *testing.T) {
	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 50
	}
	if v := RealizedVol(flat, 20, 252); v != 0 {
		t.Errorf("Expected zero realized vol, got %f", v)
	}
}
