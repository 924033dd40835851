package sentiment

import (
	"testing"
	"time"

	"regime-trader/internal/types"
)

func day(i int, o, h, l, c, v float64) types.Bar {
	return types.Bar{Ts: time.Date(2025, 1, 1+i, 0, 0, 0, 0, time.UTC), Open: o, High: h, Low: l, Close: c, Volume: v}
}

func TestScoreEmptyAndDegenerate(t *testing.T) {
	if s := Score(nil, 20); s != 0 {
		t.Errorf("Expected 0 for empty input, got %f", s)
	}
	flat := []types.Bar{day(0, 100, 100, 100, 100, 1000), day(1, 100, 100, 100, 100, 1000)}
	if s := Score(flat, 20); s != 0 {
		t.Errorf("Expected 0 for zero-range bars, got %f", s)
	}
	noVol := []types.Bar{day(0, 100, 105, 95, 104, 0), day(1, 104, 110, 100, 109, 0)}
	if s := Score(noVol, 20); s != 0 {
		t.Errorf("Expected 0 for zero volume, got %f", s)
	}
}

func TestScoreAccumulation(t *testing.T) {
	var bars []types.Bar
	for i := 0; i < 10; i++ {
		p := 100 + float64(i)*2
		bars = append(bars, day(i, p, p+2.5, p-0.5, p+2, 1000))
	}
	s := Score(bars, 20)
	if s <= 0.5 || s > 1 {
		t.Errorf("Expected strong positive score, got %f", s)
	}
}

func TestScoreDistribution(t *testing.T) {
	var bars []types.Bar
	for i := 0; i < 10; i++ {
		p := 200 - float64(i)*2
		bars = append(bars, day(i, p, p+0.5, p-2.5, p-2, 1000))
	}
	s := Score(bars, 20)
	if s >= -0.5 || s < -1 {
		t.Errorf("Expected strong negative score, got %f", s)
	}
}

func TestScoreUsesLookbackOnly(t *testing.T) {
	var bars []types.Bar
	for i := 0; i < 10; i++ {
		p := 200 - float64(i)*2
		bars = append(bars, day(i, p, p+0.5, p-2.5, p-2, 1000))
	}
	for i := 10; i < 15; i++ {
		p := 100 + float64(i)*2
		bars = append(bars, day(i, p, p+2.5, p-0.5, p+2, 1000))
	}
	if s := Score(bars, 4); s <= 0 {
		t.Errorf("Expected positive score over the last 4 bars, got %f", s)
	}
}
