// Package sentiment scores the recent daily tape between -1 (distribution)
// and +1 (accumulation).
package sentiment

import (
	"math"

	"regime-trader/internal/types"
)

// Score averages a volume-weighted directional-move index and a money-flow
// index over the last lookback daily bars. Bars with no range or no volume
// contribute nothing; an empty window scores 0.
func Score(daily []types.Bar, lookback int) float64 {
	if lookback > 0 && len(daily) > lookback {
		daily = daily[len(daily)-lookback:]
	}
	if len(daily) == 0 {
		return 0
	}
	s := (directional(daily) + moneyFlow(daily)) / 2
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0
	}
	return math.Max(-1, math.Min(1, s))
}

// directional is sum(volume * (close-open)/(high-low)) / sum(volume).
func directional(bars []types.Bar) float64 {
	var num, vol float64
	for _, b := range bars {
		if b.Volume <= 0 {
			continue
		}
		vol += b.Volume
		rng := b.High - b.Low
		if rng <= 0 {
			continue
		}
		num += b.Volume * (b.Close - b.Open) / rng
	}
	if vol == 0 {
		return 0
	}
	return num / vol
}

// moneyFlow compares raw money flow on up and down typical-price bars,
// scaled to [-1,1].
func moneyFlow(bars []types.Bar) float64 {
	var pos, neg float64
	for i := 1; i < len(bars); i++ {
		tp := typical(bars[i])
		prev := typical(bars[i-1])
		flow := tp * bars[i].Volume
		switch {
		case tp > prev:
			pos += flow
		case tp < prev:
			neg += flow
		}
	}
	if pos+neg == 0 {
		return 0
	}
	return (pos - neg) / (pos + neg)
}

func typical(b types.Bar) float64 {
	return (b.High + b.Low + b.Close) / 3
}
