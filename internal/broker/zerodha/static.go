package zerodha

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"regime-trader/internal/interfaces"
	"regime-trader/internal/types"
)

var ist = time.FixedZone("IST", 19800)

// Static generates synthetic bars for DRY_RUN without Kite credentials.
// Each bar is a pure function of instrument and timestamp, so overlapping
// windows agree and repeated runs match.
type Static struct {
	// Base sets the price level per instrument; unknown ones use 1000.
	Base map[string]float64
}

var _ interfaces.MarketData = (*Static)(nil)

func NewStatic(base map[string]float64) *Static {
	return &Static{Base: base}
}

func (s *Static) FetchBars(ctx context.Context, instrument, interval string, from, to time.Time) ([]types.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	step, daily := types.IntervalStep(interval)
	base := 1000.0
	if b, ok := s.Base[instrument]; ok && b > 0 {
		base = b
	}
	seed := seedOf(instrument)

	var bars []types.Bar
	for day := startOfDay(from); !day.After(to); day = day.AddDate(0, 0, 1) {
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		open := day.Add(9*time.Hour + 15*time.Minute)
		closeT := day.Add(15*time.Hour + 30*time.Minute)
		if daily {
			if !closeT.Before(from) && !closeT.After(to) {
				bars = append(bars, syntheticBar(seed, base, open, closeT, closeT))
			}
			continue
		}
		for t := open; t.Before(closeT); t = t.Add(step) {
			end := t.Add(step)
			if t.Before(from) || t.After(to) {
				continue
			}
			bars = append(bars, syntheticBar(seed, base, t, end, t))
		}
	}
	return bars, nil
}

func startOfDay(t time.Time) time.Time {
	z := t.In(ist)
	return time.Date(z.Year(), z.Month(), z.Day(), 0, 0, 0, 0, ist)
}

func seedOf(instrument string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(instrument))
	return int64(h.Sum64() >> 1)
}

// level is a slow multi-cycle wave around base plus a small per-instant
// jitter.
func level(seed int64, base float64, t time.Time) float64 {
	days := float64(t.Unix()) / 86400
	phase := float64(seed%997) / 997 * 2 * math.Pi
	wave := 0.06*math.Sin(2*math.Pi*days/90+phase) +
		0.02*math.Sin(2*math.Pi*days/13+2*phase) +
		0.004*math.Sin(2*math.Pi*days*6.5+3*phase)
	r := rand.New(rand.NewSource(seed ^ t.Unix()))
	return base * (1 + wave + (r.Float64()-0.5)*0.002)
}

func syntheticBar(seed int64, base float64, start, end, stamp time.Time) types.Bar {
	o := level(seed, base, start)
	c := level(seed, base, end)
	mid := level(seed, base, start.Add(end.Sub(start)/2))
	h := math.Max(math.Max(o, c), mid)
	l := math.Min(math.Min(o, c), mid)
	r := rand.New(rand.NewSource(seed ^ stamp.Unix() ^ 0x5bd1e995))
	return types.Bar{
		Ts:     stamp,
		Open:   o,
		High:   h * (1 + r.Float64()*0.0005),
		Low:    l * (1 - r.Float64()*0.0005),
		Close:  c,
		Volume: math.Round(1000 + r.Float64()*9000),
	}
}
