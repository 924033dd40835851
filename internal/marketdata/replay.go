// Package marketdata holds bar sources that do not talk to a broker: an
// in-memory replay source and a ClickHouse bar store.
package marketdata

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"regime-trader/internal/interfaces"
	"regime-trader/internal/logger"
	"regime-trader/internal/types"
)

type seriesKey struct {
	instrument string
	interval   string
}

// Replay serves preloaded bars. A query never returns a bar whose period
// had not ended at its upper bound, so a replayed iteration sees only what
// was known at asOf. Daily bars stamped at midnight count as final at the
// 15:30 IST close.
type Replay struct {
	mu     sync.RWMutex
	series map[seriesKey][]types.Bar
}

var _ interfaces.MarketData = (*Replay)(nil)

func NewReplay() *Replay {
	return &Replay{series: make(map[seriesKey][]types.Bar)}
}

// Load replaces a series. Bars are sorted and duplicate timestamps dropped,
// keeping the last one given.
func (r *Replay) Load(instrument, interval string, bars []types.Bar) {
	cp := make([]types.Bar, len(bars))
	copy(cp, bars)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Ts.Before(cp[j].Ts) })

	out := cp[:0]
	for _, b := range cp {
		if n := len(out); n > 0 && out[n-1].Ts.Equal(b.Ts) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.series[seriesKey{instrument, interval}] = out
}

// Series returns the loaded series, or nil.
func (r *Replay) Series(instrument, interval string) []types.Bar {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.series[seriesKey{instrument, interval}]
}

func (r *Replay) FetchBars(_ context.Context, instrument, interval string, from, to time.Time) ([]types.Bar, error) {
	bars := r.Series(instrument, interval)
	lo := sort.Search(len(bars), func(i int) bool { return !bars[i].Ts.Before(from) })
	hi := sort.Search(len(bars), func(i int) bool { return bars[i].Ts.After(to) })
	if lo >= hi {
		return []types.Bar{}, nil
	}
	closed := types.ClosedBy(bars[lo:hi], interval, to)
	out := make([]types.Bar, len(closed))
	copy(out, closed)
	return out, nil
}

// Preload copies [from, to] of every instrument and interval from src.
func (r *Replay) Preload(ctx context.Context, src interfaces.MarketData, instruments, intervals []string, from, to time.Time) error {
	for _, in := range instruments {
		for _, iv := range intervals {
			bars, err := src.FetchBars(ctx, in, iv, from, to)
			if err != nil {
				return fmt.Errorf("preload %s %s: %w", in, iv, err)
			}
			r.Load(in, iv, bars)
			logger.Info(ctx, "Preloaded bars", "instrument", in, "interval", iv, "count", len(bars))
		}
	}
	return nil
}
