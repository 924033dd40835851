// Package backtest replays stored bars through the same engine the live
// scheduler drives. The replayed intraday closes stand in for the tick
// stream, so executors that price off the cache behave as they do live.
package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"regime-trader/internal/interfaces"
	"regime-trader/internal/logger"
	"regime-trader/internal/types"
)

// Bars is the bar store a replay steps over.
type Bars interface {
	Series(instrument, interval string) []types.Bar
}

// QuoteSink receives the replayed closes.
type QuoteSink interface {
	Update(q types.Quote)
}

// ResultSink receives every iteration result.
type ResultSink interface {
	Append(res *types.IterationResult) error
}

type Config struct {
	Instruments []string
	Interval    string
	From, To    time.Time
	// Every runs the engine on every n-th step; 0 or 1 means every step.
	Every int
}

// Report aggregates one replay.
type Report struct {
	Steps       int                  `json:"steps"`
	Iterations  int                  `json:"iterations"`
	Skipped     int                  `json:"skipped"`
	Entries     int                  `json:"entries"`
	EntryLots   int                  `json:"entry_lots"`
	Exits       int                  `json:"exits"`
	RealizedPnL float64              `json:"realized_pnl"`
	Regimes     map[types.Regime]int `json:"regimes"`
	SkipReasons map[string]int       `json:"skip_reasons"`
}

func (r *Report) add(res *types.IterationResult) {
	r.Iterations++
	r.Regimes[res.Packet.Regime]++
	if res.Skipped() {
		r.Skipped++
		r.SkipReasons[res.SkipReason]++
	}
	for _, e := range res.Entries {
		if e.Result.Success {
			r.Entries++
			r.EntryLots += e.Lots
		}
	}
	for _, x := range res.Exits {
		if x.Result.Success {
			r.Exits++
			r.RealizedPnL += x.Result.RealizedPnL
		}
	}
}

type Replay struct {
	cfg   Config
	eng   interfaces.Engine
	bars  Bars
	cache QuoteSink
	sinks []ResultSink
}

func New(cfg Config, eng interfaces.Engine, bars Bars, cache QuoteSink, sinks ...ResultSink) *Replay {
	if cfg.Interval == "" {
		cfg.Interval = types.Interval5Minute
	}
	return &Replay{cfg: cfg, eng: eng, bars: bars, cache: cache, sinks: sinks}
}

type step struct {
	ts   time.Time
	bars map[string]types.Bar
}

// steps merges the instruments' bars into time order. A step is taken at
// the close of its bars, so the engine never sees a bar before it is final;
// From and To bound those close times.
func (r *Replay) steps() []step {
	byTs := map[int64]*step{}
	for _, inst := range r.cfg.Instruments {
		for _, b := range r.bars.Series(inst, r.cfg.Interval) {
			end := types.PeriodEnd(b.Ts, r.cfg.Interval)
			if end.Before(r.cfg.From) || (!r.cfg.To.IsZero() && end.After(r.cfg.To)) {
				continue
			}
			k := end.UnixNano()
			s, ok := byTs[k]
			if !ok {
				s = &step{ts: end, bars: map[string]types.Bar{}}
				byTs[k] = s
			}
			s.bars[inst] = b
		}
	}
	out := make([]step, 0, len(byTs))
	for _, s := range byTs {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ts.Before(out[j].ts) })
	return out
}

// Run steps through the window. Cancellation is checked between steps; a
// terminal engine error ends the replay.
func (r *Replay) Run(ctx context.Context) (*Report, error) {
	rep := &Report{Regimes: map[types.Regime]int{}, SkipReasons: map[string]int{}}
	steps := r.steps()
	every := r.cfg.Every
	if every < 1 {
		every = 1
	}
	logger.Info(ctx, "Replay started", "instruments", r.cfg.Instruments, "steps", len(steps), "every", every)

	for i, s := range steps {
		if err := ctx.Err(); err != nil {
			logger.Warn(ctx, "Replay cancelled", "step", i)
			return rep, err
		}
		for _, inst := range r.cfg.Instruments {
			if b, ok := s.bars[inst]; ok && r.cache != nil {
				r.cache.Update(types.Quote{Instrument: inst, LastPrice: b.Close, Volume: b.Volume, Ts: s.ts})
			}
		}
		rep.Steps++
		if i%every != 0 {
			continue
		}
		for _, inst := range r.cfg.Instruments {
			if _, ok := s.bars[inst]; !ok {
				continue
			}
			res, err := r.eng.RunIteration(context.WithoutCancel(ctx), inst, s.ts)
			if err != nil {
				return rep, fmt.Errorf("replay %s at %s: %w", inst, s.ts.Format(time.RFC3339), err)
			}
			rep.add(res)
			for _, sink := range r.sinks {
				if err := sink.Append(res); err != nil {
					logger.Warn(ctx, "Failed to record replay iteration", "instrument", inst, "error", err)
				}
			}
		}
	}

	logger.Info(ctx, "Replay finished",
		"steps", rep.Steps,
		"iterations", rep.Iterations,
		"entries", rep.Entries,
		"exits", rep.Exits,
		"realized_pnl", rep.RealizedPnL,
	)
	return rep, nil
}
