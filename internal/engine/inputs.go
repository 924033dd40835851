package engine

import (
	"context"
	"math"
	"time"

	"regime-trader/internal/logger"
	"regime-trader/internal/retry"
	"regime-trader/internal/ta"
	"regime-trader/internal/types"
)

// gatherInputs fetches every series relative to asOf. A series that stays
// unavailable after retries is passed on empty so the classifier falls back
// to UNKNOWN; only terminal errors abort the iteration.
func (e *Engine) gatherInputs(ctx context.Context, instrument string, asOf time.Time) (types.RegimeInputs, error) {
	in := types.RegimeInputs{Instrument: instrument, AsOf: asOf}

	var err error
	from := asOf.AddDate(0, 0, -e.cfg.IntradayDays)
	if in.Intraday, err = e.fetch(ctx, instrument, e.cfg.IntradayInterval, from, asOf); err != nil {
		return in, err
	}
	dailyFrom := asOf.AddDate(0, 0, -e.cfg.DailyDays)
	if in.Daily, err = e.fetch(ctx, instrument, types.IntervalDay, dailyFrom, asOf); err != nil {
		return in, err
	}
	if e.cfg.Reference != "" && e.cfg.Reference != instrument {
		if in.Reference, err = e.fetch(ctx, e.cfg.Reference, types.IntervalDay, dailyFrom, asOf); err != nil {
			return in, err
		}
		if n := len(in.Reference); n > 0 && in.Reference[n-1].Close > 0 {
			in.ImpliedVol = in.Reference[n-1].Close / 100
		}
	}

	if len(e.cfg.Peers) > 0 {
		in.Correlations = make(map[string]float64, len(e.cfg.Peers))
		for _, peer := range e.cfg.Peers {
			if peer == instrument {
				continue
			}
			bars, err := e.fetch(ctx, peer, types.IntervalDay, dailyFrom, asOf)
			if err != nil {
				return in, err
			}
			if c := alignedCorrelation(in.Daily, bars, e.cfg.CorrelationWindow); ta.Finite(c) {
				in.Correlations[peer] = c
			}
		}
	}

	if e.Calendar != nil {
		in.EventBlackout = e.Calendar.IsBlackout(asOf)
	}
	return in, nil
}

// fetch keeps only bars whose period had ended at to. A live source returns
// the forming candle and midnight-stamped daily bars; a replay must not see
// either before they are final.
func (e *Engine) fetch(ctx context.Context, instrument, interval string, from, to time.Time) ([]types.Bar, error) {
	bars, err := retry.Value(ctx, e.Policy, "marketdata.fetch", func(ctx context.Context) ([]types.Bar, error) {
		return e.Data.FetchBars(ctx, instrument, interval, from, to)
	})
	if err != nil {
		if retry.IsTerminal(err) {
			return nil, err
		}
		logger.Warn(ctx, "Market data unavailable", "instrument", instrument, "interval", interval, "error", err)
		return nil, nil
	}
	return types.ClosedBy(bars, interval, to), nil
}

// alignedCorrelation correlates daily log returns of a and b over the last
// window dates both series have.
func alignedCorrelation(a, b []types.Bar, window int) float64 {
	byDate := make(map[string]float64, len(b))
	for _, bar := range b {
		byDate[bar.Ts.In(ist).Format(time.DateOnly)] = bar.Close
	}
	var ca, cb []float64
	for _, bar := range a {
		if v, ok := byDate[bar.Ts.In(ist).Format(time.DateOnly)]; ok {
			ca = append(ca, bar.Close)
			cb = append(cb, v)
		}
	}
	ra, rb := pairedLogReturns(ca, cb)
	if len(ra) > window {
		ra, rb = ra[len(ra)-window:], rb[len(rb)-window:]
	}
	return ta.Correlation(ra, rb)
}

func pairedLogReturns(a, b []float64) ([]float64, []float64) {
	var ra, rb []float64
	for i := 1; i < len(a); i++ {
		if a[i-1] <= 0 || a[i] <= 0 || b[i-1] <= 0 || b[i] <= 0 {
			continue
		}
		ra = append(ra, math.Log(a[i]/a[i-1]))
		rb = append(rb, math.Log(b[i]/b[i-1]))
	}
	return ra, rb
}
