package types

import "time"

// Bar is one OHLCV candle. A series is ordered by Ts with no duplicates.
type Bar struct {
	Ts     time.Time `json:"ts"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Closes extracts the close prices of a bar series.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// HLC splits a bar series into highs, lows and closes.
func HLC(bars []Bar) (highs, lows, closes []float64) {
	highs = make([]float64, len(bars))
	lows = make([]float64, len(bars))
	closes = make([]float64, len(bars))
	for i, b := range bars {
		highs[i], lows[i], closes[i] = b.High, b.Low, b.Close
	}
	return
}

// Volumes extracts the volumes of a bar series.
func Volumes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}

// Quote is a last-traded-price snapshot held in the price cache.
type Quote struct {
	Instrument string    `json:"instrument"`
	LastPrice  float64   `json:"last_price"`
	Volume     float64   `json:"volume,omitempty"`
	Ts         time.Time `json:"ts"`
}

// Interval names accepted by market data sources.
const (
	IntervalMinute   = "minute"
	Interval5Minute  = "5minute"
	Interval15Minute = "15minute"
	IntervalDay      = "day"
)

var ist = time.FixedZone("IST", 19800)

// IntervalStep returns the bar length of an interval and whether it is a
// daily interval. Unknown names are treated as 5 minutes.
func IntervalStep(interval string) (time.Duration, bool) {
	switch interval {
	case IntervalDay:
		return 24 * time.Hour, true
	case IntervalMinute:
		return time.Minute, false
	case "3minute":
		return 3 * time.Minute, false
	case "10minute":
		return 10 * time.Minute, false
	case Interval15Minute:
		return 15 * time.Minute, false
	case "30minute":
		return 30 * time.Minute, false
	case "60minute":
		return time.Hour, false
	default:
		return 5 * time.Minute, false
	}
}

// PeriodEnd is the instant a bar stamped ts is final. Intraday bars are
// stamped at their start. Daily bars close at 15:30 IST on their IST date,
// whether the source stamps them at midnight or at the close.
func PeriodEnd(ts time.Time, interval string) time.Time {
	step, daily := IntervalStep(interval)
	if !daily {
		return ts.Add(step)
	}
	z := ts.In(ist)
	end := time.Date(z.Year(), z.Month(), z.Day(), 15, 30, 0, 0, ist)
	if ts.After(end) {
		return ts
	}
	return end
}

// ClosedBy returns the leading bars of an ordered series whose period had
// ended at t.
func ClosedBy(bars []Bar, interval string, t time.Time) []Bar {
	n := len(bars)
	for n > 0 && PeriodEnd(bars[n-1].Ts, interval).After(t) {
		n--
	}
	return bars[:n]
}
