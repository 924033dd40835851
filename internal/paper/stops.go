package paper

import "math"

func roundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	return math.Round(price/tick) * tick
}

// levels returns the stop and target prices of a position opened at entry.
//
// Long structures stop below entry and take profit above it; short ones the
// reverse. Neutral structures have no target, and their stop is a distance
// from entry rather than a price.
func (e *Executor) levels(entry float64, bias Bias) (stop, target float64) {
	stopMove := entry * e.cfg.StopPct / 100
	targetMove := entry * e.cfg.TargetPct / 100
	switch bias {
	case Long:
		return roundToTick(entry-stopMove, e.cfg.TickSize), roundToTick(entry+targetMove, e.cfg.TickSize)
	case Short:
		return roundToTick(entry+stopMove, e.cfg.TickSize), roundToTick(entry-targetMove, e.cfg.TickSize)
	default:
		return stopMove, 0
	}
}

// exitReason reports why a position marked at price should close, or ""
// to keep it.
func exitReason(p *position, price float64) string {
	switch p.bias {
	case Long:
		if price <= p.stop {
			return ReasonStop
		}
		if price >= p.target {
			return ReasonTarget
		}
	case Short:
		if price >= p.stop {
			return ReasonStop
		}
		if price <= p.target {
			return ReasonTarget
		}
	default:
		if math.Abs(price-p.EntryPrice) >= p.stop {
			return ReasonStop
		}
	}
	return ""
}
