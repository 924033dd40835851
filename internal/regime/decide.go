package regime

import (
	"fmt"
	"math"

	"regime-trader/internal/types"
)

// Decision is a regime verdict with the rule that produced it.
type Decision struct {
	Regime     types.Regime
	Confidence float64
	Rule       string
}

// Decide applies the rule ladder; the first matching rule wins.
func Decide(m types.RegimeMetrics, cs types.ConfluenceScore, th Thresholds) Decision {
	chaos := cs.ChaosTriggers()
	rng := cs.RangeTriggers()
	adx, rsi := m.TrendStrength, m.Momentum

	switch {
	case chaos >= 3:
		return Decision{types.RegimeChaos, math.Min(0.7+0.1*float64(chaos), 0.95),
			fmt.Sprintf("chaos confluence %d", chaos)}
	case chaos >= 2:
		return Decision{types.RegimeCaution, 0.6 + 0.1*float64(chaos),
			fmt.Sprintf("chaos confluence %d", chaos)}
	case rng >= 3 && chaos == 0:
		return Decision{types.RegimeRangeBound, math.Min(0.7+0.08*float64(rng), 0.95),
			fmt.Sprintf("range confluence %d", rng)}
	case adx < th.RangeTrendMax && m.VolPercentile < th.RangeVolPercentile && momentumNeutral(rsi, th):
		return Decision{types.RegimeRangeBound, 0.75, "weak trend, low vol, neutral momentum"}
	case adx >= th.TrendWeak && adx <= th.TrendMin && (rsi < th.MomentumOversold || rsi > th.MomentumOverbought):
		return Decision{types.RegimeMeanReversion, math.Min(0.5+math.Abs(rsi-50)/100, 0.9),
			fmt.Sprintf("moderate trend, extreme momentum rsi=%.1f", rsi)}
	case adx > th.TrendMin:
		return Decision{types.RegimeTrend, math.Min(0.6+(adx-th.TrendMin)/100, 0.85),
			fmt.Sprintf("trend adx=%.1f", adx)}
	default:
		return Decision{types.RegimeMeanReversion, 0.55, "default"}
	}
}

// ApplyML lets an external verdict replace d when its probability clears
// MLOverride. A CHAOS verdict must also clear MLChaosOverride.
func ApplyML(d Decision, ml types.Regime, prob float64, th Thresholds) (Decision, bool) {
	if ml == "" || ml == types.RegimeUnknown || math.IsNaN(prob) {
		return d, false
	}
	if prob <= th.MLOverride {
		return d, false
	}
	if ml == types.RegimeChaos && prob < th.MLChaosOverride {
		return d, false
	}
	return Decision{Regime: ml, Confidence: math.Min(prob, 1), Rule: fmt.Sprintf("ml override p=%.2f", prob)}, true
}

// ApplyAlarm forces CHAOS at P(abnormal) while the alarm is on.
func ApplyAlarm(d Decision, alarmActive bool, pAbnormal float64) Decision {
	if !alarmActive {
		return d
	}
	return Decision{Regime: types.RegimeChaos, Confidence: pAbnormal, Rule: "abnormality alarm"}
}

// chaosLevel reports whether a call counts as a triggering day for the
// sustained counter.
func chaosLevel(r types.Regime, alarmActive bool, chaosTriggers int) bool {
	return r == types.RegimeChaos || r == types.RegimeCaution || alarmActive || chaosTriggers >= 2
}

// Safety evaluates the gate and returns the reasons for any veto.
func Safety(r types.Regime, m types.RegimeMetrics, cs types.ConfluenceScore, blackout bool, th Thresholds) (bool, []string) {
	var reasons []string
	switch r {
	case types.RegimeChaos:
		reasons = append(reasons, "regime CHAOS")
	case types.RegimeCaution:
		reasons = append(reasons, "regime CAUTION: hedged structures only")
	case types.RegimeUnknown:
		reasons = append(reasons, "regime UNKNOWN")
	case types.RegimeTrend:
		if m.TrendStrength <= th.TrendConfirm {
			reasons = append(reasons, fmt.Sprintf("trend unconfirmed: adx %.1f <= %.1f", m.TrendStrength, th.TrendConfirm))
		}
	}
	if blackout {
		reasons = append(reasons, "event blackout")
	}
	if m.VolPercentile > th.VolPercentileHigh {
		reasons = append(reasons, fmt.Sprintf("vol percentile %.1f above %.1f", m.VolPercentile, th.VolPercentileHigh))
	}
	if cs.Fired(TrigCorrelationSpike) && cs.ChaosTriggers() >= 2 {
		reasons = append(reasons, "correlation spike with chaos confluence")
	}
	return len(reasons) == 0, reasons
}
