package regime

import (
	"fmt"
	"math"
	"sort"

	"regime-trader/internal/types"
)

// Trigger names.
const (
	TrigEventBlackout    = "event_blackout"
	TrigVolPercentileHi  = "vol_percentile_high"
	TrigCorrelationSpike = "correlation_spike"
	TrigTrendChaos       = "trend_chaos"
	TrigBandExpansion    = "band_expansion"
	TrigVolumeSurge      = "volume_surge"

	TrigTrendWeak       = "trend_weak"
	TrigBandContraction = "band_contraction"
	TrigMomentumNeutral = "momentum_neutral"
	TrigVolPercentileLo = "vol_percentile_low"
	TrigRVIVLow         = "rv_iv_low"
	TrigVolumeLow       = "volume_low"
)

// BuildConfluence evaluates both trigger sets. Ambient volatility counts as
// low when the percentile is under LowVolPercentile; that raises the
// correlation threshold and disables the trend-chaos trigger. The extreme
// correlation threshold applies regardless.
func BuildConfluence(m types.RegimeMetrics, corr map[string]float64, blackout bool, th Thresholds) types.ConfluenceScore {
	lowVol := m.VolPercentile < th.LowVolPercentile

	corrThreshold := th.CorrSpike
	if lowVol {
		corrThreshold = th.CorrSpikeLowVol
	}
	peer, maxCorr := MaxCorrelation(corr)
	corrFired := !math.IsNaN(maxCorr) && (maxCorr > corrThreshold || maxCorr > th.CorrExtreme)

	chaos := func(name string, w float64, fired bool, detail string) types.Trigger {
		return types.Trigger{Name: name, Category: types.CategoryChaos, Weight: w, Fired: fired, Detail: detail}
	}
	rng := func(name string, w float64, fired bool, detail string) types.Trigger {
		return types.Trigger{Name: name, Category: types.CategoryRange, Weight: w, Fired: fired, Detail: detail}
	}

	corrDetail := ""
	if peer != "" {
		corrDetail = fmt.Sprintf("%s=%.2f threshold=%.2f", peer, maxCorr, corrThreshold)
	}

	return types.ConfluenceScore{Triggers: []types.Trigger{
		chaos(TrigEventBlackout, 2.0, blackout, ""),
		chaos(TrigVolPercentileHi, 1.5, m.VolPercentile > th.VolPercentileHigh,
			fmt.Sprintf("pct=%.1f", m.VolPercentile)),
		chaos(TrigCorrelationSpike, 1.0, corrFired, corrDetail),
		chaos(TrigTrendChaos, 1.5, !lowVol && m.TrendStrength > th.TrendChaos,
			fmt.Sprintf("adx=%.1f", m.TrendStrength)),
		chaos(TrigBandExpansion, 1.0, m.BandWidthRatio > th.BandExpansion,
			fmt.Sprintf("bw=%.2f", m.BandWidthRatio)),
		chaos(TrigVolumeSurge, 0.5, m.VolumeRatio > th.VolumeSurge,
			fmt.Sprintf("vr=%.2f", m.VolumeRatio)),

		rng(TrigTrendWeak, 1.5, m.TrendStrength < th.TrendWeak,
			fmt.Sprintf("adx=%.1f", m.TrendStrength)),
		rng(TrigBandContraction, 1.5, m.BandWidthRatio < th.BandContraction,
			fmt.Sprintf("bw=%.2f", m.BandWidthRatio)),
		rng(TrigMomentumNeutral, 1.0, momentumNeutral(m.Momentum, th),
			fmt.Sprintf("rsi=%.1f", m.Momentum)),
		rng(TrigVolPercentileLo, 1.0, m.VolPercentile < th.VolPercentileLow,
			fmt.Sprintf("pct=%.1f", m.VolPercentile)),
		rng(TrigRVIVLow, 1.0, m.RVIVRatio > 0 && m.RVIVRatio < th.RVIVThetaFriendly,
			fmt.Sprintf("rv/iv=%.2f", m.RVIVRatio)),
		rng(TrigVolumeLow, 0.5, m.VolumeRatio < th.VolumeLow,
			fmt.Sprintf("vr=%.2f", m.VolumeRatio)),
	}}
}

func momentumNeutral(rsi float64, th Thresholds) bool {
	return rsi >= th.MomentumNeutralLow && rsi <= th.MomentumNeutralHi
}

// MaxCorrelation returns the peer with the highest finite correlation, or
// ("", NaN) when there is none. Ties go to the alphabetically first peer.
func MaxCorrelation(corr map[string]float64) (string, float64) {
	peers := make([]string, 0, len(corr))
	for k := range corr {
		peers = append(peers, k)
	}
	sort.Strings(peers)

	best, bestV := "", math.NaN()
	for _, p := range peers {
		v := corr[p]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if best == "" || v > bestV {
			best, bestV = p, v
		}
	}
	return best, bestV
}
