package regime

import (
	"testing"

	"regime-trader/internal/types"
)

func neutralMetrics() types.RegimeMetrics {
	return types.RegimeMetrics{
		TrendStrength:  20,
		Momentum:       50,
		VolPercentile:  50,
		BandWidthRatio: 1,
		VolumeRatio:    1,
	}
}

func score(chaos, rng int) types.ConfluenceScore {
	var cs types.ConfluenceScore
	for i := 0; i < chaos; i++ {
		cs.Triggers = append(cs.Triggers, types.Trigger{Name: "c", Category: types.CategoryChaos, Fired: true})
	}
	for i := 0; i < rng; i++ {
		cs.Triggers = append(cs.Triggers, types.Trigger{Name: "r", Category: types.CategoryRange, Fired: true})
	}
	return cs
}

func TestDecideChaosBoundaries(t *testing.T) {
	th := DefaultThresholds()
	m := neutralMetrics()

	d := Decide(m, score(3, 0), th)
	if d.Regime != types.RegimeChaos || !approx(d.Confidence, 1.0, 0.95) {
		t.Errorf("Expected CHAOS 0.95 (capped) at 3 triggers, got %s %f", d.Regime, d.Confidence)
	}
	d = Decide(m, score(2, 5), th)
	if d.Regime != types.RegimeCaution || !approx(d.Confidence, 0.8, 0.8) {
		t.Errorf("Expected CAUTION 0.8 at 2 triggers, got %s %f", d.Regime, d.Confidence)
	}
	d = Decide(m, score(1, 3), th)
	if d.Regime == types.RegimeChaos || d.Regime == types.RegimeCaution {
		t.Errorf("Expected no chaos verdict at 1 trigger, got %s", d.Regime)
	}
	if d.Regime == types.RegimeRangeBound && d.Rule == "range confluence 3" {
		t.Errorf("Expected range confluence to need zero chaos triggers")
	}
}

func TestDecideRangeConfluence(t *testing.T) {
	d := Decide(neutralMetrics(), score(0, 4), DefaultThresholds())
	if d.Regime != types.RegimeRangeBound || !approx(d.Confidence, 0.7+0.32, 0.95) {
		t.Errorf("Expected RANGE_BOUND min(1.02,0.95), got %s %f", d.Regime, d.Confidence)
	}
	d = Decide(neutralMetrics(), score(0, 3), DefaultThresholds())
	if !approx(d.Confidence, 0.94, 0.94) {
		t.Errorf("Expected 0.94, got %f", d.Confidence)
	}
}

func TestDecidePriorityOrder(t *testing.T) {
	th := DefaultThresholds()
	cases := []struct {
		name string
		m    types.RegimeMetrics
		cs   types.ConfluenceScore
		want types.Regime
		conf float64
	}{
		{"chaos beats range", neutralMetrics(), score(3, 6), types.RegimeChaos, 0.95},
		{"secondary range", types.RegimeMetrics{TrendStrength: 18, Momentum: 50, VolPercentile: 40}, score(0, 2), types.RegimeRangeBound, 0.75},
		{"mean reversion oversold", types.RegimeMetrics{TrendStrength: 20, Momentum: 20, VolPercentile: 60}, score(0, 0), types.RegimeMeanReversion, 0.8},
		{"mean reversion capped", types.RegimeMetrics{TrendStrength: 20, Momentum: 95, VolPercentile: 60}, score(0, 0), types.RegimeMeanReversion, 0.9},
		{"mean reversion beats trend", types.RegimeMetrics{TrendStrength: 25, Momentum: 80, VolPercentile: 60}, score(0, 0), types.RegimeMeanReversion, 0.8},
		{"trend", types.RegimeMetrics{TrendStrength: 35, Momentum: 65, VolPercentile: 60}, score(0, 0), types.RegimeTrend, 0.7},
		{"trend capped", types.RegimeMetrics{TrendStrength: 80, Momentum: 90, VolPercentile: 60}, score(1, 0), types.RegimeTrend, 0.85},
		{"default", types.RegimeMetrics{TrendStrength: 22, Momentum: 55, VolPercentile: 60}, score(1, 1), types.RegimeMeanReversion, 0.55},
	}
	for _, tc := range cases {
		d := Decide(tc.m, tc.cs, th)
		if d.Regime != tc.want || !approx(d.Confidence, tc.conf, tc.conf) {
			t.Errorf("%s: Expected %s %.2f, got %s %.4f", tc.name, tc.want, tc.conf, d.Regime, d.Confidence)
		}
	}
}

func TestApplyMLAsymmetry(t *testing.T) {
	th := DefaultThresholds()
	base := Decision{Regime: types.RegimeRangeBound, Confidence: 0.8}

	if d, ok := ApplyML(base, types.RegimeTrend, 0.75, th); !ok || d.Regime != types.RegimeTrend || d.Confidence != 0.75 {
		t.Errorf("Expected TREND override at 0.75, got %s %f", d.Regime, d.Confidence)
	}
	if d, ok := ApplyML(base, types.RegimeChaos, 0.8, th); ok || d.Regime != types.RegimeRangeBound {
		t.Errorf("Expected CHAOS at 0.8 to be ignored, got %s", d.Regime)
	}
	if d, ok := ApplyML(base, types.RegimeChaos, 0.9, th); !ok || d.Regime != types.RegimeChaos {
		t.Errorf("Expected CHAOS at 0.9 to override, got %s", d.Regime)
	}
	if _, ok := ApplyML(base, types.RegimeTrend, 0.7, th); ok {
		t.Errorf("Expected probability equal to the threshold not to override")
	}
	if _, ok := ApplyML(base, types.RegimeUnknown, 0.99, th); ok {
		t.Errorf("Expected UNKNOWN label to be ignored")
	}
}

func TestApplyAlarmOverridesEverything(t *testing.T) {
	d := ApplyAlarm(Decision{Regime: types.RegimeTrend, Confidence: 0.9}, true, 0.83)
	if d.Regime != types.RegimeChaos || d.Confidence != 0.83 {
		t.Errorf("Expected CHAOS at P(abnormal) 0.83, got %s %f", d.Regime, d.Confidence)
	}
	d = ApplyAlarm(Decision{Regime: types.RegimeTrend, Confidence: 0.9}, false, 0.83)
	if d.Regime != types.RegimeTrend {
		t.Errorf("Expected no change without alarm, got %s", d.Regime)
	}
}

func TestSafetyGate(t *testing.T) {
	th := DefaultThresholds()
	m := neutralMetrics()

	if safe, _ := Safety(types.RegimeRangeBound, m, score(0, 3), false, th); !safe {
		t.Errorf("Expected RANGE_BOUND to be safe")
	}
	if safe, reasons := Safety(types.RegimeCaution, m, score(2, 0), false, th); safe || len(reasons) == 0 {
		t.Errorf("Expected CAUTION unsafe with reasons, got %v %v", safe, reasons)
	}
	if safe, _ := Safety(types.RegimeMeanReversion, m, score(0, 0), true, th); safe {
		t.Errorf("Expected blackout to be unsafe")
	}
	hot := m
	hot.VolPercentile = 90
	if safe, _ := Safety(types.RegimeMeanReversion, hot, score(1, 0), false, th); safe {
		t.Errorf("Expected high vol percentile to be unsafe")
	}

	trend := m
	trend.TrendStrength = 28
	if safe, _ := Safety(types.RegimeTrend, trend, score(0, 0), false, th); safe {
		t.Errorf("Expected unconfirmed trend to be unsafe")
	}
	trend.TrendStrength = 35
	if safe, _ := Safety(types.RegimeTrend, trend, score(0, 0), false, th); !safe {
		t.Errorf("Expected confirmed trend to be safe")
	}

	spike := types.ConfluenceScore{Triggers: []types.Trigger{
		{Name: TrigCorrelationSpike, Category: types.CategoryChaos, Fired: true},
		{Name: TrigVolumeSurge, Category: types.CategoryChaos, Fired: true},
	}}
	if safe, _ := Safety(types.RegimeMeanReversion, m, spike, false, th); safe {
		t.Errorf("Expected correlation spike with two chaos triggers to be unsafe")
	}
}

func TestEndToEndQuietMarketIsRangeBound(t *testing.T) {
	th := DefaultThresholds()
	m := types.RegimeMetrics{TrendStrength: 8, Momentum: 50, VolPercentile: 20, BandWidthRatio: 1, VolumeRatio: 1}
	cs := BuildConfluence(m, map[string]float64{"BANKNIFTY": 0.3}, false, th)
	d := Decide(m, cs, th)
	if d.Regime != types.RegimeRangeBound || d.Confidence < 0.7 {
		t.Errorf("Expected RANGE_BOUND >= 0.7, got %s %f", d.Regime, d.Confidence)
	}
	if safe, reasons := Safety(d.Regime, m, cs, false, th); !safe {
		t.Errorf("Expected safe, got reasons %v", reasons)
	}
}

func TestEndToEndEventShockIsChaos(t *testing.T) {
	th := DefaultThresholds()
	m := types.RegimeMetrics{TrendStrength: 20, Momentum: 50, VolPercentile: 80, BandWidthRatio: 1, VolumeRatio: 1}
	cs := BuildConfluence(m, map[string]float64{"BANKNIFTY": 0.97}, true, th)
	if cs.ChaosTriggers() != 3 {
		t.Fatalf("Expected 3 chaos triggers, got %d (%v)", cs.ChaosTriggers(), cs.FiredNames(types.CategoryChaos))
	}
	d := Decide(m, cs, th)
	if d.Regime != types.RegimeChaos || d.Confidence < 0.7 {
		t.Errorf("Expected CHAOS >= 0.7, got %s %f", d.Regime, d.Confidence)
	}
	if safe, _ := Safety(d.Regime, m, cs, true, th); safe {
		t.Errorf("Expected CHAOS to be unsafe")
	}
}

// approx compares got with min(want, limit) at 1e-9.
func approx(got, want, limit float64) bool {
	if want > limit {
		want = limit
	}
	d := got - want
	return d < 1e-9 && d > -1e-9
}
