package regime

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"regime-trader/internal/types"
)

type fakeML struct {
	label types.Regime
	prob  float64
	err   error
	calls int
	last  types.FeatureVector
}

func (f *fakeML) Predict(_ context.Context, fv types.FeatureVector) (types.Regime, float64, error) {
	f.calls++
	f.last = fv
	return f.label, f.prob, f.err
}

func inputs(asOf time.Time) types.RegimeInputs {
	start := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 9, 15, 0, 0, ist)
	var intraday []types.Bar
	for i := 0; i < 60; i++ {
		p := 100 + 0.4*math.Sin(float64(i)/3)
		intraday = append(intraday, types.Bar{
			Ts: start.Add(time.Duration(i) * 5 * time.Minute), Open: p - 0.05, High: p + 0.2, Low: p - 0.2, Close: p, Volume: 1000,
		})
	}
	var daily []types.Bar
	for i := 60; i >= 1; i-- {
		p := 100 + 2*math.Sin(float64(i)/5)
		daily = append(daily, types.Bar{
			Ts: start.AddDate(0, 0, -i), Open: p - 0.5, High: p + 1, Low: p - 1, Close: p, Volume: 1e6,
		})
	}
	return types.RegimeInputs{
		Instrument: "NIFTY",
		AsOf:       asOf,
		Intraday:   intraday,
		Daily:      daily,
	}
}

func TestClassifyInsufficientData(t *testing.T) {
	c := NewClassifier(DefaultConfig(), nil)
	in := inputs(at(2025, 3, 10))
	in.Intraday = in.Intraday[:10]
	pkt := c.Classify(context.Background(), in)
	if pkt.Regime != types.RegimeUnknown || pkt.IsSafe || len(pkt.Reasons) == 0 {
		t.Errorf("Expected unsafe UNKNOWN with a reason, got %s safe=%v %v", pkt.Regime, pkt.IsSafe, pkt.Reasons)
	}
	if pkt.PNormal+pkt.PAbnormal != 1 {
		t.Errorf("Expected probabilities summing to 1, got %f", pkt.PNormal+pkt.PAbnormal)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	in := inputs(at(2025, 3, 10))
	a := NewClassifier(DefaultConfig(), nil).Classify(context.Background(), in)
	b := NewClassifier(DefaultConfig(), nil).Classify(context.Background(), in)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("Expected identical packets, got %+v and %+v", a, b)
	}
	if math.Abs(a.PNormal+a.PAbnormal-1) > 1e-6 {
		t.Errorf("Expected probabilities summing to 1, got %f", a.PNormal+a.PAbnormal)
	}
	if a.Spot == 0 || a.PrevClose == 0 || a.DayRange <= 0 {
		t.Errorf("Expected market context, got spot=%f prev=%f range=%f", a.Spot, a.PrevClose, a.DayRange)
	}
}

func TestClassifyMLOverrideAndFailure(t *testing.T) {
	in := inputs(at(2025, 3, 10))

	ml := &fakeML{label: types.RegimeTrend, prob: 0.9}
	pkt := NewClassifier(DefaultConfig(), ml).Classify(context.Background(), in)
	if ml.calls != 1 {
		t.Fatalf("Expected one ML call, got %d", ml.calls)
	}
	if pkt.Regime != types.RegimeTrend || pkt.Confidence != 0.9 {
		t.Errorf("Expected ML TREND 0.9, got %s %f", pkt.Regime, pkt.Confidence)
	}

	base := NewClassifier(DefaultConfig(), nil).Classify(context.Background(), in)
	failing := &fakeML{err: errors.New("connection refused")}
	pkt = NewClassifier(DefaultConfig(), failing).Classify(context.Background(), in)
	if pkt.Regime != base.Regime || pkt.Confidence != base.Confidence {
		t.Errorf("Expected rule result %s when ML fails, got %s", base.Regime, pkt.Regime)
	}

	weakChaos := &fakeML{label: types.RegimeChaos, prob: 0.8}
	pkt = NewClassifier(DefaultConfig(), weakChaos).Classify(context.Background(), in)
	if pkt.Regime != base.Regime {
		t.Errorf("Expected CHAOS at 0.8 to be ignored, got %s", pkt.Regime)
	}
}

func TestClassifySendsDCEpisodesToML(t *testing.T) {
	in := inputs(at(2025, 3, 10))
	cfg := DefaultConfig()
	cfg.MLEpisodes = 3
	ml := &fakeML{label: types.RegimeRangeBound, prob: 0.5}
	NewClassifier(cfg, ml).Classify(context.Background(), in)

	fv := ml.last
	if len(fv.DCEpisodes) == 0 || len(fv.DCEpisodes) > 3 {
		t.Fatalf("Expected 1 to 3 DC episodes, got %d", len(fv.DCEpisodes))
	}
	for _, row := range fv.DCEpisodes {
		for k, v := range row {
			if v < 0 || v > 1 {
				t.Errorf("Expected feature %d in [0,1], got %f", k, v)
			}
		}
	}
	if fv.DCDirection != types.DirectionUp && fv.DCDirection != types.DirectionDown {
		t.Errorf("Expected a trend direction, got %q", fv.DCDirection)
	}
	if fv.DCTrendBars <= 0 {
		t.Errorf("Expected a positive trend length, got %d", fv.DCTrendBars)
	}
}

func TestClassifySustainedChaosSetsVeto(t *testing.T) {
	c := NewClassifier(DefaultConfig(), nil)

	in := inputs(at(2025, 3, 10))
	in.EventBlackout = true
	in.Correlations = map[string]float64{"BANKNIFTY": 0.99}
	pkt := c.Classify(context.Background(), in)
	if !pkt.WarningState || pkt.VetoShortVol || pkt.IsSafe {
		t.Errorf("Expected warning without veto on day one, got warning=%v veto=%v", pkt.WarningState, pkt.VetoShortVol)
	}

	in = inputs(at(2025, 3, 11))
	in.EventBlackout = true
	in.Correlations = map[string]float64{"BANKNIFTY": 0.99}
	pkt = c.Classify(context.Background(), in)
	if !pkt.VetoShortVol || pkt.SustainedChaosDays != 2 {
		t.Errorf("Expected veto on day two, got veto=%v days=%d", pkt.VetoShortVol, pkt.SustainedChaosDays)
	}
	if pkt.Regime != types.RegimeCaution && pkt.Regime != types.RegimeChaos {
		t.Errorf("Expected at least CAUTION under veto, got %s", pkt.Regime)
	}
}

func TestSetKeepsOneClassifierPerInstrument(t *testing.T) {
	s := NewSet(DefaultConfig(), nil)
	if s.For("NIFTY") != s.For("NIFTY") {
		t.Errorf("Expected the same classifier for the same instrument")
	}
	if s.For("NIFTY") == s.For("BANKNIFTY") {
		t.Errorf("Expected distinct classifiers per instrument")
	}
}
