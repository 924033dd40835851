// Package regime classifies the market state of one instrument from its
// bar history, peer correlations, the event calendar, the abnormality
// model and an optional external classifier.
package regime

import (
	"context"
	"fmt"
	"math"

	"regime-trader/internal/abnormality"
	"regime-trader/internal/dc"
	"regime-trader/internal/indicators"
	"regime-trader/internal/interfaces"
	"regime-trader/internal/logger"
	"regime-trader/internal/sentiment"
	"regime-trader/internal/types"
)

// Classifier owns the rolling state of one instrument: the DC detector,
// the abnormality buffer, the alarm and the sustained-day counter. It is
// not safe for concurrent use.
type Classifier struct {
	cfg     Config
	metrics *indicators.Engine
	dc      *dc.Detector
	abn     *abnormality.Classifier
	alarm   *abnormality.AlarmTracker
	hyst    *Hysteresis
	ml      interfaces.MLClassifier
}

// NewClassifier builds a classifier. ml may be nil.
func NewClassifier(cfg Config, ml interfaces.MLClassifier) *Classifier {
	return &Classifier{
		cfg:     cfg,
		metrics: indicators.New(cfg.Indicators),
		dc:      dc.New(cfg.DC),
		abn:     abnormality.New(cfg.Abnormality),
		alarm:   abnormality.NewAlarmTracker(cfg.Alarm),
		hyst:    NewHysteresis(cfg.Hysteresis),
		ml:      ml,
	}
}

// Reset clears every rolling buffer, for replay restarts.
func (c *Classifier) Reset() {
	c.dc.Reset()
	c.abn.Reset()
	c.alarm.Reset()
	c.hyst.Reset()
}

// Classify never fails: short history yields an UNKNOWN, unsafe packet
// and a failing external classifier is ignored.
func (c *Classifier) Classify(ctx context.Context, in types.RegimeInputs) types.RegimePacket {
	pkt := types.RegimePacket{
		Instrument:    in.Instrument,
		AsOf:          in.AsOf,
		Correlations:  copyCorrelations(in.Correlations),
		EventBlackout: in.EventBlackout,
	}
	setContext(&pkt, in)

	m := c.metrics.Compute(indicators.Inputs{
		Intraday:   in.Intraday,
		Daily:      in.Daily,
		Reference:  in.Reference,
		ImpliedVol: in.ImpliedVol,
	})
	pkt.Metrics = m

	if len(in.Intraday) < c.cfg.MinIntradayBars || len(in.Daily) < c.cfg.MinDailyBars {
		pkt.Regime = types.RegimeUnknown
		pkt.IsSafe = false
		pkt.PNormal = 1
		pkt.Reasons = []string{fmt.Sprintf("insufficient data: %d intraday bars (need %d), %d daily bars (need %d)",
			len(in.Intraday), c.cfg.MinIntradayBars, len(in.Daily), c.cfg.MinDailyBars)}
		pkt.WarningState = c.hyst.Warning()
		pkt.SustainedChaosDays = c.hyst.Count()
		return pkt
	}

	c.abn.Observe(c.dc.Detect(in.Intraday))
	abn := c.abn.Classify()
	pkt.PNormal, pkt.PAbnormal = abn.PNormal, abn.PAbnormal
	pkt.AlarmActive = c.alarm.Update(abn.PAbnormal)

	pkt.Sentiment = sentiment.Score(in.Daily, c.cfg.SentimentLookback)

	th := c.cfg.Thresholds
	cs := BuildConfluence(m, in.Correlations, in.EventBlackout, th)
	pkt.Confluence = cs

	d := Decide(m, cs, th)
	if c.ml != nil {
		_, maxCorr := MaxCorrelation(in.Correlations)
		fv := types.FeatureVector{
			Instrument:     in.Instrument,
			AsOf:           in.AsOf,
			Metrics:        m,
			ChaosTriggers:  cs.ChaosTriggers(),
			RangeTriggers:  cs.RangeTriggers(),
			PAbnormal:      abn.PAbnormal,
			Sentiment:      pkt.Sentiment,
			EventBlackout:  in.EventBlackout,
			MaxCorrelation: finiteOr(maxCorr, 0),
			DCEpisodes:     c.dc.Normalized(c.cfg.MLEpisodes),
		}
		if last, ok := c.dc.Last(); ok {
			fv.DCDirection, fv.DCTrendBars = last.Direction, last.T
		}
		label, prob, err := c.ml.Predict(ctx, fv)
		if err != nil {
			logger.Warn(ctx, "External classifier unavailable, using rule result",
				"instrument", in.Instrument, "error", err)
		} else {
			pkt.MLRegime, pkt.MLProbability = label, prob
			d, _ = ApplyML(d, label, prob, th)
		}
	}
	d = ApplyAlarm(d, pkt.AlarmActive, abn.PAbnormal)

	days := c.hyst.Update(in.AsOf, chaosLevel(d.Regime, pkt.AlarmActive, cs.ChaosTriggers()))
	pkt.SustainedChaosDays = days
	pkt.WarningState = c.hyst.Warning()
	pkt.VetoShortVol = c.hyst.Veto()
	if pkt.VetoShortVol && d.Regime != types.RegimeChaos && d.Regime != types.RegimeCaution {
		d = Decision{Regime: types.RegimeCaution, Confidence: d.Confidence,
			Rule: fmt.Sprintf("sustained chaos %d days", days)}
	}

	pkt.Regime, pkt.Confidence = d.Regime, clamp01(d.Confidence)
	pkt.IsSafe, pkt.Reasons = Safety(d.Regime, m, cs, in.EventBlackout, th)
	if pkt.VetoShortVol {
		pkt.Reasons = append(pkt.Reasons, fmt.Sprintf("short-vol veto: %d sustained chaos days", days))
	}
	logger.Debug(ctx, "Regime rule matched", "instrument", in.Instrument, "rule", d.Rule)
	return pkt
}

// setContext fills spot, previous close, today's range and the opening gap.
func setContext(pkt *types.RegimePacket, in types.RegimeInputs) {
	if n := len(in.Intraday); n > 0 {
		pkt.Spot = in.Intraday[n-1].Close
	}
	today := dayOf(in.AsOf)
	for i := len(in.Daily) - 1; i >= 0; i-- {
		if dayOf(in.Daily[i].Ts).Before(today) {
			pkt.PrevClose = in.Daily[i].Close
			break
		}
	}

	var hi, lo, open float64
	seen := false
	for _, b := range in.Intraday {
		if !dayOf(b.Ts).Equal(today) {
			continue
		}
		if !seen {
			hi, lo, open, seen = b.High, b.Low, b.Open, true
			continue
		}
		if b.High > hi {
			hi = b.High
		}
		if b.Low < lo {
			lo = b.Low
		}
	}
	if seen {
		pkt.DayRange = hi - lo
		if pkt.PrevClose > 0 {
			pkt.GapPct = (open - pkt.PrevClose) / pkt.PrevClose * 100
		}
	}
}

func copyCorrelations(in map[string]float64) map[string]float64 {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func finiteOr(v, def float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
