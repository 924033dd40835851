package regimeobs

import (
	"context"

	"regime-trader/internal/interfaces"
	"regime-trader/internal/logger"
	"regime-trader/internal/metrics"
	"regime-trader/internal/trace"
	"regime-trader/internal/types"
)

// observableClassifier wraps a RegimeClassifier with tracing, logging and
// the regime gauges.
type observableClassifier struct {
	classifier interfaces.RegimeClassifier
	rec        *metrics.Recorder
}

var _ interfaces.RegimeClassifier = (*observableClassifier)(nil)

// Wrap wraps a classifier. rec may be nil.
func Wrap(c interfaces.RegimeClassifier, rec *metrics.Recorder) interfaces.RegimeClassifier {
	return &observableClassifier{classifier: c, rec: rec}
}

func (oc *observableClassifier) Classify(ctx context.Context, in types.RegimeInputs) types.RegimePacket {
	ctx, span := trace.StartSpan(ctx, "regime.Classify")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Classifying regime",
		"instrument", in.Instrument,
		"intraday_bars", len(in.Intraday),
		"daily_bars", len(in.Daily),
		"blackout", in.EventBlackout,
	)

	pkt := oc.classifier.Classify(ctx, in)

	logger.Regime(ctx, pkt.Instrument, string(pkt.Regime), pkt.Confidence, pkt.IsSafe,
		"chaos_triggers", pkt.Confluence.ChaosTriggers(),
		"range_triggers", pkt.Confluence.RangeTriggers(),
		"vol_percentile", pkt.Metrics.VolPercentile,
		"vol_estimator", pkt.Metrics.VolEstimator,
		"p_abnormal", pkt.PAbnormal,
		"alarm", pkt.AlarmActive,
		"warning", pkt.WarningState,
		"veto_shortvol", pkt.VetoShortVol,
		"reasons", pkt.Reasons,
	)
	oc.rec.RecordRegime(pkt.Instrument, string(pkt.Regime), pkt.Confidence)
	return pkt
}
