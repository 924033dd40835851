package mlobs

import (
	"context"

	"regime-trader/internal/interfaces"
	"regime-trader/internal/logger"
	"regime-trader/internal/metrics"
	"regime-trader/internal/trace"
	"regime-trader/internal/types"
)

type observableScorer struct {
	inner interfaces.MLClassifier
	rec   *metrics.Recorder
}

var _ interfaces.MLClassifier = (*observableScorer)(nil)

// Wrap adds tracing, logging and call counters to a scorer. A nil scorer
// stays nil.
func Wrap(inner interfaces.MLClassifier, rec *metrics.Recorder) interfaces.MLClassifier {
	if inner == nil {
		return nil
	}
	return &observableScorer{inner: inner, rec: rec}
}

func (o *observableScorer) Predict(ctx context.Context, fv types.FeatureVector) (types.Regime, float64, error) {
	ctx, span := trace.StartSpan(ctx, "ml.Predict")
	defer span.End()

	label, prob, err := o.inner.Predict(ctx, fv)
	if err != nil {
		o.rec.RecordMLCall("error")
		logger.ErrorWithErrSkip(ctx, 1, "External classifier call failed", err, "instrument", fv.Instrument)
		return label, prob, err
	}
	o.rec.RecordMLCall("ok")
	logger.DebugSkip(ctx, 1, "External classifier verdict",
		"instrument", fv.Instrument,
		"regime", label,
		"probability", prob,
	)
	return label, prob, nil
}
