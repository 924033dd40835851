package engineobs

import (
	"context"
	"time"

	"github.com/google/uuid"

	"regime-trader/internal/interfaces"
	"regime-trader/internal/logger"
	"regime-trader/internal/metrics"
	"regime-trader/internal/trace"
	"regime-trader/internal/types"
)

// Iteration outcomes reported to metrics.
const (
	OutcomeTraded  = "traded"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

type observableEngine struct {
	engine interfaces.Engine
	rec    *metrics.Recorder
}

var _ interfaces.Engine = (*observableEngine)(nil)

// Wrap logs and times every iteration. rec may be nil.
func Wrap(eng interfaces.Engine, rec *metrics.Recorder) interfaces.Engine {
	return &observableEngine{
		engine: eng,
		rec:    rec,
	}
}

func (oe *observableEngine) RunIteration(ctx context.Context, instrument string, asOf time.Time) (*types.IterationResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.RunIteration")
	defer span.End()

	start := time.Now()
	id := uuid.NewString()

	logger.InfoSkip(ctx, 1, "Starting iteration",
		"iteration_id", id,
		"instrument", instrument,
		"as_of", asOf,
	)

	result, err := oe.engine.RunIteration(ctx, instrument, asOf)
	elapsed := time.Since(start)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Iteration failed", err,
			"iteration_id", id,
			"instrument", instrument,
			"duration_ms", elapsed.Milliseconds(),
		)
		oe.rec.RecordIteration(instrument, OutcomeError, elapsed.Seconds())
		return nil, err
	}

	outcome := OutcomeTraded
	if result.Skipped() {
		outcome = OutcomeSkipped
	}
	logger.InfoSkip(ctx, 1, "Iteration completed",
		"iteration_id", id,
		"instrument", instrument,
		"regime", result.Packet.Regime,
		"confidence", result.Packet.Confidence,
		"safe", result.Packet.IsSafe,
		"entries", len(result.Entries),
		"exits", len(result.Exits),
		"skip_reason", result.SkipReason,
		"duration_ms", elapsed.Milliseconds(),
	)
	oe.rec.RecordIteration(instrument, outcome, elapsed.Seconds())

	return result, nil
}
