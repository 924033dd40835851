package interfaces

import (
	"context"
	"time"

	"regime-trader/internal/types"
)

type Engine interface {
	RunIteration(ctx context.Context, instrument string, asOf time.Time) (*types.IterationResult, error)
}

// RegimeClassifier turns inputs into a RegimePacket. Implementations keep
// per-instrument state and are not safe for concurrent use.
type RegimeClassifier interface {
	Classify(ctx context.Context, in types.RegimeInputs) types.RegimePacket
}

// MLClassifier is the optional external regime scorer.
type MLClassifier interface {
	Predict(ctx context.Context, fv types.FeatureVector) (types.Regime, float64, error)
}

// EventCalendar reports scheduled high-impact events.
type EventCalendar interface {
	IsBlackout(t time.Time) bool
}
