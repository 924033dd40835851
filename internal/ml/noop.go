package ml

import (
	"context"

	"regime-trader/internal/types"
)

// Noop always reports itself unavailable, leaving the rule result alone.
type Noop struct{}

func (Noop) Predict(context.Context, types.FeatureVector) (types.Regime, float64, error) {
	return types.RegimeUnknown, 0, ErrUnavailable
}
