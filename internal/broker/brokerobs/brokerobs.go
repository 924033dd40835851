package brokerobs

import (
	"context"
	"time"

	"regime-trader/internal/interfaces"
	"regime-trader/internal/logger"
	"regime-trader/internal/trace"
	"regime-trader/internal/types"
)

// observableMarketData wraps a MarketData source with logging and tracing
type observableMarketData struct {
	source interfaces.MarketData
}

// Compile-time interface check
var _ interfaces.MarketData = (*observableMarketData)(nil)

// Wrap wraps a market data source with observability middleware
func Wrap(source interfaces.MarketData) interfaces.MarketData {
	return &observableMarketData{
		source: source,
	}
}

// FetchBars fetches bars with observability
func (om *observableMarketData) FetchBars(ctx context.Context, instrument, interval string, from, to time.Time) ([]types.Bar, error) {
	ctx, span := trace.StartSpan(ctx, "broker.FetchBars")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching bars",
		"instrument", instrument,
		"interval", interval,
		"from", from,
		"to", to,
	)

	bars, err := om.source.FetchBars(ctx, instrument, interval, from, to)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch bars", err,
			"instrument", instrument,
			"interval", interval,
		)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Bars fetched successfully",
		"instrument", instrument,
		"interval", interval,
		"count", len(bars),
	)
	return bars, nil
}

// observableTickSource wraps a TickSource with logging and tracing
type observableTickSource struct {
	source interfaces.TickSource
}

var _ interfaces.TickSource = (*observableTickSource)(nil)

// WrapTicks wraps a tick source with observability middleware
func WrapTicks(source interfaces.TickSource) interfaces.TickSource {
	return &observableTickSource{source: source}
}

func (ot *observableTickSource) Start(ctx context.Context) error {
	spanCtx, span := trace.StartSpan(ctx, "ticks.Start")
	defer span.End()

	logger.InfoSkip(spanCtx, 1, "Starting tick source")
	if err := ot.source.Start(ctx); err != nil {
		logger.ErrorWithErrSkip(spanCtx, 1, "Failed to start tick source", err)
		return err
	}
	return nil
}

func (ot *observableTickSource) Subscribe(ctx context.Context, instruments []string) error {
	ctx, span := trace.StartSpan(ctx, "ticks.Subscribe")
	defer span.End()

	if err := ot.source.Subscribe(ctx, instruments); err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to subscribe", err, "instruments", instruments)
		return err
	}
	logger.InfoSkip(ctx, 1, "Subscribed", "instruments", instruments, "count", len(instruments))
	return nil
}

func (ot *observableTickSource) Stop(ctx context.Context) {
	ctx, span := trace.StartSpan(ctx, "ticks.Stop")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Stopping tick source")
	ot.source.Stop(ctx)
}
