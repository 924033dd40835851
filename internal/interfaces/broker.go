package interfaces

import (
	"context"
	"time"

	"regime-trader/internal/types"
)

// MarketData returns ordered bars in [from, to]. No data is an empty slice,
// not an error; errors mean the transport failed.
type MarketData interface {
	FetchBars(ctx context.Context, instrument, interval string, from, to time.Time) ([]types.Bar, error)
}

// QuoteSource answers last-price lookups for open positions.
type QuoteSource interface {
	Quote(instrument string) (types.Quote, bool)
}
