package interfaces

import (
	"context"
	"time"

	"regime-trader/internal/types"
)

// RiskMachine is the single writer of the persisted risk state. Every
// mutating call persists before it returns.
type RiskMachine interface {
	ResetDaily(ctx context.Context, date time.Time) (bool, error)
	RecordTradeResult(ctx context.Context, pnl float64, at time.Time) (types.TradeUpdate, error)
	SizingMultiplier() float64
	ActivateCircuitBreaker(ctx context.Context, reason string, flatDays int) error
	IsCircuitBreakerActive() bool
	RecordSlippage(ctx context.Context, expected, actual float64, symbol string, at time.Time) (*types.SlippageAlert, error)
	Snapshot() types.RiskState
}
