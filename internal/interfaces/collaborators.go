package interfaces

import (
	"context"

	"regime-trader/internal/types"
)

// Treasury is the risk and margin authority.
type Treasury interface {
	GetAccountState(ctx context.Context) (types.AccountSnapshot, error)
	Approve(ctx context.Context, p types.TradeProposal, acct types.AccountSnapshot) (bool, *types.Signal, string)
	CheckLossLimits(ctx context.Context, acct types.AccountSnapshot) (breached bool, reason string, flatDays int)
}

// Strategist proposes structures for a regime.
type Strategist interface {
	GenerateProposals(ctx context.Context, pkt types.RegimePacket) ([]types.TradeProposal, error)
}

// Executor places orders and owns open positions.
type Executor interface {
	GetOpenPositions(ctx context.Context) ([]types.Position, error)
	MonitorPositions(ctx context.Context, prices map[string]float64, regime types.Regime) ([]types.ExitOrder, error)
	ExecuteExit(ctx context.Context, order types.ExitOrder) (types.ExecutionResult, error)
	HasOpenPositionForStructure(structureID string) bool
	Execute(ctx context.Context, sig types.Signal) (types.ExecutionResult, error)
}

// StateStore persists opaque blobs with atomic replace semantics.
type StateStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, blob []byte) error
}
