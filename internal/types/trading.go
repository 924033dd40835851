package types

import "time"

// AccountSnapshot is the Treasury's view of capital at a point in time.
type AccountSnapshot struct {
	Capital       float64 `json:"capital"`
	MarginUsed    float64 `json:"margin_used"`
	MarginFree    float64 `json:"margin_free"`
	RealizedToday float64 `json:"realized_today"`
	RealizedWeek  float64 `json:"realized_week"`
	OpenPositions int     `json:"open_positions"`
}

// Leg is one option or futures leg of a structure.
type Leg struct {
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"` // BUY or SELL
	Lots     int     `json:"lots"`
	Strike   float64 `json:"strike,omitempty"`
	Kind     string  `json:"kind,omitempty"` // CE, PE or FUT
	RefPrice float64 `json:"ref_price,omitempty"`
}

// TradeProposal is a candidate structure from the Strategist.
type TradeProposal struct {
	StructureID string  `json:"structure_id"`
	Structure   string  `json:"structure"`
	Instrument  string  `json:"instrument"`
	Legs        []Leg   `json:"legs,omitempty"`
	Lots        int     `json:"lots"`
	RefPrice    float64 `json:"ref_price"`
	Hedged      bool    `json:"hedged"`
	Rationale   string  `json:"rationale,omitempty"`
}

// Signal is an approved proposal, sized and ready for execution.
type Signal struct {
	Proposal       TradeProposal `json:"proposal"`
	Lots           int           `json:"lots"`
	MarginRequired float64       `json:"margin_required"`
	SizeMultiplier float64       `json:"size_multiplier"`
}

// Position is an open structure held by the Executor.
type Position struct {
	ID          string    `json:"id"`
	StructureID string    `json:"structure_id"`
	Structure   string    `json:"structure"`
	Instrument  string    `json:"instrument"`
	Lots        int       `json:"lots"`
	Hedged      bool      `json:"hedged"`
	EntryPrice  float64   `json:"entry_price"`
	OpenedAt    time.Time `json:"opened_at"`
}

// ExitOrder asks the Executor to close a position.
type ExitOrder struct {
	PositionID string  `json:"position_id"`
	Instrument string  `json:"instrument"`
	Reason     string  `json:"reason"`
	RefPrice   float64 `json:"ref_price"`
}

// ExecutionResult is the outcome of an entry or exit order.
type ExecutionResult struct {
	Success       bool    `json:"success"`
	OrderID       string  `json:"order_id,omitempty"`
	ExpectedPrice float64 `json:"expected_price,omitempty"`
	FillPrice     float64 `json:"fill_price,omitempty"`
	RealizedPnL   float64 `json:"realized_pnl,omitempty"`
	Message       string  `json:"message,omitempty"`
}

type EntryOutcome struct {
	StructureID string          `json:"structure_id"`
	Structure   string          `json:"structure"`
	Lots        int             `json:"lots"`
	Result      ExecutionResult `json:"result"`
	Error       string          `json:"error,omitempty"`
}

type ExitOutcome struct {
	Order  ExitOrder       `json:"order"`
	Result ExecutionResult `json:"result"`
	Error  string          `json:"error,omitempty"`
}

// Skip reasons reported by the iteration loop.
const (
	SkipRegimeUnsafe   = "regime unsafe"
	SkipCircuitBreaker = "circuit breaker active"
	SkipNoProposals    = "no approved proposals"
	SkipAccount        = "account state unavailable"
	SkipStrategist     = "strategist unavailable"
)

// IterationResult is the output of one pass of the control loop.
type IterationResult struct {
	Instrument string         `json:"instrument"`
	AsOf       time.Time      `json:"as_of"`
	Packet     RegimePacket   `json:"packet"`
	Entries    []EntryOutcome `json:"entries"`
	Exits      []ExitOutcome  `json:"exits"`
	SkipReason string         `json:"skip_reason,omitempty"`
}

// Skipped reports whether the iteration ended without attempting entries.
func (r IterationResult) Skipped() bool {
	return r.SkipReason != ""
}
