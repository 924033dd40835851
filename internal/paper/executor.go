package paper

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"regime-trader/internal/interfaces"
	"regime-trader/internal/logger"
	"regime-trader/internal/types"
)

// Exit reasons reported in ExitOrder.Reason.
const (
	ReasonStop   = "stop loss"
	ReasonTarget = "profit target"
	ReasonChaos  = "regime CHAOS"
)

type position struct {
	types.Position
	bias    Bias
	stop    float64
	target  float64
	band    float64
	lotSize int
}

// Fill is a closed paper trade.
type Fill struct {
	PositionID string    `json:"position_id"`
	Instrument string    `json:"instrument"`
	Structure  string    `json:"structure"`
	PnL        float64   `json:"pnl"`
	At         time.Time `json:"at"`
}

// Executor simulates fills at the cached last price, marking positions on
// their underlying. Position ids are sequential so replays match.
type Executor struct {
	cfg    ExecutorConfig
	quotes interfaces.QuoteSource

	mu        sync.Mutex
	seq       int
	positions map[string]*position
	closed    []Fill
	lastMark  time.Time
}

var _ interfaces.Executor = (*Executor)(nil)

// NewExecutor returns an empty book. quotes may be nil, in which case
// entries fill at the proposal reference price.
func NewExecutor(cfg ExecutorConfig, quotes interfaces.QuoteSource) *Executor {
	return &Executor{
		cfg:       cfg,
		quotes:    quotes,
		positions: make(map[string]*position),
	}
}

func (e *Executor) lotSize(instrument string) int {
	if n, ok := e.cfg.LotSizes[instrument]; ok && n > 0 {
		return n
	}
	return e.cfg.DefaultLotSize
}

func (e *Executor) slip(price float64, side Bias) float64 {
	return roundToTick(price*(1+float64(side)*e.cfg.SlippageBps/10000), e.cfg.TickSize)
}

// price looks up the cached quote, falling back to ref.
func (e *Executor) price(instrument string, ref float64) (float64, time.Time) {
	if e.quotes != nil {
		if q, ok := e.quotes.Quote(instrument); ok && q.LastPrice > 0 {
			return q.LastPrice, q.Ts
		}
	}
	return ref, e.lastMark
}

func (e *Executor) Execute(ctx context.Context, sig types.Signal) (types.ExecutionResult, error) {
	p := sig.Proposal
	e.mu.Lock()
	defer e.mu.Unlock()

	price, ts := e.price(p.Instrument, p.RefPrice)
	if price <= 0 || math.IsNaN(price) {
		return types.ExecutionResult{Success: false, Message: "no price for " + p.Instrument}, nil
	}
	if ts.After(e.lastMark) {
		e.lastMark = ts
	}
	bias := BiasOf(p.Structure)
	fill := e.slip(price, bias)

	e.seq++
	id := fmt.Sprintf("PAPER-%06d", e.seq)
	pos := &position{
		Position: types.Position{
			ID:          id,
			StructureID: p.StructureID,
			Structure:   p.Structure,
			Instrument:  p.Instrument,
			Lots:        sig.Lots,
			Hedged:      p.Hedged,
			EntryPrice:  fill,
			OpenedAt:    ts,
		},
		bias:    bias,
		lotSize: e.lotSize(p.Instrument),
	}
	pos.stop, pos.target = e.levels(fill, bias)
	pos.band = fill * e.cfg.NeutralBandPct / 100
	e.positions[id] = pos

	logger.Debug(ctx, "Paper entry filled",
		"position_id", id,
		"structure", p.Structure,
		"lots", sig.Lots,
		"expected", price,
		"fill", fill,
		"stop", pos.stop,
		"target", pos.target,
	)
	return types.ExecutionResult{
		Success:       true,
		OrderID:       id,
		ExpectedPrice: price,
		FillPrice:     fill,
	}, nil
}

// GetOpenPositions returns open positions ordered by id.
func (e *Executor) GetOpenPositions(context.Context) ([]types.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open(), nil
}

func (e *Executor) open() []types.Position {
	out := make([]types.Position, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, p.Position)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (e *Executor) HasOpenPositionForStructure(structureID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range e.positions {
		if p.StructureID == structureID {
			return true
		}
	}
	return false
}

// MonitorPositions closes everything in CHAOS and otherwise checks each
// position against its stop and target.
func (e *Executor) MonitorPositions(ctx context.Context, prices map[string]float64, regime types.Regime) ([]types.ExitOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var orders []types.ExitOrder
	for _, op := range e.open() {
		p := e.positions[op.ID]
		price, ok := prices[p.Instrument]
		if !ok || price <= 0 {
			continue
		}
		reason := exitReason(p, price)
		if regime == types.RegimeChaos {
			reason = ReasonChaos
		}
		if reason == "" {
			continue
		}
		logger.Debug(ctx, "Paper exit signalled", "position_id", p.ID, "reason", reason, "price", price)
		orders = append(orders, types.ExitOrder{
			PositionID: p.ID,
			Instrument: p.Instrument,
			Reason:     reason,
			RefPrice:   price,
		})
	}
	return orders, nil
}

func (e *Executor) ExecuteExit(ctx context.Context, o types.ExitOrder) (types.ExecutionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.positions[o.PositionID]
	if p == nil {
		logger.Warn(ctx, "Exit for unknown paper position", "position_id", o.PositionID)
		return types.ExecutionResult{Success: false, Message: "unknown position " + o.PositionID}, nil
	}
	price, ts := e.price(p.Instrument, o.RefPrice)
	if o.RefPrice > 0 {
		price = o.RefPrice
	}
	if ts.After(e.lastMark) {
		e.lastMark = ts
	}
	fill := e.slip(price, -p.bias)
	pnl := p.pnl(fill)

	delete(e.positions, p.ID)
	e.closed = append(e.closed, Fill{
		PositionID: p.ID,
		Instrument: p.Instrument,
		Structure:  p.Structure,
		PnL:        pnl,
		At:         ts,
	})
	return types.ExecutionResult{
		Success:       true,
		OrderID:       p.ID + "-X",
		ExpectedPrice: price,
		FillPrice:     fill,
		RealizedPnL:   pnl,
	}, nil
}

// pnl marks the position at price. Neutral structures earn the band and
// lose the move beyond it.
func (p *position) pnl(price float64) float64 {
	qty := float64(p.Lots * p.lotSize)
	move := price - p.EntryPrice
	switch p.bias {
	case Long:
		return move * qty
	case Short:
		return -move * qty
	default:
		return (p.band - math.Abs(move)) * qty
	}
}

// Closed returns every closed trade in exit order.
func (e *Executor) Closed() []Fill {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Fill, len(e.closed))
	copy(out, e.closed)
	return out
}

// LastMark is the latest quote time the executor has seen.
func (e *Executor) LastMark() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastMark
}
