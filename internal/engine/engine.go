package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/creasty/defaults"

	"regime-trader/internal/interfaces"
	"regime-trader/internal/logger"
	"regime-trader/internal/retry"
	"regime-trader/internal/types"
)

type Config struct {
	IntradayInterval  string `yaml:"intraday_interval" default:"5minute" validate:"oneof=minute 3minute 5minute 10minute 15minute 30minute 60minute"`
	IntradayDays      int    `yaml:"intraday_days" default:"5" validate:"gt=0"`
	DailyDays         int    `yaml:"daily_days" default:"400" validate:"gt=0"`
	CorrelationWindow int    `yaml:"correlation_window" default:"20" validate:"gt=2"`
	// Peers are the instruments whose daily returns are correlated with
	// the traded one.
	Peers []string `yaml:"peers"`
	// Reference is the volatility index series, for example INDIA VIX. Its
	// last close divided by 100 is used as implied vol.
	Reference string `yaml:"reference" default:"INDIA VIX"`
}

func DefaultConfig() Config {
	var c Config
	_ = defaults.Set(&c)
	return c
}

// Deps are the collaborators of the loop. Calendar and Quotes may be nil.
type Deps struct {
	Regime     interfaces.RegimeClassifier
	Risk       interfaces.RiskMachine
	Treasury   interfaces.Treasury
	Strategist interfaces.Strategist
	Executor   interfaces.Executor
	Data       interfaces.MarketData
	Quotes     interfaces.QuoteSource
	Calendar   interfaces.EventCalendar
	Policy     *retry.Policy
}

// Engine runs one decision pass per call. It never reads the wall clock,
// so a replay driver gets the same results as the live scheduler.
type Engine struct {
	cfg Config
	Deps
}

func newEngine(cfg Config, deps Deps) *Engine {
	if deps.Policy == nil {
		deps.Policy = retry.DefaultPolicy()
	}
	return &Engine{cfg: cfg, Deps: deps}
}

// RunIteration classifies the regime, manages exits, gates on safety and
// the circuit breaker, then sizes and places approved entries. Only
// terminal collaborator errors are returned.
func (e *Engine) RunIteration(ctx context.Context, instrument string, asOf time.Time) (*types.IterationResult, error) {
	if _, err := e.Risk.ResetDaily(ctx, asOf); err != nil {
		return nil, retry.Mark(retry.Terminal, err)
	}

	// 1. regime
	in, err := e.gatherInputs(ctx, instrument, asOf)
	if err != nil {
		return nil, err
	}
	pkt := e.Regime.Classify(ctx, in)
	res := &types.IterationResult{
		Instrument: instrument,
		AsOf:       asOf,
		Packet:     pkt,
		Entries:    []types.EntryOutcome{},
		Exits:      []types.ExitOutcome{},
	}

	// 2. account
	acct, acctErr := retry.Value(ctx, e.Policy, "treasury.account", e.Treasury.GetAccountState)
	if retry.IsTerminal(acctErr) {
		return nil, acctErr
	}

	// 3. exits
	if err := e.processExits(ctx, res, in, asOf); err != nil {
		return nil, err
	}

	// 4. gate
	switch {
	case !pkt.IsSafe:
		res.SkipReason = types.SkipRegimeUnsafe
		if len(pkt.Reasons) > 0 {
			res.SkipReason += ": " + strings.Join(pkt.Reasons, "; ")
		}
		return res, nil
	case e.Risk.IsCircuitBreakerActive():
		res.SkipReason = types.SkipCircuitBreaker
		return res, nil
	case acctErr != nil:
		res.SkipReason = types.SkipAccount
		logger.Warn(ctx, "Skipping entries without account state", "instrument", instrument, "error", acctErr)
		return res, nil
	}

	// 5. proposals
	proposals, err := e.Strategist.GenerateProposals(ctx, pkt)
	if err != nil {
		if retry.IsTerminal(err) {
			return nil, err
		}
		logger.ErrorWithErr(ctx, "Strategist failed", err, "instrument", instrument)
		res.SkipReason = types.SkipStrategist
		return res, nil
	}

	// 6. dedupe
	proposals = e.dedupe(ctx, proposals)

	// 7. approve and execute
	mult := e.Risk.SizingMultiplier()
	for _, p := range proposals {
		ok, sig, reason := e.Treasury.Approve(ctx, p, acct)
		if !ok || sig == nil {
			logger.Info(ctx, "Proposal rejected", "structure_id", p.StructureID, "reason", reason)
			continue
		}
		s := *sig
		s.Lots = sizedLots(s.Lots, mult)
		s.SizeMultiplier = mult

		out := types.EntryOutcome{StructureID: p.StructureID, Structure: p.Structure, Lots: s.Lots}
		r, err := retry.Value(ctx, e.Policy, "executor.execute", func(ctx context.Context) (types.ExecutionResult, error) {
			return e.Executor.Execute(ctx, s)
		})
		switch {
		case retry.IsTerminal(err):
			return nil, err
		case err != nil:
			out.Error = err.Error()
			logger.ErrorWithErr(ctx, "Entry failed", err, "structure_id", p.StructureID)
		default:
			out.Result = r
			if r.Success {
				acct = chargeEntry(acct, s, sig.Lots)
				logger.Trade(ctx, p.Instrument, "ENTRY", p.Structure, s.Lots, r.FillPrice, r.OrderID, "structure_id", p.StructureID)
				if err := e.recordSlippage(ctx, r, p.Instrument, asOf); err != nil {
					return nil, err
				}
			}
		}
		res.Entries = append(res.Entries, out)
	}
	if len(res.Entries) == 0 {
		res.SkipReason = types.SkipNoProposals
	}
	return res, nil
}

// processExits asks the Executor for exits at current prices and books
// every successful one with the risk machine. After each realized exit the
// loss limits are checked against a fresh account snapshot.
func (e *Engine) processExits(ctx context.Context, res *types.IterationResult, in types.RegimeInputs, asOf time.Time) error {
	positions, err := retry.Value(ctx, e.Policy, "executor.positions", e.Executor.GetOpenPositions)
	if err != nil {
		if retry.IsTerminal(err) {
			return err
		}
		logger.ErrorWithErr(ctx, "Open positions unavailable, skipping exit checks", err)
		return nil
	}
	if len(positions) == 0 {
		return nil
	}

	prices := e.prices(positions, in)
	orders, err := e.Executor.MonitorPositions(ctx, prices, res.Packet.Regime)
	if err != nil {
		if retry.IsTerminal(err) {
			return err
		}
		logger.ErrorWithErr(ctx, "Position monitor failed", err)
		return nil
	}

	for _, o := range orders {
		out := types.ExitOutcome{Order: o}
		r, err := retry.Value(ctx, e.Policy, "executor.exit", func(ctx context.Context) (types.ExecutionResult, error) {
			return e.Executor.ExecuteExit(ctx, o)
		})
		if retry.IsTerminal(err) {
			return err
		}
		if err != nil {
			out.Error = err.Error()
			logger.ErrorWithErr(ctx, "Exit failed", err, "position_id", o.PositionID, "reason", o.Reason)
			res.Exits = append(res.Exits, out)
			continue
		}
		out.Result = r
		res.Exits = append(res.Exits, out)
		if !r.Success {
			continue
		}

		logger.Trade(ctx, o.Instrument, "EXIT", o.Reason, 0, r.FillPrice, r.OrderID, "position_id", o.PositionID, "pnl", r.RealizedPnL)
		if _, err := e.Risk.RecordTradeResult(ctx, r.RealizedPnL, asOf); err != nil {
			return retry.Mark(retry.Terminal, err)
		}
		if err := e.recordSlippage(ctx, r, o.Instrument, asOf); err != nil {
			return err
		}
		if err := e.checkLossLimits(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) checkLossLimits(ctx context.Context) error {
	acct, err := retry.Value(ctx, e.Policy, "treasury.account", e.Treasury.GetAccountState)
	if err != nil {
		if retry.IsTerminal(err) {
			return err
		}
		logger.ErrorWithErr(ctx, "Account refresh after exit failed", err)
		return nil
	}
	breached, reason, flatDays := e.Treasury.CheckLossLimits(ctx, acct)
	if !breached || e.Risk.IsCircuitBreakerActive() {
		return nil
	}
	if err := e.Risk.ActivateCircuitBreaker(ctx, reason, flatDays); err != nil {
		return retry.Mark(retry.Terminal, err)
	}
	return nil
}

func (e *Engine) recordSlippage(ctx context.Context, r types.ExecutionResult, instrument string, asOf time.Time) error {
	if r.ExpectedPrice <= 0 || r.FillPrice <= 0 {
		return nil
	}
	if _, err := e.Risk.RecordSlippage(ctx, r.ExpectedPrice, r.FillPrice, instrument, asOf); err != nil {
		return retry.Mark(retry.Terminal, err)
	}
	return nil
}

// prices takes the cached last price of every position's instrument and
// falls back to the last intraday close of the traded one.
func (e *Engine) prices(positions []types.Position, in types.RegimeInputs) map[string]float64 {
	out := make(map[string]float64, len(positions)+1)
	if n := len(in.Intraday); n > 0 {
		out[in.Instrument] = in.Intraday[n-1].Close
	}
	if e.Quotes == nil {
		return out
	}
	for _, p := range positions {
		if q, ok := e.Quotes.Quote(p.Instrument); ok && q.LastPrice > 0 {
			out[p.Instrument] = q.LastPrice
		}
	}
	if q, ok := e.Quotes.Quote(in.Instrument); ok && q.LastPrice > 0 {
		out[in.Instrument] = q.LastPrice
	}
	return out
}

// dedupe drops proposals for structures already open or repeated in the
// batch, keeping the first occurrence.
func (e *Engine) dedupe(ctx context.Context, in []types.TradeProposal) []types.TradeProposal {
	seen := make(map[string]bool, len(in))
	out := make([]types.TradeProposal, 0, len(in))
	for _, p := range in {
		switch {
		case seen[p.StructureID]:
			logger.Debug(ctx, "Dropping duplicate proposal", "structure_id", p.StructureID)
		case e.Executor.HasOpenPositionForStructure(p.StructureID):
			logger.Debug(ctx, "Dropping proposal for open structure", "structure_id", p.StructureID)
		default:
			out = append(out, p)
		}
		seen[p.StructureID] = true
	}
	return out
}

func (e *Engine) String() string {
	return fmt.Sprintf("engine(interval=%s peers=%v)", e.cfg.IntradayInterval, e.cfg.Peers)
}
