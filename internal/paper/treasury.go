package paper

import (
	"context"
	"fmt"
	"math"

	"regime-trader/internal/interfaces"
	"regime-trader/internal/logger"
	"regime-trader/internal/types"
)

// Book is the position ledger the Treasury accounts against.
type Book interface {
	GetOpenPositions(ctx context.Context) ([]types.Position, error)
	Closed() []Fill
}

// Treasury approves proposals against a fixed capital base, a flat margin
// per lot and a cap on open structures.
type Treasury struct {
	cfg  TreasuryConfig
	book Book
}

var _ interfaces.Treasury = (*Treasury)(nil)

func NewTreasury(cfg TreasuryConfig, book Book) *Treasury {
	return &Treasury{cfg: cfg, book: book}
}

func (t *Treasury) marginPerLot(hedged bool) float64 {
	if hedged {
		return t.cfg.MarginPerLot * t.cfg.HedgedMarginMult
	}
	return t.cfg.MarginPerLot
}

// GetAccountState values the account as of the latest closed trade.
// Realized P&L for the day and week is bucketed by IST calendar date and
// ISO week of that trade.
func (t *Treasury) GetAccountState(ctx context.Context) (types.AccountSnapshot, error) {
	open, err := t.book.GetOpenPositions(ctx)
	if err != nil {
		return types.AccountSnapshot{}, fmt.Errorf("open positions: %w", err)
	}
	closed := t.book.Closed()

	var acct types.AccountSnapshot
	acct.OpenPositions = len(open)
	for _, p := range open {
		acct.MarginUsed += float64(p.Lots) * t.marginPerLot(p.Hedged)
	}

	total := 0.0
	for _, f := range closed {
		total += f.PnL
	}
	if n := len(closed); n > 0 {
		last := closed[n-1].At.In(ist)
		day := last.Format("2006-01-02")
		ly, lw := last.ISOWeek()
		for _, f := range closed {
			at := f.At.In(ist)
			if at.Format("2006-01-02") == day {
				acct.RealizedToday += f.PnL
			}
			if y, w := at.ISOWeek(); y == ly && w == lw {
				acct.RealizedWeek += f.PnL
			}
		}
	}

	acct.Capital = t.cfg.Capital + total
	acct.MarginFree = math.Max(0, acct.Capital-acct.MarginUsed)
	return acct, nil
}

// Approve caps the lot count by the per-trade limit and by free margin.
func (t *Treasury) Approve(ctx context.Context, p types.TradeProposal, acct types.AccountSnapshot) (bool, *types.Signal, string) {
	if acct.OpenPositions >= t.cfg.MaxOpen {
		return false, nil, fmt.Sprintf("max open structures %d reached", t.cfg.MaxOpen)
	}
	lots := p.Lots
	if lots > t.cfg.MaxLotsPerTrade {
		lots = t.cfg.MaxLotsPerTrade
	}
	perLot := t.marginPerLot(p.Hedged)
	if affordable := int(acct.MarginFree / perLot); lots > affordable {
		lots = affordable
	}
	if lots < 1 {
		return false, nil, "insufficient margin"
	}
	if lots != p.Lots {
		logger.Debug(ctx, "Proposal resized by treasury", "structure_id", p.StructureID, "requested", p.Lots, "approved", lots)
	}
	return true, &types.Signal{
		Proposal:       p,
		Lots:           lots,
		MarginRequired: float64(lots) * perLot,
		SizeMultiplier: 1,
	}, ""
}

// CheckLossLimits compares realized P&L with the weekly and then the daily
// limit.
func (t *Treasury) CheckLossLimits(_ context.Context, acct types.AccountSnapshot) (bool, string, int) {
	weekly := t.cfg.WeeklyLossLimit * t.cfg.Capital
	if acct.RealizedWeek <= -weekly {
		return true, fmt.Sprintf("weekly loss %.0f breached limit %.0f", -acct.RealizedWeek, weekly), t.cfg.WeeklyFlatDays
	}
	daily := t.cfg.DailyLossLimit * t.cfg.Capital
	if acct.RealizedToday <= -daily {
		return true, fmt.Sprintf("daily loss %.0f breached limit %.0f", -acct.RealizedToday, daily), t.cfg.DailyFlatDays
	}
	return false, "", 0
}
