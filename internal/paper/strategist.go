package paper

import (
	"context"
	"fmt"

	"regime-trader/internal/interfaces"
	"regime-trader/internal/types"
)

// Bias is the directional exposure of a structure on its underlying.
type Bias int

const (
	Neutral Bias = 0
	Long    Bias = 1
	Short   Bias = -1
)

// Structure names proposed by the Strategist.
const (
	IronCondor     = "iron_condor"
	IronFly        = "iron_fly"
	BullPutSpread  = "bull_put_spread"
	BearCallSpread = "bear_call_spread"
	BullCallSpread = "bull_call_spread"
	BearPutSpread  = "bear_put_spread"
)

var structureBias = map[string]Bias{
	IronCondor:     Neutral,
	IronFly:        Neutral,
	BullPutSpread:  Long,
	BearCallSpread: Short,
	BullCallSpread: Long,
	BearPutSpread:  Short,
}

// BiasOf returns the bias of a known structure, Neutral otherwise.
func BiasOf(structure string) Bias {
	return structureBias[structure]
}

// Strategist maps a regime to one structure. It proposes nothing in CHAOS
// or UNKNOWN and only hedged structures in CAUTION.
type Strategist struct {
	lots int
}

var _ interfaces.Strategist = (*Strategist)(nil)

func NewStrategist(lots int) *Strategist {
	if lots < 1 {
		lots = 1
	}
	return &Strategist{lots: lots}
}

func (s *Strategist) GenerateProposals(_ context.Context, pkt types.RegimePacket) ([]types.TradeProposal, error) {
	name, ok := pick(pkt)
	if !ok {
		return nil, nil
	}
	return []types.TradeProposal{{
		StructureID: fmt.Sprintf("%s:%s", pkt.Instrument, name),
		Structure:   name,
		Instrument:  pkt.Instrument,
		Lots:        s.lots,
		RefPrice:    pkt.Spot,
		Hedged:      true,
		Rationale:   fmt.Sprintf("%s confidence %.2f", pkt.Regime, pkt.Confidence),
	}}, nil
}

func pick(pkt types.RegimePacket) (string, bool) {
	switch pkt.Regime {
	case types.RegimeRangeBound:
		return IronCondor, true
	case types.RegimeMeanReversion:
		// fade the stretch: oversold gets the bullish credit spread
		if pkt.Metrics.Momentum < 50 {
			return BullPutSpread, true
		}
		return BearCallSpread, true
	case types.RegimeTrend:
		if pkt.Spot >= pkt.PrevClose {
			return BullCallSpread, true
		}
		return BearPutSpread, true
	case types.RegimeCaution:
		return IronFly, true
	default:
		return "", false
	}
}
