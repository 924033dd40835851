package engine

import (
	"math"
	"time"

	"regime-trader/internal/types"
)

var ist = time.FixedZone("IST", 19800) // IST is UTC+5:30 (19800 seconds)

// sizedLots applies the risk multiplier to an approved lot count, flooring
// but never going below one lot.
func sizedLots(lots int, mult float64) int {
	n := int(math.Floor(float64(lots) * mult))
	if n < 1 {
		return 1
	}
	return n
}

// chargeEntry books a filled signal against the iteration's account
// snapshot so later proposals in the batch see one more open structure and
// less free margin. Margin scales with the lots actually sent.
func chargeEntry(acct types.AccountSnapshot, s types.Signal, approvedLots int) types.AccountSnapshot {
	margin := s.MarginRequired
	if approvedLots > 0 {
		margin *= float64(s.Lots) / float64(approvedLots)
	}
	acct.OpenPositions++
	acct.MarginUsed += margin
	acct.MarginFree = math.Max(0, acct.MarginFree-margin)
	return acct
}
