// Package barrier implements the fixed take-profit/stop-loss barrier model:
// levels sized from the entry bar's ATR, first-touch hit tests against later
// bars, cost-adjusted P&L and the trade consistency safety net.
package barrier

import (
	"errors"
	"fmt"
	"math"

	"shockflip-lab/internal/domain"
)

// ErrInconsistentTrade indicates a finalized trade whose P&L contradicts its
// result label. This is a logic defect in the exit state machine, never a
// data condition; callers must abort the run.
var ErrInconsistentTrade = errors.New("trade pnl inconsistent with result label")

// PriceTol is the tolerance for treating two price levels as equal, used by
// the breakeven tie-break.
const PriceTol = 1e-9

// Levels holds the fixed barriers for one position. They are computed once
// from the entry bar's ATR and never recomputed from later bars.
type Levels struct {
	TP          float64
	SL          float64
	RiskPerUnit float64 // ATR * side's SL multiplier
}

// Compute sizes the barriers for a position.
//
//	TP = entry + side*ATR*tp_mult
//	SL = entry - side*ATR*sl_mult
func Compute(side int, entry, atr float64, risk domain.RiskConfig) Levels {
	m := risk.Side(side)
	s := float64(side)
	return Levels{
		TP:          entry + s*atr*m.TPMult,
		SL:          entry - s*atr*m.SLMult,
		RiskPerUnit: atr * m.SLMult,
	}
}

// HitTP reports whether a bar touches the take-profit level.
func (l Levels) HitTP(side int, high, low float64) bool {
	return HitsLevel(side, l.TP, high, low, true)
}

// HitsLevel reports whether a bar's range touches a barrier level.
// favorable=true tests the profit side (long: high >= level), favorable=false
// the stop side (long: low <= level); shorts are mirrored.
func HitsLevel(side int, level, high, low float64, favorable bool) bool {
	if side == domain.SideLong {
		if favorable {
			return high >= level
		}
		return low <= level
	}
	if favorable {
		return low <= level
	}
	return high >= level
}

// PnL computes the per-unit trade P&L net of costs: the raw directional move
// minus taker fees and slippage charged on both fills, each expressed in
// basis points of the fill price.
func PnL(side int, entry, exit float64, fees domain.FeesConfig, slippageBp float64) float64 {
	gross := float64(side) * (exit - entry)
	costPerSideBp := (fees.TakerBp + slippageBp) / 10000.0
	costs := (entry + exit) * costPerSideBp
	return gross - costs
}

// EnforceResultInvariants validates a finalized trade against its label:
// a TP must close on the profitable side of entry and a BE at entry (within
// PriceTol), both before costs. Returns ErrInconsistentTrade on violation;
// the caller must not coerce or continue.
func EnforceResultInvariants(t *domain.Trade) error {
	raw := float64(t.Side) * (t.ExitPrice - t.EntryPrice)
	switch t.Result {
	case domain.ResultTP:
		if raw <= 0 {
			return fmt.Errorf("%w: result=TP raw=%g entry=%g exit=%g side=%d",
				ErrInconsistentTrade, raw, t.EntryPrice, t.ExitPrice, t.Side)
		}
	case domain.ResultBE:
		if math.Abs(t.ExitPrice-t.EntryPrice) > PriceTol {
			return fmt.Errorf("%w: result=BE entry=%g exit=%g",
				ErrInconsistentTrade, t.EntryPrice, t.ExitPrice)
		}
	}
	return nil
}
