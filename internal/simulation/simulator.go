// Package simulation runs the ShockFlip trade state machine over a bar
// sequence: entry gating, per-bar excursion tracking, management overlays and
// first-touch barrier exits with a deterministic tie-break policy.
package simulation

import (
	"context"
	"math"

	"shockflip-lab/internal/barrier"
	"shockflip-lab/internal/domain"
	"shockflip-lab/internal/features"
	"shockflip-lab/internal/idhash"
	"shockflip-lab/internal/shockflip"
)

// Config holds everything the simulator needs besides the data itself.
type Config struct {
	Symbol     string
	Risk       domain.RiskConfig
	Fees       domain.FeesConfig
	SlippageBp float64
	Filters    domain.FiltersConfig
	Management domain.ManagementConfig
}

// Simulator owns the single open-position state. It is single-threaded and
// deterministic: identical bars and config always yield identical trades.
type Simulator struct {
	cfg      Config
	filters  []EntryFilter
	overlays []Overlay
	sink     Sink
}

// New creates a simulator. A nil sink discards events.
func New(cfg Config, sink Sink) *Simulator {
	if sink == nil {
		sink = NopSink{}
	}
	return &Simulator{
		cfg:      cfg,
		filters:  FiltersFromConfig(cfg.Filters),
		overlays: OverlaysFromConfig(cfg.Management),
		sink:     sink,
	}
}

// Run simulates all trades over the bar sequence. The outer scan evaluates
// candidate entries; each open position is advanced bar by bar until an exit
// fires or the data ends, after which the scan resumes past the exit bar
// under cooldown. At most one position is ever open.
func (s *Simulator) Run(ctx context.Context, bars []domain.Bar, feats *features.Set, sigs *shockflip.Signals) ([]domain.Trade, error) {
	trades := make([]domain.Trade, 0)
	cooldown := 0

	for i := 0; i < len(bars); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if cooldown > 0 {
			cooldown--
			continue
		}

		side := sigs.Signal[i]
		if side == 0 {
			continue
		}

		if reason, ok := s.admit(i, side, feats); !ok {
			s.sink.Emit(Event{Kind: EventEntryRejected, BarIndex: i, Side: side, Reason: reason})
			continue
		}

		pos := s.open(i, side, bars[i], feats.ATR[i], sigs.Z[i])
		s.sink.Emit(Event{Kind: EventEntryOpened, BarIndex: i, Side: side})

		trade, err := s.advance(pos, bars)
		if err != nil {
			return nil, err
		}
		trades = append(trades, *trade)
		s.sink.Emit(Event{Kind: EventTradeClosed, BarIndex: trade.ExitIdx, Side: side, Trade: trade})

		// Resume scanning after the exit bar; cooldown counts bars from the
		// close before a new entry may be evaluated.
		i = trade.ExitIdx
		cooldown = s.cfg.Risk.CooldownBars
	}

	return trades, nil
}

// admit applies the entry gates that can reject a signal: the configured
// entry filters and the usable-ATR requirement. Rejections skip the
// candidate, never abort the run.
func (s *Simulator) admit(i, side int, feats *features.Set) (reason string, ok bool) {
	for _, f := range s.filters {
		if !f.Pass(i, side, feats) {
			return f.Name(), false
		}
	}
	atr := feats.ATR[i]
	if math.IsNaN(atr) || atr <= 0 {
		return "no_atr", false
	}
	return "", true
}

// open builds the position state for an admitted entry at bar i's close.
func (s *Simulator) open(i, side int, bar domain.Bar, atr, z float64) *Position {
	entry := bar.Close
	levels := barrier.Compute(side, entry, atr, s.cfg.Risk)
	return &Position{
		Side:     side,
		EntryIdx: i,
		EntryTs:  bar.TimestampMs,
		Entry:    entry,
		ATR:      atr,
		SignalZ:  z,
		Levels:   levels,
		EffStop:  levels.SL,
	}
}

// advance walks the open position forward until an exit fires or data ends.
func (s *Simulator) advance(pos *Position, bars []domain.Bar) (*domain.Trade, error) {
	for j := pos.EntryIdx + 1; j < len(bars); j++ {
		bar := bars[j]

		// 1. Excursion tracking with the current bar's range.
		s.track(pos, bar, j)

		// 2-4. Overlays in precedence order; a forced exit preempts barriers.
		barsHeld := j - pos.EntryIdx
		for _, o := range s.overlays {
			if forced := o.Apply(pos, bar, barsHeld); forced != nil {
				return s.finalize(pos, bars, j, forced.Price, forced.Result)
			}
		}

		// 5-6. Barrier evaluation: stop against the ratcheted level, TP
		// against the fixed level.
		hitSL := barrier.HitsLevel(pos.Side, pos.EffStop, bar.High, bar.Low, false)
		hitTP := pos.Levels.HitTP(pos.Side, bar.High, bar.Low)

		switch {
		case hitSL && hitTP:
			// No intrabar ordering is knowable; resolve by what the
			// effective stop represents. A ratcheted stop is a profit lock,
			// so simultaneous TP contact resolves to the locked outcome.
			return s.finalize(pos, bars, j, pos.EffStop, stopLabel(pos))
		case hitTP:
			return s.finalize(pos, bars, j, pos.Levels.TP, domain.ResultTP)
		case hitSL:
			label := domain.ResultSL
			if math.Abs(pos.EffStop-pos.Entry) <= barrier.PriceTol {
				label = domain.ResultBE
			}
			return s.finalize(pos, bars, j, pos.EffStop, label)
		}
	}

	// 7. Data ended with no barrier hit: force-close at the last close with
	// a sign-derived label.
	last := len(bars) - 1
	exit := bars[last].Close
	label := domain.ResultSL
	if float64(pos.Side)*(exit-pos.Entry) > 0 {
		label = domain.ResultTP
	}
	return s.finalize(pos, bars, last, exit, label)
}

// track updates the running excursion extrema for one held bar.
func (s *Simulator) track(pos *Position, bar domain.Bar, j int) {
	favPrice, advPrice := bar.High, bar.Low
	if pos.Side == domain.SideShort {
		favPrice, advPrice = bar.Low, bar.High
	}
	fav := float64(pos.Side) * (favPrice - pos.Entry)
	adv := float64(pos.Side) * (advPrice - pos.Entry)

	if fav > pos.BestFav {
		pos.BestFav = fav
		pos.BestFavBar = j - pos.EntryIdx
	}
	if adv < pos.WorstAdv {
		pos.WorstAdv = adv
	}
}

// stopLabel resolves the simultaneous-hit tie-break from the effective
// stop's relationship to entry.
func stopLabel(pos *Position) string {
	switch {
	case math.Abs(pos.EffStop-pos.Entry) <= barrier.PriceTol:
		return domain.ResultBE
	case float64(pos.Side)*(pos.EffStop-pos.Entry) > 0:
		return domain.ResultTP
	default:
		return domain.ResultSL
	}
}

// finalize builds the immutable trade record, applies costs and runs the
// consistency safety net. A violation aborts the run.
func (s *Simulator) finalize(pos *Position, bars []domain.Bar, exitIdx int, exitPrice float64, result string) (*domain.Trade, error) {
	risk := pos.Levels.RiskPerUnit
	trade := &domain.Trade{
		Symbol:            s.cfg.Symbol,
		EntryTs:           pos.EntryTs,
		EntryIdx:          pos.EntryIdx,
		Side:              pos.Side,
		EntryPrice:        pos.Entry,
		ATR:               pos.ATR,
		SignalZ:           pos.SignalZ,
		ExitTs:            bars[exitIdx].TimestampMs,
		ExitIdx:           exitIdx,
		ExitPrice:         exitPrice,
		Result:            result,
		PnL:               barrier.PnL(pos.Side, pos.Entry, exitPrice, s.cfg.Fees, s.cfg.SlippageBp),
		MFEPrice:          pos.BestFav,
		MAEPrice:          pos.WorstAdv,
		MFER:              pos.BestFav / risk,
		MAER:              pos.WorstAdv / risk,
		TimeToMFEBars:     pos.BestFavBar,
		HoldingPeriodBars: exitIdx - pos.EntryIdx,
	}
	trade.TradeID = idhash.ComputeTradeID(s.cfg.Symbol, pos.Side, pos.EntryIdx, pos.EntryTs)

	if err := barrier.EnforceResultInvariants(trade); err != nil {
		return nil, err
	}
	return trade, nil
}
