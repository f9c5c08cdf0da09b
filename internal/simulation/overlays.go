package simulation

import (
	"math"

	"shockflip-lab/internal/barrier"
	"shockflip-lab/internal/domain"
)

// Position is the simulator's single open-position state. It is owned
// exclusively by the simulator and never escapes it.
type Position struct {
	Side        int
	EntryIdx    int
	EntryTs     int64
	Entry       float64
	ATR         float64
	SignalZ     float64
	Levels      barrier.Levels
	EffStop     float64 // effective stop, ratcheted by overlays
	BestFav     float64 // max favorable excursion, price units
	WorstAdv    float64 // max adverse excursion, price units (<= 0)
	BestFavBar  int     // bar offset of the last BestFav improvement
	BreakevenOn bool
	TrailArmed  bool
}

// mfeR is the favorable excursion in R-multiples.
func (p *Position) mfeR() float64 {
	return p.BestFav / p.Levels.RiskPerUnit
}

// forcedExit is an overlay-mandated exit that bypasses barrier evaluation.
type forcedExit struct {
	Price  float64
	Result string
}

// Overlay is a risk-management module evaluated once per held bar, after
// excursion tracking and before barrier evaluation. An overlay may ratchet
// the position's effective stop or force an exit; it never relaxes a stop.
type Overlay interface {
	Name() string
	Apply(pos *Position, bar domain.Bar, barsHeld int) *forcedExit
}

// OverlaysFromConfig builds the enabled overlays in precedence order:
// the time stop first (a forced exit preempts everything), then the
// breakeven lock, then the trailing stop.
func OverlaysFromConfig(cfg domain.ManagementConfig) []Overlay {
	var overlays []Overlay
	if cfg.TimeStop != nil {
		overlays = append(overlays, &timeStop{cfg: *cfg.TimeStop})
	}
	if cfg.Breakeven != nil {
		overlays = append(overlays, &breakevenLock{thresholdR: cfg.Breakeven.ThresholdR})
	}
	if cfg.Trailing != nil {
		overlays = append(overlays, &trailingStop{cfg: *cfg.Trailing})
	}
	return overlays
}

// timeStop kills zombie trades: positions that fail to reach MinR of
// favorable excursion within Bars held bars exit at the current close.
type timeStop struct {
	cfg domain.TimeStopConfig
}

func (o *timeStop) Name() string { return "time_stop" }

func (o *timeStop) Apply(pos *Position, bar domain.Bar, barsHeld int) *forcedExit {
	if barsHeld < o.cfg.Bars {
		return nil
	}
	if pos.BestFav >= o.cfg.MinR*pos.Levels.RiskPerUnit {
		return nil
	}
	return &forcedExit{Price: bar.Close, Result: domain.ResultZombie}
}

// breakevenLock ratchets the effective stop to at least the entry price once
// MFE reaches the configured R threshold. Activation is permanent.
type breakevenLock struct {
	thresholdR float64
}

func (o *breakevenLock) Name() string { return "breakeven" }

func (o *breakevenLock) Apply(pos *Position, _ domain.Bar, _ int) *forcedExit {
	if !pos.BreakevenOn {
		if pos.BestFav < o.thresholdR*pos.Levels.RiskPerUnit {
			return nil
		}
		pos.BreakevenOn = true
	}
	ratchetStop(pos, pos.Entry)
	return nil
}

// trailingStop arms once MFE reaches ArmR, then tracks
// entry + side*max(FloorR, mfeR-GapR)*risk, ratcheting only toward profit.
type trailingStop struct {
	cfg domain.TrailingConfig
}

func (o *trailingStop) Name() string { return "trailing_stop" }

func (o *trailingStop) Apply(pos *Position, _ domain.Bar, _ int) *forcedExit {
	mfeR := pos.mfeR()
	if !pos.TrailArmed {
		if mfeR < o.cfg.ArmR {
			return nil
		}
		pos.TrailArmed = true
	}
	lockR := math.Max(o.cfg.FloorR, mfeR-o.cfg.GapR)
	candidate := pos.Entry + float64(pos.Side)*lockR*pos.Levels.RiskPerUnit
	ratchetStop(pos, candidate)
	return nil
}

// ratchetStop moves the effective stop toward candidate only in the
// favorable direction. A stop never retreats.
func ratchetStop(pos *Position, candidate float64) {
	if pos.Side == domain.SideLong {
		if candidate > pos.EffStop {
			pos.EffStop = candidate
		}
		return
	}
	if candidate < pos.EffStop {
		pos.EffStop = candidate
	}
}
