// Package shockflip detects statistically extreme, persistent order-flow
// shocks at structural price extremes. A positive shock at the lower Donchian
// extreme is a long reversal signal; a negative shock at the upper extreme is
// a short one.
package shockflip

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"shockflip-lab/internal/domain"
	"shockflip-lab/internal/features"
)

// ErrUnsupportedSource is returned when the configured flow source has no
// z-score column. This is a fatal pre-run configuration error.
var ErrUnsupportedSource = errors.New("unsupported shockflip signal source")

// Signals holds the per-bar detector output, parallel to the input bars.
type Signals struct {
	Signal    []int     // -1, 0, +1
	Z         []float64 // z-score of the chosen source
	Threshold []float64 // effective jump threshold per bar
}

// Events collects the non-zero signals as discrete events.
func (s *Signals) Events() []domain.SignalEvent {
	var events []domain.SignalEvent
	for i, sig := range s.Signal {
		if sig == 0 {
			continue
		}
		events = append(events, domain.SignalEvent{Index: i, Side: sig, Z: s.Z[i]})
	}
	return events
}

// Detect evaluates the four ShockFlip gates per bar:
//
//	A: |z| >= effective jump threshold (static or dynamic)
//	B: |z| >= z_band
//	C: >= persistence_ratio of the trailing persistence_bars share the
//	   current sign at |z| >= z_band
//	D: the bar sits at the matching Donchian extreme (when required)
//
// A bar where all gates pass emits sign(z) as the signal; everything else is 0.
func Detect(feats *features.Set, cfg domain.ShockFlipConfig) (*Signals, error) {
	z := feats.Z(cfg.Source)
	if z == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, cfg.Source)
	}

	n := len(z)
	out := &Signals{
		Signal:    make([]int, n),
		Z:         z,
		Threshold: jumpThreshold(z, cfg),
	}

	for i := 0; i < n; i++ {
		zi := z[i]
		if math.IsNaN(zi) || zi == 0 {
			continue
		}
		absZ := math.Abs(zi)

		if absZ < out.Threshold[i] { // gate A
			continue
		}
		if absZ < cfg.ZBand { // gate B
			continue
		}
		if !persists(z, i, zi, cfg) { // gate C
			continue
		}

		side := domain.SideLong
		if zi < 0 {
			side = domain.SideShort
		}
		if cfg.Location.RequireExtreme { // gate D
			if side == domain.SideLong && !feats.AtLowerExtreme[i] {
				continue
			}
			if side == domain.SideShort && !feats.AtUpperExtreme[i] {
				continue
			}
		}

		out.Signal[i] = side
	}

	return out, nil
}

// persists checks gate C: over the trailing persistence_bars window (current
// bar included), the fraction of bars sharing the current z sign at
// |z| >= z_band must reach persistence_ratio.
func persists(z []float64, i int, zi float64, cfg domain.ShockFlipConfig) bool {
	window := cfg.PersistenceBars
	if window <= 0 {
		return true
	}
	if i < window-1 {
		return false
	}

	matched := 0
	for j := i - window + 1; j <= i; j++ {
		v := z[j]
		if math.IsNaN(v) {
			continue
		}
		if sameSign(v, zi) && math.Abs(v) >= cfg.ZBand {
			matched++
		}
	}
	return float64(matched)/float64(window) >= cfg.PersistenceRatio
}

// jumpThreshold computes the per-bar effective jump threshold. With dynamic
// thresholds disabled it is exactly JumpBand everywhere. Enabled, it is
// max(JumpBand, rolling p-th percentile of |z|) over a 4*z_window lookback
// with z_window minimum periods.
func jumpThreshold(z []float64, cfg domain.ShockFlipConfig) []float64 {
	n := len(z)
	out := make([]float64, n)
	for i := range out {
		out[i] = cfg.JumpBand
	}
	if !cfg.Dynamic.Enabled {
		return out
	}

	window := cfg.ZWindow * 4
	minPeriods := cfg.ZWindow
	if window <= 0 || minPeriods <= 0 {
		return out
	}

	buf := make([]float64, 0, window)
	for i := 0; i < n; i++ {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		buf = buf[:0]
		for j := start; j <= i; j++ {
			if !math.IsNaN(z[j]) {
				buf = append(buf, math.Abs(z[j]))
			}
		}
		if len(buf) < minPeriods {
			continue
		}
		if p := quantile(buf, cfg.Dynamic.Percentile); p > out[i] {
			out[i] = p
		}
	}
	return out
}

// quantile computes the q-th quantile with linear interpolation between order
// statistics. The input is copied so callers' buffers stay untouched.
func quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}
