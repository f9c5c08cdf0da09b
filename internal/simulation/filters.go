package simulation

import (
	"fmt"
	"math"

	"shockflip-lab/internal/domain"
	"shockflip-lab/internal/features"
)

// EntryFilter gates a candidate entry at its signal bar. Filters are
// AND-combined; a missing or NaN feature value fails the filter (the entry is
// skipped, never the run).
type EntryFilter interface {
	// Name identifies the filter in rejection events.
	Name() string

	// Pass reports whether the candidate entry at bar i survives the filter.
	Pass(i int, side int, feats *features.Set) bool
}

// FiltersFromConfig builds the enabled entry filters. Disabled (nil) filters
// contribute nothing; the returned order is deterministic.
func FiltersFromConfig(cfg domain.FiltersConfig) []EntryFilter {
	var filters []EntryFilter
	if cfg.MinRelativeVolume != nil {
		filters = append(filters, &relativeVolumeFilter{min: *cfg.MinRelativeVolume})
	}
	if cfg.MinDivergence != nil {
		filters = append(filters, &minDivergenceFilter{min: *cfg.MinDivergence})
	}
	if cfg.PriorFlowSign != nil {
		filters = append(filters, &priorFlowSignFilter{required: cfg.PriorFlowSign.RequiredSign})
	}
	if cfg.Divergence != nil {
		filters = append(filters, &divergenceModeFilter{cfg: *cfg.Divergence})
	}
	if cfg.ATRPercentile != nil {
		filters = append(filters, &atrPercentileFilter{low: cfg.ATRPercentile.Low, high: cfg.ATRPercentile.High})
	}
	return filters
}

// relativeVolumeFilter requires the signal bar's volume to be at least min
// times the trailing average volume.
type relativeVolumeFilter struct {
	min float64
}

func (f *relativeVolumeFilter) Name() string { return "relative_volume" }

func (f *relativeVolumeFilter) Pass(i int, _ int, feats *features.Set) bool {
	v := feats.RelVolume[i]
	return !math.IsNaN(v) && v >= f.min
}

// minDivergenceFilter requires a minimum price-flow divergence score.
type minDivergenceFilter struct {
	min float64
}

func (f *minDivergenceFilter) Name() string { return "min_divergence" }

func (f *minDivergenceFilter) Pass(i int, _ int, feats *features.Set) bool {
	v := feats.Divergence[i]
	return !math.IsNaN(v) && v >= f.min
}

// priorFlowSignFilter requires the bar before entry to carry a specific
// imbalance sign.
type priorFlowSignFilter struct {
	required int
}

func (f *priorFlowSignFilter) Name() string { return "prior_flow_sign" }

func (f *priorFlowSignFilter) Pass(i int, _ int, feats *features.Set) bool {
	v := feats.PriorFlowSign[i]
	return !math.IsNaN(v) && int(v) == f.required
}

// divergenceModeFilter gates on the divergence score by mode: dead_zone
// passes scores outside (Low, High), extreme_only passes scores at or above
// Threshold. An unknown mode rejects everything rather than guessing.
type divergenceModeFilter struct {
	cfg domain.DivergenceFilter
}

func (f *divergenceModeFilter) Name() string {
	return fmt.Sprintf("divergence_%s", f.cfg.Mode)
}

func (f *divergenceModeFilter) Pass(i int, _ int, feats *features.Set) bool {
	v := feats.Divergence[i]
	if math.IsNaN(v) {
		return false
	}
	switch f.cfg.Mode {
	case domain.DivergenceModeDeadZone:
		return v <= f.cfg.Low || v >= f.cfg.High
	case domain.DivergenceModeExtremeOnly:
		return v >= f.cfg.Threshold
	default:
		return false
	}
}

// atrPercentileFilter restricts entries to a volatility regime.
type atrPercentileFilter struct {
	low, high float64
}

func (f *atrPercentileFilter) Name() string { return "atr_percentile" }

func (f *atrPercentileFilter) Pass(i int, _ int, feats *features.Set) bool {
	v := feats.ATRPct[i]
	return !math.IsNaN(v) && v >= f.low && v <= f.high
}
