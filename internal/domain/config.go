package domain

// RiskSideConfig holds per-side barrier multipliers in ATR units.
type RiskSideConfig struct {
	TPMult float64 // take-profit distance = ATR * TPMult
	SLMult float64 // stop-loss distance = ATR * SLMult
}

// RiskConfig holds risk sizing and trade spacing parameters.
type RiskConfig struct {
	ATRWindow    int // bars in the ATR simple moving average
	CooldownBars int // bars after a close before a new entry is evaluated
	Long         RiskSideConfig
	Short        RiskSideConfig
}

// Side returns the multipliers for a trade side.
func (r RiskConfig) Side(side int) RiskSideConfig {
	if side == SideShort {
		return r.Short
	}
	return r.Long
}

// FeesConfig holds execution cost parameters.
type FeesConfig struct {
	TakerBp float64 // taker fee per fill, basis points
}

// DynamicThresholds configures the detector's adaptive jump threshold.
type DynamicThresholds struct {
	Enabled    bool
	Percentile float64 // e.g. 0.99 for the 99th percentile of |z|
}

// LocationFilter configures the Donchian structural-extreme gate.
type LocationFilter struct {
	DonchianWindow int
	RequireExtreme bool
}

// Flow z-score sources for the detector.
const (
	SourceImbalance = "imbalance"
	SourceDelta     = "delta"
)

// ShockFlipConfig holds all detector parameters.
type ShockFlipConfig struct {
	Source           string // SourceImbalance or SourceDelta
	ZWindow          int
	ZBand            float64 // static magnitude floor (gate B)
	JumpBand         float64 // static jump threshold (gate A when dynamic off)
	PersistenceBars  int
	PersistenceRatio float64
	Dynamic          DynamicThresholds
	Location         LocationFilter
}

// PriorFlowSignFilter requires a specific imbalance sign on the bar before
// entry. RequiredSign is +1 or -1.
type PriorFlowSignFilter struct {
	RequiredSign int
}

// Divergence filter modes.
const (
	DivergenceModeDeadZone    = "dead_zone"
	DivergenceModeExtremeOnly = "extreme_only"
)

// DivergenceFilter gates entries on the price-flow divergence score.
// In dead-zone mode the score must fall outside (Low, High); in extreme-only
// mode it must be at least Threshold.
type DivergenceFilter struct {
	Mode      string
	Threshold float64 // extreme-only
	Low       float64 // dead-zone lower bound
	High      float64 // dead-zone upper bound
}

// ATRPercentileFilter restricts entries to a volatility regime: the rolling
// percentile rank of ATR must lie in [Low, High].
type ATRPercentileFilter struct {
	Low  float64
	High float64
}

// FiltersConfig holds the optional entry filters. A nil pointer means the
// filter is disabled; each enabled filter must pass independently (AND).
type FiltersConfig struct {
	MinRelativeVolume *float64
	MinDivergence     *float64
	PriorFlowSign     *PriorFlowSignFilter
	Divergence        *DivergenceFilter
	ATRPercentile     *ATRPercentileFilter
}

// BreakevenConfig arms the breakeven lock once MFE reaches ThresholdR
// R-multiples.
type BreakevenConfig struct {
	ThresholdR float64
}

// TimeStopConfig kills trades that fail to reach MinR R-multiples of
// favorable excursion within Bars held bars.
type TimeStopConfig struct {
	Bars int
	MinR float64
}

// TrailingConfig arms a ratcheting stop once MFE reaches ArmR; the stop then
// tracks max(FloorR, mfeR-GapR) R-multiples from entry.
type TrailingConfig struct {
	ArmR   float64
	FloorR float64
	GapR   float64
}

// ManagementConfig selects the risk-management overlays at construction time.
// A nil overlay is disabled; the simulator never probes for optional
// attributes at runtime.
type ManagementConfig struct {
	Breakeven *BreakevenConfig
	TimeStop  *TimeStopConfig
	Trailing  *TrailingConfig
}
