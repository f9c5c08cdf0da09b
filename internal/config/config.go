// Package config loads and validates the YAML run configuration and maps it
// onto the immutable per-run config entities.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"shockflip-lab/internal/domain"
	"shockflip-lab/internal/features"
)

// ErrInvalidConfig indicates a run configuration that fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// RunConfig is the full YAML configuration surface of a backtest run.
// Optional blocks use pointers; a nil block means the feature is disabled.
type RunConfig struct {
	Symbol    string `yaml:"symbol"`
	Timeframe string `yaml:"timeframe"`

	Data DataConfig `yaml:"data"`

	Fees       FeesYAML  `yaml:"fees"`
	SlippageBp float64   `yaml:"slippage_bp"`
	Risk       RiskYAML  `yaml:"risk"`
	ShockFlip  ShockYAML `yaml:"shock_flip"`

	Filters    FiltersYAML    `yaml:"filters"`
	Management ManagementYAML `yaml:"management"`

	Storage StorageYAML `yaml:"storage"`
}

// DataConfig points at the input files of a run. A bar CSV, a tick CSV (with
// a resample timeframe) or a ClickHouse DSN in the storage block must be set.
type DataConfig struct {
	BarsCSV     string `yaml:"bars_csv"`
	TicksCSV    string `yaml:"ticks_csv"`
	TimeframeMs int64  `yaml:"timeframe_ms"`
}

type FeesYAML struct {
	TakerBp float64 `yaml:"taker_bp"`
}

type RiskSideYAML struct {
	TPMult float64 `yaml:"tp_mult"`
	SLMult float64 `yaml:"sl_mult"`
}

type RiskYAML struct {
	ATRWindow    int          `yaml:"atr_window"`
	CooldownBars int          `yaml:"cooldown_bars"`
	Long         RiskSideYAML `yaml:"long"`
	Short        RiskSideYAML `yaml:"short"`
}

type DynamicYAML struct {
	Enabled    bool    `yaml:"enabled"`
	Percentile float64 `yaml:"percentile"`
}

type LocationYAML struct {
	DonchianWindow int  `yaml:"donchian_window"`
	RequireExtreme bool `yaml:"require_extreme"`
}

type ShockYAML struct {
	Source           string       `yaml:"source"`
	ZWindow          int          `yaml:"z_window"`
	ZBand            float64      `yaml:"z_band"`
	JumpBand         float64      `yaml:"jump_band"`
	PersistenceBars  int          `yaml:"persistence_bars"`
	PersistenceRatio float64      `yaml:"persistence_ratio"`
	Dynamic          DynamicYAML  `yaml:"dynamic_thresholds"`
	Location         LocationYAML `yaml:"location_filter"`
}

type PriorFlowSignYAML struct {
	Enabled      bool `yaml:"enabled"`
	RequiredSign int  `yaml:"required_sign"`
}

type PriceFlowDivYAML struct {
	Mode         string  `yaml:"mode"`
	Threshold    float64 `yaml:"threshold"`
	DeadZoneLow  float64 `yaml:"dead_zone_low"`
	DeadZoneHigh float64 `yaml:"dead_zone_high"`
}

type ATRPercentileYAML struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

type FiltersYAML struct {
	MinRelativeVolume *float64           `yaml:"min_relative_volume"`
	MinDivergence     *float64           `yaml:"min_divergence"`
	PriorFlowSign     *PriorFlowSignYAML `yaml:"prior_flow_sign"`
	PriceFlowDiv      *PriceFlowDivYAML  `yaml:"price_flow_div"`
	ATRPercentile     *ATRPercentileYAML `yaml:"atr_percentile"`
}

type TrailingYAML struct {
	Enabled       bool    `yaml:"enabled"`
	ArmThresholdR float64 `yaml:"arm_threshold_r"`
	FloorR        float64 `yaml:"floor_r"`
	GapR          float64 `yaml:"gap_r"`
}

type ManagementYAML struct {
	MFEBreakevenR *float64      `yaml:"mfe_breakeven_r"`
	TimeStopBars  int           `yaml:"time_stop_bars"`
	TimeStopR     float64       `yaml:"time_stop_r"`
	TrailingStop  *TrailingYAML `yaml:"trailing_stop"`
}

type StorageYAML struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
}

// Default returns the run configuration with all documented defaults applied.
func Default() RunConfig {
	return RunConfig{
		Timeframe:  "1m",
		Fees:       FeesYAML{TakerBp: 1.0},
		SlippageBp: 0.5,
		Risk: RiskYAML{
			ATRWindow:    60,
			CooldownBars: 10,
			Long:         RiskSideYAML{TPMult: 27.5, SLMult: 9.0},
			Short:        RiskSideYAML{TPMult: 15.0, SLMult: 6.5},
		},
		ShockFlip: ShockYAML{
			Source:           domain.SourceImbalance,
			ZWindow:          240,
			ZBand:            2.5,
			JumpBand:         3.0,
			PersistenceBars:  6,
			PersistenceRatio: 0.6,
			Dynamic:          DynamicYAML{Enabled: true, Percentile: 0.99},
			Location:         LocationYAML{DonchianWindow: 120, RequireExtreme: true},
		},
	}
}

// Load reads, defaults and validates a YAML run configuration.
func Load(path string) (*RunConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration once, before the run starts.
func (c *RunConfig) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidConfig)
	}
	if c.Data.BarsCSV == "" && c.Data.TicksCSV == "" && c.Storage.ClickHouseDSN == "" {
		return fmt.Errorf("%w: data.bars_csv, data.ticks_csv or storage.clickhouse_dsn is required", ErrInvalidConfig)
	}
	if c.Data.TicksCSV != "" && c.Data.TimeframeMs <= 0 {
		return fmt.Errorf("%w: data.timeframe_ms must be > 0 for tick input", ErrInvalidConfig)
	}
	if c.Risk.ATRWindow <= 0 {
		return fmt.Errorf("%w: risk.atr_window must be > 0", ErrInvalidConfig)
	}
	if c.Risk.CooldownBars < 0 {
		return fmt.Errorf("%w: risk.cooldown_bars must be >= 0", ErrInvalidConfig)
	}
	for name, side := range map[string]RiskSideYAML{"long": c.Risk.Long, "short": c.Risk.Short} {
		if side.TPMult <= 0 || side.SLMult <= 0 {
			return fmt.Errorf("%w: risk.%s multipliers must be > 0", ErrInvalidConfig, name)
		}
	}
	if c.Fees.TakerBp < 0 || c.SlippageBp < 0 {
		return fmt.Errorf("%w: fees and slippage must be >= 0", ErrInvalidConfig)
	}

	s := c.ShockFlip
	if s.Source != domain.SourceImbalance && s.Source != domain.SourceDelta {
		return fmt.Errorf("%w: shock_flip.source %q", ErrInvalidConfig, s.Source)
	}
	if s.ZWindow <= 0 {
		return fmt.Errorf("%w: shock_flip.z_window must be > 0", ErrInvalidConfig)
	}
	if s.PersistenceBars <= 0 {
		return fmt.Errorf("%w: shock_flip.persistence_bars must be > 0", ErrInvalidConfig)
	}
	if s.PersistenceRatio <= 0 || s.PersistenceRatio > 1 {
		return fmt.Errorf("%w: shock_flip.persistence_ratio must be in (0, 1]", ErrInvalidConfig)
	}
	if s.Dynamic.Enabled && (s.Dynamic.Percentile <= 0 || s.Dynamic.Percentile >= 1) {
		return fmt.Errorf("%w: shock_flip.dynamic_thresholds.percentile must be in (0, 1)", ErrInvalidConfig)
	}
	if s.Location.DonchianWindow <= 0 {
		return fmt.Errorf("%w: shock_flip.location_filter.donchian_window must be > 0", ErrInvalidConfig)
	}

	if f := c.Filters.PriorFlowSign; f != nil && f.Enabled {
		if f.RequiredSign != 1 && f.RequiredSign != -1 {
			return fmt.Errorf("%w: filters.prior_flow_sign.required_sign must be 1 or -1", ErrInvalidConfig)
		}
	}
	if f := c.Filters.PriceFlowDiv; f != nil {
		if f.Mode != domain.DivergenceModeDeadZone && f.Mode != domain.DivergenceModeExtremeOnly {
			return fmt.Errorf("%w: filters.price_flow_div.mode %q", ErrInvalidConfig, f.Mode)
		}
	}
	if f := c.Filters.ATRPercentile; f != nil {
		if f.Low < 0 || f.High > 1 || f.Low > f.High {
			return fmt.Errorf("%w: filters.atr_percentile bounds", ErrInvalidConfig)
		}
	}

	if c.Management.TimeStopBars < 0 {
		return fmt.Errorf("%w: management.time_stop_bars must be >= 0", ErrInvalidConfig)
	}
	if ts := c.Management.TrailingStop; ts != nil && ts.Enabled {
		if ts.ArmThresholdR <= 0 || ts.GapR < 0 {
			return fmt.Errorf("%w: management.trailing_stop thresholds", ErrInvalidConfig)
		}
	}
	return nil
}

// RiskConfig maps the risk block onto the domain entity.
func (c *RunConfig) RiskConfig() domain.RiskConfig {
	return domain.RiskConfig{
		ATRWindow:    c.Risk.ATRWindow,
		CooldownBars: c.Risk.CooldownBars,
		Long:         domain.RiskSideConfig{TPMult: c.Risk.Long.TPMult, SLMult: c.Risk.Long.SLMult},
		Short:        domain.RiskSideConfig{TPMult: c.Risk.Short.TPMult, SLMult: c.Risk.Short.SLMult},
	}
}

// FeesConfig maps the fees block onto the domain entity.
func (c *RunConfig) FeesConfig() domain.FeesConfig {
	return domain.FeesConfig{TakerBp: c.Fees.TakerBp}
}

// ShockFlipConfig maps the shock_flip block onto the domain entity.
func (c *RunConfig) ShockFlipConfig() domain.ShockFlipConfig {
	s := c.ShockFlip
	return domain.ShockFlipConfig{
		Source:           s.Source,
		ZWindow:          s.ZWindow,
		ZBand:            s.ZBand,
		JumpBand:         s.JumpBand,
		PersistenceBars:  s.PersistenceBars,
		PersistenceRatio: s.PersistenceRatio,
		Dynamic:          domain.DynamicThresholds{Enabled: s.Dynamic.Enabled, Percentile: s.Dynamic.Percentile},
		Location:         domain.LocationFilter{DonchianWindow: s.Location.DonchianWindow, RequireExtreme: s.Location.RequireExtreme},
	}
}

// FiltersConfig maps enabled filter blocks onto the domain entity. Absent
// blocks stay nil, which disables the corresponding gate.
func (c *RunConfig) FiltersConfig() domain.FiltersConfig {
	out := domain.FiltersConfig{
		MinRelativeVolume: c.Filters.MinRelativeVolume,
		MinDivergence:     c.Filters.MinDivergence,
	}
	if f := c.Filters.PriorFlowSign; f != nil && f.Enabled {
		out.PriorFlowSign = &domain.PriorFlowSignFilter{RequiredSign: f.RequiredSign}
	}
	if f := c.Filters.PriceFlowDiv; f != nil {
		out.Divergence = &domain.DivergenceFilter{
			Mode:      f.Mode,
			Threshold: f.Threshold,
			Low:       f.DeadZoneLow,
			High:      f.DeadZoneHigh,
		}
	}
	if f := c.Filters.ATRPercentile; f != nil {
		out.ATRPercentile = &domain.ATRPercentileFilter{Low: f.Low, High: f.High}
	}
	return out
}

// ManagementConfig maps enabled overlay blocks onto the domain entity.
func (c *RunConfig) ManagementConfig() domain.ManagementConfig {
	var out domain.ManagementConfig
	if c.Management.MFEBreakevenR != nil {
		out.Breakeven = &domain.BreakevenConfig{ThresholdR: *c.Management.MFEBreakevenR}
	}
	if c.Management.TimeStopBars > 0 {
		out.TimeStop = &domain.TimeStopConfig{Bars: c.Management.TimeStopBars, MinR: c.Management.TimeStopR}
	}
	if ts := c.Management.TrailingStop; ts != nil && ts.Enabled {
		out.Trailing = &domain.TrailingConfig{ArmR: ts.ArmThresholdR, FloorR: ts.FloorR, GapR: ts.GapR}
	}
	return out
}

// FeatureConfig derives the feature engine windows from the run config.
func (c *RunConfig) FeatureConfig() features.Config {
	fc := features.DefaultConfig()
	fc.ZWindow = c.ShockFlip.ZWindow
	fc.ATRWindow = c.Risk.ATRWindow
	fc.DonchianWindow = c.ShockFlip.Location.DonchianWindow
	return fc
}
