// Command sweep runs a small detector parameter grid over one data set and
// prints a CSV of signal counts and summary statistics per combination.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"shockflip-lab/internal/config"
	"shockflip-lab/internal/domain"
	"shockflip-lab/internal/features"
	"shockflip-lab/internal/marketdata"
	"shockflip-lab/internal/performance"
	"shockflip-lab/internal/shockflip"
	"shockflip-lab/internal/simulation"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML run configuration (required)")
	zBands := flag.String("z-bands", "", "Comma-separated z_band values to sweep (default: config value)")
	jumpBands := flag.String("jump-bands", "", "Comma-separated jump_band values to sweep")
	persistenceBars := flag.String("persistence-bars", "", "Comma-separated persistence_bars values to sweep")
	out := flag.String("out", "", "Output CSV path (default stdout)")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if *configPath == "" {
		logger.Fatal().Msg("--config is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	series, err := loadSeries(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load market data")
	}
	logger.Info().Int("bars", len(series.Bars)).Msg("market data loaded")

	// Features depend only on the window config, which the sweep never
	// varies, so they are derived once.
	feats := features.Compute(series.Bars, cfg.FeatureConfig())

	base := cfg.ShockFlipConfig()
	zVals, err := floatAxis(*zBands, base.ZBand)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse --z-bands")
	}
	jumpVals, err := floatAxis(*jumpBands, base.JumpBand)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse --jump-bands")
	}
	persVals, err := intAxis(*persistenceBars, base.PersistenceBars)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse --persistence-bars")
	}

	simCfg := simulation.Config{
		Symbol:     cfg.Symbol,
		Risk:       cfg.RiskConfig(),
		Fees:       cfg.FeesConfig(),
		SlippageBp: cfg.SlippageBp,
		Filters:    cfg.FiltersConfig(),
		Management: cfg.ManagementConfig(),
	}

	var sb strings.Builder
	sb.WriteString("z_band,jump_band,persistence_bars,long_signals,short_signals,trades,win_rate,pf,total_pnl\n")

	for _, zb := range zVals {
		for _, jb := range jumpVals {
			for _, pb := range persVals {
				if err := ctx.Err(); err != nil {
					logger.Fatal().Err(err).Msg("sweep interrupted")
				}

				det := base
				det.ZBand = zb
				det.JumpBand = jb
				det.PersistenceBars = pb

				sigs, err := shockflip.Detect(feats, det)
				if err != nil {
					logger.Fatal().Err(err).Msg("signal detection")
				}

				trades, err := simulation.New(simCfg, nil).Run(ctx, series.Bars, feats, sigs)
				if err != nil {
					logger.Fatal().Err(err).Msg("simulation")
				}

				longs, shorts := 0, 0
				for _, s := range sigs.Signal {
					switch s {
					case domain.SideLong:
						longs++
					case domain.SideShort:
						shorts++
					}
				}

				summary := performance.Summarize(trades)
				sb.WriteString(fmt.Sprintf("%g,%g,%d,%d,%d,%d,%.4f,%.4f,%.8f\n",
					zb, jb, pb, longs, shorts, summary.N, summary.WinRate, summary.PF, summary.TotalPnL))

				logger.Info().
					Float64("z_band", zb).
					Float64("jump_band", jb).
					Int("persistence_bars", pb).
					Int("trades", summary.N).
					Float64("total_pnl", summary.TotalPnL).
					Msg("combination done")
			}
		}
	}

	if *out == "" {
		fmt.Print(sb.String())
		return
	}
	if err := os.WriteFile(*out, []byte(sb.String()), 0o644); err != nil {
		logger.Fatal().Err(err).Msg("write output")
	}
	logger.Info().Str("path", *out).Msg("sweep results written")
}

// loadSeries resolves the run's bar input: a bar CSV directly, or a tick CSV
// resampled onto the configured timeframe.
func loadSeries(cfg *config.RunConfig) (*domain.BarSeries, error) {
	if cfg.Data.BarsCSV != "" {
		return marketdata.LoadBarsCSV(cfg.Data.BarsCSV, cfg.Symbol, cfg.Timeframe)
	}

	ticks, err := marketdata.LoadTicksCSV(cfg.Data.TicksCSV)
	if err != nil {
		return nil, err
	}
	return &domain.BarSeries{
		Symbol:    cfg.Symbol,
		Timeframe: cfg.Timeframe,
		Bars:      marketdata.Resample(ticks, cfg.Data.TimeframeMs),
	}, nil
}

// floatAxis parses one comma-separated sweep axis, falling back to the single
// configured value when the flag is empty.
func floatAxis(raw string, fallback float64) ([]float64, error) {
	if raw == "" {
		return []float64{fallback}, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func intAxis(raw string, fallback int) ([]int, error) {
	if raw == "" {
		return []int{fallback}, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
