// Command backtest runs one full ShockFlip backtest: load bars, derive
// features, detect signals, simulate trades and render the report artifacts.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"shockflip-lab/internal/config"
	"shockflip-lab/internal/domain"
	"shockflip-lab/internal/features"
	"shockflip-lab/internal/marketdata"
	"shockflip-lab/internal/observability"
	"shockflip-lab/internal/reporting"
	"shockflip-lab/internal/shockflip"
	"shockflip-lab/internal/simulation"
	chstore "shockflip-lab/internal/storage/clickhouse"
	"shockflip-lab/internal/storage/migrations"
	pgstore "shockflip-lab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML run configuration (required)")
	tradesCSV := flag.String("trades-csv", "", "Write the trade log CSV to this path")
	reportMD := flag.String("report-md", "", "Write the markdown report to this path")
	outputJSON := flag.Bool("json", false, "Print the summary as JSON instead of the report")
	persist := flag.Bool("persist", false, "Persist trades to PostgreSQL (storage.postgres_dsn)")
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
		sig := <-sigCh
		logger.Info().Stringer("signal", sig).Msg("shutting down")
		cancel()
	}()

	started := time.Now()

	series, err := loadSeries(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load market data")
	}
	logger.Info().
		Str("symbol", series.Symbol).
		Str("timeframe", series.Timeframe).
		Int("bars", len(series.Bars)).
		Msg("market data loaded")

	feats := features.Compute(series.Bars, cfg.FeatureConfig())

	sigs, err := shockflip.Detect(feats, cfg.ShockFlipConfig())
	if err != nil {
		logger.Fatal().Err(err).Msg("signal detection")
	}
	for _, e := range sigs.Events() {
		observability.RecordSignal(e.Side)
	}

	sim := simulation.New(simulation.Config{
		Symbol:     cfg.Symbol,
		Risk:       cfg.RiskConfig(),
		Fees:       cfg.FeesConfig(),
		SlippageBp: cfg.SlippageBp,
		Filters:    cfg.FiltersConfig(),
		Management: cfg.ManagementConfig(),
	}, observability.MultiSink{
		simulation.LogSink{Logger: logger},
		observability.SimSink{},
	})

	trades, err := sim.Run(ctx, series.Bars, feats, sigs)
	if err != nil {
		observability.RecordRun("error", time.Since(started).Seconds())
		logger.Fatal().Err(err).Msg("simulation")
	}
	observability.RecordRun("ok", time.Since(started).Seconds())

	report := reporting.Build(series, sigs, trades)

	if *tradesCSV != "" {
		if err := os.WriteFile(*tradesCSV, []byte(reporting.RenderTradesCSV(report.Trades)), 0o644); err != nil {
			logger.Fatal().Err(err).Msg("write trade log")
		}
		logger.Info().Str("path", *tradesCSV).Msg("trade log written")
	}
	if *reportMD != "" {
		if err := os.WriteFile(*reportMD, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
			logger.Fatal().Err(err).Msg("write report")
		}
		logger.Info().Str("path", *reportMD).Msg("report written")
	}

	if *persist {
		if err := persistTrades(ctx, cfg, trades, logger); err != nil {
			logger.Fatal().Err(err).Msg("persist trades")
		}
	}

	if *outputJSON {
		out, _ := json.MarshalIndent(report.Stats, "", "  ")
		fmt.Println(string(out))
		return
	}
	fmt.Print(reporting.RenderMarkdown(report))
}

// loadSeries resolves the run's bar input: a bar CSV directly, a tick CSV
// resampled onto the configured timeframe, or previously captured bars from
// ClickHouse.
func loadSeries(ctx context.Context, cfg *config.RunConfig) (*domain.BarSeries, error) {
	series := &domain.BarSeries{Symbol: cfg.Symbol, Timeframe: cfg.Timeframe}

	switch {
	case cfg.Data.BarsCSV != "":
		return marketdata.LoadBarsCSV(cfg.Data.BarsCSV, cfg.Symbol, cfg.Timeframe)

	case cfg.Data.TicksCSV != "":
		ticks, err := marketdata.LoadTicksCSV(cfg.Data.TicksCSV)
		if err != nil {
			return nil, err
		}
		series.Bars = marketdata.Resample(ticks, cfg.Data.TimeframeMs)
		return series, nil

	default:
		conn, err := chstore.NewConn(ctx, cfg.Storage.ClickHouseDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		defer conn.Close()

		series.Bars, err = chstore.NewBarStore(conn).GetBySymbol(ctx, cfg.Symbol, cfg.Timeframe)
		if err != nil {
			return nil, fmt.Errorf("load bars: %w", err)
		}
		return series, nil
	}
}

// persistTrades writes the finalized trades to the trade_records table,
// running migrations first so a fresh database works out of the box.
func persistTrades(ctx context.Context, cfg *config.RunConfig, trades []domain.Trade, logger zerolog.Logger) error {
	if cfg.Storage.PostgresDSN == "" {
		return fmt.Errorf("storage.postgres_dsn is required with --persist")
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	records := make([]*domain.Trade, len(trades))
	for i := range trades {
		records[i] = &trades[i]
	}
	if err := pgstore.NewTradeStore(pool).InsertBulk(ctx, records); err != nil {
		return err
	}

	logger.Info().Int("trades", len(records)).Msg("trades persisted")
	return nil
}
