// Command report renders stored trades back out of PostgreSQL as a markdown
// performance report or a trade log CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"shockflip-lab/internal/domain"
	"shockflip-lab/internal/reporting"
	pgstore "shockflip-lab/internal/storage/postgres"
)

func main() {
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (required)")
	symbol := flag.String("symbol", "", "Symbol to report on (required)")
	timeframe := flag.String("timeframe", "1m", "Timeframe label shown in the report")
	start := flag.Int64("start", 0, "Entry time range start, Unix ms (0 = unbounded)")
	end := flag.Int64("end", 0, "Entry time range end, Unix ms (0 = unbounded)")
	format := flag.String("format", "md", "Output format: md or csv")
	out := flag.String("out", "", "Output path (default stdout)")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if *postgresDSN == "" {
		logger.Fatal().Msg("--postgres-dsn is required")
	}
	if *symbol == "" {
		logger.Fatal().Msg("--symbol is required")
	}
	if *format != "md" && *format != "csv" {
		logger.Fatal().Str("format", *format).Msg("format must be md or csv")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to postgres")
	}
	defer pool.Close()

	store := pgstore.NewTradeStore(pool)

	var records []*domain.Trade
	if *start != 0 || *end != 0 {
		if *end == 0 {
			*end = math.MaxInt64
		}
		records, err = store.GetByTimeRange(ctx, *symbol, *start, *end)
	} else {
		records, err = store.GetBySymbol(ctx, *symbol)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("load trades")
	}

	trades := make([]domain.Trade, len(records))
	for i, r := range records {
		trades[i] = *r
	}
	logger.Info().Int("trades", len(trades)).Msg("trades loaded")

	var rendered string
	switch *format {
	case "csv":
		rendered = reporting.RenderTradesCSV(trades)
	default:
		series := &domain.BarSeries{Symbol: *symbol, Timeframe: *timeframe}
		rendered = reporting.RenderMarkdown(reporting.Build(series, nil, trades))
	}

	if *out == "" {
		fmt.Print(rendered)
		return
	}
	if err := os.WriteFile(*out, []byte(rendered), 0o644); err != nil {
		logger.Fatal().Err(err).Msg("write output")
	}
	logger.Info().Str("path", *out).Msg("report written")
}
