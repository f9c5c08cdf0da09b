// Command ingest stores bars for one symbol in ClickHouse, either by
// capturing the live Binance aggTrade stream until interrupted or by
// backfilling from a tick CSV.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"shockflip-lab/internal/ingestion"
	"shockflip-lab/internal/marketdata"
	"shockflip-lab/internal/observability"
	"shockflip-lab/internal/storage"
	chstore "shockflip-lab/internal/storage/clickhouse"
	"shockflip-lab/internal/storage/migrations"
)

func main() {
	symbol := flag.String("symbol", "", "Symbol to capture, e.g. BTCUSDT (required)")
	timeframe := flag.String("timeframe", "1m", "Timeframe label stored with each bar")
	timeframeMs := flag.Int64("timeframe-ms", 60_000, "Bar bucket width in milliseconds")
	wsURL := flag.String("ws-url", "wss://stream.binance.com:9443", "Exchange WebSocket endpoint")
	ticksCSV := flag.String("ticks-csv", "", "Backfill from this tick CSV instead of the live stream")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (required)")
	metricsAddr := flag.String("metrics-addr", ":9100", "Prometheus metrics listen address (empty to disable)")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if *symbol == "" {
		logger.Fatal().Msg("--symbol is required")
	}
	if *clickhouseDSN == "" {
		logger.Fatal().Msg("--clickhouse-dsn is required")
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

	conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("clickhouse migrations")
	}
	defer conn.Close()
	barStore := chstore.NewBarStore(conn)

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		srv := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server")
			}
		}()
		defer srv.Close()
		logger.Info().Str("addr", *metricsAddr).Msg("metrics server started")
	}

	if *ticksCSV != "" {
		if err := backfill(ctx, *ticksCSV, *symbol, *timeframe, *timeframeMs, barStore, logger); err != nil {
			logger.Fatal().Err(err).Msg("backfill")
		}
		return
	}

	stream, err := ingestion.NewTradeStream(ctx, *wsURL, *symbol, nil, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect trade stream")
	}

	collector, err := ingestion.NewCollector(*symbol, *timeframe, *timeframeMs, barStore, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("create collector")
	}

	// Close the stream on cancellation so the collector drains and flushes.
	go func() {
		<-ctx.Done()
		stream.Close()
	}()

	logger.Info().
		Str("symbol", *symbol).
		Str("timeframe", *timeframe).
		Msg("capture started")

	if err := collector.Run(ctx, stream.Ticks()); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("capture")
	}
	logger.Info().Msg("capture stopped")
}

// backfill resamples a tick CSV into bars and stores them in one batch.
func backfill(ctx context.Context, path, symbol, timeframe string, timeframeMs int64, store storage.BarStore, logger zerolog.Logger) error {
	ticks, err := marketdata.LoadTicksCSV(path)
	if err != nil {
		return err
	}

	bars := marketdata.Resample(ticks, timeframeMs)
	if len(bars) == 0 {
		return errors.New("no bars produced from tick input")
	}
	if err := store.InsertBulk(ctx, symbol, timeframe, bars); err != nil {
		return err
	}

	observability.RecordBarsResampled(len(bars))
	observability.RecordBarsStored(len(bars))
	logger.Info().
		Int("ticks", len(ticks)).
		Int("bars", len(bars)).
		Msg("backfill complete")
	return nil
}
