package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"shockflip-lab/internal/domain"
	"shockflip-lab/internal/marketdata"
	"shockflip-lab/internal/observability"
	"shockflip-lab/internal/storage"
)

// Collector aggregates a tick stream into fixed-timeframe bars and persists
// each bar when its bucket closes. It holds at most one in-progress bar.
type Collector struct {
	symbol      string
	timeframe   string
	timeframeMs int64
	store       storage.BarStore
	log         zerolog.Logger

	cur *domain.Bar
}

// NewCollector creates a collector for one symbol/timeframe.
func NewCollector(symbol, timeframe string, timeframeMs int64, store storage.BarStore, log zerolog.Logger) (*Collector, error) {
	if timeframeMs <= 0 {
		return nil, fmt.Errorf("timeframe_ms must be > 0, got %d", timeframeMs)
	}
	return &Collector{
		symbol:      symbol,
		timeframe:   timeframe,
		timeframeMs: timeframeMs,
		store:       store,
		log:         log,
	}, nil
}

// Run consumes ticks until the channel closes or the context is cancelled,
// flushing each completed bar to the store. The in-progress bar is flushed on
// shutdown so a capture session never loses its tail.
func (c *Collector) Run(ctx context.Context, ticks <-chan marketdata.Tick) error {
	for {
		select {
		case <-ctx.Done():
			if err := c.flush(context.WithoutCancel(ctx)); err != nil {
				return err
			}
			return ctx.Err()
		case tick, ok := <-ticks:
			if !ok {
				return c.flush(ctx)
			}
			if err := c.apply(ctx, tick); err != nil {
				return err
			}
		}
	}
}

// apply folds one tick into the current bar, flushing first when the tick
// opens a new bucket.
func (c *Collector) apply(ctx context.Context, tick marketdata.Tick) error {
	bucket := tick.TimestampMs - tick.TimestampMs%c.timeframeMs

	if c.cur != nil && c.cur.TimestampMs != bucket {
		if err := c.flush(ctx); err != nil {
			return err
		}
	}
	if c.cur == nil {
		c.cur = &domain.Bar{
			TimestampMs: bucket,
			Open:        tick.Price,
			High:        tick.Price,
			Low:         tick.Price,
		}
	}

	if tick.Price > c.cur.High {
		c.cur.High = tick.Price
	}
	if tick.Price < c.cur.Low {
		c.cur.Low = tick.Price
	}
	c.cur.Close = tick.Price
	c.cur.Volume += tick.Qty
	if tick.IsBuyerMaker {
		c.cur.SellQty += tick.Qty
	} else {
		c.cur.BuyQty += tick.Qty
	}
	return nil
}

// flush persists the in-progress bar, if any. A duplicate bar (already
// captured by an earlier session) is logged and skipped, not fatal.
func (c *Collector) flush(ctx context.Context) error {
	if c.cur == nil {
		return nil
	}
	bar := *c.cur
	c.cur = nil

	err := c.store.InsertBulk(ctx, c.symbol, c.timeframe, []domain.Bar{bar})
	if errors.Is(err, storage.ErrDuplicateKey) {
		c.log.Warn().Int64("ts", bar.TimestampMs).Msg("bar already stored, skipping")
		observability.RecordIngestionError("duplicate_bar")
		return nil
	}
	if err != nil {
		return fmt.Errorf("store bar at %d: %w", bar.TimestampMs, err)
	}

	observability.RecordBarsResampled(1)
	observability.RecordBarsStored(1)
	c.log.Debug().
		Int64("ts", bar.TimestampMs).
		Float64("close", bar.Close).
		Float64("volume", bar.Volume).
		Msg("bar stored")
	return nil
}
