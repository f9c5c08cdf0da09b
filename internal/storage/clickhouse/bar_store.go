package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"shockflip-lab/internal/domain"
	"shockflip-lab/internal/storage"
)

// BarStore implements storage.BarStore using ClickHouse.
type BarStore struct {
	conn *Conn
}

// NewBarStore creates a new BarStore.
func NewBarStore(conn *Conn) *BarStore {
	return &BarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// InsertBulk adds multiple bars. Fails entire batch on duplicate
// (symbol, timeframe, timestamp_ms). ClickHouse MergeTree does not enforce
// uniqueness at insert time, so duplicates are detected with explicit checks.
func (s *BarStore) InsertBulk(ctx context.Context, symbol, timeframe string, bars []domain.Bar) error {
	if symbol == "" || timeframe == "" {
		return storage.ErrInvalidInput
	}
	if len(bars) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[int64]struct{}, len(bars))
	for _, b := range bars {
		if _, exists := seen[b.TimestampMs]; exists {
			return storage.ErrDuplicateKey
		}
		seen[b.TimestampMs] = struct{}{}
	}

	// Check for duplicates against existing rows
	minTs, maxTs := bars[0].TimestampMs, bars[0].TimestampMs
	for _, b := range bars[1:] {
		if b.TimestampMs < minTs {
			minTs = b.TimestampMs
		}
		if b.TimestampMs > maxTs {
			maxTs = b.TimestampMs
		}
	}
	existing, err := s.GetByTimeRange(ctx, symbol, timeframe, minTs, maxTs)
	if err != nil {
		return fmt.Errorf("check existing bars: %w", err)
	}
	for _, b := range existing {
		if _, clash := seen[b.TimestampMs]; clash {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO bars (
			symbol, timeframe, timestamp_ms,
			open, high, low, close,
			volume, buy_qty, sell_qty
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		err = batch.Append(
			symbol, timeframe, uint64(b.TimestampMs),
			b.Open, b.High, b.Low, b.Close,
			b.Volume, b.BuyQty, b.SellQty,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetBySymbol retrieves all bars for a symbol/timeframe, ordered by timestamp ASC.
func (s *BarStore) GetBySymbol(ctx context.Context, symbol, timeframe string) ([]domain.Bar, error) {
	query := `
		SELECT timestamp_ms, open, high, low, close, volume, buy_qty, sell_qty
		FROM bars
		WHERE symbol = ? AND timeframe = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, timeframe)
	if err != nil {
		return nil, fmt.Errorf("query bars by symbol: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// GetByTimeRange retrieves bars within [start, end] (inclusive).
func (s *BarStore) GetByTimeRange(ctx context.Context, symbol, timeframe string, start, end int64) ([]domain.Bar, error) {
	query := `
		SELECT timestamp_ms, open, high, low, close, volume, buy_qty, sell_qty
		FROM bars
		WHERE symbol = ? AND timeframe = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, timeframe, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query bars by time range: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// scanBars scans multiple rows.
func scanBars(rows driver.Rows) ([]domain.Bar, error) {
	var bars []domain.Bar

	for rows.Next() {
		var b domain.Bar
		var timestampMs uint64

		err := rows.Scan(
			&timestampMs, &b.Open, &b.High, &b.Low, &b.Close,
			&b.Volume, &b.BuyQty, &b.SellQty,
		)
		if err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}

		b.TimestampMs = int64(timestampMs)
		bars = append(bars, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}
	return bars, nil
}
