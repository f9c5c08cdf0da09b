package storage

import (
	"context"

	"shockflip-lab/internal/domain"
)

// BarStore provides access to bar timeseries storage, keyed by symbol and
// timeframe.
type BarStore interface {
	// InsertBulk adds multiple bars. Fails entire batch on duplicate
	// (symbol, timeframe, timestamp_ms).
	InsertBulk(ctx context.Context, symbol, timeframe string, bars []domain.Bar) error

	// GetBySymbol retrieves all bars for a symbol/timeframe, ordered by
	// timestamp ASC.
	GetBySymbol(ctx context.Context, symbol, timeframe string) ([]domain.Bar, error)

	// GetByTimeRange retrieves bars within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, symbol, timeframe string, start, end int64) ([]domain.Bar, error)
}

// TradeStore provides access to trade storage.
type TradeStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.Trade) error

	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.Trade) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.Trade, error)

	// GetBySymbol retrieves all trades for a symbol, ordered by entry_ts ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.Trade, error)

	// GetByTimeRange retrieves trades for a symbol entered within
	// [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.Trade, error)
}
