package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"shockflip-lab/internal/domain"
	"shockflip-lab/internal/storage"
	pgstore "shockflip-lab/internal/storage/postgres"
)

func sampleTrade(id string, entryTs int64) *domain.Trade {
	return &domain.Trade{
		TradeID:           id,
		Symbol:            "BTCUSDT",
		Side:              domain.SideLong,
		EntryTs:           entryTs,
		EntryIdx:          100,
		EntryPrice:        100.0,
		ATR:               2.0,
		SignalZ:           3.1,
		ExitTs:            entryTs + 60_000,
		ExitIdx:           101,
		ExitPrice:         104.0,
		Result:            domain.ResultTP,
		PnL:               3.94,
		MFEPrice:          4.2,
		MAEPrice:          -1.1,
		MFER:              2.1,
		MAER:              -0.55,
		TimeToMFEBars:     1,
		HoldingPeriodBars: 1,
	}
}

func TestTradeStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewTradeStore(pool)
	ctx := context.Background()

	trade := sampleTrade("trade1", 1000)
	require.NoError(t, store.Insert(ctx, trade))

	got, err := store.GetByID(ctx, "trade1")
	require.NoError(t, err)
	require.Equal(t, trade.Symbol, got.Symbol)
	require.Equal(t, trade.Result, got.Result)
	require.InDelta(t, trade.PnL, got.PnL, 1e-12)
	require.Equal(t, trade.HoldingPeriodBars, got.HoldingPeriodBars)
}

func TestTradeStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewTradeStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, sampleTrade("trade1", 1000)))
	require.ErrorIs(t, store.Insert(ctx, sampleTrade("trade1", 2000)), storage.ErrDuplicateKey)
}

func TestTradeStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewTradeStore(pool)

	_, err := store.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTradeStore_InsertBulkAtomicity(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewTradeStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, sampleTrade("t1", 1000)))

	batch := []*domain.Trade{
		sampleTrade("t2", 2000),
		sampleTrade("t1", 3000), // duplicate
	}
	require.ErrorIs(t, store.InsertBulk(ctx, batch), storage.ErrDuplicateKey)

	// Verify all-or-nothing: t2 must not have been committed.
	all, err := store.GetBySymbol(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestTradeStore_GetBySymbolOrdered(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewTradeStore(pool)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.Trade{
		sampleTrade("t3", 3000),
		sampleTrade("t1", 1000),
		sampleTrade("t2", 2000),
	}))

	got, err := store.GetBySymbol(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "t1", got[0].TradeID)
	require.Equal(t, "t3", got[2].TradeID)
}

func TestTradeStore_GetByTimeRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewTradeStore(pool)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.Trade{
		sampleTrade("t1", 1000),
		sampleTrade("t2", 2000),
		sampleTrade("t3", 3000),
	}))

	got, err := store.GetByTimeRange(ctx, "BTCUSDT", 1500, 3000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "t2", got[0].TradeID)
}
