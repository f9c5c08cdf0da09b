package memory

import (
	"context"
	"errors"
	"testing"

	"shockflip-lab/internal/domain"
	"shockflip-lab/internal/storage"
)

func TestBarStore_InsertBulkAndGet(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	bars := []domain.Bar{
		{TimestampMs: 2000, Close: 101},
		{TimestampMs: 1000, Close: 100},
	}
	if err := store.InsertBulk(ctx, "BTCUSDT", "1m", bars); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetBySymbol(ctx, "BTCUSDT", "1m")
	if err != nil {
		t.Fatalf("GetBySymbol failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 bars, got %d", len(got))
	}
	if got[0].TimestampMs != 1000 {
		t.Errorf("Bars not ordered by timestamp: first ts %d", got[0].TimestampMs)
	}
}

func TestBarStore_DuplicateTimestamp(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, "BTCUSDT", "1m", []domain.Bar{{TimestampMs: 1000}}); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.InsertBulk(ctx, "BTCUSDT", "1m", []domain.Bar{{TimestampMs: 1000}})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// Same timestamp under a different timeframe is a distinct key.
	if err := store.InsertBulk(ctx, "BTCUSDT", "5m", []domain.Bar{{TimestampMs: 1000}}); err != nil {
		t.Errorf("Insert under different timeframe failed: %v", err)
	}
}

func TestBarStore_IntraBatchDuplicate(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	bars := []domain.Bar{{TimestampMs: 1000}, {TimestampMs: 1000}}
	err := store.InsertBulk(ctx, "BTCUSDT", "1m", bars)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	got, _ := store.GetBySymbol(ctx, "BTCUSDT", "1m")
	if len(got) != 0 {
		t.Errorf("Expected no partial insert, got %d bars", len(got))
	}
}

func TestBarStore_GetByTimeRange(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	bars := []domain.Bar{
		{TimestampMs: 1000},
		{TimestampMs: 2000},
		{TimestampMs: 3000},
	}
	if err := store.InsertBulk(ctx, "BTCUSDT", "1m", bars); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByTimeRange(ctx, "BTCUSDT", "1m", 1500, 3000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected 2 bars in range, got %d", len(got))
	}
}

func TestBarStore_InvalidInput(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, "", "1m", []domain.Bar{{TimestampMs: 1}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty symbol, got %v", err)
	}
}
