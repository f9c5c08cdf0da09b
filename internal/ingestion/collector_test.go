package ingestion

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"shockflip-lab/internal/marketdata"
	"shockflip-lab/internal/storage/memory"
)

func TestCollector_AggregatesTicksIntoBars(t *testing.T) {
	store := memory.NewBarStore()
	collector, err := NewCollector("BTCUSDT", "1m", 60_000, store, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewCollector failed: %v", err)
	}

	ticks := make(chan marketdata.Tick, 8)
	ticks <- marketdata.Tick{TimestampMs: 60_000, Price: 100, Qty: 2}
	ticks <- marketdata.Tick{TimestampMs: 90_000, Price: 102, Qty: 1, IsBuyerMaker: true}
	ticks <- marketdata.Tick{TimestampMs: 119_999, Price: 99, Qty: 3}
	ticks <- marketdata.Tick{TimestampMs: 120_000, Price: 101, Qty: 4}
	close(ticks)

	if err := collector.Run(context.Background(), ticks); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	bars, err := store.GetBySymbol(context.Background(), "BTCUSDT", "1m")
	if err != nil {
		t.Fatalf("GetBySymbol failed: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("Expected 2 bars, got %d", len(bars))
	}

	first := bars[0]
	if first.TimestampMs != 60_000 {
		t.Errorf("first bar ts = %d, want 60000", first.TimestampMs)
	}
	if first.Open != 100 || first.High != 102 || first.Low != 99 || first.Close != 99 {
		t.Errorf("first bar OHLC = %v/%v/%v/%v, want 100/102/99/99",
			first.Open, first.High, first.Low, first.Close)
	}
	if first.Volume != 6 {
		t.Errorf("first bar volume = %v, want 6", first.Volume)
	}
	// Buyer-maker ticks count as seller-aggressed volume.
	if first.BuyQty != 5 || first.SellQty != 1 {
		t.Errorf("first bar buy/sell = %v/%v, want 5/1", first.BuyQty, first.SellQty)
	}

	// The in-progress second bar is flushed on channel close.
	if bars[1].TimestampMs != 120_000 || bars[1].Volume != 4 {
		t.Errorf("second bar = ts %d volume %v, want ts 120000 volume 4",
			bars[1].TimestampMs, bars[1].Volume)
	}
}

func TestCollector_DuplicateBarIsNotFatal(t *testing.T) {
	store := memory.NewBarStore()
	collector, err := NewCollector("BTCUSDT", "1m", 60_000, store, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewCollector failed: %v", err)
	}

	// First session captures the bar.
	ticks := make(chan marketdata.Tick, 1)
	ticks <- marketdata.Tick{TimestampMs: 60_000, Price: 100, Qty: 1}
	close(ticks)
	if err := collector.Run(context.Background(), ticks); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}

	// Second session overlaps the same bucket; the duplicate is skipped.
	collector2, _ := NewCollector("BTCUSDT", "1m", 60_000, store, zerolog.Nop())
	ticks2 := make(chan marketdata.Tick, 1)
	ticks2 <- marketdata.Tick{TimestampMs: 61_000, Price: 101, Qty: 1}
	close(ticks2)
	if err := collector2.Run(context.Background(), ticks2); err != nil {
		t.Fatalf("second Run failed: %v", err)
	}

	bars, _ := store.GetBySymbol(context.Background(), "BTCUSDT", "1m")
	if len(bars) != 1 {
		t.Errorf("Expected 1 bar, got %d", len(bars))
	}
}

func TestCollector_RejectsBadTimeframe(t *testing.T) {
	if _, err := NewCollector("BTCUSDT", "1m", 0, memory.NewBarStore(), zerolog.Nop()); err == nil {
		t.Error("Expected error for zero timeframe")
	}
}

func TestParseAggTrade(t *testing.T) {
	msg := []byte(`{"e":"aggTrade","E":1700000000100,"s":"BTCUSDT","a":12345,"p":"42000.50","q":"0.250","T":1700000000050,"m":true}`)

	tick, err := parseAggTrade(msg)
	if err != nil {
		t.Fatalf("parseAggTrade failed: %v", err)
	}
	if tick.TimestampMs != 1700000000050 {
		t.Errorf("TimestampMs = %d, want 1700000000050", tick.TimestampMs)
	}
	if tick.Price != 42000.50 {
		t.Errorf("Price = %v, want 42000.50", tick.Price)
	}
	if tick.Qty != 0.25 {
		t.Errorf("Qty = %v, want 0.25", tick.Qty)
	}
	if !tick.IsBuyerMaker {
		t.Error("IsBuyerMaker = false, want true")
	}
}

func TestParseAggTrade_Rejects(t *testing.T) {
	cases := []struct {
		name string
		msg  string
	}{
		{"wrong event type", `{"e":"trade","p":"1","q":"1","T":1}`},
		{"bad price", `{"e":"aggTrade","p":"abc","q":"1","T":1}`},
		{"not json", `ping`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseAggTrade([]byte(tc.msg)); err == nil {
				t.Error("Expected parse error")
			}
		})
	}
}
