package idhash

import (
	"testing"
)

func TestComputeTradeID(t *testing.T) {
	tests := []struct {
		name     string
		symbol   string
		side     int
		entryIdx int
		entryTs  int64
	}{
		{
			name:     "long trade",
			symbol:   "BTCUSDT",
			side:     1,
			entryIdx: 4321,
			entryTs:  1704067234567,
		},
		{
			name:     "short trade",
			symbol:   "ETHUSDT",
			side:     -1,
			entryIdx: 99,
			entryTs:  1704067300000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTradeID(tt.symbol, tt.side, tt.entryIdx, tt.entryTs)

			if got == "" {
				t.Fatal("ComputeTradeID() returned empty ID")
			}

			// Verify determinism: same inputs should produce same output
			got2 := ComputeTradeID(tt.symbol, tt.side, tt.entryIdx, tt.entryTs)
			if got != got2 {
				t.Errorf("ComputeTradeID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeTradeID_DifferentInputs(t *testing.T) {
	base := ComputeTradeID("BTCUSDT", 1, 100, 1000)

	// Different symbol should produce different hash
	if base == ComputeTradeID("ETHUSDT", 1, 100, 1000) {
		t.Error("Different symbol should produce different hash")
	}

	// Different side should produce different hash
	if base == ComputeTradeID("BTCUSDT", -1, 100, 1000) {
		t.Error("Different side should produce different hash")
	}

	// Different entry index should produce different hash
	if base == ComputeTradeID("BTCUSDT", 1, 101, 1000) {
		t.Error("Different entry index should produce different hash")
	}

	// Different entry time should produce different hash
	if base == ComputeTradeID("BTCUSDT", 1, 100, 2000) {
		t.Error("Different entry time should produce different hash")
	}
}
