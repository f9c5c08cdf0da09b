package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(symbol|side|entry_idx|entry_ts), base58-encoded.
// Identical inputs always produce the identical ID, so re-running a
// backtest collides with its stored trades instead of duplicating them.
func ComputeTradeID(
	symbol string,
	side int,
	entryIdx int,
	entryTs int64,
) string {
	data := fmt.Sprintf("%s|%d|%d|%d",
		symbol,
		side,
		entryIdx,
		entryTs,
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}
