// Package reporting renders backtest results as Markdown and CSV.
package reporting

import (
	"time"

	"shockflip-lab/internal/domain"
	"shockflip-lab/internal/performance"
)

// Report is the rendered-form view of one backtest run.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	Symbol      string
	Timeframe   string

	// Data Summary
	DataSummary DataSummary

	// Performance
	Stats *performance.Stats

	// Trades in chronological order
	Trades []domain.Trade
}

// DataSummary describes the input and signal surface of the run.
type DataSummary struct {
	BarCount       int
	DateRangeStart int64 // Unix ms
	DateRangeEnd   int64 // Unix ms
	LongSignals    int
	ShortSignals   int
	TotalTrades    int
}
