package reporting

import (
	"sort"
	"time"

	"shockflip-lab/internal/domain"
	"shockflip-lab/internal/performance"
	"shockflip-lab/internal/shockflip"
)

// Build assembles a report from a run's inputs and outputs. Trades are
// re-sorted chronologically so rendering order is deterministic.
func Build(series *domain.BarSeries, sigs *shockflip.Signals, trades []domain.Trade) *Report {
	sorted := make([]domain.Trade, len(trades))
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].EntryTs != sorted[j].EntryTs {
			return sorted[i].EntryTs < sorted[j].EntryTs
		}
		return sorted[i].TradeID < sorted[j].TradeID
	})

	summary := DataSummary{
		BarCount:    len(series.Bars),
		TotalTrades: len(sorted),
	}
	if len(series.Bars) > 0 {
		summary.DateRangeStart = series.Bars[0].TimestampMs
		summary.DateRangeEnd = series.Bars[len(series.Bars)-1].TimestampMs
	}
	if sigs != nil {
		for _, s := range sigs.Signal {
			switch s {
			case domain.SideLong:
				summary.LongSignals++
			case domain.SideShort:
				summary.ShortSignals++
			}
		}
	}

	return &Report{
		GeneratedAt: time.Now().UTC(),
		Symbol:      series.Symbol,
		Timeframe:   series.Timeframe,
		DataSummary: summary,
		Stats:       performance.Compute(sorted),
		Trades:      sorted,
	}
}
