package reporting

import (
	"fmt"
	"math"
	"strings"
	"time"

	"shockflip-lab/internal/domain"
)

// RenderMarkdown renders a report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Symbol: %s | Timeframe: %s\n\n", r.Symbol, r.Timeframe))

	// Data Summary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Bars | %d |\n", r.DataSummary.BarCount))
	sb.WriteString(fmt.Sprintf("| Date Range Start (ms) | %d |\n", r.DataSummary.DateRangeStart))
	sb.WriteString(fmt.Sprintf("| Date Range End (ms) | %d |\n", r.DataSummary.DateRangeEnd))
	sb.WriteString(fmt.Sprintf("| Long Signals | %d |\n", r.DataSummary.LongSignals))
	sb.WriteString(fmt.Sprintf("| Short Signals | %d |\n", r.DataSummary.ShortSignals))
	sb.WriteString(fmt.Sprintf("| Trades | %d |\n", r.DataSummary.TotalTrades))
	sb.WriteString("\n")

	// Performance
	sb.WriteString("## Performance\n\n")
	s := r.Stats
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Trades | %d |\n", s.Summary.N))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.4f |\n", s.Summary.WinRate))
	sb.WriteString(fmt.Sprintf("| Profit Factor | %s |\n", formatPF(s.Summary.PF)))
	sb.WriteString(fmt.Sprintf("| Total PnL | %.6f |\n", s.Summary.TotalPnL))
	sb.WriteString(fmt.Sprintf("| Mean PnL | %.6f |\n", s.PnLMean))
	sb.WriteString(fmt.Sprintf("| Median PnL | %.6f |\n", s.PnLMedian))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %.6f |\n", s.MaxDrawdown))
	sb.WriteString(fmt.Sprintf("| Max Consecutive Losses | %d |\n", s.MaxConsecutiveLosses))
	sb.WriteString(fmt.Sprintf("| Avg Holding (bars) | %.2f |\n", s.AvgHoldingBars))
	sb.WriteString("\n")

	// Result breakdown
	sb.WriteString("## Result Breakdown\n\n")
	if len(s.ResultCounts) > 0 {
		sb.WriteString("| Result | Count |\n")
		sb.WriteString("|--------|-------|\n")
		for _, result := range []string{domain.ResultTP, domain.ResultSL, domain.ResultBE, domain.ResultZombie} {
			if n, ok := s.ResultCounts[result]; ok {
				sb.WriteString(fmt.Sprintf("| %s | %d |\n", result, n))
			}
		}
	} else {
		sb.WriteString("No trades.\n")
	}
	sb.WriteString("\n")

	// Trade log
	sb.WriteString("## Trades\n\n")
	if len(r.Trades) > 0 {
		sb.WriteString("| Entry Ts | Exit Ts | Side | Entry | Exit | Result | PnL | MFE(R) | MAE(R) | Bars |\n")
		sb.WriteString("|----------|---------|------|-------|------|--------|-----|--------|--------|------|\n")
		for _, t := range r.Trades {
			sb.WriteString(fmt.Sprintf("| %d | %d | %d | %.6f | %.6f | %s | %.6f | %.3f | %.3f | %d |\n",
				t.EntryTs, t.ExitTs, t.Side,
				t.EntryPrice, t.ExitPrice, t.Result, t.PnL,
				t.MFER, t.MAER, t.HoldingPeriodBars))
		}
	} else {
		sb.WriteString("No trades.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// formatPF renders the profit factor, keeping the +Inf sentinel readable.
func formatPF(pf float64) string {
	if math.IsInf(pf, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.4f", pf)
}
