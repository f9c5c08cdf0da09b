package reporting

import (
	"strings"
	"testing"

	"shockflip-lab/internal/domain"
	"shockflip-lab/internal/shockflip"
)

func testSeries() *domain.BarSeries {
	return &domain.BarSeries{
		Symbol:    "BTCUSDT",
		Timeframe: "1m",
		Bars: []domain.Bar{
			{TimestampMs: 1000},
			{TimestampMs: 2000},
			{TimestampMs: 3000},
		},
	}
}

func testTrades() []domain.Trade {
	return []domain.Trade{
		{
			TradeID: "b", Symbol: "BTCUSDT", EntryTs: 2000, ExitTs: 3000,
			Side: domain.SideShort, EntryPrice: 101, ExitPrice: 103,
			Result: domain.ResultSL, PnL: -2.1, HoldingPeriodBars: 1,
		},
		{
			TradeID: "a", Symbol: "BTCUSDT", EntryTs: 1000, ExitTs: 2000,
			Side: domain.SideLong, EntryPrice: 100, ExitPrice: 104,
			Result: domain.ResultTP, PnL: 3.9, HoldingPeriodBars: 1,
		},
	}
}

func TestBuild_SummaryAndOrdering(t *testing.T) {
	sigs := &shockflip.Signals{Signal: []int{1, -1, 0}}
	report := Build(testSeries(), sigs, testTrades())

	if report.DataSummary.BarCount != 3 {
		t.Errorf("BarCount = %d, want 3", report.DataSummary.BarCount)
	}
	if report.DataSummary.DateRangeStart != 1000 || report.DataSummary.DateRangeEnd != 3000 {
		t.Errorf("date range = [%d, %d], want [1000, 3000]",
			report.DataSummary.DateRangeStart, report.DataSummary.DateRangeEnd)
	}
	if report.DataSummary.LongSignals != 1 || report.DataSummary.ShortSignals != 1 {
		t.Errorf("signals = %d long / %d short, want 1/1",
			report.DataSummary.LongSignals, report.DataSummary.ShortSignals)
	}

	// Trades sorted chronologically regardless of input order.
	if report.Trades[0].TradeID != "a" {
		t.Errorf("first trade = %s, want a", report.Trades[0].TradeID)
	}
	if report.Stats.Summary.N != 2 {
		t.Errorf("stats N = %d, want 2", report.Stats.Summary.N)
	}
}

func TestRenderMarkdown_Sections(t *testing.T) {
	report := Build(testSeries(), nil, testTrades())
	md := RenderMarkdown(report)

	for _, want := range []string{
		"# Backtest Report",
		"## Data Summary",
		"## Performance",
		"## Result Breakdown",
		"## Trades",
		"BTCUSDT",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestRenderMarkdown_EmptyRun(t *testing.T) {
	report := Build(testSeries(), nil, nil)
	md := RenderMarkdown(report)

	if !strings.Contains(md, "No trades.") {
		t.Error("markdown should note the empty trade list")
	}
}

func TestRenderTradesCSV(t *testing.T) {
	csv := RenderTradesCSV(testTrades())

	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "symbol,entry_ts,exit_ts,entry_idx,exit_idx,side,") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "TP") && !strings.Contains(lines[2], "TP") {
		t.Error("csv missing TP trade")
	}
}
