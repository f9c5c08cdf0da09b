package reporting

import (
	"fmt"
	"strings"

	"shockflip-lab/internal/domain"
)

// RenderTradesCSV renders the trade log as a CSV string, one row per closed
// trade.
func RenderTradesCSV(trades []domain.Trade) string {
	var sb strings.Builder

	// Header
	sb.WriteString("symbol,entry_ts,exit_ts,entry_idx,exit_idx,side,entry_price,exit_price,result,pnl,atr,")
	sb.WriteString("mfe_price,mae_price,mfe_r,mae_r,time_to_mfe_bars,holding_period_bars\n")

	// Rows
	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%s,%d,%d,%d,%d,%d,%.8f,%.8f,%s,%.8f,%.8f,%.8f,%.8f,%.6f,%.6f,%d,%d\n",
			t.Symbol,
			t.EntryTs,
			t.ExitTs,
			t.EntryIdx,
			t.ExitIdx,
			t.Side,
			t.EntryPrice,
			t.ExitPrice,
			t.Result,
			t.PnL,
			t.ATR,
			t.MFEPrice,
			t.MAEPrice,
			t.MFER,
			t.MAER,
			t.TimeToMFEBars,
			t.HoldingPeriodBars,
		))
	}

	return sb.String()
}
