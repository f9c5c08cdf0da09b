package domain

// Trade is one finalized simulated trade. Created when a signal passes all
// entry gates while no position is open; immutable once the simulator closes
// it. Corresponds to one row of the trade log CSV and the trade_records table.
type Trade struct {
	TradeID string // deterministic hash, see idhash
	Symbol  string

	// Entry
	EntryTs    int64 // Unix ms
	EntryIdx   int   // bar index of the entry bar
	Side       int   // SideLong or SideShort
	EntryPrice float64
	ATR        float64 // entry-bar ATR used to size the barriers
	SignalZ    float64 // detector z-score at entry

	// Exit
	ExitTs    int64
	ExitIdx   int
	ExitPrice float64
	Result    string  // TP | SL | BE | ZOMBIE
	PnL       float64 // per unit, net of fees and slippage

	// Path statistics
	MFEPrice          float64 // max favorable excursion, price units
	MAEPrice          float64 // max adverse excursion, price units (<= 0)
	MFER              float64 // MFE in R-multiples
	MAER              float64 // MAE in R-multiples
	TimeToMFEBars     int     // bars from entry to the last MFE improvement
	HoldingPeriodBars int     // exit_idx - entry_idx
}

// Result labels.
const (
	ResultTP     = "TP"     // take-profit barrier reached
	ResultSL     = "SL"     // stop (initial or ratcheted) reached
	ResultBE     = "BE"     // stopped at entry after breakeven lock
	ResultZombie = "ZOMBIE" // time-stop forced exit for stalling
)

// Summary is the reduced view of a trade list.
type Summary struct {
	N        int     `json:"n"`
	WinRate  float64 `json:"win_rate"`
	PF       float64 `json:"pf"`
	TotalPnL float64 `json:"total_pnl"`
}
