package simulation

import (
	"github.com/rs/zerolog"

	"shockflip-lab/internal/domain"
)

// Event kinds emitted by the simulator.
const (
	EventEntryRejected = "entry_rejected"
	EventEntryOpened   = "entry_opened"
	EventTradeClosed   = "trade_closed"
)

// Event is one structured simulation occurrence. The simulator emits events
// unconditionally; rendering (or discarding) them is the sink's decision.
// Events are advisory and never alter simulation outcomes.
type Event struct {
	Kind     string
	BarIndex int
	Side     int
	Reason   string        // rejection reason: filter name, "no_atr", ...
	Trade    *domain.Trade // set for trade_closed
}

// Sink receives simulation events.
type Sink interface {
	Emit(Event)
}

// NopSink discards all events.
type NopSink struct{}

// Emit implements Sink.
func (NopSink) Emit(Event) {}

// LogSink renders simulation events as structured debug logs.
type LogSink struct {
	Logger zerolog.Logger
}

// Emit implements Sink.
func (s LogSink) Emit(e Event) {
	ev := s.Logger.Debug().
		Str("kind", e.Kind).
		Int("bar", e.BarIndex).
		Int("side", e.Side)
	if e.Reason != "" {
		ev = ev.Str("reason", e.Reason)
	}
	if e.Trade != nil {
		ev = ev.Str("result", e.Trade.Result).
			Float64("pnl", e.Trade.PnL).
			Int("holding_bars", e.Trade.HoldingPeriodBars)
	}
	ev.Msg("simulation event")
}

var (
	_ Sink = NopSink{}
	_ Sink = LogSink{}
)
