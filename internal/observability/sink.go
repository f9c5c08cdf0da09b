package observability

import (
	"shockflip-lab/internal/simulation"
)

// SimSink bridges simulation events onto Prometheus counters. It can be
// combined with other sinks via MultiSink.
type SimSink struct{}

// Emit implements simulation.Sink.
func (SimSink) Emit(e simulation.Event) {
	switch e.Kind {
	case simulation.EventEntryRejected:
		RecordEntryRejected(e.Reason)
	case simulation.EventTradeClosed:
		if e.Trade != nil {
			RecordTradeSimulated(e.Trade.Result)
		}
	}
}

// MultiSink fans one event stream out to several sinks.
type MultiSink []simulation.Sink

// Emit implements simulation.Sink.
func (m MultiSink) Emit(e simulation.Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

var (
	_ simulation.Sink = SimSink{}
	_ simulation.Sink = MultiSink{}
)
