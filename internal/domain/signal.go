package domain

// Trade sides. Short is -1 so that side*(exit-entry) is the raw directional
// return for both sides.
const (
	SideLong  = 1
	SideShort = -1
)

// SignalEvent is one detector event: a bar where all ShockFlip gates passed.
// Bars without an event carry signal 0 and produce no SignalEvent.
type SignalEvent struct {
	Index int     // bar index in the series
	Side  int     // SideLong or SideShort
	Z     float64 // z-score of the chosen flow source at the event bar
}
