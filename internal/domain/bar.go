package domain

// Bar is one aggregated OHLCV bar with order-flow volume split by aggressor
// side. Bars are immutable and ordered by strictly increasing timestamp on a
// uniform timeframe.
type Bar struct {
	TimestampMs int64   // bar open time, Unix milliseconds UTC
	Open        float64 // first trade price in the bar
	High        float64 // highest trade price
	Low         float64 // lowest trade price
	Close       float64 // last trade price
	Volume      float64 // total traded quantity
	BuyQty      float64 // aggressive buy quantity (taker bought)
	SellQty     float64 // aggressive sell quantity (taker sold)
}

// BarSeries is an ordered bar sequence for one symbol/timeframe.
type BarSeries struct {
	Symbol    string
	Timeframe string
	Bars      []Bar
}
