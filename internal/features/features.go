// Package features derives order-flow and volatility features from bar
// sequences. All transforms are pure, causal (a value at index i depends only
// on bars [0..i]) and leave the input bars untouched.
package features

import (
	"math"

	"shockflip-lab/internal/domain"
)

// Eps stabilizes denominators against zero volume, zero variance and
// degenerate channels.
const Eps = 1e-9

// Config holds the rolling-window lengths for feature derivation.
type Config struct {
	ZWindow             int // rolling z-score window for flow series
	ATRWindow           int // ATR simple moving average window
	DonchianWindow      int // Donchian channel lookback
	RelVolumeWindow     int // trailing window for relative volume
	ATRPercentileWindow int // trailing window for the ATR percentile rank
	DivergenceReturnLag int // price return lag for the divergence score
}

// DefaultConfig mirrors the baseline research parameters.
func DefaultConfig() Config {
	return Config{
		ZWindow:             240,
		ATRWindow:           60,
		DonchianWindow:      120,
		RelVolumeWindow:     60,
		ATRPercentileWindow: 240,
		DivergenceReturnLag: 6,
	}
}

// Set holds derived feature columns as contiguous arrays parallel to the
// input bars. Values are NaN until the corresponding window has filled.
type Set struct {
	N int // number of bars

	// Order flow
	Delta      []float64 // buy_qty - sell_qty
	Imbalance  []float64 // delta / (buy_qty + sell_qty + eps), in [-1,1]
	ImbalanceZ []float64 // rolling z-score of Imbalance
	DeltaZ     []float64 // rolling z-score of Delta

	// Volatility
	ATR    []float64 // SMA of true range
	ATRPct []float64 // trailing percentile rank of ATR, in [0,1]

	// Donchian channel
	DonchianHigh   []float64
	DonchianLow    []float64
	DonchianLoc    []float64 // (close - low) / (high - low + eps), in [0,1]
	AtUpperExtreme []bool    // bar high sets/ties the rolling high
	AtLowerExtreme []bool    // bar low sets/ties the rolling low

	// Entry-filter features
	RelVolume     []float64 // bar volume / trailing mean volume
	Divergence    []float64 // price-flow divergence score, >= 0
	PriorFlowSign []float64 // sign of previous bar's imbalance; NaN at index 0
}

// Compute derives the full feature set for a bar sequence.
func Compute(bars []domain.Bar, cfg Config) *Set {
	n := len(bars)
	s := &Set{N: n}

	s.Delta = make([]float64, n)
	s.Imbalance = make([]float64, n)
	for i, b := range bars {
		s.Delta[i] = b.BuyQty - b.SellQty
		s.Imbalance[i] = s.Delta[i] / (b.BuyQty + b.SellQty + Eps)
	}

	s.ImbalanceZ = RollingZScore(s.Imbalance, cfg.ZWindow)
	s.DeltaZ = RollingZScore(s.Delta, cfg.ZWindow)

	s.ATR = computeATR(bars, cfg.ATRWindow)
	s.ATRPct = rollingPercentileRank(s.ATR, cfg.ATRPercentileWindow)

	s.computeDonchian(bars, cfg.DonchianWindow)
	s.computeRelVolume(bars, cfg.RelVolumeWindow)
	s.computeDivergence(bars, cfg)
	s.computePriorFlowSign()

	return s
}

// Z returns the z-score column for a flow source, or nil if the source is
// unknown. Callers treat nil as a configuration error.
func (s *Set) Z(source string) []float64 {
	switch source {
	case domain.SourceImbalance:
		return s.ImbalanceZ
	case domain.SourceDelta:
		return s.DeltaZ
	default:
		return nil
	}
}

// RollingZScore computes a causal rolling z-score: the current bar is part of
// its own window, the standard deviation is the population one (ddof=0), and
// the denominator carries Eps so flat windows yield ~0 instead of Inf.
// Values are NaN until window bars are available.
func RollingZScore(series []float64, window int) []float64 {
	n := len(series)
	out := nanSlice(n)
	if window <= 0 {
		return out
	}

	var sum, sumSq float64
	for i := 0; i < n; i++ {
		sum += series[i]
		sumSq += series[i] * series[i]
		if i >= window {
			old := series[i-window]
			sum -= old
			sumSq -= old * old
		}
		if i < window-1 {
			continue
		}
		w := float64(window)
		mean := sum / w
		variance := sumSq/w - mean*mean
		if variance < 0 {
			variance = 0 // guard against float cancellation
		}
		std := math.Sqrt(variance)
		out[i] = (series[i] - mean) / (std + Eps)
	}
	return out
}

// computeATR computes the classic ATR: true range is
// max(high-low, |high-prevClose|, |low-prevClose|), averaged with a simple
// moving average. NaN until the window fills.
func computeATR(bars []domain.Bar, window int) []float64 {
	n := len(bars)
	out := nanSlice(n)
	if window <= 0 || n == 0 {
		return out
	}

	tr := make([]float64, n)
	for i, b := range bars {
		r := b.High - b.Low
		if i > 0 {
			prevClose := bars[i-1].Close
			if hc := math.Abs(b.High - prevClose); hc > r {
				r = hc
			}
			if lc := math.Abs(b.Low - prevClose); lc > r {
				r = lc
			}
		}
		tr[i] = r
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += tr[i]
		if i >= window {
			sum -= tr[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// computeDonchian fills the channel columns. Extreme flags are tie-inclusive:
// a bar that merely touches the rolling extreme counts as setting it.
func (s *Set) computeDonchian(bars []domain.Bar, window int) {
	n := len(bars)
	s.DonchianHigh = nanSlice(n)
	s.DonchianLow = nanSlice(n)
	s.DonchianLoc = nanSlice(n)
	s.AtUpperExtreme = make([]bool, n)
	s.AtLowerExtreme = make([]bool, n)
	if window <= 0 {
		return
	}

	for i := window - 1; i < n; i++ {
		hi := math.Inf(-1)
		lo := math.Inf(1)
		for j := i - window + 1; j <= i; j++ {
			if bars[j].High > hi {
				hi = bars[j].High
			}
			if bars[j].Low < lo {
				lo = bars[j].Low
			}
		}
		s.DonchianHigh[i] = hi
		s.DonchianLow[i] = lo
		s.DonchianLoc[i] = (bars[i].Close - lo) / (hi - lo + Eps)
		s.AtUpperExtreme[i] = bars[i].High >= hi
		s.AtLowerExtreme[i] = bars[i].Low <= lo
	}
}

// computeRelVolume fills the relative volume column: current bar volume over
// the trailing mean volume (current bar included).
func (s *Set) computeRelVolume(bars []domain.Bar, window int) {
	n := len(bars)
	s.RelVolume = nanSlice(n)
	if window <= 0 {
		return
	}

	var sum float64
	for i := 0; i < n; i++ {
		v := barVolume(bars[i])
		sum += v
		if i >= window {
			sum -= barVolume(bars[i-window])
		}
		if i < window-1 {
			continue
		}
		avg := sum / float64(window)
		s.RelVolume[i] = v / (avg + Eps)
	}
}

// computeDivergence fills the price-flow divergence score: positive when the
// flow z-score and the recent volatility-scaled price return point in
// opposite directions, zero otherwise.
func (s *Set) computeDivergence(bars []domain.Bar, cfg Config) {
	n := len(bars)
	s.Divergence = nanSlice(n)
	lag := cfg.DivergenceReturnLag
	if lag <= 0 {
		return
	}

	closeStd := rollingStd(closes(bars), cfg.ZWindow)
	for i := 0; i < n; i++ {
		z := s.ImbalanceZ[i]
		if math.IsNaN(z) || math.IsNaN(closeStd[i]) {
			continue
		}
		back := i - lag
		if back < 0 {
			back = 0
		}
		ref := bars[back].Close
		ret := (bars[i].Close - ref) / (ref + Eps)
		score := -z * (ret / (closeStd[i] + Eps))
		if score < 0 {
			score = 0
		}
		s.Divergence[i] = score
	}
}

// computePriorFlowSign fills the sign of the previous bar's imbalance.
func (s *Set) computePriorFlowSign() {
	s.PriorFlowSign = nanSlice(s.N)
	for i := 1; i < s.N; i++ {
		s.PriorFlowSign[i] = sign(s.Imbalance[i-1])
	}
}

// rollingPercentileRank computes the trailing percentile rank of each value:
// the fraction of the trailing window (current included) at or below it.
// NaN while the value itself or the window is NaN-dominated.
func rollingPercentileRank(series []float64, window int) []float64 {
	n := len(series)
	out := nanSlice(n)
	if window <= 0 {
		return out
	}

	for i := 0; i < n; i++ {
		v := series[i]
		if math.IsNaN(v) {
			continue
		}
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		count, total := 0, 0
		for j := start; j <= i; j++ {
			if math.IsNaN(series[j]) {
				continue
			}
			total++
			if series[j] <= v {
				count++
			}
		}
		if total > 0 {
			out[i] = float64(count) / float64(total)
		}
	}
	return out
}

// rollingStd is a causal rolling population standard deviation with
// min periods of 1, matching the divergence score's reference series.
func rollingStd(series []float64, window int) []float64 {
	n := len(series)
	out := nanSlice(n)
	if window <= 0 {
		return out
	}

	var sum, sumSq float64
	for i := 0; i < n; i++ {
		sum += series[i]
		sumSq += series[i] * series[i]
		if i >= window {
			old := series[i-window]
			sum -= old
			sumSq -= old * old
		}
		w := float64(i + 1)
		if i >= window {
			w = float64(window)
		}
		mean := sum / w
		variance := sumSq/w - mean*mean
		if variance < 0 {
			variance = 0
		}
		out[i] = math.Sqrt(variance)
	}
	return out
}

func closes(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// barVolume prefers the aggregated volume column and falls back to the
// aggressor split when the loader had no volume data.
func barVolume(b domain.Bar) float64 {
	if b.Volume > 0 {
		return b.Volume
	}
	return b.BuyQty + b.SellQty
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
