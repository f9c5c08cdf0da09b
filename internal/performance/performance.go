// Package performance aggregates finalized trades into summary statistics.
package performance

import (
	"math"
	"sort"

	"shockflip-lab/internal/domain"
)

// Stats extends the headline summary with distribution and sequence metrics.
// Order-dependent fields (MaxDrawdown, MaxConsecutiveLosses) use trades
// sorted by EntryTs ASC, TradeID ASC.
type Stats struct {
	Summary domain.Summary

	Wins   int
	Losses int

	PnLMean   float64
	PnLMedian float64
	PnLStddev float64
	PnLMin    float64
	PnLMax    float64

	MaxDrawdown          float64
	MaxConsecutiveLosses int

	AvgHoldingBars float64
	ResultCounts   map[string]int
}

// Summarize computes the headline summary over a trade list.
//
// Profit factor convention: with no trades, or winners but no losers summing
// to zero gross loss, PF cannot be a finite ratio. The whole repo follows one
// rule, defined here: PF is 0 when there are no winners and no losers, and
// +Inf when winners exist against zero gross loss.
func Summarize(trades []domain.Trade) domain.Summary {
	n := len(trades)
	if n == 0 {
		return domain.Summary{}
	}

	wins := 0
	grossWin := 0.0
	grossLoss := 0.0
	total := 0.0
	for _, t := range trades {
		total += t.PnL
		if t.PnL > 0 {
			wins++
			grossWin += t.PnL
		} else if t.PnL < 0 {
			grossLoss += -t.PnL
		}
	}

	return domain.Summary{
		N:        n,
		WinRate:  float64(wins) / float64(n),
		PF:       profitFactor(grossWin, grossLoss),
		TotalPnL: total,
	}
}

// Compute calculates the full statistics block from a slice of trades.
func Compute(trades []domain.Trade) *Stats {
	n := len(trades)
	stats := &Stats{
		Summary:      Summarize(trades),
		ResultCounts: make(map[string]int),
	}
	if n == 0 {
		return stats
	}

	// Sort trades deterministically by EntryTs ASC, TradeID ASC.
	sorted := make([]domain.Trade, n)
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].EntryTs != sorted[j].EntryTs {
			return sorted[i].EntryTs < sorted[j].EntryTs
		}
		return sorted[i].TradeID < sorted[j].TradeID
	})

	pnls := make([]float64, n)
	holdingSum := 0.0
	for i, t := range sorted {
		pnls[i] = t.PnL
		holdingSum += float64(t.HoldingPeriodBars)
		stats.ResultCounts[t.Result]++
		if t.PnL > 0 {
			stats.Wins++
		} else {
			stats.Losses++
		}
	}

	sortedPnls := make([]float64, n)
	copy(sortedPnls, pnls)
	sort.Float64s(sortedPnls)

	mean := computeMean(pnls)
	stats.PnLMean = mean
	stats.PnLMedian = computePercentile(sortedPnls, 0.50)
	stats.PnLStddev = computeStddev(pnls, mean)
	stats.PnLMin = sortedPnls[0]
	stats.PnLMax = sortedPnls[n-1]
	stats.MaxDrawdown = computeMaxDrawdown(pnls)
	stats.MaxConsecutiveLosses = computeMaxConsecutiveLosses(pnls)
	stats.AvgHoldingBars = holdingSum / float64(n)

	return stats
}

func profitFactor(grossWin, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossWin == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return grossWin / grossLoss
}

// computeMean calculates arithmetic mean of values.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation. sorted must be pre-sorted ASC.
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdown calculates worst peak-to-trough on cumulative P&L.
// Values must be in chronological order.
func computeMaxDrawdown(values []float64) float64 {
	cumulative := 0.0
	peak := 0.0
	maxDrawdown := 0.0

	for _, v := range values {
		cumulative += v
		if cumulative > peak {
			peak = cumulative
		}
		drawdown := peak - cumulative
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown
}

// computeMaxConsecutiveLosses finds the longest streak of pnl <= 0.
// Values must be in chronological order.
func computeMaxConsecutiveLosses(values []float64) int {
	maxStreak := 0
	currentStreak := 0

	for _, v := range values {
		if v <= 0 {
			currentStreak++
			if currentStreak > maxStreak {
				maxStreak = currentStreak
			}
		} else {
			currentStreak = 0
		}
	}
	return maxStreak
}
