package features

import (
	"math"
	"testing"

	"shockflip-lab/internal/domain"
)

func TestRollingZScore(t *testing.T) {
	series := []float64{1, 2, 3, 4, 5}
	z := RollingZScore(series, 3)

	for i := 0; i < 2; i++ {
		if !math.IsNaN(z[i]) {
			t.Errorf("z[%d] = %v, want NaN before window fills", i, z[i])
		}
	}

	// Window {1,2,3}: mean 2, population std sqrt(2/3).
	want := 1.0 / (math.Sqrt(2.0/3.0) + Eps)
	if math.Abs(z[2]-want) > 1e-9 {
		t.Errorf("z[2] = %v, want %v", z[2], want)
	}
}

func TestRollingZScore_FlatWindow(t *testing.T) {
	series := []float64{5, 5, 5, 5}
	z := RollingZScore(series, 3)

	// Zero variance leaves only the Eps denominator; the result must be
	// finite and ~0, never Inf.
	for i := 2; i < len(z); i++ {
		if math.IsInf(z[i], 0) || math.Abs(z[i]) > 1e-6 {
			t.Errorf("z[%d] = %v, want ~0 on a flat window", i, z[i])
		}
	}
}

func TestComputeATR(t *testing.T) {
	bars := []domain.Bar{
		{High: 102, Low: 98, Close: 100},
		{High: 101, Low: 99, Close: 100},  // TR = max(2, 1, 1) = 2
		{High: 105, Low: 100, Close: 104}, // TR = max(5, 5, 0) = 5
	}
	atr := computeATR(bars, 2)

	if !math.IsNaN(atr[0]) {
		t.Errorf("atr[0] = %v, want NaN", atr[0])
	}
	if atr[1] != 3 { // (4 + 2) / 2
		t.Errorf("atr[1] = %v, want 3", atr[1])
	}
	if atr[2] != 3.5 { // (2 + 5) / 2
		t.Errorf("atr[2] = %v, want 3.5", atr[2])
	}
}

func TestComputeATR_GapUsesPrevClose(t *testing.T) {
	// A gap-down bar's range understates volatility; TR must span from the
	// prior close.
	bars := []domain.Bar{
		{High: 100, Low: 99, Close: 100},
		{High: 95, Low: 94, Close: 94},
	}
	atr := computeATR(bars, 1)
	if atr[1] != 6 { // |94 - 100|
		t.Errorf("atr[1] = %v, want 6", atr[1])
	}
}

func TestDonchianExtremes(t *testing.T) {
	bars := []domain.Bar{
		{High: 10, Low: 5, Close: 7},
		{High: 12, Low: 6, Close: 11},
		{High: 11, Low: 4, Close: 5},
		{High: 12, Low: 7, Close: 10},
	}
	s := Compute(bars, Config{ZWindow: 2, ATRWindow: 2, DonchianWindow: 3,
		RelVolumeWindow: 2, ATRPercentileWindow: 2, DivergenceReturnLag: 1})

	if !math.IsNaN(s.DonchianHigh[1]) {
		t.Errorf("DonchianHigh[1] = %v, want NaN before window fills", s.DonchianHigh[1])
	}
	if s.DonchianHigh[2] != 12 || s.DonchianLow[2] != 4 {
		t.Errorf("channel[2] = %v/%v, want 12/4", s.DonchianHigh[2], s.DonchianLow[2])
	}

	// Bar 2 sets the rolling low but not the high.
	if s.AtUpperExtreme[2] {
		t.Error("bar 2 flagged at upper extreme")
	}
	if !s.AtLowerExtreme[2] {
		t.Error("bar 2 not flagged at lower extreme")
	}

	// Bar 3 ties the rolling high of 12; ties count as setting the extreme.
	if !s.AtUpperExtreme[3] {
		t.Error("tying bar 3 not flagged at upper extreme")
	}
}

func TestImbalanceBounds(t *testing.T) {
	bars := []domain.Bar{
		{BuyQty: 10, SellQty: 0},
		{BuyQty: 0, SellQty: 10},
		{BuyQty: 5, SellQty: 5},
		{BuyQty: 0, SellQty: 0},
	}
	s := Compute(bars, DefaultConfig())

	if s.Imbalance[0] < 0.999 || s.Imbalance[0] > 1 {
		t.Errorf("all-buy imbalance = %v, want ~1", s.Imbalance[0])
	}
	if s.Imbalance[1] > -0.999 || s.Imbalance[1] < -1 {
		t.Errorf("all-sell imbalance = %v, want ~-1", s.Imbalance[1])
	}
	if s.Imbalance[2] != 0 {
		t.Errorf("balanced imbalance = %v, want 0", s.Imbalance[2])
	}
	// Zero volume must not divide by zero.
	if math.IsNaN(s.Imbalance[3]) || math.IsInf(s.Imbalance[3], 0) {
		t.Errorf("zero-volume imbalance = %v, want finite", s.Imbalance[3])
	}
}

func TestRelVolume(t *testing.T) {
	bars := []domain.Bar{
		{Volume: 10}, {Volume: 10}, {Volume: 30},
	}
	s := Compute(bars, Config{ZWindow: 2, ATRWindow: 2, DonchianWindow: 2,
		RelVolumeWindow: 2, ATRPercentileWindow: 2, DivergenceReturnLag: 1})

	// Bar 2 volume 30 against trailing mean (10+30)/2 = 20.
	if math.Abs(s.RelVolume[2]-1.5) > 1e-6 {
		t.Errorf("RelVolume[2] = %v, want 1.5", s.RelVolume[2])
	}
}

func TestPriorFlowSign(t *testing.T) {
	bars := []domain.Bar{
		{BuyQty: 10, SellQty: 2},
		{BuyQty: 2, SellQty: 10},
		{BuyQty: 1, SellQty: 1},
	}
	s := Compute(bars, DefaultConfig())

	if !math.IsNaN(s.PriorFlowSign[0]) {
		t.Errorf("PriorFlowSign[0] = %v, want NaN", s.PriorFlowSign[0])
	}
	if s.PriorFlowSign[1] != 1 {
		t.Errorf("PriorFlowSign[1] = %v, want 1", s.PriorFlowSign[1])
	}
	if s.PriorFlowSign[2] != -1 {
		t.Errorf("PriorFlowSign[2] = %v, want -1", s.PriorFlowSign[2])
	}
}

func TestCausality(t *testing.T) {
	bars := make([]domain.Bar, 20)
	for i := range bars {
		p := 100 + float64(i)
		bars[i] = domain.Bar{High: p + 1, Low: p - 1, Close: p, Volume: 10, BuyQty: 6, SellQty: 4}
	}
	cfg := Config{ZWindow: 5, ATRWindow: 5, DonchianWindow: 5,
		RelVolumeWindow: 5, ATRPercentileWindow: 5, DivergenceReturnLag: 2}

	full := Compute(bars, cfg)
	prefix := Compute(bars[:12], cfg)

	// A value at index i must not change when later bars are appended.
	for i := 0; i < 12; i++ {
		if !sameFloat(full.ImbalanceZ[i], prefix.ImbalanceZ[i]) {
			t.Errorf("ImbalanceZ[%d] changed with future bars: %v vs %v", i, full.ImbalanceZ[i], prefix.ImbalanceZ[i])
		}
		if !sameFloat(full.ATR[i], prefix.ATR[i]) {
			t.Errorf("ATR[%d] changed with future bars: %v vs %v", i, full.ATR[i], prefix.ATR[i])
		}
		if !sameFloat(full.DonchianHigh[i], prefix.DonchianHigh[i]) {
			t.Errorf("DonchianHigh[%d] changed with future bars: %v vs %v", i, full.DonchianHigh[i], prefix.DonchianHigh[i])
		}
	}
}

func sameFloat(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return a == b
}
