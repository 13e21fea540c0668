package indicators

import "math"

// BollingerResult is the typed result of the Bollinger Bands kernel.
type BollingerResult struct {
	Upper     float64
	Middle    float64
	Lower     float64
	Bandwidth float64
	PercentB  float64
	Ready     bool
}

// Bollinger computes Bollinger Bands over n closes (default 20) at k
// standard deviations (default 2.0). Middle is the SMA(n); %B clamps
// its denominator away from zero per spec §4.C. Invariant: lower <=
// middle <= upper always holds for k >= 0.
func Bollinger(closes []float64, n int, k float64) BollingerResult {
	if n <= 0 || len(closes) < n {
		return BollingerResult{}
	}
	middle := SMA(closes, n)
	if !middle.Ready {
		return BollingerResult{}
	}

	start := len(closes) - n
	variance := 0.0
	for i := start; i < len(closes); i++ {
		diff := closes[i] - middle.Value
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(n))

	upper := middle.Value + k*stdDev
	lower := middle.Value - k*stdDev
	bandwidth := 0.0
	if middle.Value > Epsilon {
		bandwidth = (upper - lower) / middle.Value
	}

	denom := upper - lower
	percentB := 0.5
	if denom > Epsilon {
		price := closes[len(closes)-1]
		percentB = (price - lower) / denom
	}

	return BollingerResult{
		Upper:     upper,
		Middle:    middle.Value,
		Lower:     lower,
		Bandwidth: bandwidth,
		PercentB:  percentB,
		Ready:     true,
	}
}
