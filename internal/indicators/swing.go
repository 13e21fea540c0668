package indicators

import "cryptosignal-engine/internal/candle"

// SwingPoint is a local extreme: candles[Index].High (resp. Low)
// strictly exceeds (resp. under-cuts) every high (low) within
// [Index-L, Index+L] except itself. Strength equals the lookback per
// spec §9 (no finer-grained scoring is invented).
type SwingPoint struct {
	Price    float64
	Index    int
	Strength int
	Ready    bool
}

// FindRecentSwingHigh returns the most recent swing high in candles
// using the given lookback L, searching backward from the newest
// candle that still has L candles after it. Returns not-ready when
// fewer than 2L+1 candles are supplied.
func FindRecentSwingHigh(candles []candle.Candle, lookback int) SwingPoint {
	return findRecentSwing(candles, lookback, true)
}

// FindRecentSwingLow returns the most recent swing low, mirroring
// FindRecentSwingHigh.
func FindRecentSwingLow(candles []candle.Candle, lookback int) SwingPoint {
	return findRecentSwing(candles, lookback, false)
}

func findRecentSwing(candles []candle.Candle, lookback int, high bool) SwingPoint {
	if lookback < 1 || len(candles) < 2*lookback+1 {
		return SwingPoint{}
	}

	searchEnd := len(candles) - lookback // exclusive
	searchStart := lookback

	for i := searchEnd - 1; i >= searchStart; i-- {
		if isSwing(candles, i, lookback, high) {
			price := candles[i].Low
			if high {
				price = candles[i].High
			}
			return SwingPoint{Price: price, Index: i, Strength: lookback, Ready: true}
		}
	}
	return SwingPoint{}
}

func isSwing(candles []candle.Candle, i, lookback int, high bool) bool {
	var ref float64
	if high {
		ref = candles[i].High
	} else {
		ref = candles[i].Low
	}
	for j := i - lookback; j <= i+lookback; j++ {
		if j == i {
			continue
		}
		if high {
			if candles[j].High >= ref {
				return false
			}
		} else {
			if candles[j].Low <= ref {
				return false
			}
		}
	}
	return true
}
