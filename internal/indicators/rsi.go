package indicators

// RSI computes the Wilder-smoothed Relative Strength Index over n
// periods (default 6 or 14 per spec). The first value is produced
// once n+1 closes are available; fewer yields not-ready. Recomputes
// from the start of the slice so it agrees with a streaming
// realization to within Epsilon regardless of how much extra history
// is supplied, mirroring atr.go.
func RSI(closes []float64, n int) Scalar {
	if n <= 0 || len(closes) < n+1 {
		return NotReady()
	}

	// Wilder's method: seed avg gain/loss from the first n changes,
	// then smooth the remaining changes with weight 1/n.
	var avgGain, avgLoss float64
	for i := 1; i <= n; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(n)
	avgLoss /= float64(n)

	for i := n + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(n-1) + gain) / float64(n)
		avgLoss = (avgLoss*float64(n-1) + loss) / float64(n)
	}

	if avgLoss < Epsilon {
		return ReadyValue(100.0)
	}
	rs := avgGain / avgLoss
	return ReadyValue(100 - (100 / (1 + rs)))
}
