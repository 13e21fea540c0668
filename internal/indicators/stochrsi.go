package indicators

// Zone classifies where StochRSI's %K sits.
type Zone string

const (
	ZoneOversold   Zone = "oversold"
	ZoneNeutral    Zone = "neutral"
	ZoneOverbought Zone = "overbought"
)

// StochRSIResult is the typed result of the StochRSI kernel.
type StochRSIResult struct {
	K             float64
	D             float64
	Zone          Zone
	KCrossUp      bool // K just crossed above D between the previous and current bar
	KCrossDown    bool // K just crossed below D between the previous and current bar
	IsOversold    bool // K < 20
	IsOverbought  bool // K > 80
	Ready         bool
}

// StochRSI computes the stochastic RSI: RSI -> normalize over
// nStoch -> %K = SMA(stoch, kPeriod) -> %D = SMA(%K, dPeriod). Crosses
// are detected using the previous K/D pair. Requires
// nRSI+nStoch+kPeriod+dPeriod closes per spec §4.C.
func StochRSI(closes []float64, nRSI, nStoch, kPeriod, dPeriod int) StochRSIResult {
	if nRSI <= 0 || nStoch <= 0 || kPeriod <= 0 || dPeriod <= 0 {
		return StochRSIResult{}
	}
	if len(closes) < nRSI+nStoch+kPeriod+dPeriod {
		return StochRSIResult{}
	}

	rsiSeries := rsiSeries(closes, nRSI)
	if len(rsiSeries) < nStoch {
		return StochRSIResult{}
	}

	stoch := stochasticNormalize(rsiSeries, nStoch)
	if len(stoch) < kPeriod {
		return StochRSIResult{}
	}

	kSeries := smaSeries(stoch, kPeriod)
	if len(kSeries) < dPeriod+1 {
		return StochRSIResult{}
	}

	dSeries := smaSeries(kSeries, dPeriod)
	if len(dSeries) < 2 || len(kSeries) < len(dSeries) {
		return StochRSIResult{}
	}

	// dSeries[i] corresponds to kSeries[i+dPeriod-1], so the last D
	// always pairs with the last K, and likewise one bar back.
	curK := kSeries[len(kSeries)-1]
	curD := dSeries[len(dSeries)-1]
	prevKIdx := len(kSeries) - 2
	prevDIdx := len(dSeries) - 2
	if prevKIdx < 0 || prevDIdx < 0 {
		return StochRSIResult{K: curK, D: curD, Zone: zoneOf(curK), IsOversold: curK < 20, IsOverbought: curK > 80, Ready: true}
	}
	prevK := kSeries[prevKIdx]
	prevD := dSeries[prevDIdx]

	crossUp := prevK <= prevD && curK > curD
	crossDown := prevK >= prevD && curK < curD

	return StochRSIResult{
		K:            curK,
		D:            curD,
		Zone:         zoneOf(curK),
		KCrossUp:     crossUp,
		KCrossDown:   crossDown,
		IsOversold:   curK < 20,
		IsOverbought: curK > 80,
		Ready:        true,
	}
}

func zoneOf(k float64) Zone {
	switch {
	case k < 20:
		return ZoneOversold
	case k > 80:
		return ZoneOverbought
	default:
		return ZoneNeutral
	}
}

// rsiSeries computes the Wilder RSI at every index from n onward,
// returning a slice aligned to closes[n:], one RSI value per close.
func rsiSeries(closes []float64, n int) []float64 {
	if len(closes) < n+1 {
		return nil
	}
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

	out := make([]float64, 0, len(closes)-n)
	out = append(out, rsiFromAvg(avgGain, avgLoss))

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
		out = append(out, rsiFromAvg(avgGain, avgLoss))
	}
	return out
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss < Epsilon {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// stochasticNormalize maps each window of n values in series to
// 0-100 based on where the last value of the window sits between the
// window's min and max.
func stochasticNormalize(series []float64, n int) []float64 {
	if len(series) < n {
		return nil
	}
	out := make([]float64, 0, len(series)-n+1)
	for end := n; end <= len(series); end++ {
		window := series[end-n : end]
		lo, hi := window[0], window[0]
		for _, v := range window {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		v := window[len(window)-1]
		if hi-lo < Epsilon {
			out = append(out, 0)
			continue
		}
		out = append(out, (v-lo)/(hi-lo)*100)
	}
	return out
}

// smaSeries returns the simple moving average of every trailing
// window of size n in series.
func smaSeries(series []float64, n int) []float64 {
	if len(series) < n {
		return nil
	}
	out := make([]float64, 0, len(series)-n+1)
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += series[i]
	}
	out = append(out, sum/float64(n))
	for i := n; i < len(series); i++ {
		sum += series[i] - series[i-n]
		out = append(out, sum/float64(n))
	}
	return out
}
