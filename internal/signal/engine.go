package signal

import (
	"fmt"
	"time"

	"cryptosignal-engine/internal/indicators"
)

// Config tunes the trend-pullback rule evaluator (spec §4.F).
type Config struct {
	Strict bool

	MinHistory int // default 50

	NormalRequiredConditions int // default 3
	StrictRequiredConditions int // default 4

	VolumeSpikeThreshold       float64 // normal mode, default 2.0
	StrictVolumeSpikeThreshold float64 // strict mode, default 2.5
	VolumeClimaxThreshold      float64 // default 4.0

	PullbackBollingerPct float64 // default 0.015 (1.5%)
	PullbackVWAPPct      float64 // default 0.01 (1.0%)

	ADXTrendThreshold float64 // default 25
	ADXPenalty        float64 // default 0.20

	StrictRSIExtremeOversold   float64 // default 25
	StrictRSIExtremeOverbought float64 // default 75
}

// DefaultConfig matches the thresholds spelled out in spec §4.F.
func DefaultConfig() Config {
	return Config{
		MinHistory:                 50,
		NormalRequiredConditions:   3,
		StrictRequiredConditions:   4,
		VolumeSpikeThreshold:       2.0,
		StrictVolumeSpikeThreshold: 2.5,
		VolumeClimaxThreshold:      4.0,
		PullbackBollingerPct:       0.015,
		PullbackVWAPPct:            0.01,
		ADXTrendThreshold:          25,
		ADXPenalty:                 0.20,
		StrictRSIExtremeOversold:   25,
		StrictRSIExtremeOverbought: 75,
	}
}

// Inputs is the typed indicator snapshot the engine evaluates against.
// Per design note §9, every indicator consumer gets a typed field —
// no generic map is threaded through the decision logic (the snapshot
// map on RawSignal is a read-only summary for subscribers, not an
// input).
type Inputs struct {
	Timestamp  time.Time
	Open       float64
	Close      float64
	HistoryLen int

	VWAP        indicators.Scalar
	RSI         indicators.Scalar
	Bollinger   indicators.BollingerResult
	StochRSI    indicators.StochRSIResult
	ADX         indicators.ADXResult
	VolumeSpike indicators.VolumeSpikeResult
}

// Engine evaluates the trend-pullback rule set on each closed
// evaluation-timeframe candle.
type Engine struct {
	cfg Config
}

// New constructs an Engine from cfg.
func New(cfg Config) *Engine { return &Engine{cfg: cfg} }

// Evaluate is the engine's sole operation: it produces a RawSignal
// from the current indicator snapshot.
func (e *Engine) Evaluate(in Inputs) RawSignal {
	if in.HistoryLen < e.cfg.MinHistory {
		return e.neutral(in, "Insufficient history for trend-pullback analysis")
	}
	if !in.VWAP.Ready || !in.Bollinger.Ready || !in.StochRSI.Ready {
		return e.neutral(in, "Indicators not ready")
	}

	buyReasons, buyCount := e.evaluateBuy(in)
	sellReasons, sellCount := e.evaluateSell(in)

	required := e.cfg.NormalRequiredConditions
	if e.cfg.Strict {
		required = e.cfg.StrictRequiredConditions
	}

	var side Side
	var reasons []string
	switch {
	case buyCount >= required && buyCount >= sellCount:
		side, reasons = SideBuy, buyReasons
	case sellCount >= required:
		side, reasons = SideSell, sellReasons
	default:
		return e.neutral(in, "No trend-pullback setup satisfied")
	}

	if in.VolumeSpike.Ready && in.VolumeSpike.Ratio >= e.cfg.VolumeClimaxThreshold {
		return RawSignal{
			Side:              SideNeutral,
			ReferencePrice:    in.Close,
			Timestamp:         in.Timestamp,
			IndicatorSnapshot: snapshotOf(in),
			Reasons: []string{
				fmt.Sprintf("Volume Climax: ratio %.2fx > %.1fx", in.VolumeSpike.Ratio, e.cfg.VolumeClimaxThreshold),
			},
		}
	}

	confidence := float64(len(reasons)) / 5.0
	if confidence > 1 {
		confidence = 1
	}

	if in.ADX.Ready && in.ADX.ADX < e.cfg.ADXTrendThreshold {
		confidence *= 1 - e.cfg.ADXPenalty
		reasons = append(reasons, "Penalty: choppy market (ADX < 25)")
	}

	return RawSignal{
		Side:              side,
		Confidence:        confidence,
		ReferencePrice:    in.Close,
		Timestamp:         in.Timestamp,
		IndicatorSnapshot: snapshotOf(in),
		Reasons:           reasons,
	}
}

func (e *Engine) neutral(in Inputs, reason string) RawSignal {
	return RawSignal{
		Side:              SideNeutral,
		ReferencePrice:    in.Close,
		Timestamp:         in.Timestamp,
		IndicatorSnapshot: snapshotOf(in),
		Reasons:           []string{reason},
	}
}

func (e *Engine) evaluateBuy(in Inputs) ([]string, int) {
	var reasons []string

	if in.Close > in.VWAP.Value {
		reasons = append(reasons, "Trend: Price > VWAP")
	}

	nearLowerBand := in.Bollinger.Lower > 0 && withinPct(in.Close, in.Bollinger.Lower, e.cfg.PullbackBollingerPct)
	nearVWAP := withinPct(in.Close, in.VWAP.Value, e.cfg.PullbackVWAPPct)
	if nearLowerBand || nearVWAP {
		reasons = append(reasons, "Setup: Pullback to Value Area")
	}

	crossUp := in.StochRSI.KCrossUp && in.StochRSI.K < 80
	oversold := in.StochRSI.IsOversold
	legacyExtreme := e.cfg.Strict && in.RSI.Ready && in.RSI.Value < e.cfg.StrictRSIExtremeOversold
	if crossUp {
		reasons = append(reasons, "Trigger: StochRSI Cross Up")
	} else if oversold || legacyExtreme {
		reasons = append(reasons, "Trigger: StochRSI Oversold")
	}

	if in.Close > in.Open {
		reasons = append(reasons, "Candle: Green")
	}

	if e.volumeConfirmed(in) {
		reasons = append(reasons, "Volume: Spike")
	}

	return reasons, len(reasons)
}

func (e *Engine) evaluateSell(in Inputs) ([]string, int) {
	var reasons []string

	if in.Close < in.VWAP.Value {
		reasons = append(reasons, "Trend: Price < VWAP")
	}

	nearUpperBand := in.Bollinger.Upper > 0 && withinPct(in.Close, in.Bollinger.Upper, e.cfg.PullbackBollingerPct)
	nearVWAP := withinPct(in.Close, in.VWAP.Value, e.cfg.PullbackVWAPPct)
	if nearUpperBand || nearVWAP {
		reasons = append(reasons, "Setup: Pullback to Value Area")
	}

	crossDown := in.StochRSI.KCrossDown && in.StochRSI.K > 20
	overbought := in.StochRSI.IsOverbought
	legacyExtreme := e.cfg.Strict && in.RSI.Ready && in.RSI.Value > e.cfg.StrictRSIExtremeOverbought
	if crossDown {
		reasons = append(reasons, "Trigger: StochRSI Cross Down")
	} else if overbought || legacyExtreme {
		reasons = append(reasons, "Trigger: StochRSI Overbought")
	}

	if in.Close < in.Open {
		reasons = append(reasons, "Candle: Red")
	}

	if e.volumeConfirmed(in) {
		reasons = append(reasons, "Volume: Spike")
	}

	return reasons, len(reasons)
}

func (e *Engine) volumeConfirmed(in Inputs) bool {
	if !in.VolumeSpike.Ready {
		return false
	}
	if e.cfg.Strict {
		return in.VolumeSpike.Ratio >= e.cfg.StrictVolumeSpikeThreshold
	}
	return in.VolumeSpike.Intensity != indicators.IntensityNone
}

func withinPct(price, reference, pct float64) bool {
	if reference <= 0 {
		return false
	}
	diff := price - reference
	if diff < 0 {
		diff = -diff
	}
	return diff/reference <= pct
}

func snapshotOf(in Inputs) map[string]float64 {
	snap := map[string]float64{
		"close": in.Close,
		"open":  in.Open,
	}
	if in.VWAP.Ready {
		snap["vwap"] = in.VWAP.Value
	}
	if in.RSI.Ready {
		snap["rsi"] = in.RSI.Value
	}
	if in.Bollinger.Ready {
		snap["bb_upper"] = in.Bollinger.Upper
		snap["bb_lower"] = in.Bollinger.Lower
		snap["bb_percent_b"] = in.Bollinger.PercentB
	}
	if in.StochRSI.Ready {
		snap["stoch_k"] = in.StochRSI.K
		snap["stoch_d"] = in.StochRSI.D
	}
	if in.ADX.Ready {
		snap["adx"] = in.ADX.ADX
		snap["plus_di"] = in.ADX.PlusDI
		snap["minus_di"] = in.ADX.MinusDI
	}
	if in.VolumeSpike.Ready {
		snap["volume_ratio"] = in.VolumeSpike.Ratio
	}
	return snap
}
