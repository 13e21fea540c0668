package signal

import (
	"cryptosignal-engine/internal/errs"
	"cryptosignal-engine/internal/indicators"
	"cryptosignal-engine/internal/ports"
	"cryptosignal-engine/internal/risk"
)

// EnrichConfig tunes the entry/stop/target construction of spec §4.G.
type EnrichConfig struct {
	SmallEntryOffsetPct    float64 // default 0.001
	SwingBufferPct         float64 // default 0.001
	SwingToEMA7ProximityPct float64 // default 0.005
	MinStopDistancePct     float64 // default 0.015
	ATRMultiplier          float64 // depends on the evaluation timeframe
	DefaultTPWeights       [3]float64
	ATRFallbackTPWeights   [3]float64
	MinRiskRewardRatio     float64 // default 1.5
}

// ATRMultiplierFor returns the default ATR stop-loss multiplier for a
// timeframe label, per spec §4.G (15m:3.0, 1h:2.5, 4h:2.0, 1d:1.5).
func ATRMultiplierFor(timeframe string) float64 {
	switch timeframe {
	case "15m":
		return 3.0
	case "1h":
		return 2.5
	case "4h":
		return 2.0
	case "1d":
		return 1.5
	default:
		return 2.5
	}
}

// DefaultEnrichConfig fills every threshold from spec §4.G.
func DefaultEnrichConfig(timeframe string) EnrichConfig {
	return EnrichConfig{
		SmallEntryOffsetPct:     0.001,
		SwingBufferPct:          0.001,
		SwingToEMA7ProximityPct: 0.005,
		MinStopDistancePct:      0.015,
		ATRMultiplier:           ATRMultiplierFor(timeframe),
		DefaultTPWeights:        [3]float64{0.6, 0.3, 0.1},
		ATRFallbackTPWeights:    [3]float64{0.5, 0.3, 0.2},
		MinRiskRewardRatio:      1.5,
	}
}

// EnrichInputs is the typed indicator snapshot the enricher needs on
// top of the raw signal — the evaluation bar's high/low (for the
// smart-entry midpoint), trend EMAs, ATR, the nearest swing points,
// and an optional top-of-book read.
type EnrichInputs struct {
	High, Low float64
	EMA7      indicators.Scalar
	EMA25     indicators.Scalar
	ATR       indicators.Scalar
	RSI       indicators.Scalar
	SwingHigh indicators.SwingPoint
	SwingLow  indicators.SwingPoint
	TopOfBook *ports.TopOfBook
}

// Enricher attaches entry/SL/TP/size/confidence to a non-NEUTRAL raw
// signal (component G).
type Enricher struct {
	cfg EnrichConfig
}

// NewEnricher constructs an Enricher from cfg.
func NewEnricher(cfg EnrichConfig) *Enricher { return &Enricher{cfg: cfg} }

// Enrich turns raw into an EnrichedSignal. Any invariant failure
// downgrades the result to NEUTRAL with a diagnostic reason instead of
// returning an error — matching spec §4.G's "never mutate paper state
// on failure" rule. The risk manager supplies the account-relative
// position size.
func (en *Enricher) Enrich(raw RawSignal, in EnrichInputs, riskMgr *risk.Manager) EnrichedSignal {
	if raw.Side == SideNeutral {
		return EnrichedSignal{RawSignal: raw}
	}

	entry, swingAnchored := en.smartEntry(raw, in)
	stopLoss, ok := en.stopLoss(raw.Side, entry, in)
	if !ok {
		return en.downgrade(raw, "Stop-loss invariant violated")
	}

	tpLevels, weights, _ := en.takeProfitLadder(raw.Side, entry, stopLoss, in)
	riskDistance := absDiff(entry, stopLoss)
	if riskDistance <= 0 {
		return en.downgrade(raw, "Zero risk distance")
	}
	rr := absDiff(tpLevels[0], entry) / riskDistance
	if rr < en.cfg.MinRiskRewardRatio {
		return en.downgrade(raw, "Risk/reward below minimum threshold")
	}

	if err := validateOrdering(raw.Side, entry, stopLoss, tpLevels); err != nil {
		return en.downgrade(raw, err.Error())
	}

	size := 0.0
	if riskMgr != nil {
		size = riskMgr.PositionSize(entry, stopLoss)
	}

	confidence, detail := en.confidence(raw, in)

	levels := [3]TPLevel{
		{Price: tpLevels[0], Weight: weights[0]},
		{Price: tpLevels[1], Weight: weights[1]},
		{Price: tpLevels[2], Weight: weights[2]},
	}

	out := raw
	out.Confidence = confidence
	return EnrichedSignal{
		RawSignal:       out,
		EntryPrice:      entry,
		SwingAnchored:   swingAnchored,
		StopLoss:        stopLoss,
		TPLevels:        levels,
		RiskRewardRatio: rr,
		PositionSize:    size,
		IsLimitOrder:    true,
		ConfidenceLevel: confidenceLevelOf(confidence),
		ConfidenceDetail: detail,
	}
}

func (en *Enricher) downgrade(raw RawSignal, reason string) EnrichedSignal {
	out := RawSignal{
		Side:              SideNeutral,
		ReferencePrice:    raw.ReferencePrice,
		Timestamp:         raw.Timestamp,
		IndicatorSnapshot: raw.IndicatorSnapshot,
		Reasons:           append(append([]string{}, raw.Reasons...), "Enrichment failed: "+reason),
	}
	return EnrichedSignal{RawSignal: out}
}

// smartEntry always produces a limit price, never a market order
// (spec §4.G.1).
func (en *Enricher) smartEntry(raw RawSignal, in EnrichInputs) (float64, bool) {
	midpoint := (in.High + in.Low) / 2
	offset := raw.ReferencePrice * en.cfg.SmallEntryOffsetPct

	var base float64
	if raw.Side == SideBuy {
		base = midpoint - offset
		if vwap, ok := raw.IndicatorSnapshot["vwap"]; ok && vwap < raw.ReferencePrice && vwap < base {
			base = vwap
		}
	} else {
		base = midpoint + offset
		if vwap, ok := raw.IndicatorSnapshot["vwap"]; ok && vwap > raw.ReferencePrice && vwap > base {
			base = vwap
		}
	}

	if ema7 := in.EMA7; ema7.Ready {
		var swing indicators.SwingPoint
		if raw.Side == SideBuy {
			swing = in.SwingLow
		} else {
			swing = in.SwingHigh
		}
		if swing.Ready && withinPct(swing.Price, ema7.Value, en.cfg.SwingToEMA7ProximityPct) {
			return swing.Price, true
		}
	}

	if in.TopOfBook != nil {
		tob := *in.TopOfBook
		if raw.Side == SideBuy && tob.Ask > 0 && tob.Ask < base {
			base = tob.Ask
		}
		if raw.Side == SideSell && tob.Bid > 0 && tob.Bid > base {
			base = tob.Bid
		}
	}

	return base, false
}

// stopLoss chooses the more conservative (wider) of the structural and
// volatility-based candidates, then enforces the minimum distance.
func (en *Enricher) stopLoss(side Side, entry float64, in EnrichInputs) (float64, bool) {
	buffer := entry * en.cfg.SwingBufferPct
	minDist := entry * en.cfg.MinStopDistancePct

	if side == SideBuy {
		structural := entry - minDist // fallback if no swing/EMA available
		haveStructural := false
		if in.SwingLow.Ready {
			structural = in.SwingLow.Price - buffer
			haveStructural = true
		}
		if in.EMA25.Ready {
			emaStop := in.EMA25.Value - buffer
			if !haveStructural || emaStop < structural {
				structural = emaStop
			}
			haveStructural = true
		}
		volStop := entry
		if in.ATR.Ready {
			volStop = entry - in.ATR.Value*en.cfg.ATRMultiplier
		} else {
			volStop = entry - minDist
		}

		sl := structural
		if haveStructural && volStop < structural {
			sl = volStop
		} else if !haveStructural {
			sl = volStop
		}

		if entry-sl < minDist {
			sl = entry - minDist
		}
		if sl >= entry {
			return 0, false
		}
		return sl, true
	}

	// SELL mirrors BUY.
	structural := entry + minDist
	haveStructural := false
	if in.SwingHigh.Ready {
		structural = in.SwingHigh.Price + buffer
		haveStructural = true
	}
	if in.EMA25.Ready {
		emaStop := in.EMA25.Value + buffer
		if !haveStructural || emaStop > structural {
			structural = emaStop
		}
		haveStructural = true
	}
	volStop := entry
	if in.ATR.Ready {
		volStop = entry + in.ATR.Value*en.cfg.ATRMultiplier
	} else {
		volStop = entry + minDist
	}

	sl := structural
	if haveStructural && volStop > structural {
		sl = volStop
	} else if !haveStructural {
		sl = volStop
	}

	if sl-entry < minDist {
		sl = entry + minDist
	}
	if sl <= entry {
		return 0, false
	}
	return sl, true
}

// takeProfitLadder anchors TP1 on the single nearest swing level beyond
// the entry (swing high for BUY, swing low for SELL) and places TP2/TP3
// 1% and a further 1.5% past it; one such level is enough. Only when
// there is none does it fall back to ATR multiples (1x/2x/3x), or to
// risk multiples (1.5R/2.5R/3.5R) when ATR is not ready.
func (en *Enricher) takeProfitLadder(side Side, entry, stopLoss float64, in EnrichInputs) ([3]float64, [3]float64, bool) {
	riskDist := absDiff(entry, stopLoss)

	if side == SideBuy && in.SwingHigh.Ready && in.SwingHigh.Price > entry {
		tp1 := in.SwingHigh.Price
		tp2 := tp1 * 1.01
		tp3 := tp2 * 1.015
		return [3]float64{tp1, tp2, tp3}, en.cfg.DefaultTPWeights, false
	}
	if side == SideSell && in.SwingLow.Ready && in.SwingLow.Price < entry {
		tp1 := in.SwingLow.Price
		tp2 := tp1 * 0.99
		tp3 := tp2 * 0.985
		return [3]float64{tp1, tp2, tp3}, en.cfg.DefaultTPWeights, false
	}

	// Fallback: ATR multiples, or risk multiples when ATR is unready.
	sign := 1.0
	if side == SideSell {
		sign = -1.0
	}
	if in.ATR.Ready {
		atr := in.ATR.Value
		return [3]float64{
			entry + sign*atr*1,
			entry + sign*atr*2,
			entry + sign*atr*3,
		}, en.cfg.ATRFallbackTPWeights, true
	}
	return [3]float64{
		entry + sign*riskDist*1.5,
		entry + sign*riskDist*2.5,
		entry + sign*riskDist*3.5,
	}, en.cfg.ATRFallbackTPWeights, true
}

func validateOrdering(side Side, entry, stopLoss float64, tp [3]float64) error {
	if side == SideBuy {
		if !(stopLoss < entry && entry < tp[0] && tp[0] < tp[1] && tp[1] < tp[2]) {
			return errs.New(errs.KindMatcherInvariant, "BUY ordering invariant violated: SL < entry < tp1 < tp2 < tp3")
		}
		return nil
	}
	if !(stopLoss > entry && entry > tp[0] && tp[0] > tp[1] && tp[1] > tp[2]) {
		return errs.New(errs.KindMatcherInvariant, "SELL ordering invariant violated: SL > entry > tp1 > tp2 > tp3")
	}
	return nil
}

// confidence implements spec §4.G.5's weighted sum: EMA-crossover
// alignment 40%, volume-spike severity 30%, RSI extremity 30%, then
// the ADX penalty already folded into raw.Confidence's reasons is
// reapplied here against the recomputed weighted score.
func (en *Enricher) confidence(raw RawSignal, in EnrichInputs) (float64, ConfidenceBreakdown) {
	emaAlignment := 0.0
	if in.EMA7.Ready && in.EMA25.Ready {
		if raw.Side == SideBuy && in.EMA7.Value > in.EMA25.Value {
			emaAlignment = 1.0
		}
		if raw.Side == SideSell && in.EMA7.Value < in.EMA25.Value {
			emaAlignment = 1.0
		}
	}

	volumeSeverity := 0.0
	if ratio, ok := raw.IndicatorSnapshot["volume_ratio"]; ok {
		switch {
		case ratio >= 3.0:
			volumeSeverity = 1.0
		case ratio >= 2.0:
			volumeSeverity = 0.75
		case ratio >= 1.5:
			volumeSeverity = 0.5
		}
	}

	rsiExtremity := 0.0
	if in.RSI.Ready {
		d := in.RSI.Value - 50
		if d < 0 {
			d = -d
		}
		rsiExtremity = d / 50
		if rsiExtremity > 1 {
			rsiExtremity = 1
		}
	}

	weighted := 0.40*emaAlignment + 0.30*volumeSeverity + 0.30*rsiExtremity

	penaltyApplied := false
	if adx, ok := raw.IndicatorSnapshot["adx"]; ok && adx < 25 {
		weighted *= 0.80
		penaltyApplied = true
	}

	if weighted > 1 {
		weighted = 1
	}
	if weighted < 0 {
		weighted = 0
	}

	return weighted, ConfidenceBreakdown{
		EMACrossoverAlignment: emaAlignment,
		VolumeSpikeSeverity:   volumeSeverity,
		RSIExtremity:          rsiExtremity,
		ADXPenaltyApplied:     penaltyApplied,
		Raw:                   weighted,
	}
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
