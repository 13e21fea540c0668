package signal

import (
	"testing"
	"time"

	"cryptosignal-engine/internal/indicators"
	"cryptosignal-engine/internal/risk"
)

func buyScenarioInputs() Inputs {
	return Inputs{
		Timestamp:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Open:       49800,
		Close:      49900, // green candle, close > open
		HistoryLen: 100,
		VWAP:       indicators.ReadyValue(49850), // close > vwap: trend
		RSI:        indicators.ReadyValue(20),
		Bollinger: indicators.BollingerResult{
			Upper: 51000, Middle: 50000, Lower: 49870, Bandwidth: 0.02, PercentB: 0.1, Ready: true,
		},
		StochRSI: indicators.StochRSIResult{
			K: 25, D: 20, Zone: indicators.ZoneNeutral, KCrossUp: true, Ready: true,
		},
		ADX: indicators.ADXResult{ADX: 30, PlusDI: 28, MinusDI: 15, Ready: true},
		VolumeSpike: indicators.VolumeSpikeResult{
			Ratio: 2.6, Intensity: indicators.IntensityStrong, IsSpike: true, Ready: true,
		},
	}
}

func TestTrendPullbackBuyFiring(t *testing.T) {
	eng := New(DefaultConfig())
	in := buyScenarioInputs()

	raw := eng.Evaluate(in)

	if raw.Side != SideBuy {
		t.Fatalf("expected BUY, got %v with reasons %v", raw.Side, raw.Reasons)
	}
	wantReasons := []string{
		"Trend: Price > VWAP",
		"Setup: Pullback to Value Area",
		"Trigger: StochRSI Cross Up",
		"Candle: Green",
		"Volume: Spike",
	}
	for _, w := range wantReasons {
		found := false
		for _, r := range raw.Reasons {
			if r == w {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected reason %q in %v", w, raw.Reasons)
		}
	}
}

func TestVolumeClimaxDowngrade(t *testing.T) {
	eng := New(DefaultConfig())
	in := buyScenarioInputs()
	in.VolumeSpike = indicators.VolumeSpikeResult{Ratio: 5.0, Intensity: indicators.IntensityExtreme, IsSpike: true, Ready: true}

	raw := eng.Evaluate(in)

	if raw.Side != SideNeutral {
		t.Fatalf("expected NEUTRAL on volume climax, got %v", raw.Side)
	}
	if len(raw.Reasons) == 0 {
		t.Fatal("expected a volume climax reason")
	}
}

func TestVolumeClimaxBoundary(t *testing.T) {
	eng := New(DefaultConfig())

	below := buyScenarioInputs()
	below.VolumeSpike.Ratio = 3.9
	if raw := eng.Evaluate(below); raw.Side != SideBuy {
		t.Fatalf("expected climax suppressed below 4.0x, got %v", raw.Side)
	}

	atThreshold := buyScenarioInputs()
	atThreshold.VolumeSpike.Ratio = 4.0
	if raw := eng.Evaluate(atThreshold); raw.Side != SideNeutral {
		t.Fatalf("expected climax to fire at exactly 4.0x, got %v", raw.Side)
	}
}

func TestInsufficientHistoryIsNeutral(t *testing.T) {
	eng := New(DefaultConfig())
	in := buyScenarioInputs()
	in.HistoryLen = 49

	if raw := eng.Evaluate(in); raw.Side != SideNeutral {
		t.Fatalf("expected NEUTRAL below MinHistory, got %v", raw.Side)
	}
}

func TestEnrichedBuySignalEndToEnd(t *testing.T) {
	eng := New(DefaultConfig())
	in := buyScenarioInputs()
	raw := eng.Evaluate(in)
	if raw.Side != SideBuy {
		t.Fatalf("precondition failed: expected BUY, got %v", raw.Side)
	}

	enricher := NewEnricher(DefaultEnrichConfig("15m"))
	riskMgr, err := risk.New(risk.DefaultConfig(), time.Now())
	if err != nil {
		t.Fatalf("risk.New: %v", err)
	}
	riskMgr.SetAccountBalance(10000)

	enrichIn := EnrichInputs{
		High: 49950, Low: 49750,
		EMA7:      indicators.ReadyValue(49870),
		EMA25:     indicators.ReadyValue(49700),
		ATR:       indicators.ReadyValue(150),
		RSI:       indicators.ReadyValue(20),
		SwingHigh: indicators.SwingPoint{Price: 51200, Index: 90, Strength: 5, Ready: true},
		SwingLow:  indicators.SwingPoint{Price: 49500, Index: 95, Strength: 5, Ready: true},
	}

	enriched := enricher.Enrich(raw, enrichIn, riskMgr)

	if enriched.Side != SideBuy {
		t.Fatalf("expected enrichment to preserve BUY, got %v reasons=%v", enriched.Side, enriched.Reasons)
	}
	if enriched.PositionSize <= 0 {
		t.Fatal("expected positive position size")
	}
	if !(enriched.StopLoss < enriched.EntryPrice) {
		t.Fatalf("expected stop_loss < entry_price, got SL=%v entry=%v", enriched.StopLoss, enriched.EntryPrice)
	}
	if !(enriched.EntryPrice < enriched.TPLevels[0].Price && enriched.TPLevels[0].Price < enriched.TPLevels[1].Price && enriched.TPLevels[1].Price < enriched.TPLevels[2].Price) {
		t.Fatalf("expected entry < tp1 < tp2 < tp3, got entry=%v tp=%v", enriched.EntryPrice, enriched.TPLevels)
	}
	if enriched.RiskRewardRatio < 1.5 {
		t.Fatalf("expected risk_reward_ratio >= 1.5, got %v", enriched.RiskRewardRatio)
	}
	if enriched.Confidence < 0.8 {
		t.Fatalf("expected confidence >= 0.8, got %v (detail=%+v)", enriched.Confidence, enriched.ConfidenceDetail)
	}
	distance := enriched.EntryPrice - enriched.StopLoss
	maxSize := 10000 * 0.01 / distance
	if enriched.PositionSize > maxSize+1e-6 {
		t.Fatalf("position size %v exceeds risk budget %v", enriched.PositionSize, maxSize)
	}
}

func TestEnrichmentDowngradesOnDegenerateZeroPriceInput(t *testing.T) {
	enricher := NewEnricher(DefaultEnrichConfig("15m"))
	raw := RawSignal{
		Side:              SideBuy,
		ReferencePrice:    0,
		Timestamp:         time.Now(),
		IndicatorSnapshot: map[string]float64{},
	}
	in := EnrichInputs{High: 0, Low: 0}

	enriched := enricher.Enrich(raw, in, nil)

	if enriched.Side != SideNeutral {
		t.Fatalf("expected downgrade to NEUTRAL on degenerate zero-price input, got %v", enriched.Side)
	}
}
