package indicators

import (
	"math"
	"testing"
	"time"

	"cryptosignal-engine/internal/candle"
)

func mustCandle(t *testing.T, ts time.Time, o, h, l, c, v float64) candle.Candle {
	t.Helper()
	cd, err := candle.New(ts, o, h, l, c, v)
	if err != nil {
		t.Fatalf("candle.New: %v", err)
	}
	return cd
}

func TestSMANotReadyBoundary(t *testing.T) {
	closes := []float64{1, 2, 3}
	if SMA(closes, 4).Ready {
		t.Fatal("expected not-ready with fewer than period values")
	}
	if !SMA(closes, 3).Ready {
		t.Fatal("expected ready with exactly period values")
	}
}

func TestEMASeedsWithSMA(t *testing.T) {
	closes := []float64{10, 10, 10, 10, 20}
	r := EMA(closes, 4)
	if !r.Ready {
		t.Fatal("expected ready")
	}
	// Seed SMA(first 4) = 10, then one step with alpha=2/5=0.4: 0.4*20+0.6*10=14
	if math.Abs(r.Value-14) > Epsilon {
		t.Fatalf("expected EMA=14, got %v", r.Value)
	}
}

func TestEMAStreamingMatchesRecompute(t *testing.T) {
	closes := []float64{10, 11, 12, 13, 14, 15, 16}
	period := 4
	recomputed := EMA(closes, period)

	st := NewEMAState(period)
	var streamed Scalar
	for _, c := range closes {
		streamed = st.Advance(c)
	}
	if !recomputed.Ready || !streamed.Ready {
		t.Fatal("expected both ready")
	}
	if math.Abs(recomputed.Value-streamed.Value) > 1e-9 {
		t.Fatalf("streaming/recompute mismatch: %v vs %v", streamed.Value, recomputed.Value)
	}
}

func TestRSIBoundary(t *testing.T) {
	closes := make([]float64, 6)
	for i := range closes {
		closes[i] = float64(100 + i)
	}
	if RSI(closes, 6).Ready {
		t.Fatal("expected not-ready with exactly period closes (need period+1)")
	}
	closes = append(closes, 107)
	if !RSI(closes, 6).Ready {
		t.Fatal("expected ready with period+1 closes")
	}
}

func TestRSIAllGainsIs100(t *testing.T) {
	closes := []float64{100, 101, 102, 103, 104, 105, 106}
	r := RSI(closes, 6)
	if !r.Ready || math.Abs(r.Value-100) > Epsilon {
		t.Fatalf("expected RSI=100 for all gains, got %+v", r)
	}
}

func TestATRBoundaryAndStreamingAgreement(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var candles []candle.Candle
	price := 100.0
	for i := 0; i < 20; i++ {
		c := mustCandle(t, base.Add(time.Duration(i)*time.Minute), price, price+2, price-2, price+1, 10)
		candles = append(candles, c)
		price += 1
	}

	r := ATR(candles, 14)
	if !r.Ready {
		t.Fatal("expected ready ATR")
	}

	st := NewATRState(14)
	var streamed Scalar
	for _, c := range candles {
		streamed = st.Advance(c)
	}
	if math.Abs(r.Value-streamed.Value) > 1e-9 {
		t.Fatalf("ATR streaming/recompute mismatch: %v vs %v", streamed.Value, r.Value)
	}
}

func TestBollingerOrdering(t *testing.T) {
	closes := []float64{10, 11, 9, 12, 8, 13, 7, 14, 6, 15, 10, 11, 9, 12, 8, 13, 7, 14, 6, 15}
	r := Bollinger(closes, 20, 2.0)
	if !r.Ready {
		t.Fatal("expected ready")
	}
	if !(r.Lower <= r.Middle && r.Middle <= r.Upper) {
		t.Fatalf("expected lower<=middle<=upper, got %+v", r)
	}
}

func TestVWAPDailyReset(t *testing.T) {
	s := NewVWAPState()
	c1 := mustCandle(t, time.Date(2025, 3, 15, 23, 59, 0, 0, time.UTC), 100, 100, 100, 100, 10)
	s.Advance(c1)

	c2 := mustCandle(t, time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC), 200, 200, 200, 200, 20)
	r := s.Advance(c2)

	if !r.Ready || math.Abs(r.Value-200.0) > Epsilon {
		t.Fatalf("expected VWAP=200 after day reset, got %+v", r)
	}
	if math.Abs(s.CumulativeVolume()-20) > Epsilon {
		t.Fatalf("expected cumulative volume to reset to the new day's volume, got %v", s.CumulativeVolume())
	}
}

func TestSwingDetectorBoundary(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var candles []candle.Candle
	for i := 0; i < 2*5; i++ { // fewer than 2L+1
		candles = append(candles, mustCandle(t, base.Add(time.Duration(i)*time.Minute), 100, 101, 99, 100, 1))
	}
	if FindRecentSwingHigh(candles, 5).Ready {
		t.Fatal("expected not-ready with fewer than 2L+1 candles")
	}
}

func TestSwingDetectorFindsPeak(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	highs := []float64{100, 101, 102, 103, 104, 110, 104, 103, 102, 101, 100}
	var candles []candle.Candle
	for i, h := range highs {
		candles = append(candles, mustCandle(t, base.Add(time.Duration(i)*time.Minute), h-1, h, h-2, h-1, 1))
	}
	sp := FindRecentSwingHigh(candles, 5)
	if !sp.Ready || sp.Index != 5 {
		t.Fatalf("expected swing high at index 5, got %+v", sp)
	}
}

func TestVolumeSpikeThreshold(t *testing.T) {
	volumes := make([]float64, 20)
	for i := range volumes {
		volumes[i] = 10
	}
	volumes = append(volumes, 25) // ratio 2.5
	r := VolumeSpike(volumes, 20, 2.0)
	if !r.Ready || !r.IsSpike || r.Intensity != IntensityStrong {
		t.Fatalf("expected strong spike, got %+v", r)
	}
}

func TestStochRSIRequiresFullWindow(t *testing.T) {
	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = float64(100 + i)
	}
	if StochRSI(closes, 14, 14, 3, 3).Ready {
		t.Fatal("expected not-ready with insufficient closes")
	}
}
