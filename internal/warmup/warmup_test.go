package warmup

import (
	"context"
	"testing"
	"time"

	"cryptosignal-engine/internal/aggregator"
	"cryptosignal-engine/internal/candle"
)

type fakeHistory struct {
	candles []candle.Candle
	err     error
}

func (f fakeHistory) FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]candle.Candle, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.candles) {
		return f.candles[len(f.candles)-limit:], nil
	}
	return f.candles, nil
}

func syntheticHistory(t *testing.T, n int) []candle.Candle {
	t.Helper()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]candle.Candle, 0, n)
	price := 100.0
	for i := 0; i < n; i++ {
		ts := base.Add(time.Duration(i) * 15 * time.Minute)
		open := price
		close := price + 0.5
		c, err := candle.New(ts, open, open+1, open-1, close, 50.0)
		if err != nil {
			t.Fatalf("candle.New: %v", err)
		}
		out = append(out, c)
		price += 0.5
	}
	return out
}

func TestWarmupBudgetScenario(t *testing.T) {
	candles := syntheticHistory(t, 1000)
	history := fakeHistory{candles: candles}
	agg := aggregator.New(aggregator.DefaultConfig())

	cfg := DefaultConfig("BTCUSDT")
	cfg.Limit = 1000

	result := Run(context.Background(), cfg, history, agg)

	if !result.Success {
		t.Fatalf("expected success, got err=%v", result.Err)
	}
	if result.CandlesProcessed != 1000 {
		t.Fatalf("expected 1000 candles processed, got %d", result.CandlesProcessed)
	}
	if result.ADXValue <= 0 {
		t.Fatalf("expected adx_value > 0, got %v", result.ADXValue)
	}
	if result.VWAPValue <= 0 {
		t.Fatalf("expected vwap_value > 0, got %v", result.VWAPValue)
	}
	if result.Degraded {
		t.Fatal("expected a full 1000-of-1000 fetch to be non-degraded")
	}
}

func TestWarmupDegradesOnPartialHistory(t *testing.T) {
	candles := syntheticHistory(t, 100) // well under 80% of 1000
	history := fakeHistory{candles: candles}
	agg := aggregator.New(aggregator.DefaultConfig())

	cfg := DefaultConfig("BTCUSDT")
	cfg.Limit = 1000

	result := Run(context.Background(), cfg, history, agg)

	if !result.Success {
		t.Fatalf("a partial fetch is still a successful (degraded) warm-up, got err=%v", result.Err)
	}
	if !result.Degraded {
		t.Fatal("expected degraded warm-up with 100 of 1000 requested candles")
	}
}

func TestWarmupSurfacesExternalUnavailable(t *testing.T) {
	history := fakeHistory{err: context.DeadlineExceeded}
	agg := aggregator.New(aggregator.DefaultConfig())

	result := Run(context.Background(), DefaultConfig("BTCUSDT"), history, agg)

	if result.Success {
		t.Fatal("expected failure when the history port errors")
	}
	if result.Err == nil {
		t.Fatal("expected a wrapped ExternalUnavailable error")
	}
}
