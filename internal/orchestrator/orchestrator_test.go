package orchestrator

import (
	"context"
	"testing"
	"time"

	"cryptosignal-engine/internal/candle"
	"cryptosignal-engine/internal/paper"
	"cryptosignal-engine/internal/ports"
)

type fakeHistory struct {
	candles []candle.Candle
}

func (f fakeHistory) FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]candle.Candle, error) {
	if limit > len(f.candles) {
		limit = len(f.candles)
	}
	return f.candles[len(f.candles)-limit:], nil
}

func syntheticHistory(n int) []candle.Candle {
	out := make([]candle.Candle, 0, n)
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := 0; i < n; i++ {
		c, err := candle.New(ts, price, price+1, price-1, price+0.5, 10.0)
		if err != nil {
			panic(err)
		}
		out = append(out, c)
		ts = ts.Add(15 * time.Minute)
		price += 0.1
	}
	return out
}

func mustCandle(ts time.Time, o, h, l, c, v float64) candle.Candle {
	cl, err := candle.New(ts, o, h, l, c, v)
	if err != nil {
		panic(err)
	}
	return cl
}

func TestStartRunsWarmupAndFlipsToLive(t *testing.T) {
	cfg := DefaultConfig("BTCUSDT")
	history := fakeHistory{candles: syntheticHistory(200)}
	orch, err := New(cfg, history, nil, nil, nil, 10000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result := orch.Start(context.Background())
	if !result.Success {
		t.Fatalf("expected successful warmup, got %+v", result)
	}

	h := orch.Health()
	if !h.WarmupOK {
		t.Fatal("expected WarmupOK after successful start")
	}
}

// TestStartRunsWarmupNeverOpensAPositionOrSignal guards against replay
// feeding already-aggregated history through the 1m folding path: the
// synthetic history here lands every candle on a 15m boundary, exactly
// the shape that used to spuriously close one-candle "15m" bars and
// invoke the signal/matcher pipeline during warm-up.
func TestStartRunsWarmupNeverOpensAPositionOrSignal(t *testing.T) {
	cfg := DefaultConfig("BTCUSDT")
	history := fakeHistory{candles: syntheticHistory(1000)}
	orch, err := New(cfg, history, nil, nil, nil, 10000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result := orch.Start(context.Background())
	if !result.Success {
		t.Fatalf("expected successful warmup, got %+v", result)
	}

	if _, ok := orch.LatestSignal(); ok {
		t.Fatal("expected no signal to be produced during warm-up")
	}
	if pending := orch.Positions(paper.StatePending); len(pending) != 0 {
		t.Fatalf("expected no pending positions after warm-up, got %d", len(pending))
	}
	if open := orch.Positions(paper.StateOpen); len(open) != 0 {
		t.Fatalf("expected no open positions after warm-up, got %d", len(open))
	}
	if closed := orch.Positions(paper.StateClosed); len(closed) != 0 {
		t.Fatalf("expected no closed positions after warm-up, got %d", len(closed))
	}
}

func TestOnTickAggregatesAndExposesLatestCandle(t *testing.T) {
	cfg := DefaultConfig("BTCUSDT")
	history := fakeHistory{candles: syntheticHistory(100)}
	orch, err := New(cfg, history, nil, nil, nil, 10000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	orch.Start(context.Background())

	ts := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	c := mustCandle(ts, 100, 101, 99, 100.5, 1.0)
	orch.OnTick(context.Background(), c, true)

	latest, ok := orch.LatestCandle("1m")
	if !ok || latest.Close != 100.5 {
		t.Fatalf("expected latest 1m candle to reflect the tick, got %+v ok=%v", latest, ok)
	}
}

func TestOnTickIgnoredAfterStop(t *testing.T) {
	cfg := DefaultConfig("BTCUSDT")
	history := fakeHistory{candles: syntheticHistory(100)}
	orch, _ := New(cfg, history, nil, nil, nil, 10000)
	orch.Start(context.Background())
	orch.Stop()

	h := orch.Health()
	if h.IsRunning {
		t.Fatal("expected IsRunning false after Stop")
	}

	ts := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	orch.OnTick(context.Background(), mustCandle(ts, 100, 101, 99, 100.5, 1.0), true)

	if _, ok := orch.LatestCandle("1m"); ok {
		t.Fatal("expected OnTick to be a no-op once stopped")
	}
}

func TestAsyncSignalSubscriberDropsOldestUnderBackpressure(t *testing.T) {
	cfg := DefaultConfig("BTCUSDT")
	history := fakeHistory{candles: syntheticHistory(100)}
	orch, _ := New(cfg, history, nil, nil, nil, 10000)
	orch.Start(context.Background())

	ch := orch.SubscribeSignalAsync()

	for i := 0; i < signalChannelCapacity+10; i++ {
		orch.subscribers.publishSignal(orch.latestSignal, "BTCUSDT")
	}

	if len(ch) != signalChannelCapacity {
		t.Fatalf("expected channel to stay at capacity %d, got %d", signalChannelCapacity, len(ch))
	}
	if orch.Health().DroppedUpdates == 0 {
		t.Fatal("expected dropped-update counter to increment under backpressure")
	}
}

var _ ports.HistoryPort = fakeHistory{}
