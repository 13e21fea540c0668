package aggregator

import (
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

// buildFifteen constructs the 15 one-minute candles from the spec's
// literal 15m-closure scenario: opens 100..114, closes 101..115,
// high = open+2, low = open-2, volume 1.0 each.
func buildFifteen(t *testing.T) []candle.Candle {
	t.Helper()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var out []candle.Candle
	for i := 0; i < 15; i++ {
		open := float64(100 + i)
		close := open + 1
		out = append(out, mustCandle(t, base.Add(time.Duration(i)*time.Minute), open, open+2, open-2, close, 1.0))
	}
	return out
}

func TestFifteenMinuteClosure(t *testing.T) {
	agg := New(DefaultConfig())

	var closed []candle.Candle
	agg.OnBar15mClose(func(c candle.Candle) { closed = append(closed, c) })

	for _, c := range buildFifteen(t) {
		if err := agg.OnTick(c, true); err != nil {
			t.Fatalf("OnTick: %v", err)
		}
	}

	if len(closed) != 1 {
		t.Fatalf("expected exactly one 15m close, got %d", len(closed))
	}
	got := closed[0]
	want := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if !got.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, want)
	}
	if got.Open != 100 || got.High != 116 || got.Low != 98 || got.Close != 115 || got.Volume != 15.0 {
		t.Errorf("aggregated candle = %+v, want O=100 H=116 L=98 C=115 V=15.0", got)
	}
}

func TestAggregationIsIdempotent(t *testing.T) {
	candles := buildFifteen(t)

	run := func() []candle.Candle {
		agg := New(DefaultConfig())
		var closed []candle.Candle
		agg.OnBar15mClose(func(c candle.Candle) { closed = append(closed, c) })
		for _, c := range candles {
			if err := agg.OnTick(c, true); err != nil {
				t.Fatalf("OnTick: %v", err)
			}
		}
		return closed
	}

	first := run()
	second := run()
	if len(first) != len(second) || len(first) != 1 {
		t.Fatalf("expected identical single closure across replays, got %d and %d", len(first), len(second))
	}
	if first[0] != second[0] {
		t.Fatalf("replaying the same sequence produced different aggregates: %+v vs %+v", first[0], second[0])
	}
}

func TestForming1mUpdateDoesNotCommit(t *testing.T) {
	agg := New(DefaultConfig())
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := mustCandle(t, ts, 100, 101, 99, 100.5, 1.0)

	if err := agg.OnTick(c, false); err != nil {
		t.Fatalf("OnTick: %v", err)
	}
	if agg.OneMinuteBuffer().Len() != 0 {
		t.Fatal("forming tick must not commit to the 1m buffer")
	}

	forming, ok := agg.Forming15m()
	if !ok || forming.Close != 100.5 {
		t.Fatalf("expected forming 15m to reflect the in-progress tick, got %+v ok=%v", forming, ok)
	}
}

func TestBoundaryClosesShortSlotOnGap(t *testing.T) {
	agg := New(DefaultConfig())
	var closed []candle.Candle
	agg.OnBar15mClose(func(c candle.Candle) { closed = append(closed, c) })

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	// Only 10 of 15 constituents arrive before a gap skips straight to
	// the next 15m boundary.
	for i := 0; i < 10; i++ {
		open := float64(100 + i)
		c := mustCandle(t, base.Add(time.Duration(i)*time.Minute), open, open+2, open-2, open+1, 1.0)
		if err := agg.OnTick(c, true); err != nil {
			t.Fatalf("OnTick: %v", err)
		}
	}
	next := mustCandle(t, base.Add(15*time.Minute), 200, 202, 198, 201, 1.0)
	if err := agg.OnTick(next, true); err != nil {
		t.Fatalf("OnTick: %v", err)
	}

	if len(closed) != 1 {
		t.Fatalf("expected the short slot to close on the boundary crossing, got %d closes", len(closed))
	}
	if closed[0].Volume != 10.0 {
		t.Fatalf("expected the partial 10-candle slot to close, got volume %v", closed[0].Volume)
	}
}
