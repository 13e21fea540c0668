package buffer

import (
	"testing"
	"time"

	"cryptosignal-engine/internal/candle"
)

func mustCandle(t *testing.T, ts time.Time, c float64) candle.Candle {
	t.Helper()
	v, err := candle.New(ts, c, c+1, c-1, c, 1)
	if err != nil {
		t.Fatalf("candle.New: %v", err)
	}
	return v
}

func TestRingOverflowOverwritesOldest(t *testing.T) {
	r := New(3)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		r.Push(mustCandle(t, base.Add(time.Duration(i)*time.Minute), float64(100+i)))
	}
	if r.Len() != 3 {
		t.Fatalf("expected len 3, got %d", r.Len())
	}
	all := r.All()
	if all[0].Close != 102 || all[2].Close != 104 {
		t.Fatalf("expected oldest-overwritten order [102,103,104], got %+v", all)
	}
}

func TestRingLastN(t *testing.T) {
	r := New(10)
	base := time.Now()
	for i := 0; i < 5; i++ {
		r.Push(mustCandle(t, base.Add(time.Duration(i)*time.Minute), float64(100+i)))
	}
	last2 := r.Last(2)
	if len(last2) != 2 || last2[1].Close != 104 {
		t.Fatalf("unexpected Last(2): %+v", last2)
	}
}

func TestRingLatestEmpty(t *testing.T) {
	r := New(2)
	if _, ok := r.Latest(); ok {
		t.Fatal("expected ok=false on empty buffer")
	}
}

func TestRingClear(t *testing.T) {
	r := New(2)
	r.Push(mustCandle(t, time.Now(), 100))
	r.Clear()
	if r.Len() != 0 {
		t.Fatalf("expected len 0 after clear, got %d", r.Len())
	}
}
