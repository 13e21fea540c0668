package candle

import (
	"testing"
	"time"
)

func TestNewValid(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c, err := New(ts, 100, 102, 98, 101, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.High != 102 || c.Low != 98 {
		t.Fatalf("unexpected candle: %+v", c)
	}
}

func TestNewRejectsLowHigh(t *testing.T) {
	ts := time.Now()
	if _, err := New(ts, 100, 99, 98, 101, 1); err == nil {
		t.Fatal("expected invalid candle error when high < max(open,close,low)")
	}
}

func TestNewRejectsNegativeVolume(t *testing.T) {
	ts := time.Now()
	if _, err := New(ts, 100, 102, 98, 101, -1); err == nil {
		t.Fatal("expected invalid candle error for negative volume")
	}
}

func TestNewRejectsNonPositivePrice(t *testing.T) {
	ts := time.Now()
	if _, err := New(ts, 0, 102, 98, 101, 1); err == nil {
		t.Fatal("expected invalid candle error for non-positive open")
	}
}

func TestTrueRange(t *testing.T) {
	ts := time.Now()
	prev, _ := New(ts, 100, 105, 95, 102, 1)
	cur, _ := New(ts.Add(time.Minute), 102, 110, 101, 108, 1)
	tr := TrueRange(cur, prev)
	if tr != 9 { // max(110-101=9, |110-102|=8, |101-102|=1)
		t.Fatalf("expected TR=9, got %v", tr)
	}
}
