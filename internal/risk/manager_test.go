package risk

import (
	"math"
	"testing"
	"time"

	"cryptosignal-engine/internal/errs"
)

func TestNewRejectsOutOfRangeRiskPct(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RiskPct = 0.06
	_, err := New(cfg, time.Now())
	if !errs.Is(err, errs.KindConfigError) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestPositionSizeFormula(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RiskPct = 0.01
	m, err := New(cfg, time.Now())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.SetAccountBalance(10000)

	size := m.PositionSize(50000, 49500) // risk 100, distance 500 -> 0.2
	if math.Abs(size-0.2) > 1e-8 {
		t.Fatalf("expected size 0.2, got %v", size)
	}
}

func TestPositionSizeZeroDistance(t *testing.T) {
	cfg := DefaultConfig()
	m, err := New(cfg, time.Now())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.SetAccountBalance(10000)

	if size := m.PositionSize(100, 100); size != 0 {
		t.Fatalf("expected zero size for zero stop distance, got %v", size)
	}
}

func TestMaxOpenPositionsCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxOpenPositions = 1
	m, err := New(cfg, time.Now())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.RegisterOpen()

	ok, _ := m.CanOpenPosition(time.Now())
	if ok {
		t.Fatal("expected position cap to reject a new position")
	}
}
