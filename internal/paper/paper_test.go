package paper

import (
	"context"
	"testing"
	"time"

	"cryptosignal-engine/internal/signal"
)

var bg = context.Background()

func buySignal(entry, sl, tp1, tp2, tp3 float64) signal.EnrichedSignal {
	return signal.EnrichedSignal{
		RawSignal: signal.RawSignal{
			Side:           signal.SideBuy,
			ReferencePrice: entry,
			Timestamp:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		},
		EntryPrice: entry,
		StopLoss:   sl,
		TPLevels: [3]signal.TPLevel{
			{Price: tp1, Weight: 0.5},
			{Price: tp2, Weight: 0.3},
			{Price: tp3, Weight: 0.2},
		},
		RiskRewardRatio: 1.5,
		PositionSize:    1.0,
	}
}

func TestTPSLPrecedenceSLWins(t *testing.T) {
	m := NewMatcher(DefaultConfig(), nil, nil, 10000)
	sig := buySignal(50000, 49500, 50500, 51000, 51500)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	pos, err := m.AcceptSignal(bg, sig, "BTCUSDT", now)
	if err != nil {
		t.Fatalf("AcceptSignal: %v", err)
	}

	m.OnTick(bg, "BTCUSDT", 50000, 50100, 49900, now)
	if pos.State != StateOpen {
		t.Fatalf("expected position to open on fill bar, got %v", pos.State)
	}

	m.OnTick(bg, "BTCUSDT", 50000, 50600, 49400, now.Add(time.Minute))

	if pos.State != StateClosed {
		t.Fatalf("expected position closed, got %v", pos.State)
	}
	if pos.ExitReason != ExitStopLoss {
		t.Fatalf("expected STOP_LOSS precedence, got %v", pos.ExitReason)
	}
	if pos.RealizedPnL == nil || *pos.RealizedPnL != (49500-50000)*1.0 {
		t.Fatalf("unexpected realized pnl: %+v", pos.RealizedPnL)
	}
}

func TestPendingOpensOnlyWhenEntryInBarRange(t *testing.T) {
	m := NewMatcher(DefaultConfig(), nil, nil, 10000)
	sig := buySignal(50000, 49500, 50500, 51000, 51500)
	now := time.Now()

	pos, _ := m.AcceptSignal(bg, sig, "BTCUSDT", now)

	m.OnTick(bg, "BTCUSDT", 50900, 51000, 50800, now)
	if pos.State != StatePending {
		t.Fatalf("expected position to stay PENDING when entry out of bar range, got %v", pos.State)
	}

	m.OnTick(bg, "BTCUSDT", 50000, 50100, 49900, now)
	if pos.State != StateOpen {
		t.Fatalf("expected position to OPEN once entry is within bar range, got %v", pos.State)
	}
}

func TestPartialTakeProfitReducesQuantityWithoutClosing(t *testing.T) {
	m := NewMatcher(DefaultConfig(), nil, nil, 10000)
	sig := buySignal(50000, 49500, 50500, 51000, 51500)
	now := time.Now()

	pos, _ := m.AcceptSignal(bg, sig, "BTCUSDT", now)
	m.OnTick(bg, "BTCUSDT", 50000, 50100, 49900, now)

	m.OnTick(bg, "BTCUSDT", 50500, 50550, 50400, now.Add(time.Minute))

	if pos.State != StateOpen {
		t.Fatalf("expected position to remain OPEN after partial TP, got %v", pos.State)
	}
	if len(pos.TakeProfit) != 2 {
		t.Fatalf("expected one TP level consumed, got %d remaining", len(pos.TakeProfit))
	}
	if pos.Quantity != 0.5 {
		t.Fatalf("expected remaining quantity 0.5 after 50%% TP1, got %v", pos.Quantity)
	}
}

func TestLiquidationTakesPrecedenceOverTakeProfit(t *testing.T) {
	cfg := Config{DefaultLeverage: 10, MaintenanceMarginRate: 0.005}
	m := NewMatcher(cfg, nil, nil, 10000)
	sig := buySignal(50000, 49500, 50500, 51000, 51500)
	now := time.Now()

	pos, _ := m.AcceptSignal(bg, sig, "BTCUSDT", now)
	m.OnTick(bg, "BTCUSDT", 50000, 50100, 49900, now)
	if !pos.HasLiquidation {
		t.Fatal("expected a liquidation price at 10x leverage")
	}

	// Bar spans both the liquidation price (below) and TP1 (above).
	m.OnTick(bg, "BTCUSDT", 50000, 50600, pos.LiquidationPrice-1, now.Add(time.Minute))

	if pos.ExitReason != ExitLiquidation {
		t.Fatalf("expected liquidation to win over TP, got %v", pos.ExitReason)
	}
}

func TestManualCloseIsIdempotent(t *testing.T) {
	m := NewMatcher(DefaultConfig(), nil, nil, 10000)
	sig := buySignal(50000, 49500, 50500, 51000, 51500)
	now := time.Now()

	pos, _ := m.AcceptSignal(bg, sig, "BTCUSDT", now)
	m.OnTick(bg, "BTCUSDT", 50000, 50100, 49900, now)

	if err := m.CloseManually(bg, pos.ID, 50200, now); err != nil {
		t.Fatalf("first CloseManually: %v", err)
	}
	if pos.State != StateClosed || pos.ExitReason != ExitManual {
		t.Fatalf("expected MANUAL close, got state=%v reason=%v", pos.State, pos.ExitReason)
	}
	firstPnL := *pos.RealizedPnL

	if err := m.CloseManually(bg, pos.ID, 99999, now); err != nil {
		t.Fatalf("second CloseManually should be a no-op, got error: %v", err)
	}
	if *pos.RealizedPnL != firstPnL {
		t.Fatalf("expected idempotent close to leave realized pnl unchanged, got %v want %v", *pos.RealizedPnL, firstPnL)
	}
}

func TestOnlyOneStateTransitionPerTick(t *testing.T) {
	m := NewMatcher(DefaultConfig(), nil, nil, 10000)
	// TP1 and TP2 both within the same bar's range — only TP1 should apply.
	sig := buySignal(50000, 49500, 50500, 51000, 51500)
	now := time.Now()

	pos, _ := m.AcceptSignal(bg, sig, "BTCUSDT", now)
	m.OnTick(bg, "BTCUSDT", 50000, 50100, 49900, now)

	m.OnTick(bg, "BTCUSDT", 51200, 51300, 50900, now.Add(time.Minute))

	if len(pos.TakeProfit) != 2 {
		t.Fatalf("expected exactly one TP level consumed per tick, got %d remaining", len(pos.TakeProfit))
	}
}
