package cache

import (
	"context"
	"encoding/json"
	"fmt"
)

// Key prefixes for the orchestrator snapshot cache, namespaced per
// symbol so multiple engine instances can share one Redis instance.
const (
	prefixCandle  = "engine:%s:candle:%s" // symbol, timeframe
	prefixSignal  = "engine:%s:signal"
	prefixAccount = "engine:%s:account"
)

// CandleSnapshot is the JSON shape stored for SetLatestCandle.
type CandleSnapshot struct {
	Timestamp int64   `json:"timestamp"` // unix millis
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// SignalSnapshot is the JSON shape stored for SetLatestSignal.
type SignalSnapshot struct {
	Side            string  `json:"side"`
	Confidence      float64 `json:"confidence"`
	EntryPrice      float64 `json:"entry_price"`
	StopLoss        float64 `json:"stop_loss"`
	RiskRewardRatio float64 `json:"risk_reward_ratio"`
	TimestampUnix   int64   `json:"timestamp_unix"`
}

// AccountSnapshot is the JSON shape stored for SetAccount.
type AccountSnapshot struct {
	WalletBalance float64 `json:"wallet_balance"`
	MarginBalance float64 `json:"margin_balance"`
	UsedMargin    float64 `json:"used_margin"`
	Available     float64 `json:"available"`
	OpenPositions int     `json:"open_positions"`
}

// SnapshotCache mirrors the orchestrator's latest state into Redis so
// a horizontally-scaled read replica (a second httpapi process, a
// dashboard) can serve /api/candles, /api/signal, and /api/account
// without a direct connection to the orchestrator's own process.
// Every write is best-effort: a Redis outage degrades reads back to
// the orchestrator's in-process accessors, it never blocks ingestion.
type SnapshotCache struct {
	svc *Service
}

// NewSnapshotCache wraps an already-connected Service. svc may be nil,
// in which case every method is a no-op/cache-miss -- the caller is
// expected to fall back to the orchestrator's own accessors.
func NewSnapshotCache(svc *Service) *SnapshotCache {
	return &SnapshotCache{svc: svc}
}

func (c *SnapshotCache) SetLatestCandle(ctx context.Context, symbol, timeframe string, s CandleSnapshot) error {
	if c.svc == nil {
		return nil
	}
	return c.svc.Set(ctx, fmt.Sprintf(prefixCandle, symbol, timeframe), s)
}

func (c *SnapshotCache) LatestCandle(ctx context.Context, symbol, timeframe string) (CandleSnapshot, bool) {
	var out CandleSnapshot
	if !c.get(ctx, fmt.Sprintf(prefixCandle, symbol, timeframe), &out) {
		return CandleSnapshot{}, false
	}
	return out, true
}

func (c *SnapshotCache) SetLatestSignal(ctx context.Context, symbol string, s SignalSnapshot) error {
	if c.svc == nil {
		return nil
	}
	return c.svc.Set(ctx, fmt.Sprintf(prefixSignal, symbol), s)
}

func (c *SnapshotCache) LatestSignal(ctx context.Context, symbol string) (SignalSnapshot, bool) {
	var out SignalSnapshot
	if !c.get(ctx, fmt.Sprintf(prefixSignal, symbol), &out) {
		return SignalSnapshot{}, false
	}
	return out, true
}

func (c *SnapshotCache) SetAccount(ctx context.Context, symbol string, s AccountSnapshot) error {
	if c.svc == nil {
		return nil
	}
	return c.svc.Set(ctx, fmt.Sprintf(prefixAccount, symbol), s)
}

func (c *SnapshotCache) Account(ctx context.Context, symbol string) (AccountSnapshot, bool) {
	var out AccountSnapshot
	if !c.get(ctx, fmt.Sprintf(prefixAccount, symbol), &out) {
		return AccountSnapshot{}, false
	}
	return out, true
}

func (c *SnapshotCache) get(ctx context.Context, key string, dest interface{}) bool {
	if c.svc == nil {
		return false
	}
	raw, err := c.svc.Get(ctx, key)
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false
	}
	return true
}
