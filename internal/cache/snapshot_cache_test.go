package cache

import (
	"context"
	"testing"
)

func TestSnapshotCacheIsANoopWithoutAConnectedService(t *testing.T) {
	c := NewSnapshotCache(nil)
	ctx := context.Background()

	if err := c.SetLatestCandle(ctx, "BTCUSDT", "15m", CandleSnapshot{Close: 100}); err != nil {
		t.Fatalf("expected nil-service Set to be a no-op, got %v", err)
	}

	if _, ok := c.LatestCandle(ctx, "BTCUSDT", "15m"); ok {
		t.Fatal("expected a cache miss without a connected service")
	}
	if _, ok := c.LatestSignal(ctx, "BTCUSDT"); ok {
		t.Fatal("expected a cache miss without a connected service")
	}
	if _, ok := c.Account(ctx, "BTCUSDT"); ok {
		t.Fatal("expected a cache miss without a connected service")
	}
}
