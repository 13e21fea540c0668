// Package ports declares the interfaces the engine core consumes but
// does not implement — the external collaborators named in spec §6.
// Concrete adapters live in internal/binancefeed, internal/storage, etc.
package ports

import (
	"context"
	"time"

	"cryptosignal-engine/internal/candle"
)

// HistoryPort fetches historical candles for warm-up. Implementations
// must be idempotent and return an empty, non-error sequence on
// recoverable failure (spec §6) — the engine treats an empty result as
// a degraded warm-up, not a fatal error.
type HistoryPort interface {
	FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]candle.Candle, error)
}

// TopOfBook is a point-in-time best bid/ask snapshot.
type TopOfBook struct {
	Bid    float64
	Ask    float64
	BidQty float64
	AskQty float64
	Ts     time.Time
}

// Fresh reports whether the snapshot is no older than maxAge.
func (t TopOfBook) Fresh(maxAge time.Duration) bool {
	return time.Since(t.Ts) <= maxAge
}

// TopOfBookPort is optional; the enricher must degrade gracefully
// when it returns an error or is never wired (spec §6).
type TopOfBookPort interface {
	BestBidAsk(ctx context.Context, symbol string) (TopOfBook, error)
}

// OrderRepositoryPort is declared alongside the Position type it
// persists, in internal/paper, to avoid an any-typed interface here —
// see internal/paper.OrderRepository.
