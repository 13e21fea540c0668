// Package candle holds the immutable OHLCV value object the rest of
// the engine is built on (component A).
package candle

import (
	"fmt"
	"time"

	"cryptosignal-engine/internal/errs"
)

// Candle is an immutable OHLCV bar. Zero value is never valid; always
// construct through New so invariants are enforced once, at the
// boundary, rather than re-checked by every consumer.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// New validates and constructs a Candle. Construction that violates
// the OHLC invariants fails with a *errs.Error of KindInvalidCandle,
// per spec §3/§7 — candles never enter a buffer in a broken state.
func New(ts time.Time, open, high, low, close, volume float64) (Candle, error) {
	c := Candle{Timestamp: ts, Open: open, High: high, Low: low, Close: close, Volume: volume}
	if err := c.validate(); err != nil {
		return Candle{}, err
	}
	return c, nil
}

func (c Candle) validate() error {
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return errs.New(errs.KindInvalidCandle, fmt.Sprintf("prices must be positive: O=%v H=%v L=%v C=%v", c.Open, c.High, c.Low, c.Close))
	}
	if c.Volume < 0 {
		return errs.New(errs.KindInvalidCandle, fmt.Sprintf("volume must be non-negative, got %v", c.Volume))
	}
	maxOCL := max3(c.Open, c.Close, c.Low)
	if c.High < maxOCL {
		return errs.New(errs.KindInvalidCandle, fmt.Sprintf("high %v must be >= max(open,close,low) %v", c.High, maxOCL))
	}
	minOCH := min3(c.Open, c.Close, c.High)
	if c.Low > minOCH {
		return errs.New(errs.KindInvalidCandle, fmt.Sprintf("low %v must be <= min(open,close,high) %v", c.Low, minOCH))
	}
	return nil
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

func min3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// TypicalPrice returns (high+low+close)/3, the VWAP input price.
func (c Candle) TypicalPrice() float64 {
	return (c.High + c.Low + c.Close) / 3
}

// IsGreen reports whether the candle closed above its open.
func (c Candle) IsGreen() bool { return c.Close > c.Open }

// IsRed reports whether the candle closed below its open.
func (c Candle) IsRed() bool { return c.Close < c.Open }

// TrueRange computes the true range of c against the previous candle,
// per spec §4.C: max(h-l, |h-prev.c|, |l-prev.c|).
func TrueRange(cur, prev Candle) float64 {
	hl := cur.High - cur.Low
	hc := abs(cur.High - prev.Close)
	lc := abs(cur.Low - prev.Close)
	return max3(hl, hc, lc)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
