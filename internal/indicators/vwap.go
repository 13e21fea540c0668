package indicators

import (
	"cryptosignal-engine/internal/candle"
)

// VWAPState accumulates Σ(typical_price*volume) and Σ(volume) scoped
// to the current UTC trading day. It is a pure function of
// (previous candle date, cumulative state, incoming candle) per
// spec §9 — no package-level globals, one state struct per symbol.
type VWAPState struct {
	cumPV     float64
	cumV      float64
	lastDate  string // YYYY-MM-DD, UTC
	hasPrev   bool
}

// NewVWAPState creates an empty, unseeded VWAP accumulator.
func NewVWAPState() *VWAPState {
	return &VWAPState{}
}

// Advance folds in one candle, resetting the cumulative sums when the
// candle's UTC date differs from the previous candle's UTC date
// (spec §3 VWAP state, §8 VWAP resets). Returns the VWAP after this
// candle, not-ready only if the resulting cumulative volume is zero.
func (s *VWAPState) Advance(c candle.Candle) Scalar {
	date := c.Timestamp.UTC().Format("2006-01-02")
	if !s.hasPrev || date != s.lastDate {
		s.cumPV = 0
		s.cumV = 0
		s.hasPrev = true
	}
	s.lastDate = date

	s.cumPV += c.TypicalPrice() * c.Volume
	s.cumV += c.Volume

	if s.cumV < Epsilon {
		return NotReady()
	}
	return ReadyValue(s.cumPV / s.cumV)
}

// CumulativeVolume returns the volume accumulated in the current
// trading day, used to assert the reset invariant in tests.
func (s *VWAPState) CumulativeVolume() float64 { return s.cumV }

// VWAP recomputes the volume-weighted average price over a slice of
// candles that the caller has already restricted to the current UTC
// day (stateless form, must agree with VWAPState to within Epsilon).
func VWAP(candles []candle.Candle) Scalar {
	if len(candles) == 0 {
		return NotReady()
	}
	var pv, v float64
	day := candles[0].Timestamp.UTC().Format("2006-01-02")
	for _, c := range candles {
		if c.Timestamp.UTC().Format("2006-01-02") != day {
			continue
		}
		pv += c.TypicalPrice() * c.Volume
		v += c.Volume
	}
	if v < Epsilon {
		return NotReady()
	}
	return ReadyValue(pv / v)
}
