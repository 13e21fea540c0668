// Package indicators implements the pure kernel functions of
// component C: RSI, EMA, SMA, ATR, ADX, VWAP, Bollinger Bands,
// StochRSI, swing-point detection, volume MA and volume-spike.
//
// Every kernel is a pure function of a candle slice (plus, where
// noted, prior state) to a typed result. None of them ever panic or
// return an error for insufficient input — "not enough data yet" is
// always a typed not-ready value (Scalar.Ready == false, or the
// equivalent field on a composite result), so callers treat it as a
// non-signal rather than as a failure. Streaming and recomputing
// realizations of the same kernel must agree to within 1e-9.
package indicators

// Epsilon is the fixed tolerance used for near-zero float comparisons
// across the indicator suite (spec §9).
const Epsilon = 1e-9

// Scalar is a typed "maybe" result for single-number kernels (EMA,
// SMA, RSI, ATR, VWAP). Ready is false when the input did not carry
// enough history; Value is meaningless in that case.
type Scalar struct {
	Value float64
	Ready bool
}

// NotReady is the not-ready Scalar sentinel.
func NotReady() Scalar { return Scalar{} }

// ReadyValue wraps a computed value as a ready Scalar.
func ReadyValue(v float64) Scalar { return Scalar{Value: v, Ready: true} }
