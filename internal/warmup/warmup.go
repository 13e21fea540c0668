// Package warmup implements the cold-start history load (component E):
// it fetches historical candles, replays them through the aggregator
// and indicator workspace, and flips the engine from cold to live
// without ever firing a signal or touching the paper matcher.
package warmup

import (
	"context"

	"cryptosignal-engine/internal/aggregator"
	"cryptosignal-engine/internal/candle"
	"cryptosignal-engine/internal/errs"
	"cryptosignal-engine/internal/indicators"
	"cryptosignal-engine/internal/logging"
	"cryptosignal-engine/internal/ports"
)

// Config controls the warm-up fetch.
type Config struct {
	Symbol          string
	Interval        string // typically "15m" or "1h" — the analysis timeframe
	Limit           int    // default 1000
	VWAPPeriod      int
	StochRSIParams  StochRSIParams
	ADXPeriod       int
}

// StochRSIParams mirrors the four StochRSI window sizes.
type StochRSIParams struct {
	NRSI, NStoch, KPeriod, DPeriod int
}

// DefaultConfig matches spec §4.E ("default 1000 at 15m ≈ 10 days").
func DefaultConfig(symbol string) Config {
	return Config{
		Symbol:         symbol,
		Interval:       "15m",
		Limit:          1000,
		VWAPPeriod:     1,
		StochRSIParams: StochRSIParams{NRSI: 14, NStoch: 14, KPeriod: 3, DPeriod: 3},
		ADXPeriod:      14,
	}
}

// Result carries the post-replay indicator snapshot plus the
// degraded-mode accounting described in spec §4.E / SPEC_FULL.md.
type Result struct {
	Success         bool
	CandlesProcessed int
	VWAPValue       float64
	StochRSIK       float64
	StochRSID       float64
	ADXValue        float64
	Degraded        bool // fewer than 80% of the requested candles, or fewer than 50 in all, were available
	Err             error
}

// thresholdRatio is the minimum fraction of the requested history that
// must be available before a warm-up is considered non-degraded.
const thresholdRatio = 0.80

// minAbsoluteCandles is the floor below which warm-up is considered
// degraded even if the ratio threshold passes on a tiny request.
const minAbsoluteCandles = 50

// Run fetches history from the port and replays it directly into agg's
// analysis-timeframe buffer via ReplayClosed, folding VWAP/StochRSI/ADX
// state alongside. It never invokes a signal engine or paper matcher —
// warm-up is observation-only (spec §4.E).
func Run(ctx context.Context, cfg Config, history ports.HistoryPort, agg *aggregator.Aggregator) Result {
	logger := logging.WithComponent("warmup")

	if cfg.Limit <= 0 {
		cfg.Limit = 1000
	}

	candles, err := history.FetchKlines(ctx, cfg.Symbol, cfg.Interval, cfg.Limit)
	if err != nil {
		wrapped := errs.Wrap(errs.KindExternalUnavailable, "history port failed during warm-up", err)
		logger.Error("warm-up fetch failed", "symbol", cfg.Symbol, "interval", cfg.Interval, "error", wrapped)
		return Result{Success: false, Err: wrapped}
	}

	for _, c := range candles {
		// Each bar returned by the history port is already a closed
		// candle at cfg.Interval (the analysis timeframe), not a raw 1m
		// constituent, so it is replayed straight into the matching
		// buffer via ReplayClosed -- never through the 1m aggregation
		// path, and never triggering a close callback.
		agg.ReplayClosed(cfg.Interval, c)
	}

	processed := len(candles)
	degraded := processed < minAbsoluteCandles || float64(processed) < float64(cfg.Limit)*thresholdRatio

	if degraded {
		logger.Warn("warm-up degraded", "symbol", cfg.Symbol, "requested", cfg.Limit, "received", processed)
	}

	result := Result{
		Success:          true,
		CandlesProcessed: processed,
		Degraded:         degraded,
	}

	closes := closesOf(candles)
	vwapState := indicators.NewVWAPState()
	var vwap indicators.Scalar
	for _, c := range candles {
		vwap = vwapState.Advance(c)
	}
	if vwap.Ready {
		result.VWAPValue = vwap.Value
	}

	stoch := indicators.StochRSI(closes, cfg.StochRSIParams.NRSI, cfg.StochRSIParams.NStoch, cfg.StochRSIParams.KPeriod, cfg.StochRSIParams.DPeriod)
	if stoch.Ready {
		result.StochRSIK = stoch.K
		result.StochRSID = stoch.D
	}

	adxPeriod := cfg.ADXPeriod
	if adxPeriod <= 0 {
		adxPeriod = 14
	}
	adx := indicators.ADX(candles, adxPeriod)
	if adx.Ready {
		result.ADXValue = adx.ADX
	}

	return result
}

func closesOf(candles []candle.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
