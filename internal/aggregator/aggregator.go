// Package aggregator turns a stream of 1-minute candles into 15m and
// 1h bars (component D), distinguishing forming ticks from closed
// candles and enforcing the daily/period boundary closure rules.
package aggregator

import (
	"cryptosignal-engine/internal/buffer"
	"cryptosignal-engine/internal/candle"
	"cryptosignal-engine/internal/errs"
	"cryptosignal-engine/internal/logging"
)

const (
	fifteenMinConstituents = 15
	oneHourConstituents    = 60
)

// CloseCallback is invoked synchronously, on the ingestion thread,
// whenever a higher-timeframe candle closes.
type CloseCallback func(candle.Candle)

// Aggregator owns the pending-slot buffers and the forming-candle
// tracking described in spec §4.D. It is not safe for concurrent use —
// per §5, only the single ingestion thread ever calls OnTick.
type Aggregator struct {
	oneMin     *buffer.Ring
	fifteenMin *buffer.Ring
	oneHour    *buffer.Ring

	pending15 []candle.Candle
	pending60 []candle.Candle

	forming    candle.Candle
	hasForming bool

	last15 candle.Candle
	has15  bool
	last1h candle.Candle
	has1h  bool

	on15Close []CloseCallback
	on1hClose []CloseCallback

	logger *logging.Logger
}

// Config controls the capacities of the three timeframe buffers.
type Config struct {
	OneMinCapacity     int
	FifteenMinCapacity int
	OneHourCapacity    int
}

// DefaultConfig matches spec §3 (2000 for 1m, 100+ for the higher frames).
func DefaultConfig() Config {
	return Config{OneMinCapacity: 2000, FifteenMinCapacity: 200, OneHourCapacity: 200}
}

// New constructs an Aggregator with the given buffer capacities.
func New(cfg Config) *Aggregator {
	return &Aggregator{
		oneMin:     buffer.New(cfg.OneMinCapacity),
		fifteenMin: buffer.New(cfg.FifteenMinCapacity),
		oneHour:    buffer.New(cfg.OneHourCapacity),
		logger:     logging.WithComponent("aggregator"),
	}
}

// OnBar15mClose registers a subscriber for completed 15m candles.
func (a *Aggregator) OnBar15mClose(cb CloseCallback) { a.on15Close = append(a.on15Close, cb) }

// OnBar1hClose registers a subscriber for completed 1h candles.
func (a *Aggregator) OnBar1hClose(cb CloseCallback) { a.on1hClose = append(a.on1hClose, cb) }

// OneMinuteBuffer, FifteenMinuteBuffer, OneHourBuffer expose the
// underlying rings for indicator kernels and accessors to read.
func (a *Aggregator) OneMinuteBuffer() *buffer.Ring     { return a.oneMin }
func (a *Aggregator) FifteenMinuteBuffer() *buffer.Ring { return a.fifteenMin }
func (a *Aggregator) OneHourBuffer() *buffer.Ring       { return a.oneHour }

// LastFifteenMin and LastOneHour return the most recently closed
// higher-timeframe candle.
func (a *Aggregator) LastFifteenMin() (candle.Candle, bool) { return a.last15, a.has15 }
func (a *Aggregator) LastOneHour() (candle.Candle, bool)    { return a.last1h, a.has1h }

// OnTick is the aggregator's ingress: updates the forming 1m slot on
// every call, and on is_closed=true commits to the 1m buffer, folds
// into the pending 15m/1h slots, and evaluates closure. A non-nil
// error is always of KindStateCorruption — per spec §7 it is logged
// by the caller but the aggregator has already recovered (slot
// cleared) so ingestion can resume at the next candle.
func (a *Aggregator) OnTick(c candle.Candle, isClosed bool) error {
	a.forming = c
	a.hasForming = true

	if !isClosed {
		return nil
	}

	a.oneMin.Push(c)

	var corruption error
	if err := a.foldClosed15(c); err != nil {
		corruption = err
	}
	if err := a.foldClosed1h(c); err != nil {
		corruption = err
	}
	return corruption
}

// foldClosed15 folds c into the 15m pending slot. A candle whose UTC
// minute sits on a 15-minute boundary signals the *previous* slot is
// due — if that slot is non-empty (a gap left it short of 15
// constituents), it closes first, before c starts the next slot.
// Reaching 15 constituents always closes, independent of the boundary.
func (a *Aggregator) foldClosed15(c candle.Candle) error {
	if c.Timestamp.UTC().Minute()%15 == 0 && len(a.pending15) > 0 {
		if err := a.closePending15(); err != nil {
			return err
		}
	}

	a.pending15 = append(a.pending15, c)
	if len(a.pending15) > fifteenMinConstituents {
		a.pending15 = nil
		a.logger.Error("15m pending slot exceeded its constituent limit", "timestamp", c.Timestamp)
		return errs.New(errs.KindStateCorruption, "15m pending slot exceeded its constituent limit")
	}
	if len(a.pending15) == fifteenMinConstituents {
		return a.closePending15()
	}
	return nil
}

func (a *Aggregator) closePending15() error {
	agg, err := aggregate(a.pending15)
	a.pending15 = nil
	if err != nil {
		return errs.Wrap(errs.KindStateCorruption, "failed to aggregate 15m candle", err)
	}
	a.fifteenMin.Push(agg)
	a.last15, a.has15 = agg, true
	for _, cb := range a.on15Close {
		cb(agg)
	}
	return nil
}

// foldClosed1h mirrors foldClosed15 for the 1h timeframe.
func (a *Aggregator) foldClosed1h(c candle.Candle) error {
	if c.Timestamp.UTC().Minute() == 0 && len(a.pending60) > 0 {
		if err := a.closePending1h(); err != nil {
			return err
		}
	}

	a.pending60 = append(a.pending60, c)
	if len(a.pending60) > oneHourConstituents {
		a.pending60 = nil
		a.logger.Error("1h pending slot exceeded its constituent limit", "timestamp", c.Timestamp)
		return errs.New(errs.KindStateCorruption, "1h pending slot exceeded its constituent limit")
	}
	if len(a.pending60) == oneHourConstituents {
		return a.closePending1h()
	}
	return nil
}

func (a *Aggregator) closePending1h() error {
	agg, err := aggregate(a.pending60)
	a.pending60 = nil
	if err != nil {
		return errs.Wrap(errs.KindStateCorruption, "failed to aggregate 1h candle", err)
	}
	a.oneHour.Push(agg)
	a.last1h, a.has1h = agg, true
	for _, cb := range a.on1hClose {
		cb(agg)
	}
	return nil
}

// ReplayClosed pushes an already-closed higher-timeframe candle
// directly into the 15m or 1h buffer, bypassing the 1m pending-slot
// folding machinery and close callbacks entirely. It exists for
// warm-up replay (spec §4.E), where the history port returns candles
// already aggregated at the analysis timeframe -- they are not raw 1m
// constituents, so folding them through foldClosed15/foldClosed1h
// would both corrupt the pending slots (one bar masquerading as many)
// and spuriously invoke on15Close/on1hClose, which would run the
// signal/matcher pipeline during an observation-only phase. timeframe
// must be "15m" or "1h"; any other value is a no-op.
func (a *Aggregator) ReplayClosed(timeframe string, c candle.Candle) {
	switch timeframe {
	case "15m":
		a.fifteenMin.Push(c)
		a.last15, a.has15 = c, true
	case "1h":
		a.oneHour.Push(c)
		a.last1h, a.has1h = c, true
	}
}

// Forming15m aggregates the current 15m pending slot plus the forming
// 1m tick into an ephemeral bar for live charting. It is never pushed
// to the buffer and never triggers a close callback, per spec §4.D.
func (a *Aggregator) Forming15m() (candle.Candle, bool) {
	return a.formingOf(a.pending15)
}

// Forming1h mirrors Forming15m for the 1h timeframe.
func (a *Aggregator) Forming1h() (candle.Candle, bool) {
	return a.formingOf(a.pending60)
}

func (a *Aggregator) formingOf(pending []candle.Candle) (candle.Candle, bool) {
	all := pending
	if a.hasForming {
		all = append(append([]candle.Candle{}, pending...), a.forming)
	}
	if len(all) == 0 {
		return candle.Candle{}, false
	}
	agg, err := aggregate(all)
	if err != nil {
		return candle.Candle{}, false
	}
	return agg, true
}

// aggregate folds a non-empty, chronologically-ordered slice of 1m
// candles into a single higher-timeframe candle: open = first.open,
// high = max(high), low = min(low), close = last.close,
// volume = Σvolume, timestamp = first.timestamp (spec §4.D).
func aggregate(candles []candle.Candle) (candle.Candle, error) {
	if len(candles) == 0 {
		return candle.Candle{}, errs.New(errs.KindStateCorruption, "cannot aggregate an empty constituent slice")
	}
	first := candles[0]
	high := first.High
	low := first.Low
	var volume float64
	for _, c := range candles {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
		volume += c.Volume
	}
	last := candles[len(candles)-1]
	return candle.New(first.Timestamp, first.Open, high, low, last.Close, volume)
}
