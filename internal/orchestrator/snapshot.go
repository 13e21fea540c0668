package orchestrator

import (
	"time"

	"cryptosignal-engine/internal/candle"
	"cryptosignal-engine/internal/paper"
	"cryptosignal-engine/internal/signal"
)

// HealthSnapshot is the user-visible operational summary of spec §7.
type HealthSnapshot struct {
	IsRunning      bool
	LastTickTime   time.Time
	WarmupOK       bool
	DroppedUpdates int64
	MatcherErrors  int64
}

// AccountSummary is the paper-trading wallet snapshot of spec §3/§4.J.
type AccountSummary struct {
	WalletBalance  float64
	MarginBalance  float64
	UsedMargin     float64
	Available      float64
	OpenPositions  int
}

// Health returns a point-in-time operational snapshot. Safe from any
// goroutine.
func (o *Orchestrator) Health() HealthSnapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return HealthSnapshot{
		IsRunning:      o.running,
		LastTickTime:   o.lastTickTime,
		WarmupOK:       o.warmupOK,
		DroppedUpdates: o.counters.droppedUpdates(),
		MatcherErrors:  o.counters.matcherErrorCount(),
	}
}

// LatestCandle returns the most recent candle for the given timeframe
// ("1m", "15m", "1h") and whether one exists yet.
func (o *Orchestrator) LatestCandle(timeframe string) (candle.Candle, bool) {
	return o.bufferFor(timeframe).Latest()
}

// LastNCandles returns up to n of the most recent candles for a
// timeframe, oldest first.
func (o *Orchestrator) LastNCandles(timeframe string, n int) []candle.Candle {
	return o.bufferFor(timeframe).Last(n)
}

func (o *Orchestrator) bufferFor(timeframe string) interface {
	Latest() (candle.Candle, bool)
	Last(n int) []candle.Candle
} {
	switch timeframe {
	case "1h":
		return o.agg.OneHourBuffer()
	case "15m":
		return o.agg.FifteenMinuteBuffer()
	default:
		return o.agg.OneMinuteBuffer()
	}
}

// LatestSignal returns the most recently emitted enriched signal and
// whether one has been produced yet (spec §4.J).
func (o *Orchestrator) LatestSignal() (signal.EnrichedSignal, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.latestSignal, o.hasSignal
}

// Account returns the paper-trading account summary, computed from the
// matcher's tracked positions at the latest mark.
func (o *Orchestrator) Account() AccountSummary {
	positions := o.matcher.Positions()
	summary := AccountSummary{WalletBalance: o.matcher.WalletBalance()}

	latest, _ := o.LatestCandle(string(o.cfg.AnalysisTimeframe))
	mark := latest.Close

	var unrealized, usedMargin float64
	openCount := 0
	for _, p := range positions {
		if p.State != paper.StateOpen {
			continue
		}
		openCount++
		unrealized += p.UnrealizedPnL(mark)
		usedMargin += p.Margin
	}

	summary.MarginBalance = summary.WalletBalance + unrealized
	summary.UsedMargin = usedMargin
	summary.Available = summary.MarginBalance - usedMargin
	if summary.Available < 0 {
		summary.Available = 0
	}
	summary.OpenPositions = openCount
	return summary
}

// Positions returns a snapshot of tracked positions, optionally
// filtered by state.
func (o *Orchestrator) Positions(state paper.State) []*paper.Position {
	var out []*paper.Position
	for _, p := range o.matcher.Positions() {
		if state == "" || p.State == state {
			out = append(out, p)
		}
	}
	return out
}
