// Package orchestrator wires components A-H into the single-threaded
// engine of spec §4.I/J/K: it owns the buffers, aggregator, indicator
// workspace, signal engine, enricher and matcher, drives them from one
// ingestion entrypoint (OnTick), and exposes snapshot accessors plus
// bounded-channel subscriber fanout.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"cryptosignal-engine/internal/aggregator"
	"cryptosignal-engine/internal/buffer"
	"cryptosignal-engine/internal/candle"
	"cryptosignal-engine/internal/errs"
	"cryptosignal-engine/internal/health"
	"cryptosignal-engine/internal/indicators"
	"cryptosignal-engine/internal/logging"
	"cryptosignal-engine/internal/paper"
	"cryptosignal-engine/internal/ports"
	"cryptosignal-engine/internal/risk"
	"cryptosignal-engine/internal/signal"
	"cryptosignal-engine/internal/warmup"
)

// AnalysisTimeframe picks which closed higher-timeframe candle drives
// the signal engine (spec §4.F: "typically 15m or 1h, configurable").
type AnalysisTimeframe string

const (
	Analysis15m AnalysisTimeframe = "15m"
	Analysis1h  AnalysisTimeframe = "1h"
)

// Config bundles every sub-component's configuration plus the
// orchestrator's own knobs.
type Config struct {
	Symbol            string
	AnalysisTimeframe AnalysisTimeframe
	Aggregator        aggregator.Config
	Warmup            warmup.Config
	Signal            signal.Config
	Enrich            signal.EnrichConfig
	Risk              risk.Config
	Matcher           paper.Config
	EMAFastPeriod     int // default 7
	EMASlowPeriod     int // default 25
	ATRPeriod         int // default 14
	SwingLookback     int // default 5
	VolumeMAPeriod    int // default 20
	VolumeSpikeThresh float64
	GraceWindow       time.Duration // default 5s, spec §4.K
}

// DefaultConfig returns every sub-component's own default, matching
// spec §4 defaults throughout.
func DefaultConfig(symbol string) Config {
	return Config{
		Symbol:            symbol,
		AnalysisTimeframe: Analysis15m,
		Aggregator:        aggregator.DefaultConfig(),
		Warmup:            warmup.DefaultConfig(symbol),
		Signal:            signal.DefaultConfig(),
		Enrich:            signal.DefaultEnrichConfig("15m"),
		Risk:              risk.DefaultConfig(),
		Matcher:           paper.DefaultConfig(),
		EMAFastPeriod:     7,
		EMASlowPeriod:     25,
		ATRPeriod:         14,
		SwingLookback:     5,
		VolumeMAPeriod:    20,
		VolumeSpikeThresh: 2.0,
		GraceWindow:       5 * time.Second,
	}
}

// Orchestrator is the engine's single composition root. Every mutating
// method is expected to be called from one ingestion goroutine (spec
// §5); accessors take the read lock and are safe from any goroutine.
type Orchestrator struct {
	cfg Config

	mu            sync.RWMutex
	agg           *aggregator.Aggregator
	sigEngine     *signal.Engine
	enricher      *signal.Enricher
	riskMgr       *risk.Manager
	matcher       *paper.Matcher
	history       ports.HistoryPort
	topOfBook     ports.TopOfBookPort
	counters      *counters
	subscribers   *subscriberRegistry

	emaFast *indicators.EMAState
	emaSlow *indicators.EMAState
	atr     *indicators.ATRState
	vwap    *indicators.VWAPState
	vwapDay time.Time

	latestSignal   signal.EnrichedSignal
	hasSignal      bool
	running        bool
	warmupOK       bool
	lastTickTime   time.Time
	stopCh         chan struct{}

	logger *logging.Logger
}

// New constructs an Orchestrator. A ConfigError is the only
// construction failure per spec §7 — everything else degrades at
// runtime instead.
func New(cfg Config, history ports.HistoryPort, topOfBook ports.TopOfBookPort, repo paper.OrderRepository, healthRec paper.HealthRecorder, initialWallet float64) (*Orchestrator, error) {
	riskMgr, err := risk.New(cfg.Risk, time.Now())
	if err != nil {
		return nil, err
	}
	riskMgr.SetAccountBalance(initialWallet)

	c := &counters{}
	var combinedHealth paper.HealthRecorder = c
	if healthRec != nil {
		combinedHealth = health.NewFanout(c, healthRec)
	}

	o := &Orchestrator{
		cfg:         cfg,
		agg:         aggregator.New(cfg.Aggregator),
		sigEngine:   signal.New(cfg.Signal),
		enricher:    signal.NewEnricher(cfg.Enrich),
		riskMgr:     riskMgr,
		matcher:     paper.NewMatcher(cfg.Matcher, repo, combinedHealth, initialWallet),
		history:     history,
		topOfBook:   topOfBook,
		counters:    c,
		subscribers: newSubscriberRegistry(),
		emaFast:     indicators.NewEMAState(cfg.EMAFastPeriod),
		emaSlow:     indicators.NewEMAState(cfg.EMASlowPeriod),
		atr:         indicators.NewATRState(cfg.ATRPeriod),
		vwap:        indicators.NewVWAPState(),
		logger:      logging.WithComponent("orchestrator"),
	}
	o.agg.OnBar15mClose(o.onBar15Close)
	o.agg.OnBar1hClose(o.onBar1hClose)
	return o, nil
}

// Start begins consuming ticks: runs warm-up then flips to live.
// Idempotent: a second call returns at once with the first warm-up's
// outcome. Warm-up runs synchronously on the calling goroutine, so
// Start blocks until the REST history fetch and its replay finish.
func (o *Orchestrator) Start(ctx context.Context) warmup.Result {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return warmup.Result{Success: o.warmupOK}
	}
	o.running = true
	o.stopCh = make(chan struct{})
	o.mu.Unlock()

	result := warmup.Run(ctx, o.cfg.Warmup, o.history, o.agg)
	if result.Success {
		o.logger.Info("warmup complete", "candles", result.CandlesProcessed, "degraded", result.Degraded)
	} else {
		o.logger.Error("warmup failed", "error", result.Err)
	}

	o.mu.Lock()
	o.warmupOK = result.Success
	if result.VWAPValue > 0 {
		o.vwap = indicators.NewVWAPState()
	}
	o.mu.Unlock()

	return result
}

// Stop idempotently halts ingestion: further OnTick calls are rejected
// once this returns. Since OnTick runs synchronously on the caller's
// own ingestion goroutine (spec §5), there is no in-flight background
// work to await here beyond whatever the caller's own loop is doing
// when it invokes Stop — the grace window in Config is honored by that
// caller around its final OnTick/Stop sequence.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	close(o.stopCh)
	o.mu.Unlock()
}

// OnTick is the sole ingress (spec §6). is_closed=false updates the
// forming 1m candle only; is_closed=true commits it, may trigger a
// 15m/1h close (and downstream signal evaluation), and always marks
// open paper positions to market.
func (o *Orchestrator) OnTick(ctx context.Context, c candle.Candle, isClosed bool) {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.lastTickTime = c.Timestamp
	o.mu.Unlock()

	if err := o.agg.OnTick(c, isClosed); err != nil {
		if errs.Is(err, errs.KindStateCorruption) {
			o.counters.recordStateCorruption()
			o.logger.Error("aggregator state corruption", "error", err, "symbol", o.cfg.Symbol)
		}
		// InvalidCandle/InsufficientData-class failures are benign and
		// already logged by the caller that parsed the payload.
	}

	if isClosed {
		changed := o.matcher.OnTick(ctx, o.cfg.Symbol, c.Close, c.High, c.Low, c.Timestamp)
		for _, p := range changed {
			if p.State == paper.StateClosed {
				pnl := 0.0
				if p.RealizedPnL != nil {
					pnl = *p.RealizedPnL
				}
				o.riskMgr.RegisterClose(c.Timestamp, pnl)
			}
		}
		o.riskMgr.SetAccountBalance(o.matcher.WalletBalance())
	}
}

func (o *Orchestrator) onBar15Close(c candle.Candle) {
	if o.cfg.AnalysisTimeframe == Analysis15m {
		o.evaluate(context.Background(), c)
	}
}

func (o *Orchestrator) onBar1hClose(c candle.Candle) {
	if o.cfg.AnalysisTimeframe == Analysis1h {
		o.evaluate(context.Background(), c)
	}
}

// evaluate runs components C (incremental indicators) -> F -> G -> H
// on one freshly-closed analysis-timeframe candle. Never invoked
// during warm-up (warmup.Run only replays into the aggregator, never
// calls this).
func (o *Orchestrator) evaluate(ctx context.Context, c candle.Candle) {
	buf := o.analysisBuffer()
	history := buf.All()

	if c.Timestamp.UTC().YearDay() != o.vwapDayOf() {
		o.mu.Lock()
		o.vwap = indicators.NewVWAPState()
		o.vwapDay = c.Timestamp.UTC()
		o.mu.Unlock()
	}

	closes := closesOf(history)
	volumes := volumesOf(history)

	o.mu.Lock()
	emaFast := o.emaFast.Advance(c.Close)
	emaSlow := o.emaSlow.Advance(c.Close)
	atr := o.atr.Advance(c)
	vwap := o.vwap.Advance(c)
	o.mu.Unlock()

	in := signal.Inputs{
		Timestamp:   c.Timestamp,
		Open:        c.Open,
		Close:       c.Close,
		HistoryLen:  len(history),
		VWAP:        vwap,
		RSI:         indicators.RSI(closes, 14),
		Bollinger:   indicators.Bollinger(closes, 20, 2.0),
		StochRSI:    indicators.StochRSI(closes, 14, 14, 3, 3),
		ADX:         indicators.ADX(history, 14),
		VolumeSpike: indicators.VolumeSpike(volumes, o.cfg.VolumeMAPeriod, o.cfg.VolumeSpikeThresh),
	}

	raw := o.sigEngine.Evaluate(in)
	if raw.Side == signal.SideNeutral {
		o.subscribers.publishUpdate()
		return
	}

	enrichIn := signal.EnrichInputs{
		High:      c.High,
		Low:       c.Low,
		EMA7:      emaFast,
		EMA25:     emaSlow,
		ATR:       atr,
		RSI:       in.RSI,
		SwingHigh: indicators.FindRecentSwingHigh(history, o.cfg.SwingLookback),
		SwingLow:  indicators.FindRecentSwingLow(history, o.cfg.SwingLookback),
	}
	if o.topOfBook != nil {
		if tob, err := o.topOfBook.BestBidAsk(ctx, o.cfg.Symbol); err == nil {
			enrichIn.TopOfBook = &tob
		}
	}

	enriched := o.enricher.Enrich(raw, enrichIn, o.riskMgr)

	o.mu.Lock()
	o.latestSignal = enriched
	o.hasSignal = true
	o.mu.Unlock()

	if enriched.Side != signal.SideNeutral {
		if ok, reason := o.riskMgr.CanOpenPosition(c.Timestamp); ok {
			if _, err := o.matcher.AcceptSignal(ctx, enriched, o.cfg.Symbol, c.Timestamp); err == nil {
				o.riskMgr.RegisterOpen()
				o.logger.Info("position opened", "symbol", o.cfg.Symbol, "side", enriched.Side, "confidence", enriched.Confidence)
			} else {
				o.logger.Warn("matcher rejected signal", "symbol", o.cfg.Symbol, "error", err)
			}
		} else {
			o.logger.Info("signal suppressed by risk guardrail", "symbol", o.cfg.Symbol, "reason", reason)
		}
	}

	o.subscribers.publishSignal(enriched, o.cfg.Symbol)
	o.subscribers.publishUpdate()
}

func (o *Orchestrator) analysisBuffer() *buffer.Ring {
	if o.cfg.AnalysisTimeframe == Analysis1h {
		return o.agg.OneHourBuffer()
	}
	return o.agg.FifteenMinuteBuffer()
}

func (o *Orchestrator) vwapDayOf() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.vwapDay.YearDay()
}

// SubscribeSignal / SubscribeUpdate register synchronous listeners
// invoked inline on the ingestion thread (spec §4.J).
func (o *Orchestrator) SubscribeSignal(l SignalListener) { o.subscribers.SubscribeSignal(l) }
func (o *Orchestrator) SubscribeUpdate(l UpdateListener) { o.subscribers.SubscribeUpdate(l) }

// SubscribeSignalAsync / SubscribeUpdateAsync register bounded-channel
// subscribers with drop-oldest backpressure (spec §4.K).
func (o *Orchestrator) SubscribeSignalAsync() <-chan SignalEvent {
	return o.subscribers.SubscribeSignalAsync(o.counters.recordDroppedSignal)
}

func (o *Orchestrator) SubscribeUpdateAsync() <-chan struct{} {
	return o.subscribers.SubscribeUpdateAsync(o.counters.recordDroppedUpdate)
}

func closesOf(candles []candle.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func volumesOf(candles []candle.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}
