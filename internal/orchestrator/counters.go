package orchestrator

import "sync/atomic"

// counters backs the orchestrator's own health snapshot (spec §7's
// dropped_updates/matcher_errors) independently of whatever external
// health.Recorder the caller wires for Prometheus scraping — see
// health.Fanout for combining the two.
type counters struct {
	droppedSignal   int64
	droppedUpdate   int64
	matcherErrors   int64
	slTPAmbiguity   int64
	liquidation     int64
	stateCorruption int64
}

func (c *counters) RecordSLTPAmbiguity()         { atomic.AddInt64(&c.slTPAmbiguity, 1) }
func (c *counters) RecordLiquidationPrecedence() { atomic.AddInt64(&c.liquidation, 1) }
func (c *counters) RecordMatcherError()          { atomic.AddInt64(&c.matcherErrors, 1) }
func (c *counters) recordStateCorruption()       { atomic.AddInt64(&c.stateCorruption, 1) }
func (c *counters) recordDroppedSignal()         { atomic.AddInt64(&c.droppedSignal, 1) }
func (c *counters) recordDroppedUpdate()         { atomic.AddInt64(&c.droppedUpdate, 1) }

func (c *counters) droppedUpdates() int64 {
	return atomic.LoadInt64(&c.droppedSignal) + atomic.LoadInt64(&c.droppedUpdate)
}

func (c *counters) matcherErrorCount() int64 { return atomic.LoadInt64(&c.matcherErrors) }
