// Package health exposes the engine's operational counters as
// Prometheus metrics: dropped snapshot updates, matcher errors, and
// the two open-question tiebreak counters from spec §9.
package health

import "github.com/prometheus/client_golang/prometheus"

// Recorder is the concrete Prometheus-backed implementation of
// paper.HealthRecorder. It also registers a dropped-update and a
// state-corruption counter; no package in the engine calls
// RecordDroppedUpdate or RecordStateCorruption, so those two series
// stay at zero unless a caller increments them.
type Recorder struct {
	slTPAmbiguity          prometheus.Counter
	liquidationPrecedence  prometheus.Counter
	matcherErrors          prometheus.Counter
	droppedUpdates         prometheus.Counter
	stateCorruption        prometheus.Counter
}

// NewRecorder registers every counter against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the
// default global registry across package-level test runs.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		slTPAmbiguity: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_sl_tp_ambiguity_total",
			Help: "Bars where both the stop-loss and a take-profit level were bracketed; stop-loss won.",
		}),
		liquidationPrecedence: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_close_reason_precedence_invoked_total",
			Help: "Bars where liquidation and a take-profit level were both bracketed; liquidation won.",
		}),
		matcherErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_matcher_errors_total",
			Help: "Errors raised while persisting or mutating paper positions.",
		}),
		droppedUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_dropped_updates_total",
			Help: "Snapshot updates dropped from a full subscriber channel under drop-oldest backpressure.",
		}),
		stateCorruption: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_aggregator_state_corruption_total",
			Help: "Pending aggregation slots that overflowed their constituent limit and were reset.",
		}),
	}
	reg.MustRegister(
		r.slTPAmbiguity,
		r.liquidationPrecedence,
		r.matcherErrors,
		r.droppedUpdates,
		r.stateCorruption,
	)
	return r
}

func (r *Recorder) RecordSLTPAmbiguity()         { r.slTPAmbiguity.Inc() }
func (r *Recorder) RecordLiquidationPrecedence() { r.liquidationPrecedence.Inc() }
func (r *Recorder) RecordMatcherError()          { r.matcherErrors.Inc() }
func (r *Recorder) RecordDroppedUpdate()         { r.droppedUpdates.Inc() }
func (r *Recorder) RecordStateCorruption()       { r.stateCorruption.Inc() }

// recorder is the minimal surface a health sink must satisfy; both
// *Recorder and orchestrator's own counters implement it, letting
// Fanout combine "readable locally" with "scraped by Prometheus"
// without this package importing orchestrator.
type recorder interface {
	RecordSLTPAmbiguity()
	RecordLiquidationPrecedence()
	RecordMatcherError()
}

// Fanout combines several recorders into one, so a single call site
// (the matcher) can feed both the orchestrator's own snapshot counters
// and the Prometheus recorder.
type Fanout []recorder

func NewFanout(recorders ...recorder) Fanout { return Fanout(recorders) }

func (f Fanout) RecordSLTPAmbiguity() {
	for _, r := range f {
		r.RecordSLTPAmbiguity()
	}
}

func (f Fanout) RecordLiquidationPrecedence() {
	for _, r := range f {
		r.RecordLiquidationPrecedence()
	}
}

func (f Fanout) RecordMatcherError() {
	for _, r := range f {
		r.RecordMatcherError()
	}
}
