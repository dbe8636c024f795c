// Package metrics provides Prometheus-based metrics recording for group chat runs.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/engine"
)

// Observer records engine activity as Prometheus metrics. It implements
// engine.Observer, engine.TurnObserver and engine.RunObserver, so a single
// instance passed to engine.WithObserver sees messages, turns and run outcomes.
type Observer struct {
	messagesTotal *prometheus.CounterVec
	turnsTotal    *prometheus.CounterVec
	turnDuration  *prometheus.HistogramVec
	runsTotal     *prometheus.CounterVec
	runRounds     prometheus.Histogram
}

var (
	_ engine.Observer     = (*Observer)(nil)
	_ engine.TurnObserver = (*Observer)(nil)
	_ engine.RunObserver  = (*Observer)(nil)
)

// NewObserver registers the roundtable metrics with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func NewObserver(reg prometheus.Registerer) *Observer {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Observer{
		messagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roundtable_messages_total",
				Help: "Total number of transcript messages appended by author",
			},
			[]string{"author"},
		),
		turnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roundtable_turns_total",
				Help: "Total number of participant turns by participant and status",
			},
			[]string{"participant", "status"},
		),
		turnDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "roundtable_turn_duration_seconds",
				Help:    "Duration of participant turns in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"participant"},
		),
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roundtable_runs_total",
				Help: "Total number of finished runs by terminal state",
			},
			[]string{"state"},
		),
		runRounds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "roundtable_run_rounds",
				Help:    "Number of participant turns per finished run",
				Buckets: prometheus.LinearBuckets(1, 2, 10),
			},
		),
	}
}

// OnMessage implements engine.Observer.
func (o *Observer) OnMessage(_ context.Context, msg core.Message) error {
	o.messagesTotal.WithLabelValues(msg.Author).Inc()
	return nil
}

// OnTurn implements engine.TurnObserver.
func (o *Observer) OnTurn(_ context.Context, ev engine.TurnEvent) error {
	status := "success"
	if ev.Err != nil {
		status = "error"
	}
	o.turnsTotal.WithLabelValues(ev.Participant, status).Inc()
	o.turnDuration.WithLabelValues(ev.Participant).Observe(ev.Duration.Seconds())
	return nil
}

// OnRunComplete implements engine.RunObserver.
func (o *Observer) OnRunComplete(_ context.Context, res *core.RunResult) error {
	if res == nil {
		return nil
	}
	o.runsTotal.WithLabelValues(res.State.String()).Inc()
	o.runRounds.Observe(float64(res.Rounds))
	return nil
}
