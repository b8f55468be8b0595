// Package metrics holds the Prometheus collectors shared by every pipeline
// stage: action throughput, dead letters, dispatch latency, per-target walk
// statistics and polling round bookkeeping.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "snmpcollector"

// Metrics is the set of collectors registered by New. A nil *Metrics is valid
// and records nothing, so stages can be built without observability in tests.
type Metrics struct {
	ActionsConsumed *prometheus.CounterVec
	ActionsEmitted  *prometheus.CounterVec
	DeadLetters     *prometheus.CounterVec
	HandlerErrors   *prometheus.CounterVec
	DispatchLatency *prometheus.HistogramVec

	WalkTimeouts *prometheus.GaugeVec
	WalkErrors   *prometheus.GaugeVec

	RoundsCompleted prometheus.Counter
	WalksLost       prometheus.Counter
	LateResults     prometheus.Counter
	RoundDuration   prometheus.Histogram
}

// New builds the collectors and registers them with reg. Pass
// prometheus.NewRegistry() in tests to keep the default registry clean.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ActionsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_consumed_total",
			Help:      "Actions popped from an inbound queue and decoded, by kind.",
		}, []string{"kind"}),
		ActionsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_emitted_total",
			Help:      "Actions returned by a handler and pushed downstream, by kind.",
		}, []string{"kind"}),
		DeadLetters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dead_letters_total",
			Help:      "Messages written to the dead-letter sink, by reason.",
		}, []string{"reason"}),
		HandlerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_errors_total",
			Help:      "Handler invocations that returned an error, by action kind.",
		}, []string{"kind"}),
		DispatchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent inside a stage handler, by action kind.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"kind"}),
		WalkTimeouts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "walk_timeouts",
			Help:      "Timed out object walks in the latest result for a target.",
		}, []string{"target"}),
		WalkErrors: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "walk_errors",
			Help:      "Failed object walks in the latest result for a target.",
		}, []string{"target"}),
		RoundsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_completed_total",
			Help:      "Polling rounds for which every announced target reported.",
		}),
		WalksLost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "walks_lost_total",
			Help:      "Announced walks that never reported before the next round began.",
		}),
		LateResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "late_results_total",
			Help:      "Results that arrived after their round was superseded.",
		}),
		RoundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_duration_seconds",
			Help:      "Time from a round's Summary timestamp to its last result.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}

	for _, c := range []prometheus.Collector{
		m.ActionsConsumed, m.ActionsEmitted, m.DeadLetters, m.HandlerErrors,
		m.DispatchLatency, m.WalkTimeouts, m.WalkErrors,
		m.RoundsCompleted, m.WalksLost, m.LateResults, m.RoundDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) Consumed(kind string) {
	if m == nil {
		return
	}
	m.ActionsConsumed.WithLabelValues(kind).Inc()
}

func (m *Metrics) Emitted(kind string) {
	if m == nil {
		return
	}
	m.ActionsEmitted.WithLabelValues(kind).Inc()
}

func (m *Metrics) DeadLetter(reason string) {
	if m == nil {
		return
	}
	m.DeadLetters.WithLabelValues(reason).Inc()
}

func (m *Metrics) HandlerError(kind string) {
	if m == nil {
		return
	}
	m.HandlerErrors.WithLabelValues(kind).Inc()
}

// ObserveDispatch records the handler latency for one action.
func (m *Metrics) ObserveDispatch(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.DispatchLatency.WithLabelValues(kind).Observe(d.Seconds())
}

// SetWalkStats publishes the statistics carried by the latest result for target.
func (m *Metrics) SetWalkStats(target string, timeouts, errors int) {
	if m == nil {
		return
	}
	m.WalkTimeouts.WithLabelValues(target).Set(float64(timeouts))
	m.WalkErrors.WithLabelValues(target).Set(float64(errors))
}

// RoundCompleted counts a finished round and its duration. A negative d
// counts the round without observing a duration.
func (m *Metrics) RoundCompleted(d time.Duration) {
	if m == nil {
		return
	}
	m.RoundsCompleted.Inc()
	if d >= 0 {
		m.RoundDuration.Observe(d.Seconds())
	}
}

// LostWalks adds n walks that never reported.
func (m *Metrics) LostWalks(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.WalksLost.Add(float64(n))
}

// LateResult counts one result that arrived after its round was superseded.
func (m *Metrics) LateResult() {
	if m == nil {
		return
	}
	m.LateResults.Inc()
}
