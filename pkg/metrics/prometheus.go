package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cryptodash"

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	feedFetches  *prometheus.CounterVec
	feedDuration *prometheus.HistogramVec
	scalperState *prometheus.GaugeVec
	published    *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New creates a recorder registered on reg. A nil reg means the default
// registry, which is what /metrics serves.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Recorder{
		feedFetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feed_fetches_total",
				Help:      "Feed refresh attempts by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		feedDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "feed_fetch_duration_seconds",
				Help:      "Duration of feed refreshes",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		scalperState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scalper_session_state",
				Help:      "1 for the current scalper session state, 0 otherwise",
			},
			[]string{"state"},
		),
		published: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Events published by type",
			},
			[]string{"type"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordFeedFetch records one refresh of a feed.
func (r *Recorder) RecordFeedFetch(kind string, ok bool, seconds float64) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	r.feedFetches.WithLabelValues(kind, outcome).Inc()
	r.feedDuration.WithLabelValues(kind).Observe(seconds)
}

// RecordScalperState flips the state gauge so exactly one label reads 1.
func (r *Recorder) RecordScalperState(state string) {
	r.scalperState.Reset()
	r.scalperState.WithLabelValues(state).Set(1)
}

func (r *Recorder) RecordPublished(eventType string) {
	r.published.WithLabelValues(eventType).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
