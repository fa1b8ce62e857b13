package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors exported on /metrics.
type Metrics struct {
	ThreadLoads     *prometheus.CounterVec
	Summaries       *prometheus.CounterVec
	SanitizedBodies prometheus.Counter
	FetchLatency    *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ThreadLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sage",
			Name:      "thread_loads_total",
			Help:      "Thread loads by outcome.",
		}, []string{"outcome"}),
		Summaries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sage",
			Name:      "summaries_total",
			Help:      "Thread summary cycles by outcome.",
		}, []string{"outcome"}),
		SanitizedBodies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sage",
			Name:      "sanitized_bodies_total",
			Help:      "Message bodies passed through the HTML sanitizer.",
		}),
		FetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sage",
			Name:      "upstream_fetch_seconds",
			Help:      "Latency of message source calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg != nil {
		reg.MustRegister(m.ThreadLoads, m.Summaries, m.SanitizedBodies, m.FetchLatency)
	}
	return m
}

// NewNop returns unregistered collectors for tests.
func NewNop() *Metrics {
	return New(nil)
}
