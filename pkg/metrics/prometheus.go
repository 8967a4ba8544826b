// Package metrics provides a Prometheus-backed implementation of the
// limiter's MetricsRecorder interface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder maps the generic (name, value, tags) recorder calls onto two
// fixed Prometheus vectors: a counter for decisions and a histogram for
// store round-trip latency.
type Recorder struct {
	counters  *prometheus.CounterVec
	latencies *prometheus.HistogramVec
}

// NewRecorder registers the quota metrics with reg and returns the recorder.
// Pass prometheus.DefaultRegisterer for the default registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		counters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quota_decisions_total",
			Help: "Admission decisions by operation, resource class and outcome.",
		}, []string{"op", "class", "outcome"}),
		latencies: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quota_decision_seconds",
			Help:    "Admission decision latency, including store round trips.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
	reg.MustRegister(r.counters, r.latencies)
	return r
}

// Add records a decision counter. The metric name carries the operation
// ("quota.admit", "quota.peek"); class and outcome come from tags.
func (r *Recorder) Add(name string, value float64, tags map[string]string) {
	r.counters.With(prometheus.Labels{
		"op":      opFromName(name),
		"class":   tags["class"],
		"outcome": tags["outcome"],
	}).Add(value)
}

// Observe records a latency observation in seconds.
func (r *Recorder) Observe(name string, value float64, tags map[string]string) {
	r.latencies.With(prometheus.Labels{"op": tags["op"]}).Observe(value)
}

func opFromName(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i+1:]
		}
	}
	return name
}
