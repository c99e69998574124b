package ratelimit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is an optional, low-overhead admission/wait recorder. The zero
// value (a nil *Metrics) is never dereferenced by SlidingWindow — callers
// that don't need visibility simply omit WithMetrics.
type Metrics struct {
	admitted prometheus.Counter
	waited   prometheus.Counter
	waitTime prometheus.Histogram
}

// NewMetrics builds and registers a Metrics recorder for a named limiter
// instance (e.g. "search/repositories", "common"). Safe to register more
// than one limiter against the same registry as long as name is unique.
func NewMetrics(reg prometheus.Registerer, name string) *Metrics {
	m := &Metrics{
		admitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "ghsnapshot_ratelimit_admitted_total",
			Help:        "Total requests admitted by the rate limiter.",
			ConstLabels: prometheus.Labels{"limiter": name},
		}),
		waited: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "ghsnapshot_ratelimit_waits_total",
			Help:        "Total times the rate limiter made a caller sleep before admitting.",
			ConstLabels: prometheus.Labels{"limiter": name},
		}),
		waitTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "ghsnapshot_ratelimit_wait_seconds",
			Help:        "Distribution of sleep durations imposed by the rate limiter.",
			ConstLabels: prometheus.Labels{"limiter": name},
			Buckets:     []float64{.01, .05, .1, .5, 1, 2, 5, 10, 30, 60},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.admitted, m.waited, m.waitTime)
	}
	return m
}

func (m *Metrics) observeAdmit() {
	if m == nil {
		return
	}
	m.admitted.Inc()
}

func (m *Metrics) observeWait(d time.Duration) {
	if m == nil {
		return
	}
	m.waited.Inc()
	m.waitTime.Observe(d.Seconds())
}
