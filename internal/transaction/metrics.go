// internal/transaction/metrics.go
package transaction

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	submitted         prometheus.Counter
	succeeded         prometheus.Counter
	failed            *prometheus.CounterVec
	sendRetries       prometheus.Counter
	durationHistogram prometheus.Histogram
}

// NewMetrics creates the transaction metrics and registers them on reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "defilend_tx_submitted_total",
			Help: "Total number of transactions submitted",
		}),
		succeeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "defilend_tx_success_total",
			Help: "Total number of transactions mined successfully",
		}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "defilend_tx_failure_total",
			Help: "Total number of failed transactions by failure kind",
		}, []string{"kind"}),
		sendRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "defilend_tx_send_retries_total",
			Help: "Total number of retried broadcast attempts",
		}),
		durationHistogram: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "defilend_tx_duration_seconds",
			Help:    "Time from submission to final result in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}

	if reg != nil {
		reg.MustRegister(m.submitted, m.succeeded, m.failed, m.sendRetries, m.durationHistogram)
	}
	return m
}

func (m *Metrics) TrackTransaction(start time.Time) {
	m.durationHistogram.Observe(time.Since(start).Seconds())
}

func (m *Metrics) observe(r Result) {
	if r.OK() {
		m.succeeded.Inc()
		return
	}
	m.failed.WithLabelValues(string(r.Kind)).Inc()
}
