package desk

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const MetricsPrefix = "deskseed_"

// Call outcomes recorded by Metrics.
const (
	OutcomeOK         = "ok"
	OutcomeTransport  = "transport_error"
	OutcomeValidation = "validation_error"
)

type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the client metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		calls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: MetricsPrefix + "remote_calls_total",
			Help: "Number of service desk calls grouped by operation and outcome",
		}, []string{"op", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricsPrefix + "remote_call_duration_seconds",
			Help:    "Latency of service desk calls grouped by operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

func (m *Metrics) record(op string, took time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	switch {
	case IsValidation(err):
		outcome = OutcomeValidation
	case err != nil:
		outcome = OutcomeTransport
	}
	m.calls.With(prometheus.Labels{"op": op, "outcome": outcome}).Inc()
	m.duration.With(prometheus.Labels{"op": op}).Observe(took.Seconds())
}
