package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the election domain.
type Metrics struct {
	ElectionsCreated   prometheus.Counter
	ElectionsCancelled prometheus.Counter
	ElectionsCertified prometheus.Counter
	CertifyDuration    prometheus.Histogram
}

// New creates and registers the election metrics.
func New() *Metrics {
	return &Metrics{
		ElectionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "khural_elections_created_total",
			Help: "Total number of elections created",
		}),
		ElectionsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "khural_elections_cancelled_total",
			Help: "Total number of elections cancelled",
		}),
		ElectionsCertified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "khural_elections_certified_total",
			Help: "Total number of elections certified",
		}),
		CertifyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "khural_certify_duration_seconds",
			Help:    "Time spent inside the certification transaction",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// IncrementCreated increments the created counter by 1.
func (m *Metrics) IncrementCreated() {
	if m == nil {
		return
	}
	m.ElectionsCreated.Inc()
}

// IncrementCancelled increments the cancelled counter by 1.
func (m *Metrics) IncrementCancelled() {
	if m == nil {
		return
	}
	m.ElectionsCancelled.Inc()
}

// IncrementCertified increments the certified counter by 1.
func (m *Metrics) IncrementCertified() {
	if m == nil {
		return
	}
	m.ElectionsCertified.Inc()
}

// ObserveCertifyDuration records how long one certification took.
func (m *Metrics) ObserveCertifyDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.CertifyDuration.Observe(d.Seconds())
}
