package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the authority domain.
type Metrics struct {
	AuthoritiesAppointed prometheus.Counter
	AuthoritiesDissolved prometheus.Counter
}

// New creates and registers the authority metrics.
func New() *Metrics {
	return &Metrics{
		AuthoritiesAppointed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "khural_authorities_appointed_total",
			Help: "Total number of electoral authorities appointed",
		}),
		AuthoritiesDissolved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "khural_authorities_dissolved_total",
			Help: "Total number of electoral authorities dissolved",
		}),
	}
}

// IncrementAppointed increments the appointed counter by 1.
func (m *Metrics) IncrementAppointed() {
	if m == nil {
		return
	}
	m.AuthoritiesAppointed.Inc()
}

// IncrementDissolved increments the dissolved counter by 1.
func (m *Metrics) IncrementDissolved() {
	if m == nil {
		return
	}
	m.AuthoritiesDissolved.Inc()
}
