package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the ballot ledger.
type Metrics struct {
	BallotsCast     prometheus.Counter
	BallotsRejected *prometheus.CounterVec
}

// New creates and registers the ballot metrics.
func New() *Metrics {
	return &Metrics{
		BallotsCast: promauto.NewCounter(prometheus.CounterOpts{
			Name: "khural_ballots_cast_total",
			Help: "Total number of ballots accepted by the ledger",
		}),
		BallotsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "khural_ballots_rejected_total",
			Help: "Total number of rejected ballot casts by reason",
		}, []string{"reason"}),
	}
}

// IncrementCast increments the accepted-ballot counter by 1.
func (m *Metrics) IncrementCast() {
	if m == nil {
		return
	}
	m.BallotsCast.Inc()
}

// IncrementRejected increments the rejected-ballot counter for a reason.
func (m *Metrics) IncrementRejected(reason string) {
	if m == nil {
		return
	}
	m.BallotsRejected.WithLabelValues(reason).Inc()
}
