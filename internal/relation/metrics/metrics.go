package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	AssignmentsTotal    *prometheus.CounterVec
	RemovalsTotal       *prometheus.CounterVec
	CascadesTotal       prometheus.Counter
	PropagationFailures *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		AssignmentsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "carebridge_relation_assignments_total",
			Help: "Total number of relation assignment operations, by relation",
		}, []string{"relation"}),
		RemovalsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "carebridge_relation_removals_total",
			Help: "Total number of relation removal operations, by relation",
		}, []string{"relation"}),
		CascadesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "carebridge_relation_cascades_total",
			Help: "Total number of delete cascades applied",
		}),
		PropagationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "carebridge_relation_propagation_failures_total",
			Help: "Total number of propagation batches that failed part way, leaving the graph to be repaired by a retry",
		}, []string{"relation"}),
	}
}

func (m *Metrics) IncrementAssignments(relation string) {
	m.AssignmentsTotal.WithLabelValues(relation).Inc()
}

func (m *Metrics) IncrementRemovals(relation string) {
	m.RemovalsTotal.WithLabelValues(relation).Inc()
}

func (m *Metrics) IncrementCascades() {
	m.CascadesTotal.Inc()
}

func (m *Metrics) IncrementPropagationFailures(relation string) {
	m.PropagationFailures.WithLabelValues(relation).Inc()
}
