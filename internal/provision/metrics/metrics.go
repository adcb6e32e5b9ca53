package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ProvisionedTotal     *prometheus.CounterVec
	CompensationsTotal   *prometheus.CounterVec
	CompensationFailures prometheus.Counter
	ProvisionDuration    prometheus.Histogram
	DeprovisionedTotal   prometheus.Counter
	SubscriptionRenewals prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		ProvisionedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "carebridge_provision_identities_total",
			Help: "Total number of identities provisioned, by role",
		}, []string{"role"}),
		CompensationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "carebridge_provision_compensations_total",
			Help: "Total number of compensating deletes, by failed stage",
		}, []string{"stage"}),
		CompensationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "carebridge_provision_compensation_failures_total",
			Help: "Total number of compensating deletes that themselves failed, leaving an orphaned provider identity",
		}),
		ProvisionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "carebridge_provision_duration_seconds",
			Help:    "Wall time of the full provisioning flow",
			Buckets: prometheus.DefBuckets,
		}),
		DeprovisionedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "carebridge_provision_deprovisioned_total",
			Help: "Total number of identities deleted at the provider",
		}),
		SubscriptionRenewals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "carebridge_provision_subscription_renewals_total",
			Help: "Total number of streaming subscription renewals",
		}),
	}
}

func (m *Metrics) IncrementProvisioned(role string) {
	m.ProvisionedTotal.WithLabelValues(role).Inc()
}

func (m *Metrics) IncrementCompensations(stage string) {
	m.CompensationsTotal.WithLabelValues(stage).Inc()
}

func (m *Metrics) IncrementCompensationFailures() {
	m.CompensationFailures.Inc()
}

func (m *Metrics) ObserveProvisionDuration(seconds float64) {
	m.ProvisionDuration.Observe(seconds)
}

func (m *Metrics) IncrementDeprovisioned() {
	m.DeprovisionedTotal.Inc()
}

func (m *Metrics) IncrementSubscriptionRenewals() {
	m.SubscriptionRenewals.Inc()
}
