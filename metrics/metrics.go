// Package metrics holds the Prometheus instrumentation for the relying
// party: association churn, verification outcomes, nonce rejections, and
// discovery failures.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics the relying party records.
type Metrics struct {
	AssociationsCreated   prometheus.Counter
	AssociationFailures   *prometheus.CounterVec
	VerificationOutcomes  *prometheus.CounterVec
	NonceRejections       *prometheus.CounterVec
	DiscoveryFailures     prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		AssociationsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "openid_rp_associations_created_total",
			Help: "Total number of associations negotiated with providers.",
		}),
		AssociationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "openid_rp_association_failures_total",
			Help: "Total number of failed association attempts, by reason.",
		}, []string{"reason"}),
		VerificationOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "openid_rp_verification_outcomes_total",
			Help: "Total number of id_res verification outcomes, by kind.",
		}, []string{"kind"}),
		NonceRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "openid_rp_nonce_rejections_total",
			Help: "Total number of nonce checks that rejected a response, by reason.",
		}, []string{"reason"}),
		DiscoveryFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "openid_rp_discovery_failures_total",
			Help: "Total number of discovery round-trips that failed outright.",
		}),
	}
}

// ObserveAssociationCreated records a successful association negotiation.
func (m *Metrics) ObserveAssociationCreated() {
	m.AssociationsCreated.Inc()
}

// ObserveAssociationFailure records a failed association attempt.
func (m *Metrics) ObserveAssociationFailure(reason string) {
	m.AssociationFailures.WithLabelValues(reason).Inc()
}

// ObserveVerification records the outcome of verifying an id_res response.
func (m *Metrics) ObserveVerification(kind string) {
	m.VerificationOutcomes.WithLabelValues(kind).Inc()
}

// ObserveNonceRejection records a nonce check that rejected a response.
func (m *Metrics) ObserveNonceRejection(reason string) {
	m.NonceRejections.WithLabelValues(reason).Inc()
}

// ObserveDiscoveryFailure records a discovery round-trip that failed.
func (m *Metrics) ObserveDiscoveryFailure() {
	m.DiscoveryFailures.Inc()
}
