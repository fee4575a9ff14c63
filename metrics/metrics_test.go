package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func Test_Metrics_ObserveIncrementsCounters(t *testing.T) {
	m := New()

	m.ObserveAssociationCreated()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AssociationsCreated))

	m.ObserveAssociationFailure("transport")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AssociationFailures.WithLabelValues("transport")))

	m.ObserveVerification("success")
	m.ObserveVerification("success")
	assert.Equal(t, float64(2), testutil.ToFloat64(m.VerificationOutcomes.WithLabelValues("success")))

	m.ObserveNonceRejection("replayed")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.NonceRejections.WithLabelValues("replayed")))

	m.ObserveDiscoveryFailure()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DiscoveryFailures))
}
