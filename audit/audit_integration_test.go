//go:build integration

package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/redpanda"

	"github.com/go-openid/relyingparty/audit"
)

func TestTrail_RecordProducesEvent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	container, err := redpanda.Run(ctx, "docker.redpanda.com/redpandadata/redpanda:v23.3.3")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	brokers, err := container.KafkaSeedBroker(ctx)
	require.NoError(t, err)

	trail, err := audit.New(ctx, []string{brokers}, "openid.rp.audit.test")
	require.NoError(t, err)
	t.Cleanup(trail.Close)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	err = trail.Record(ctx, "success", "https://alice.example.com/", "https://provider.example.com/openid",
		"login completed", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0")
	require.NoError(t, err)
}
