package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnvs(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func Test_FromEnv_RequiresTrustRootAndReturnTo(t *testing.T) {
	_, err := FromEnv()
	assert.Error(t, err)
}

func Test_FromEnv_DefaultsToMemoryAndCookie(t *testing.T) {
	setEnvs(t, map[string]string{
		"RP_TRUST_ROOT": "https://rp.example.com/",
		"RP_RETURN_TO":  "https://rp.example.com/callback",
	})
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, StoreBackendMemory, cfg.StoreBackend)
	assert.Equal(t, SessionBackendCookie, cfg.SessionBackend)
	assert.Equal(t, ":8080", cfg.Addr)
}

func Test_FromEnv_RedisBackendRequiresAddr(t *testing.T) {
	setEnvs(t, map[string]string{
		"RP_TRUST_ROOT":    "https://rp.example.com/",
		"RP_RETURN_TO":     "https://rp.example.com/callback",
		"RP_STORE_BACKEND": "redis",
	})
	_, err := FromEnv()
	assert.Error(t, err)
}

func Test_FromEnv_KafkaBrokersParsed(t *testing.T) {
	setEnvs(t, map[string]string{
		"RP_TRUST_ROOT":     "https://rp.example.com/",
		"RP_RETURN_TO":      "https://rp.example.com/callback",
		"RP_KAFKA_BROKERS":  "broker1:9092,broker2:9092",
	})
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
}
