// Package config loads the relying party's runtime configuration from
// environment variables, matching the OpenID parameters SPEC_FULL.md names
// (trust root, return_to, storage backends, token lifetime).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// StoreBackend selects which openid.Store implementation cmd/relyingparty
// wires in.
type StoreBackend string

const (
	StoreBackendMemory   StoreBackend = "memory"
	StoreBackendRedis    StoreBackend = "redis"
	StoreBackendPostgres StoreBackend = "postgres"
)

// SessionBackend selects which openid.Session implementation
// cmd/relyingparty wires in.
type SessionBackend string

const (
	SessionBackendCookie SessionBackend = "cookie"
	SessionBackendRedis  SessionBackend = "redis"
)

// Config is the relying party's full runtime configuration.
type Config struct {
	Addr   string
	Dumb   bool
	Secure bool

	TrustRoot string
	ReturnTo  string

	StoreBackend   StoreBackend
	SessionBackend SessionBackend

	RedisAddr      string
	PostgresDSN    string
	KafkaBrokers   []string
	AuditTopic     string

	SessionSigningKey string
	TokenLifetime     time.Duration
}

// FromEnv builds a Config from environment variables, applying development
// defaults where SPEC_FULL.md leaves a value optional.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:           getEnv("RP_ADDR", ":8080"),
		Dumb:           os.Getenv("RP_DUMB_MODE") == "true",
		Secure:         os.Getenv("RP_INSECURE_COOKIES") != "true",
		TrustRoot:      os.Getenv("RP_TRUST_ROOT"),
		ReturnTo:       os.Getenv("RP_RETURN_TO"),
		StoreBackend:   StoreBackend(getEnv("RP_STORE_BACKEND", string(StoreBackendMemory))),
		SessionBackend: SessionBackend(getEnv("RP_SESSION_BACKEND", string(SessionBackendCookie))),
		RedisAddr:      os.Getenv("RP_REDIS_ADDR"),
		PostgresDSN:    os.Getenv("RP_POSTGRES_DSN"),
		AuditTopic:     os.Getenv("RP_AUDIT_TOPIC"),
		SessionSigningKey: getEnv("RP_SESSION_SIGNING_KEY", "dev-secret-key-change-in-production"),
	}

	if raw := os.Getenv("RP_KAFKA_BROKERS"); raw != "" {
		cfg.KafkaBrokers = splitCommaList(raw)
	}

	lifetimeSeconds := getEnv("RP_TOKEN_LIFETIME_SECONDS", "600")
	seconds, err := strconv.Atoi(lifetimeSeconds)
	if err != nil {
		return Config{}, fmt.Errorf("config: RP_TOKEN_LIFETIME_SECONDS: %w", err)
	}
	cfg.TokenLifetime = time.Duration(seconds) * time.Second

	if cfg.TrustRoot == "" {
		return Config{}, fmt.Errorf("config: RP_TRUST_ROOT is required")
	}
	if cfg.ReturnTo == "" {
		return Config{}, fmt.Errorf("config: RP_RETURN_TO is required")
	}

	switch cfg.StoreBackend {
	case StoreBackendMemory:
	case StoreBackendRedis:
		if cfg.RedisAddr == "" {
			return Config{}, fmt.Errorf("config: RP_REDIS_ADDR is required for store backend %q", cfg.StoreBackend)
		}
	case StoreBackendPostgres:
		if cfg.PostgresDSN == "" {
			return Config{}, fmt.Errorf("config: RP_POSTGRES_DSN is required for store backend %q", cfg.StoreBackend)
		}
	default:
		return Config{}, fmt.Errorf("config: unknown RP_STORE_BACKEND %q", cfg.StoreBackend)
	}

	switch cfg.SessionBackend {
	case SessionBackendCookie:
	case SessionBackendRedis:
		if cfg.RedisAddr == "" {
			return Config{}, fmt.Errorf("config: RP_REDIS_ADDR is required for session backend %q", cfg.SessionBackend)
		}
	default:
		return Config{}, fmt.Errorf("config: unknown RP_SESSION_BACKEND %q", cfg.SessionBackend)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitCommaList(raw string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ',' {
			if i > start {
				out = append(out, raw[start:i])
			}
			start = i + 1
		}
	}
	return out
}
