package openid

import (
	"log/slog"
	"math/big"
	"time"
)

// DefaultTokenLifetime is the default bound (spec.md §5: "default 300s")
// on how long a signed inter-request token may be outstanding.
const DefaultTokenLifetime = 300 * time.Second

// nonceAlphabet is the character set spec.md §3 draws 8-character nonces
// from: [A-Za-z0-9].
const nonceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

const nonceLength = 8

// clockFunc lets tests pin "now" without a context-threading dependency;
// production code leaves it at the default time.Now.
type clockFunc func() time.Time

type engineConfig struct {
	logger        *slog.Logger
	clock         clockFunc
	tokenLifetime time.Duration
	dhModulus     *big.Int
	dhGenerator   *big.Int
	randRead      func([]byte) (int, error)
}

// Option configures a GenericConsumer at construction time.
type Option func(*engineConfig)

// WithLogger injects a structured logger. Log lines emitted by the engine
// never include association secrets, token bytes, or the auth key — only
// handles, server URLs, and outcome tags (spec.md §7).
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) { c.logger = logger }
}

// WithClock overrides the engine's notion of "now", for deterministic
// tests of token and association expiry.
func WithClock(now func() time.Time) Option {
	return func(c *engineConfig) { c.clock = now }
}

// WithTokenLifetime overrides DefaultTokenLifetime.
func WithTokenLifetime(d time.Duration) Option {
	return func(c *engineConfig) { c.tokenLifetime = d }
}

// WithDHParams overrides the default DH modulus/generator used for
// association negotiation. Only meaningful for interop testing; production
// callers should leave this at the spec default.
func WithDHParams(p, g *big.Int) Option {
	return func(c *engineConfig) { c.dhModulus, c.dhGenerator = p, g }
}

// WithRandSource overrides the entropy source used for DH private
// exponents and nonce generation, letting scenario tests (spec.md §8, S1)
// pin the nonce and DH exchange to fixed values.
func WithRandSource(read func([]byte) (int, error)) Option {
	return func(c *engineConfig) { c.randRead = read }
}

func defaultEngineConfig() *engineConfig {
	return &engineConfig{
		logger:        slog.Default(),
		clock:         time.Now,
		tokenLifetime: DefaultTokenLifetime,
		dhModulus:     nil, // filled from crypto.DefaultModulus() by callers that need it
		dhGenerator:   nil,
		randRead:      nil, // nil means crypto/rand
	}
}
