package openid

import (
	"context"
	"fmt"
	"net/url"

	"github.com/go-openid/relyingparty/openid/internal/apperr"
)

// GenericConsumer is the shared, stateless half of spec.md §4.7's
// ConsumerFacade: it owns the collaborators (Store, Fetcher, Discovery) and
// the derived engines (association negotiation, response verification,
// nonce redemption, token signing) that carry no per-request state and may
// be reused across many concurrent requests (spec.md §5).
type GenericConsumer struct {
	store     Store
	fetcher   Fetcher
	discovery Discovery
	cfg       *engineConfig

	assocs   *associationEngine
	verifier *responseVerifier
	nonces   nonceChecker
	tokens   tokenCodec
}

// NewGenericConsumer wires store, fetcher, and discovery into a consumer
// engine. A nil collaborator is a configuration error, not a runtime one:
// it is returned immediately rather than surfacing later as a confusing
// nil-pointer panic deep in Begin or Complete.
func NewGenericConsumer(store Store, fetcher Fetcher, discovery Discovery, opts ...Option) (*GenericConsumer, error) {
	if store == nil {
		return nil, apperr.New(apperr.CodeConfiguration, "store must not be nil")
	}
	if fetcher == nil {
		return nil, apperr.New(apperr.CodeConfiguration, "fetcher must not be nil")
	}
	if discovery == nil {
		return nil, apperr.New(apperr.CodeConfiguration, "discovery must not be nil")
	}

	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	assocs := newAssociationEngine(store, fetcher, cfg)
	return &GenericConsumer{
		store:     store,
		fetcher:   fetcher,
		discovery: discovery,
		cfg:       cfg,
		assocs:    assocs,
		verifier:  newResponseVerifier(store, fetcher, assocs, cfg),
		nonces:    nonceChecker{store: store},
		tokens:    tokenCodec{lifetime: cfg.tokenLifetime, clock: cfg.clock},
	}, nil
}

// Consumer is the per-request half of the facade: it pairs a
// GenericConsumer with the Session collaborator for one HTTP request and
// must not be shared across requests (spec.md §5).
type Consumer struct {
	gc        *GenericConsumer
	session   Session
	keyPrefix string
}

// ConsumerOption configures a Consumer at construction time.
type ConsumerOption func(*Consumer)

// WithSessionKeyPrefix overrides the default "openid_" prefix used for the
// session key Begin/Complete exchange the signed token under.
func WithSessionKeyPrefix(prefix string) ConsumerOption {
	return func(c *Consumer) { c.keyPrefix = prefix }
}

// NewConsumer binds gc to session for the lifetime of one request.
func NewConsumer(gc *GenericConsumer, session Session, opts ...ConsumerOption) (*Consumer, error) {
	if gc == nil {
		return nil, apperr.New(apperr.CodeConfiguration, "generic consumer must not be nil")
	}
	if session == nil {
		return nil, apperr.New(apperr.CodeConfiguration, "session must not be nil")
	}
	c := &Consumer{gc: gc, session: session, keyPrefix: "openid_"}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Consumer) tokenKey() string { return c.keyPrefix + "last_token" }

// Begin implements spec.md §4.3: discover userURL's endpoint, negotiate (or
// reuse) an association, mint and store a fresh single-use nonce, sign the
// inter-request token into the session, and hand back an AuthRequest the
// caller turns into a redirect. A (nil, nil) return means discovery found
// no provider for userURL — not a caller-visible error.
func (c *Consumer) Begin(ctx context.Context, userURL string) (*AuthRequest, error) {
	endpoint, err := c.gc.discovery.Next(ctx, userURL)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeDiscovery, "discovery failed for "+userURL)
	}
	if endpoint == nil {
		return nil, nil
	}

	assoc, err := c.gc.assocs.getAssociation(ctx, endpoint.ServerURL, false)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeState, "association lookup failed")
	}

	nonce, err := generateNonce(c.gc.cfg.randRead)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeCrypto, "failed to generate nonce")
	}
	if err := c.gc.store.StoreNonce(ctx, nonce); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeState, "failed to store nonce")
	}

	authKey, err := c.gc.store.GetAuthKey(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeState, "failed to load auth key")
	}
	token := c.gc.tokens.sign(authKey, endpoint.IdentityURL, endpoint.ServerID, endpoint.ServerURL)
	if err := c.session.Set(ctx, c.tokenKey(), token); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeState, "failed to store session token")
	}

	return &AuthRequest{
		endpoint:     *endpoint,
		association:  assoc,
		returnToArgs: url.Values{"nonce": {nonce}},
	}, nil
}

// Complete implements spec.md §4.4-§4.6: it recovers the token stashed by
// Begin, dispatches on openid.mode, and runs the id_res path (verification
// then nonce redemption) when applicable. Every failure mode — missing
// session state, a bad token, a rejected assertion, a transport error
// talking to the provider — is folded into a Failure ConsumerResponse; this
// method never returns a non-nil error.
func (c *Consumer) Complete(ctx context.Context, query url.Values) (*ConsumerResponse, error) {
	tokenStr, ok, err := c.session.Get(ctx, c.tokenKey())
	if err != nil {
		c.gc.cfg.logger.Warn("openid: session read failed", "error", err)
		return failureResponse("", "No session state found"), nil
	}
	if !ok {
		return failureResponse("", "No session state found"), nil
	}
	defer func() {
		if err := c.session.Del(ctx, c.tokenKey()); err != nil {
			c.gc.cfg.logger.Warn("openid: failed to clear session token", "error", err)
		}
	}()

	authKey, err := c.gc.store.GetAuthKey(ctx)
	if err != nil {
		c.gc.cfg.logger.Warn("openid: failed to load auth key", "error", err)
		return failureResponse("", "No session state found"), nil
	}
	tok, ok := c.gc.tokens.verify(authKey, tokenStr)
	if !ok {
		return failureResponse("", "No session state found"), nil
	}

	var resp *ConsumerResponse
	switch mode := query.Get("openid.mode"); mode {
	case "cancel":
		resp = cancelResponse(tok.IdentityURL)
	case "error":
		resp = failureResponse(tok.IdentityURL, query.Get("openid.error"))
	case "id_res":
		resp = c.gc.verifier.verify(ctx, query, tok)
		resp = c.gc.nonces.check(ctx, resp, query.Get("openid.return_to"))
	default:
		resp = failureResponse(tok.IdentityURL, fmt.Sprintf("Invalid openid.mode %q", mode))
	}

	if resp.Kind == KindSuccess || resp.Kind == KindCancel {
		if err := c.gc.discovery.Cleanup(ctx, tok.IdentityURL); err != nil {
			c.gc.cfg.logger.Warn("openid: discovery cleanup failed", "identity_url", tok.IdentityURL, "error", err)
		}
	}

	return resp, nil
}
