package openid

import (
	"context"
	cryptorand "crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/sync/singleflight"

	"github.com/go-openid/relyingparty/openid/internal/apperr"
	"github.com/go-openid/relyingparty/openid/internal/crypto"
	"github.com/go-openid/relyingparty/openid/internal/kvform"
)

// associationEngine implements spec.md §4.2: DH negotiation, association
// fetch, caching, and expiry handling. It never caches anything itself;
// persistence is entirely delegated to the Store.
type associationEngine struct {
	store    Store
	fetcher  Fetcher
	dumb     bool
	cfg      *engineConfig
	inflight singleflight.Group
}

func newAssociationEngine(store Store, fetcher Fetcher, cfg *engineConfig) *associationEngine {
	return &associationEngine{
		store:   store,
		fetcher: fetcher,
		dumb:    store.IsDumb(),
		cfg:     cfg,
	}
}

// getAssociation returns a usable association for serverURL, or nil in
// dumb mode or on any association-fetch failure (which is not an error to
// the caller — it just means ResponseVerifier will fall back to
// check_authentication, per spec.md §4.2/§7's TransportError policy).
func (e *associationEngine) getAssociation(ctx context.Context, serverURL string, replace bool) (*Association, error) {
	if e.dumb {
		return nil, nil
	}

	if cached, ok, err := e.store.GetAssociation(ctx, serverURL, ""); err == nil && ok {
		remaining := cached.ExpiresIn(e.cfg.clock())
		if !replace || remaining > int64(e.cfg.tokenLifetime.Seconds()) {
			return &cached, nil
		}
	}

	// Concurrent requests hitting an uncached provider coalesce into a
	// single associate round-trip (spec.md §5: the engine may be shared
	// across requests).
	v, err, _ := e.inflight.Do(serverURL, func() (interface{}, error) {
		return e.associate(ctx, serverURL)
	})
	if err != nil {
		e.cfg.logger.Warn("openid: association fetch failed", "server_url", serverURL, "error", err)
		return nil, nil //nolint:nilerr // TransportError during associate is a soft failure: dumb-mode fallback, not a caller-visible error.
	}
	assoc := v.(Association)
	return &assoc, nil
}

// invalidateHandle removes a cached association, called when
// check_authentication reports invalidate_handle (spec.md §4.5).
func (e *associationEngine) invalidateHandle(ctx context.Context, serverURL, handle string) {
	if _, err := e.store.RemoveAssociation(ctx, serverURL, handle); err != nil {
		e.cfg.logger.Warn("openid: failed to invalidate association", "server_url", serverURL, "handle", handle, "error", err)
	}
}

func (e *associationEngine) associate(ctx context.Context, serverURL string) (Association, error) {
	p := e.cfg.dhModulus
	g := e.cfg.dhGenerator
	if p == nil {
		p = crypto.DefaultModulus()
	}
	if g == nil {
		g = crypto.DefaultGenerator()
	}

	randRead := e.cfg.randRead
	if randRead == nil {
		randRead = cryptorand.Read
	}
	dh, err := crypto.NewDiffieHellman(p, g, func(b []byte) ([]byte, error) {
		n, err := randRead(b)
		if err != nil {
			return nil, err
		}
		return b[:n], nil
	})
	if err != nil {
		return Association{}, apperr.Wrap(err, apperr.CodeCrypto, "failed to generate DH key pair")
	}

	body, err := kvform.Encode([]kvform.Pair{
		{Key: "openid.mode", Value: "associate"},
		{Key: "openid.assoc_type", Value: AssocType},
		{Key: "openid.session_type", Value: "DH-SHA1"},
		{Key: "openid.dh_modulus", Value: crypto.Base64Encode(crypto.BTWOC(p))},
		{Key: "openid.dh_gen", Value: crypto.Base64Encode(crypto.BTWOC(g))},
		{Key: "openid.dh_consumer_public", Value: crypto.Base64Encode(crypto.BTWOC(dh.PublicValue()))},
	})
	if err != nil {
		return Association{}, apperr.Wrap(err, apperr.CodeProtocol, "failed to encode associate request")
	}

	result, err := e.fetcher.PostForm(ctx, serverURL, []byte(body))
	if err != nil {
		return Association{}, apperr.Wrap(err, apperr.CodeTransport, "associate request failed")
	}
	if result.StatusCode == 400 || result.StatusCode != 200 {
		return Association{}, apperr.New(apperr.CodeTransport, fmt.Sprintf("associate returned status %d", result.StatusCode))
	}

	fields := kvform.Map(string(result.Body))

	assocType := fields["assoc_type"]
	assocHandle := fields["assoc_handle"]
	if assocType == "" || assocHandle == "" {
		return Association{}, apperr.New(apperr.CodeProtocol, "associate response missing assoc_type or assoc_handle")
	}
	if assocType != AssocType {
		return Association{}, apperr.New(apperr.CodeProtocol, "unsupported assoc_type "+assocType)
	}

	sessionType := fields["session_type"]
	if sessionType != "" && sessionType != "DH-SHA1" {
		return Association{}, apperr.New(apperr.CodeProtocol, "unsupported session_type "+sessionType)
	}

	secret, err := deriveSecret(sessionType, fields, dh, p)
	if err != nil {
		return Association{}, err
	}

	lifetime := parseExpiresIn(fields["expires_in"])

	assoc := Association{
		Handle:          assocHandle,
		Secret:          secret,
		AssocType:       assocType,
		IssuedAt:        e.cfg.clock(),
		LifetimeSeconds: lifetime,
	}

	if err := e.store.StoreAssociation(ctx, serverURL, assoc); err != nil {
		return Association{}, apperr.Wrap(err, apperr.CodeState, "failed to persist association")
	}

	e.cfg.logger.Info("openid: association established", "server_url", serverURL, "handle", assocHandle, "session_type", sessionType)
	return assoc, nil
}

// deriveSecret recovers the shared MAC key per spec.md §4.2 step 5: a
// plaintext mac_key when no session_type was negotiated, or the
// DH-SHA1-masked enc_mac_key otherwise.
func deriveSecret(sessionType string, fields map[string]string, dh *diffieHellmanLike, p *big.Int) ([]byte, error) {
	if sessionType == "" {
		macKey := fields["mac_key"]
		if macKey == "" {
			return nil, apperr.New(apperr.CodeProtocol, "associate response missing mac_key")
		}
		secret, err := crypto.Base64Decode(macKey)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.CodeCrypto, "failed to decode mac_key")
		}
		return secret, nil
	}

	dhServerPublic := fields["dh_server_public"]
	encMacKey := fields["enc_mac_key"]
	if dhServerPublic == "" || encMacKey == "" {
		return nil, apperr.New(apperr.CodeProtocol, "associate response missing dh_server_public or enc_mac_key")
	}

	yBytes, err := crypto.Base64Decode(dhServerPublic)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeCrypto, "failed to decode dh_server_public")
	}
	y := crypto.FromBTWOC(yBytes)

	z := dh.SharedSecret(y)
	k := crypto.SHA1Sum(crypto.BTWOC(z))

	encBytes, err := crypto.Base64Decode(encMacKey)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeCrypto, "failed to decode enc_mac_key")
	}
	if len(encBytes) != len(k) {
		return nil, apperr.New(apperr.CodeCrypto, "enc_mac_key length mismatch")
	}

	secret := make([]byte, len(k))
	for i := range k {
		secret[i] = encBytes[i] ^ k[i]
	}
	return secret, nil
}

func parseExpiresIn(s string) int64 {
	var n int64
	if s == "" {
		return int64(DefaultTokenLifetime.Seconds())
	}
	_, err := fmt.Sscanf(s, "%d", &n)
	if err != nil || n <= 0 {
		return int64(DefaultTokenLifetime.Seconds())
	}
	return n
}

// diffieHellmanLike is an alias for crypto.DiffieHellman so deriveSecret's
// signature reads naturally at call sites within this file.
type diffieHellmanLike = crypto.DiffieHellman
