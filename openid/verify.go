package openid

import (
	"context"
	"net/url"
	"strings"

	"github.com/go-openid/relyingparty/openid/internal/crypto"
	"github.com/go-openid/relyingparty/openid/internal/kvform"
)

// responseVerifier implements spec.md §4.4-§4.5: the id_res path, its
// signature check, and the dumb-mode check_authentication fallback.
type responseVerifier struct {
	store   Store
	fetcher Fetcher
	assocs  *associationEngine
	cfg     *engineConfig
}

func newResponseVerifier(store Store, fetcher Fetcher, assocs *associationEngine, cfg *engineConfig) *responseVerifier {
	return &responseVerifier{store: store, fetcher: fetcher, assocs: assocs, cfg: cfg}
}

// verify runs the full id_res path for query against the endpoint bound by
// tok (the already-verified token). Every failure returns a Failure
// response; nothing here returns a Go error to the caller.
func (v *responseVerifier) verify(ctx context.Context, query url.Values, tok tokenFields) *ConsumerResponse {
	if setupURL := query.Get("openid.user_setup_url"); setupURL != "" {
		return setupNeededResponse(tok.IdentityURL, setupURL)
	}

	returnTo := query.Get("openid.return_to")
	identity := query.Get("openid.identity")
	assocHandle := query.Get("openid.assoc_handle")
	if returnTo == "" || identity == "" || assocHandle == "" {
		return failureResponse(tok.IdentityURL, "Missing required field")
	}

	if identity != tok.ServerID {
		return failureResponse(tok.IdentityURL, "Server ID (delegate) mismatch")
	}

	assoc, found, err := v.store.GetAssociation(ctx, tok.ServerURL, assocHandle)
	if err != nil {
		v.cfg.logger.Warn("openid: association lookup failed", "server_url", tok.ServerURL, "error", err)
		found = false
	}

	switch {
	case !found:
		return v.verifyViaCheckAuthentication(ctx, query, tok)
	case assoc.ExpiresIn(v.cfg.clock()) <= 0:
		return failureResponse(tok.IdentityURL, "Association with "+tok.ServerURL+" expired")
	default:
		return v.verifyLocalSignature(query, tok, assoc)
	}
}

// verifyLocalSignature implements spec.md §4.4 steps 5-7: smart-mode
// signature verification against a cached association.
func (v *responseVerifier) verifyLocalSignature(query url.Values, tok tokenFields, assoc Association) *ConsumerResponse {
	signedList := query.Get("openid.signed")
	sig := query.Get("openid.sig")
	if signedList == "" || sig == "" {
		return failureResponse(tok.IdentityURL, "Missing argument signature")
	}

	names := strings.Split(signedList, ",")
	pairs := make([]kvform.Pair, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, kvform.Pair{Key: name, Value: query.Get("openid." + name)})
	}
	body, err := kvform.Encode(pairs)
	if err != nil {
		return failureResponse(tok.IdentityURL, "Bad signature")
	}

	expected := crypto.HMACSHA1(assoc.Secret, []byte(body))
	expectedB64 := crypto.Base64Encode(expected)
	if !crypto.EqualConstantTime([]byte(expectedB64), []byte(sig)) {
		return failureResponse(tok.IdentityURL, "Bad signature")
	}

	signedArgs := make(map[string]string, len(names))
	for _, name := range names {
		signedArgs[name] = query.Get("openid." + name)
	}
	return successResponse(tok.IdentityURL, signedArgs)
}

// verifyViaCheckAuthentication implements spec.md §4.5: the dumb-mode
// recovery path taken both when the consumer never cached an association
// (genuine dumb mode) and when a smart consumer simply does not recognize
// the handle the provider used.
func (v *responseVerifier) verifyViaCheckAuthentication(ctx context.Context, query url.Values, tok tokenFields) *ConsumerResponse {
	ok, err := v.checkAuthentication(ctx, query, tok.ServerURL)
	if err != nil {
		v.cfg.logger.Warn("openid: check_authentication request failed", "server_url", tok.ServerURL, "error", err)
		return failureResponse(tok.IdentityURL, "Server denied check_authentication")
	}
	if !ok {
		return failureResponse(tok.IdentityURL, "Server denied check_authentication")
	}

	signedList := query.Get("openid.signed")
	names := strings.Split(signedList, ",")
	signedArgs := make(map[string]string, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		signedArgs[name] = query.Get("openid." + name)
	}
	return successResponse(tok.IdentityURL, signedArgs)
}

// checkAuthentication mirrors the provider's assertion back to it as a
// check_authentication POST (spec.md §4.5): every parameter whose
// unprefixed name is signed, plus assoc_handle/sig/signed/invalidate_handle.
func (v *responseVerifier) checkAuthentication(ctx context.Context, query url.Values, serverURL string) (bool, error) {
	membership := map[string]bool{
		"assoc_handle": true,
		"sig":          true,
		"signed":       true,
	}
	if query.Get("openid.invalidate_handle") != "" {
		membership["invalidate_handle"] = true
	}
	for _, name := range strings.Split(query.Get("openid.signed"), ",") {
		if name != "" {
			membership[name] = true
		}
	}

	pairs := []kvform.Pair{{Key: "openid.mode", Value: "check_authentication"}}
	for key, vals := range query {
		if !strings.HasPrefix(key, "openid.") {
			continue
		}
		unprefixed := strings.TrimPrefix(key, "openid.")
		if unprefixed == "mode" || !membership[unprefixed] {
			continue
		}
		if len(vals) > 0 {
			pairs = append(pairs, kvform.Pair{Key: key, Value: vals[0]})
		}
	}

	body, err := kvform.Encode(pairs)
	if err != nil {
		return false, err
	}

	result, err := v.fetcher.PostForm(ctx, serverURL, []byte(body))
	if err != nil {
		return false, err
	}
	if result.StatusCode != 200 {
		return false, nil
	}

	fields := kvform.Map(string(result.Body))
	if handle := fields["invalidate_handle"]; handle != "" {
		v.assocs.invalidateHandle(ctx, serverURL, handle)
	}
	return fields["is_valid"] == "true", nil
}
