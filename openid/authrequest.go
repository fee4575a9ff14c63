package openid

import (
	"net/url"
	"sort"
	"strings"
)

// AuthRequest implements spec.md §4.3: it holds the selected endpoint, the
// optional association, and the extension/return-to arguments needed to
// build the provider redirect URL. Callers obtain one from Consumer.Begin
// and call RedirectURL to get the URL that sends the user's browser to the
// provider.
type AuthRequest struct {
	endpoint      ServiceEndpoint
	association   *Association // nil means dumb-mode request
	extensionArgs map[string]string
	returnToArgs  url.Values
}

// AddExtensionArg records openid.<namespace>.<key> = value, merged into the
// redirect URL after the core OpenID fields.
func (r *AuthRequest) AddExtensionArg(namespace, key, value string) {
	if r.extensionArgs == nil {
		r.extensionArgs = make(map[string]string)
	}
	r.extensionArgs["openid."+namespace+"."+key] = value
}

// Endpoint returns the discovered endpoint this request is for.
func (r *AuthRequest) Endpoint() ServiceEndpoint { return r.endpoint }

// RedirectURL builds the checkid_setup/checkid_immediate redirect per
// spec.md §4.3.
func (r *AuthRequest) RedirectURL(trustRoot, returnTo string, immediate bool) (string, error) {
	base, err := url.Parse(r.endpoint.ServerURL)
	if err != nil {
		return "", err
	}

	mode := "checkid_setup"
	if immediate {
		mode = "checkid_immediate"
	}

	fullReturnTo, err := appendArgs(returnTo, r.returnToArgs)
	if err != nil {
		return "", err
	}

	q := base.Query()
	q.Set("openid.mode", mode)
	q.Set("openid.identity", r.endpoint.ServerID)
	q.Set("openid.return_to", fullReturnTo)
	q.Set("openid.trust_root", trustRoot)
	if r.association != nil {
		q.Set("openid.assoc_handle", r.association.Handle)
	}

	// Extension args are merged in last, in a stable order so redirect
	// URLs are deterministic for a given request (helps testing; the
	// provider does not care about order).
	keys := make([]string, 0, len(r.extensionArgs))
	for k := range r.extensionArgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Set(k, r.extensionArgs[k])
	}

	base.RawQuery = q.Encode()
	return base.String(), nil
}

// appendArgs appends extra query args to target, preserving any existing
// query string already present on target (spec.md §4.3).
func appendArgs(target string, extra url.Values) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	existing := u.Query()
	for k, vs := range extra {
		for _, v := range vs {
			existing.Add(k, v)
		}
	}
	u.RawQuery = encodeStableQuery(existing)
	return u.String(), nil
}

// encodeStableQuery is url.Values.Encode with keys in insertion-independent
// sorted order, matching net/url's own behavior; kept as a named helper so
// the intent (deterministic encoding for tests) is explicit at call sites.
func encodeStableQuery(v url.Values) string {
	if len(v) == 0 {
		return ""
	}
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		for _, val := range v[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(val))
		}
	}
	return b.String()
}
