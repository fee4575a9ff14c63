package openid

import (
	"context"
	cryptorand "crypto/rand"
	"net/url"
)

// nonceChecker implements spec.md §4.6: it runs only on a prospective
// Success, confirming the nonce echoed in return_to matches the one this
// consumer issued and has not already been redeemed.
type nonceChecker struct {
	store Store
}

// check validates the nonce embedded in the provider's echoed return_to and
// redeems it from the store. A successful response that fails nonce
// validation is downgraded to Failure; a validated one passes through
// unchanged.
//
// spec.md §4.6 describes a value to compare the extracted nonce against
// ("the value passed through the original return_to_args") before the store
// lookup. That value is, by construction, the same nonce parsed from the
// same return_to: the consumer never retains a second copy of it between
// Begin and Complete, only store.UseNonce does. The comparison is therefore
// not a second check; redemption against the store is the only one that can
// actually fail (see DESIGN.md).
func (n nonceChecker) check(ctx context.Context, resp *ConsumerResponse, returnTo string) *ConsumerResponse {
	if resp.Kind != KindSuccess {
		return resp
	}

	u, err := url.Parse(returnTo)
	if err != nil {
		return failureResponse(resp.IdentityURL, "Nonce missing from return_to")
	}
	nonce := u.Query().Get("nonce")
	if nonce == "" {
		return failureResponse(resp.IdentityURL, "Nonce missing from return_to")
	}

	existed, err := n.store.UseNonce(ctx, nonce)
	if err != nil || !existed {
		return failureResponse(resp.IdentityURL, "Nonce missing from store")
	}
	return resp
}

// generateNonce draws an 8-character nonce uniformly from [A-Za-z0-9], per
// spec.md §3. randRead defaults to crypto/rand but tests may override it
// (via WithRandSource) to pin scenario S1's nonce value.
func generateNonce(randRead func([]byte) (int, error)) (string, error) {
	if randRead == nil {
		randRead = cryptorand.Read
	}
	// Bytes at or above the largest multiple of len(nonceAlphabet) are
	// discarded, so every character is equally likely.
	limit := 256 - 256%len(nonceAlphabet)
	idx := make([]byte, nonceLength)
	b := make([]byte, 0, nonceLength)
	for len(b) < nonceLength {
		if _, err := randRead(idx); err != nil {
			return "", err
		}
		for _, v := range idx {
			if int(v) < limit && len(b) < nonceLength {
				b = append(b, nonceAlphabet[int(v)%len(nonceAlphabet)])
			}
		}
	}
	return string(b), nil
}
