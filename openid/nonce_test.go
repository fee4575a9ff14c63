package openid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_NonceChecker_RedeemsValidNonce(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.StoreNonce(context.Background(), "abcdefgh"))
	n := nonceChecker{store: store}

	resp := successResponse(testIdentity, nil)
	got := n.check(context.Background(), resp, "http://rp.example.com/return?nonce=abcdefgh")

	assert.Equal(t, KindSuccess, got.Kind)
	existed, err := store.UseNonce(context.Background(), "abcdefgh")
	require.NoError(t, err)
	assert.False(t, existed, "nonce must be single-use")
}

func Test_NonceChecker_PassesThroughNonSuccess(t *testing.T) {
	n := nonceChecker{store: newMemStore()}
	resp := cancelResponse(testIdentity)
	got := n.check(context.Background(), resp, "http://rp.example.com/return")
	assert.Equal(t, resp, got)
}

func Test_NonceChecker_MissingNonceFails(t *testing.T) {
	n := nonceChecker{store: newMemStore()}
	resp := successResponse(testIdentity, nil)
	got := n.check(context.Background(), resp, "http://rp.example.com/return")
	assert.Equal(t, KindFailure, got.Kind)
}

func Test_NonceChecker_UnknownNonceFails(t *testing.T) {
	n := nonceChecker{store: newMemStore()}
	resp := successResponse(testIdentity, nil)
	got := n.check(context.Background(), resp, "http://rp.example.com/return?nonce=never-issued")
	assert.Equal(t, KindFailure, got.Kind)
}

func Test_NonceChecker_CannotBeRedeemedTwice(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.StoreNonce(context.Background(), "once-only"))
	n := nonceChecker{store: store}

	first := n.check(context.Background(), successResponse(testIdentity, nil), "http://rp.example.com/return?nonce=once-only")
	second := n.check(context.Background(), successResponse(testIdentity, nil), "http://rp.example.com/return?nonce=once-only")

	assert.Equal(t, KindSuccess, first.Kind)
	assert.Equal(t, KindFailure, second.Kind)
}

func Test_GenerateNonce_DefaultLength(t *testing.T) {
	nonce, err := generateNonce(nil)
	require.NoError(t, err)
	assert.Len(t, nonce, nonceLength)
	for _, c := range nonce {
		assert.Contains(t, nonceAlphabet, string(c))
	}
}

func Test_GenerateNonce_DeterministicWithFixedRandSource(t *testing.T) {
	// Index 26 in nonceAlphabet ("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789")
	// is 'a'; filling successive bytes 26..33 yields "abcdefgh", pinning
	// scenario S1's nonce for a deterministic redirect URL.
	fixed := func(b []byte) (int, error) {
		for i := range b {
			b[i] = byte(26 + i)
		}
		return len(b), nil
	}
	nonce, err := generateNonce(fixed)
	require.NoError(t, err)
	assert.Equal(t, "abcdefgh", nonce)
}
