package dumb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-openid/relyingparty/openid"
	"github.com/go-openid/relyingparty/store/memory"
)

func Test_Store_IsDumb_AlwaysTrue(t *testing.T) {
	inner, err := memory.New()
	require.NoError(t, err)
	s := New(inner)
	assert.True(t, s.IsDumb())
}

func Test_Store_NeverPersistsAssociations(t *testing.T) {
	inner, err := memory.New()
	require.NoError(t, err)
	s := New(inner)
	ctx := context.Background()

	require.NoError(t, s.StoreAssociation(ctx, "http://p", openid.Association{Handle: "h1"}))
	_, ok, err := s.GetAssociation(ctx, "http://p", "h1")
	require.NoError(t, err)
	assert.False(t, ok, "dumb store must never hand back a cached association")

	// The inner store was never touched either.
	_, ok, err = inner.GetAssociation(ctx, "http://p", "h1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func Test_Store_DelegatesNonceAndAuthKeyToInner(t *testing.T) {
	inner, err := memory.New()
	require.NoError(t, err)
	s := New(inner)
	ctx := context.Background()

	require.NoError(t, s.StoreNonce(ctx, "n1"))
	existed, err := inner.UseNonce(ctx, "n1")
	require.NoError(t, err)
	assert.True(t, existed, "nonce stored through the decorator must land in the inner store")

	k1, err := s.GetAuthKey(ctx)
	require.NoError(t, err)
	k2, err := inner.GetAuthKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}
