// Package dumb wraps another openid.Store to force dumb-mode operation: no
// association is ever cached, so every id_res is verified via
// check_authentication (spec.md §3's Mode, §4.5). Nonce redemption and the
// auth key are delegated to the wrapped Store unchanged — dumb mode still
// needs both.
package dumb

import (
	"context"

	"github.com/go-openid/relyingparty/openid"
)

// Store forces dumb mode over an underlying Store.
type Store struct {
	inner openid.Store
}

// New wraps inner, forcing IsDumb() to report true regardless of inner's
// own answer.
func New(inner openid.Store) *Store {
	return &Store{inner: inner}
}

func (s *Store) GetAssociation(context.Context, string, string) (openid.Association, bool, error) {
	return openid.Association{}, false, nil
}

func (s *Store) StoreAssociation(context.Context, string, openid.Association) error {
	return nil
}

func (s *Store) RemoveAssociation(context.Context, string, string) (bool, error) {
	return false, nil
}

func (s *Store) StoreNonce(ctx context.Context, nonce string) error {
	return s.inner.StoreNonce(ctx, nonce)
}

func (s *Store) UseNonce(ctx context.Context, nonce string) (bool, error) {
	return s.inner.UseNonce(ctx, nonce)
}

func (s *Store) GetAuthKey(ctx context.Context) ([]byte, error) {
	return s.inner.GetAuthKey(ctx)
}

func (s *Store) IsDumb() bool { return true }
