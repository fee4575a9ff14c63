// Package memory implements openid.Store entirely in process memory. It is
// the default Store for local development and for tests that do not need a
// real backend; the long-lived authentication key it hands out does not
// survive a restart.
package memory

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/go-openid/relyingparty/openid"
)

// Store is a thread-safe, in-memory openid.Store. Nothing it holds is
// persisted; every association, nonce, and the auth key itself are gone on
// process restart.
type Store struct {
	mu      sync.Mutex
	assocs  map[string]map[string]openid.Association
	nonces  map[string]struct{}
	authKey []byte
	clock   func() time.Time
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithClock overrides the Store's notion of "now", for deterministic tests
// of association expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.clock = now }
}

// New builds an empty Store with a freshly generated 32-byte auth key.
func New(opts ...Option) (*Store, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	s := &Store{
		assocs:  make(map[string]map[string]openid.Association),
		nonces:  make(map[string]struct{}),
		authKey: key,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) GetAssociation(_ context.Context, serverURL, handle string) (openid.Association, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byHandle := s.assocs[serverURL]
	if handle != "" {
		a, ok := byHandle[handle]
		return a, ok, nil
	}

	// Empty handle: the caller wants whichever current association has
	// the most remaining lifetime (spec.md §13 Open Question decision).
	now := s.clock()
	var best openid.Association
	found := false
	for _, a := range byHandle {
		if a.ExpiresIn(now) <= 0 {
			continue
		}
		if !found || a.ExpiresIn(now) > best.ExpiresIn(now) {
			best, found = a, true
		}
	}
	return best, found, nil
}

func (s *Store) StoreAssociation(_ context.Context, serverURL string, assoc openid.Association) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.assocs[serverURL] == nil {
		s.assocs[serverURL] = make(map[string]openid.Association)
	}
	s.assocs[serverURL][assoc.Handle] = assoc
	return nil
}

func (s *Store) RemoveAssociation(_ context.Context, serverURL, handle string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byHandle := s.assocs[serverURL]
	if byHandle == nil {
		return false, nil
	}
	_, existed := byHandle[handle]
	delete(byHandle, handle)
	return existed, nil
}

func (s *Store) StoreNonce(_ context.Context, nonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonces[nonce] = struct{}{}
	return nil
}

func (s *Store) UseNonce(_ context.Context, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.nonces[nonce]
	delete(s.nonces, nonce)
	return existed, nil
}

func (s *Store) GetAuthKey(_ context.Context) ([]byte, error) {
	return s.authKey, nil
}

func (s *Store) IsDumb() bool { return false }
