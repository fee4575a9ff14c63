package openid

import (
	"context"
	"sync"
	"time"
)

// memStore is a minimal in-memory Store used across this package's tests.
// It is deliberately simpler than the production /store implementations:
// no TTL sweeping, no serialization, just enough to exercise the engine.
type memStore struct {
	mu      sync.Mutex
	assocs  map[string]map[string]Association
	nonces  map[string]bool
	authKey []byte
	dumb    bool
	clock   func() time.Time
}

func newMemStore() *memStore {
	return &memStore{
		assocs:  make(map[string]map[string]Association),
		nonces:  make(map[string]bool),
		authKey: []byte("test-auth-key"),
		clock:   time.Now,
	}
}

func (s *memStore) GetAssociation(_ context.Context, serverURL, handle string) (Association, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byHandle := s.assocs[serverURL]
	if handle != "" {
		a, ok := byHandle[handle]
		return a, ok, nil
	}
	var best Association
	found := false
	now := s.clock()
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

func (s *memStore) StoreAssociation(_ context.Context, serverURL string, assoc Association) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.assocs[serverURL] == nil {
		s.assocs[serverURL] = make(map[string]Association)
	}
	s.assocs[serverURL][assoc.Handle] = assoc
	return nil
}

func (s *memStore) RemoveAssociation(_ context.Context, serverURL, handle string) (bool, error) {
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

func (s *memStore) StoreNonce(_ context.Context, nonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonces[nonce] = true
	return nil
}

func (s *memStore) UseNonce(_ context.Context, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existed := s.nonces[nonce]
	delete(s.nonces, nonce)
	return existed, nil
}

func (s *memStore) GetAuthKey(_ context.Context) ([]byte, error) {
	return s.authKey, nil
}

func (s *memStore) IsDumb() bool { return s.dumb }

// funcFetcher adapts a plain function to the Fetcher interface.
type funcFetcher func(ctx context.Context, url string, body []byte) (FetchResult, error)

func (f funcFetcher) PostForm(ctx context.Context, url string, body []byte) (FetchResult, error) {
	return f(ctx, url, body)
}

// memSession is a minimal in-memory Session.
type memSession struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemSession() *memSession {
	return &memSession{data: make(map[string]string)}
}

func (s *memSession) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memSession) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memSession) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// fixedDiscovery hands back the same endpoint (or nil, or an error) every
// time Next is called, regardless of identifier.
type fixedDiscovery struct {
	endpoint    *ServiceEndpoint
	err         error
	cleanupErr  error
	cleanupHits []string
}

func (d *fixedDiscovery) Next(_ context.Context, _ string) (*ServiceEndpoint, error) {
	return d.endpoint, d.err
}

func (d *fixedDiscovery) Cleanup(_ context.Context, identifier string) error {
	d.cleanupHits = append(d.cleanupHits, identifier)
	return d.cleanupErr
}
