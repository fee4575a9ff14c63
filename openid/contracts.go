package openid

//go:generate mockgen -source=contracts.go -destination=mocks/mocks.go -package=mocks Discovery,Fetcher

import "context"

// Store is the StoreContract of spec.md §5: the abstract interface for
// associations, nonces, and the process-wide token-signing key. It is the
// only collaborator the core treats as stateful and possibly shared across
// requests.
//
// Implementations live outside this package (see /store/memory,
// /store/dumb, /store/redis, /store/postgres at the repository root); the
// core never assumes a particular backend.
type Store interface {
	// GetAssociation returns the association for serverURL. If handle is
	// non-empty it must match exactly; if empty, implementations return
	// the "most useful current association" (by convention, the one with
	// the greatest remaining lifetime). Returns (Association{}, false) if
	// none is found.
	GetAssociation(ctx context.Context, serverURL, handle string) (Association, bool, error)

	// StoreAssociation persists assoc under serverURL, overwriting any
	// prior association sharing the same handle.
	StoreAssociation(ctx context.Context, serverURL string, assoc Association) error

	// RemoveAssociation deletes the association for serverURL/handle,
	// reporting whether one existed.
	RemoveAssociation(ctx context.Context, serverURL, handle string) (bool, error)

	// StoreNonce records nonce as unredeemed.
	StoreNonce(ctx context.Context, nonce string) error

	// UseNonce atomically checks whether nonce exists and removes it in
	// the same operation, returning true iff it existed. This is the only
	// concurrency contract a Store implementation must honor exactly.
	UseNonce(ctx context.Context, nonce string) (bool, error)

	// GetAuthKey returns the process-stable HMAC key TokenCodec signs
	// tokens with. Must return the same bytes for the process lifetime.
	GetAuthKey(ctx context.Context) ([]byte, error)

	// IsDumb reports whether this store supports persistence (false) or
	// forces dumb mode (true). See spec.md §3's Mode definition.
	IsDumb() bool
}

// FetchResult is what Fetcher returns for a single POST round-trip.
type FetchResult struct {
	StatusCode int
	Body       []byte
}

// Fetcher is the FetcherContract: an abstract HTTP POST. The core issues
// key-value-form POST bodies for associate and check_authentication and
// never touches net/http directly.
type Fetcher interface {
	PostForm(ctx context.Context, url string, body []byte) (FetchResult, error)
}

// Session is the SessionContract: a three-method string key/value store
// scoped to one browser session, used only to carry the signed token
// between begin and complete.
type Session interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, key string) error
}

// Discovery is the DiscoveryContract: it yields the next ServiceEndpoint
// for an identifier. The core consumes it as a simple pull iterator and
// never performs Yadis/HTML discovery itself.
type Discovery interface {
	// Next returns the next candidate endpoint for identifier, or
	// (nil, nil) when discovery is exhausted with nothing found.
	Next(ctx context.Context, identifier string) (*ServiceEndpoint, error)

	// Cleanup releases any discovery-manager state cached for identifier,
	// called after a completed (successful or cancelled) login.
	Cleanup(ctx context.Context, identifier string) error
}
