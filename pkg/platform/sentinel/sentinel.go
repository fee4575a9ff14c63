// Package sentinel holds sentinel errors for infrastructure facts that the
// storage and discovery layers return (optionally wrapped) so the HTTP
// layer can translate them into the right status code without depending
// on a specific backend's error type.
package sentinel

import "errors"

var (
	// ErrNotFound means the requested identifier, association, or session
	// does not exist in the backing store.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable means a discovery or storage backend could not be
	// reached, distinct from the identifier simply having no provider.
	ErrUnavailable = errors.New("unavailable")
)
