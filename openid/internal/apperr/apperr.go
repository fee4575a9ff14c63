// Package apperr gives the relying-party core a small, typed error taxonomy
// so callers can tell a malformed provider response from a transport outage
// from a programmer mistake without string-matching messages.
package apperr

import "fmt"

// Code classifies an Error by which layer of the protocol produced it.
type Code string

const (
	// CodeProtocol marks a malformed or mode-invalid provider response.
	CodeProtocol Code = "protocol"
	// CodeTransport marks a fetcher failure: no response, status 400, or non-200.
	CodeTransport Code = "transport"
	// CodeCrypto marks a signature mismatch or malformed cryptographic material.
	CodeCrypto Code = "crypto"
	// CodeState marks a missing session token, missing nonce, or expired association.
	CodeState Code = "state"
	// CodeDiscovery marks a failed discovery round-trip (not "no endpoint found").
	CodeDiscovery Code = "discovery"
	// CodeConfiguration marks a construction-time misuse of the API. Fatal.
	CodeConfiguration Code = "configuration"
)

// Error is the taxonomy carrier. It never embeds secret material: callers
// building a Failure response message from Error.Message() get a string
// that is safe to show a user or put in a log line.
type Error struct {
	code    Code
	message string
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(cause error, code Code, message string) *Error {
	return &Error{code: code, message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error { return e.cause }

// Code reports the taxonomy bucket this error belongs to.
func (e *Error) Code() Code { return e.code }

// Message is the diagnostic text, safe to surface in a Failure response.
func (e *Error) Message() string { return e.message }

// Is lets errors.Is match on Code regardless of message or cause, e.g.
// errors.Is(err, apperr.New(apperr.CodeState, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.code == e.code
}
