// Package crypto holds the primitives the OpenID 1.1 wire protocol is built
// from: HMAC-SHA1 signing, a process-local random byte source, standard
// base64, and the big-integer arithmetic Diffie-Hellman association
// negotiation needs. Nothing here is protocol-aware; callers assemble the
// bytes.
package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // mandated by the OpenID 1.1 wire format, not used for password hashing
	"crypto/subtle"
	"encoding/base64"
	"math/big"
)

// HMACSize is the length in bytes of an HMAC-SHA1 digest.
const HMACSize = sha1.Size

// HMACSHA1 computes the HMAC-SHA1 of data under key, as required for both
// the inter-request token signature and the association signature.
func HMACSHA1(key, data []byte) []byte {
	mac := hmac.New(sha1.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// EqualConstantTime reports whether a and b are byte-for-byte equal,
// comparing in constant time to avoid a timing oracle on signature checks.
func EqualConstantTime(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// SHA1Sum returns the SHA1 digest of data, used to derive the DH shared
// secret mask (K = SHA1(btwoc(Z))).
func SHA1Sum(data []byte) []byte {
	h := sha1.Sum(data) //nolint:gosec
	return h[:]
}

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Base64Encode / Base64Decode use standard (not URL-safe) base64 with
// padding, the only variant the OpenID 1.1 wire protocol uses.
func Base64Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func Base64Decode(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// BTWOC renders a non-negative big integer as a minimal big-endian
// two's-complement byte string, prepending a 0x00 byte when the top bit of
// the leading byte would otherwise be mistaken for a sign bit. Diffie-Hellman
// values exchanged over OpenID are always non-negative, so this function
// rejects negative input by panicking rather than silently doing the wrong
// thing.
func BTWOC(n *big.Int) []byte {
	if n.Sign() < 0 {
		panic("crypto: BTWOC of a negative integer")
	}
	if n.Sign() == 0 {
		return []byte{0}
	}
	b := n.Bytes()
	if b[0]&0x80 != 0 {
		b = append([]byte{0}, b...)
	}
	return b
}

// FromBTWOC parses a big-endian two's-complement byte string produced by
// BTWOC (or by a provider following the same convention) back into a
// non-negative big integer.
func FromBTWOC(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}
