// Package cookie implements openid.Session as a JWT signed and carried in a
// single HTTP cookie, for a relying party that wants to stay stateless
// between requests rather than depending on a session store.
package cookie

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// claims carries an arbitrary string-keyed payload instead of a fixed set
// of fields, since openid.Session only ever needs to round-trip the single
// "openid_last_token" key the core writes during Begin.
type claims struct {
	Values map[string]string `json:"values"`
	jwt.RegisteredClaims
}

// Codec signs and verifies the JWTs a Session reads from and writes to a
// cookie.
type Codec struct {
	signingKey []byte
	issuer     string
	lifetime   time.Duration
}

// NewCodec builds a Codec. signingKey must be stable for the process
// lifetime — a restart with a new key invalidates every outstanding
// session cookie.
func NewCodec(signingKey []byte, issuer string, lifetime time.Duration) *Codec {
	return &Codec{signingKey: signingKey, issuer: issuer, lifetime: lifetime}
}

var errInvalidToken = errors.New("cookie: invalid or expired session token")

func (c *Codec) encode(values map[string]string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Values: values,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.lifetime)),
			Issuer:    c.issuer,
		},
	})
	return token.SignedString(c.signingKey)
}

func (c *Codec) decode(raw string) (map[string]string, error) {
	var cl claims
	parsed, err := jwt.ParseWithClaims(raw, &cl, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return c.signingKey, nil
	})
	if err != nil || !parsed.Valid {
		return nil, errInvalidToken
	}
	if cl.Values == nil {
		cl.Values = map[string]string{}
	}
	return cl.Values, nil
}

// CookieName is the cookie the Session reads and writes by default.
const CookieName = "openid_rp_session"

// Session implements openid.Session over an in-memory map decoded from a
// request cookie and re-encoded on Flush. It is not safe for concurrent
// use — one Session is built per request.
type Session struct {
	codec  *Codec
	name   string
	values map[string]string
	dirty  bool
}

// FromRequest builds a Session from r's cookie named name, or an empty one
// if the cookie is absent or fails to verify.
func FromRequest(codec *Codec, name string, r *http.Request) *Session {
	s := &Session{codec: codec, name: name, values: map[string]string{}}
	if ck, err := r.Cookie(name); err == nil {
		if values, err := codec.decode(ck.Value); err == nil {
			s.values = values
		}
	}
	return s
}

func (s *Session) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *Session) Set(_ context.Context, key, value string) error {
	s.values[key] = value
	s.dirty = true
	return nil
}

func (s *Session) Del(_ context.Context, key string) error {
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	s.dirty = true
	return nil
}

// Dirty reports whether any Set/Del call has mutated the session since it
// was built, so the caller knows whether Flush needs to write a cookie.
func (s *Session) Dirty() bool { return s.dirty }

// Flush signs the current session state and sets it on w as a cookie.
// Deleting the cookie (when the session has become empty) is left to the
// caller, since that decision depends on the response's security posture
// (Secure, SameSite) that only the HTTP layer knows about.
func (s *Session) Flush(w http.ResponseWriter, secure bool) error {
	signed, err := s.codec.encode(s.values)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.name,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.codec.lifetime.Seconds()),
	})
	s.dirty = false
	return nil
}
