package openid

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-openid/relyingparty/openid/internal/crypto"
)

// tokenCodec implements spec.md §4.1: it builds and verifies the signed
// inter-request token that carries (identityURL, serverID, serverURL)
// through the user's browser between begin and complete. The token is the
// only trusted binding between the browser session and the endpoint chosen
// in phase one.
type tokenCodec struct {
	lifetime time.Duration
	clock    clockFunc
}

const tokenFieldSep = "\x00"

// sign builds base64(sig || timestamp\x00identityURL\x00serverID\x00serverURL)
// where sig = HMAC-SHA1(authKey, timestamp\x00identityURL\x00serverID\x00serverURL).
func (t tokenCodec) sign(authKey []byte, identityURL, serverID, serverURL string) string {
	now := t.clock()
	joined := joinTokenFields(now, identityURL, serverID, serverURL)
	sig := crypto.HMACSHA1(authKey, []byte(joined))
	return crypto.Base64Encode(append(sig, []byte(joined)...))
}

func joinTokenFields(now time.Time, identityURL, serverID, serverURL string) string {
	ts := strconv.FormatInt(now.Unix(), 10)
	return strings.Join([]string{ts, identityURL, serverID, serverURL}, tokenFieldSep)
}

// tokenFields is what verify recovers from a valid token.
type tokenFields struct {
	IdentityURL string
	ServerID    string
	ServerURL   string
}

// verify reverses sign and checks both the signature and the timestamp
// bound. Every failure path returns ok=false with no partial result, per
// spec.md §4.1.
func (t tokenCodec) verify(authKey []byte, token string) (tokenFields, bool) {
	raw, err := crypto.Base64Decode(token)
	if err != nil {
		return tokenFields{}, false
	}
	if len(raw) < crypto.HMACSize {
		return tokenFields{}, false
	}
	sig, body := raw[:crypto.HMACSize], raw[crypto.HMACSize:]

	expected := crypto.HMACSHA1(authKey, body)
	if !crypto.EqualConstantTime(sig, expected) {
		return tokenFields{}, false
	}

	parts := strings.Split(string(body), tokenFieldSep)
	if len(parts) != 4 {
		return tokenFields{}, false
	}

	ts, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || ts == 0 {
		return tokenFields{}, false
	}

	issued := time.Unix(ts, 0)
	if issued.Add(t.lifetime).Before(t.clock()) {
		return tokenFields{}, false
	}

	return tokenFields{
		IdentityURL: parts[1],
		ServerID:    parts[2],
		ServerURL:   parts[3],
	}, true
}
