// Package redis implements openid.Session as a Redis hash per session ID,
// for a relying party that wants server-side session state instead of
// pushing it into a signed cookie (see /session/cookie).
package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "openid:session:"

// CookieName is the opaque session-ID cookie a caller carries between
// requests; the actual session state lives server-side in Redis, keyed by
// this ID.
const CookieName = "openid_rp_session_id"

// Client is the subset of *redis.Client a Session needs; satisfied by
// *storeredis.Client as well as a plain *redis.Client.
type Client interface {
	HGet(ctx context.Context, key, field string) *goredis.StringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *goredis.IntCmd
	HDel(ctx context.Context, key string, fields ...string) *goredis.IntCmd
	Expire(ctx context.Context, key string, ttl time.Duration) *goredis.BoolCmd
}

// Session implements openid.Session over a single Redis hash, keyed by
// sessionID, with its TTL refreshed on every Set (Del leaves the TTL as is).
type Session struct {
	client    Client
	sessionID string
	ttl       time.Duration
}

// New builds a Session bound to sessionID, which the caller is responsible
// for minting and carrying (typically in an opaque session cookie).
func New(client Client, sessionID string, ttl time.Duration) *Session {
	return &Session{client: client, sessionID: sessionID, ttl: ttl}
}

func (s *Session) key() string {
	return sessionKeyPrefix + s.sessionID
}

func (s *Session) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.HGet(ctx, s.key(), key).Result()
	if err == goredis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Session) Set(ctx context.Context, key, value string) error {
	if err := s.client.HSet(ctx, s.key(), key, value).Err(); err != nil {
		return err
	}
	return s.client.Expire(ctx, s.key(), s.ttl).Err()
}

func (s *Session) Del(ctx context.Context, key string) error {
	return s.client.HDel(ctx, s.key(), key).Err()
}
