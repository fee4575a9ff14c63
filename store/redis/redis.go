// Package redis implements openid.Store against Redis, for a relying party
// running more than one process. Associations are kept in a hash keyed by
// the provider's serverURL (field = handle, value = JSON-encoded
// openid.Association); nonces and the auth key are plain keys.
package redis

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/go-openid/relyingparty/openid"
)

// Config configures the underlying go-redis client.
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Client wraps the go-redis client with health checking, matching the
// teacher's platform-level Redis client shape.
type Client struct {
	*redis.Client
}

// NewClient dials Redis and pings it once before returning.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client}, nil
}

// Health checks if the Redis connection is healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.Client.Close()
}

const (
	assocKeyPrefix = "openid:assoc:"
	nonceKeyPrefix = "openid:nonce:"
	authKeyKey     = "openid:authkey"
)

// Store implements openid.Store against a *Client.
type Store struct {
	client *Client
}

// New wraps client in a Store. The caller owns client's lifecycle.
func New(client *Client) *Store {
	return &Store{client: client}
}

func assocHashKey(serverURL string) string {
	return assocKeyPrefix + serverURL
}

func (s *Store) GetAssociation(ctx context.Context, serverURL, handle string) (openid.Association, bool, error) {
	if handle != "" {
		raw, err := s.client.HGet(ctx, assocHashKey(serverURL), handle).Result()
		if err == redis.Nil {
			return openid.Association{}, false, nil
		}
		if err != nil {
			return openid.Association{}, false, err
		}
		var assoc openid.Association
		if err := json.Unmarshal([]byte(raw), &assoc); err != nil {
			return openid.Association{}, false, err
		}
		return assoc, true, nil
	}

	// Empty handle: scan every handle cached for serverURL and pick the
	// one with the most remaining lifetime, matching /store/memory's
	// contract (spec.md §13 Open Question decision).
	all, err := s.client.HGetAll(ctx, assocHashKey(serverURL)).Result()
	if err != nil {
		return openid.Association{}, false, err
	}
	now := time.Now()
	var best openid.Association
	found := false
	for _, raw := range all {
		var assoc openid.Association
		if err := json.Unmarshal([]byte(raw), &assoc); err != nil {
			continue
		}
		if assoc.ExpiresIn(now) <= 0 {
			continue
		}
		if !found || assoc.ExpiresIn(now) > best.ExpiresIn(now) {
			best, found = assoc, true
		}
	}
	return best, found, nil
}

func (s *Store) StoreAssociation(ctx context.Context, serverURL string, assoc openid.Association) error {
	raw, err := json.Marshal(assoc)
	if err != nil {
		return err
	}
	ttl := time.Duration(assoc.LifetimeSeconds) * time.Second
	key := assocHashKey(serverURL)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, assoc.Handle, raw)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) RemoveAssociation(ctx context.Context, serverURL, handle string) (bool, error) {
	n, err := s.client.HDel(ctx, assocHashKey(serverURL), handle).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) StoreNonce(ctx context.Context, nonce string) error {
	// Nonces only need to survive long enough to be redeemed once; cap
	// their lifetime so a client that never comes back doesn't leak keys.
	return s.client.Set(ctx, nonceKeyPrefix+nonce, "1", time.Hour).Err()
}

func (s *Store) UseNonce(ctx context.Context, nonce string) (bool, error) {
	n, err := s.client.GetDel(ctx, nonceKeyPrefix+nonce).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n != "", nil
}

func (s *Store) GetAuthKey(ctx context.Context) ([]byte, error) {
	existing, err := s.client.Get(ctx, authKeyKey).Bytes()
	if err == nil {
		return existing, nil
	}
	if err != redis.Nil {
		return nil, err
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	// SET NX so a race between two processes both minting a fresh key
	// settles on a single winner instead of each trusting its own copy.
	ok, err := s.client.SetNX(ctx, authKeyKey, key, 0).Result()
	if err != nil {
		return nil, err
	}
	if ok {
		return key, nil
	}
	return s.client.Get(ctx, authKeyKey).Bytes()
}

func (s *Store) IsDumb() bool { return false }
