// Package postgres implements openid.Store against PostgreSQL via pgx, for
// a relying party that wants durable associations and nonces across
// restarts rather than Redis's in-memory lifetime.
package postgres

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/go-openid/relyingparty/openid"
)

const schema = `
CREATE TABLE IF NOT EXISTS openid_associations (
	server_url       TEXT NOT NULL,
	handle           TEXT NOT NULL,
	secret           BYTEA NOT NULL,
	assoc_type       TEXT NOT NULL,
	issued_at        TIMESTAMPTZ NOT NULL,
	lifetime_seconds BIGINT NOT NULL,
	PRIMARY KEY (server_url, handle)
);

CREATE TABLE IF NOT EXISTS openid_nonces (
	nonce      TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS openid_auth_key (
	id  SMALLINT PRIMARY KEY DEFAULT 1,
	key BYTEA NOT NULL,
	CHECK (id = 1)
);
`

// Connection wraps a pgx connection pool.
type Connection struct {
	*pgxpool.Pool
}

// NewConnection opens a pool against dsn and ensures the schema exists.
func NewConnection(ctx context.Context, dsn string) (*Connection, error) {
	conf, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection pool: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure openid schema: %w", err)
	}
	return &Connection{Pool: pool}, nil
}

func (c *Connection) Close() error {
	if c.Pool != nil {
		c.Pool.Close()
	}
	return nil
}

func (c *Connection) Ping(ctx context.Context) error {
	if c.Pool == nil {
		return fmt.Errorf("connection pool is nil")
	}
	return c.Pool.Ping(ctx)
}

// Store implements openid.Store against a *Connection.
type Store struct {
	db *Connection
}

// New builds a Store backed by db.
func New(db *Connection) *Store {
	return &Store{db: db}
}

func (s *Store) GetAssociation(ctx context.Context, serverURL, handle string) (openid.Association, bool, error) {
	if handle != "" {
		const query = `
			SELECT handle, secret, assoc_type, issued_at, lifetime_seconds
			FROM openid_associations WHERE server_url = $1 AND handle = $2
		`
		var a openid.Association
		err := s.db.QueryRow(ctx, query, serverURL, handle).Scan(
			&a.Handle, &a.Secret, &a.AssocType, &a.IssuedAt, &a.LifetimeSeconds,
		)
		if errors.Is(err, pgx.ErrNoRows) {
			return openid.Association{}, false, nil
		}
		if err != nil {
			return openid.Association{}, false, fmt.Errorf("failed to get association: %w", err)
		}
		return a, true, nil
	}

	// Empty handle: pick the one with the most remaining lifetime among
	// those not yet expired (spec.md §13 Open Question decision).
	const query = `
		SELECT handle, secret, assoc_type, issued_at, lifetime_seconds
		FROM openid_associations
		WHERE server_url = $1 AND issued_at + (lifetime_seconds * interval '1 second') > now()
		ORDER BY issued_at + (lifetime_seconds * interval '1 second') DESC
		LIMIT 1
	`
	var a openid.Association
	err := s.db.QueryRow(ctx, query, serverURL).Scan(
		&a.Handle, &a.Secret, &a.AssocType, &a.IssuedAt, &a.LifetimeSeconds,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return openid.Association{}, false, nil
	}
	if err != nil {
		return openid.Association{}, false, fmt.Errorf("failed to get association: %w", err)
	}
	return a, true, nil
}

func (s *Store) StoreAssociation(ctx context.Context, serverURL string, assoc openid.Association) error {
	const query = `
		INSERT INTO openid_associations (server_url, handle, secret, assoc_type, issued_at, lifetime_seconds)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (server_url, handle) DO UPDATE SET
			secret = EXCLUDED.secret,
			assoc_type = EXCLUDED.assoc_type,
			issued_at = EXCLUDED.issued_at,
			lifetime_seconds = EXCLUDED.lifetime_seconds
	`
	_, err := s.db.Exec(ctx, query, serverURL, assoc.Handle, assoc.Secret, assoc.AssocType, assoc.IssuedAt, assoc.LifetimeSeconds)
	if err != nil {
		return fmt.Errorf("failed to store association: %w", err)
	}
	return nil
}

func (s *Store) RemoveAssociation(ctx context.Context, serverURL, handle string) (bool, error) {
	const query = `DELETE FROM openid_associations WHERE server_url = $1 AND handle = $2`
	tag, err := s.db.Exec(ctx, query, serverURL, handle)
	if err != nil {
		return false, fmt.Errorf("failed to remove association: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) StoreNonce(ctx context.Context, nonce string) error {
	const query = `INSERT INTO openid_nonces (nonce) VALUES ($1) ON CONFLICT (nonce) DO NOTHING`
	_, err := s.db.Exec(ctx, query, nonce)
	if err != nil {
		return fmt.Errorf("failed to store nonce: %w", err)
	}
	return nil
}

func (s *Store) UseNonce(ctx context.Context, nonce string) (bool, error) {
	const query = `DELETE FROM openid_nonces WHERE nonce = $1 RETURNING nonce`
	var redeemed string
	err := s.db.QueryRow(ctx, query, nonce).Scan(&redeemed)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to redeem nonce: %w", err)
	}
	return true, nil
}

func (s *Store) GetAuthKey(ctx context.Context) ([]byte, error) {
	const selectQuery = `SELECT key FROM openid_auth_key WHERE id = 1`
	var key []byte
	if err := s.db.QueryRow(ctx, selectQuery).Scan(&key); err == nil {
		return key, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to read auth key: %w", err)
	}

	fresh := make([]byte, 32)
	if _, err := rand.Read(fresh); err != nil {
		return nil, err
	}
	const insertQuery = `INSERT INTO openid_auth_key (id, key) VALUES (1, $1) ON CONFLICT (id) DO NOTHING`
	if _, err := s.db.Exec(ctx, insertQuery, fresh); err != nil {
		return nil, fmt.Errorf("failed to insert auth key: %w", err)
	}

	var key2 []byte
	if err := s.db.QueryRow(ctx, selectQuery).Scan(&key2); err != nil {
		return nil, fmt.Errorf("failed to read auth key after insert: %w", err)
	}
	return key2, nil
}

func (s *Store) IsDumb() bool { return false }
