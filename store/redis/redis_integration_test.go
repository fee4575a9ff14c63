//go:build integration

package redis_test

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/go-openid/relyingparty/openid"
	storeredis "github.com/go-openid/relyingparty/store/redis"
)

type StoreSuite struct {
	suite.Suite
	container testcontainers.Container
	client    *storeredis.Client
	store     *storeredis.Store
}

func TestStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupSuite() {
	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	s.Require().NoError(err)
	s.container = container

	addr, err := container.ConnectionString(ctx)
	s.Require().NoError(err)
	opts, err := goredis.ParseURL(addr)
	s.Require().NoError(err)

	client, err := storeredis.NewClient(ctx, storeredis.Config{Addr: opts.Addr})
	s.Require().NoError(err)
	s.client = client
	s.store = storeredis.New(client)
}

func (s *StoreSuite) TearDownSuite() {
	ctx := context.Background()
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(ctx)
	}
}

func (s *StoreSuite) SetupTest() {
	s.Require().NoError(s.client.FlushAll(context.Background()).Err())
}

func (s *StoreSuite) TestAssociationRoundTrip() {
	ctx := context.Background()
	assoc := openid.Association{
		Handle: "h1", Secret: []byte("secret"), AssocType: openid.AssocType,
		IssuedAt: time.Now(), LifetimeSeconds: 3600,
	}
	s.Require().NoError(s.store.StoreAssociation(ctx, "http://provider.example.com", assoc))

	got, ok, err := s.store.GetAssociation(ctx, "http://provider.example.com", "h1")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(assoc.Handle, got.Handle)
	s.Equal(assoc.Secret, got.Secret)
}

func (s *StoreSuite) TestNonceRedeemedOnce() {
	ctx := context.Background()
	s.Require().NoError(s.store.StoreNonce(ctx, "n1"))

	existed, err := s.store.UseNonce(ctx, "n1")
	s.Require().NoError(err)
	s.True(existed)

	existed, err = s.store.UseNonce(ctx, "n1")
	s.Require().NoError(err)
	s.False(existed)
}

func (s *StoreSuite) TestAuthKeyStableUnderConcurrentFirstAccess() {
	ctx := context.Background()
	const n = 10
	keys := make(chan []byte, n)
	for i := 0; i < n; i++ {
		go func() {
			k, err := s.store.GetAuthKey(ctx)
			s.Require().NoError(err)
			keys <- k
		}()
	}
	first := <-keys
	for i := 1; i < n; i++ {
		s.Equal(first, <-keys)
	}
}
