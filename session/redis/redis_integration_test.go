//go:build integration

package redis_test

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	sessionredis "github.com/go-openid/relyingparty/session/redis"
)

func TestSession_SetGetDel(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	addr, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := goredis.ParseURL(addr)
	require.NoError(t, err)
	client := goredis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	sess := sessionredis.New(client, "sess-1", time.Hour)

	_, ok, err := sess.Get(ctx, "openid_last_token")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, sess.Set(ctx, "openid_last_token", "tok-abc"))
	v, ok, err := sess.Get(ctx, "openid_last_token")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tok-abc", v)

	require.NoError(t, sess.Del(ctx, "openid_last_token"))
	_, ok, err = sess.Get(ctx, "openid_last_token")
	require.NoError(t, err)
	require.False(t, ok)
}
