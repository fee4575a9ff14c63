//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/go-openid/relyingparty/openid"
	"github.com/go-openid/relyingparty/store/postgres"
)

var dsn string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "openid_test",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		panic(err)
	}
	dsn = fmt.Sprintf("postgres://postgres:password@%s:%s/openid_test?sslmode=disable", host, port.Port())

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestStore_AssociationLifecycle(t *testing.T) {
	ctx := context.Background()
	conn, err := postgres.NewConnection(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	store := postgres.New(conn)

	assoc := openid.Association{
		Handle: "h1", Secret: []byte("secret"), AssocType: openid.AssocType,
		IssuedAt: time.Now(), LifetimeSeconds: 3600,
	}
	if err := store.StoreAssociation(ctx, "http://provider.example.com", assoc); err != nil {
		t.Fatalf("store: %v", err)
	}

	got, ok, err := store.GetAssociation(ctx, "http://provider.example.com", "h1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(got.Secret) != "secret" {
		t.Fatalf("secret mismatch: %q", got.Secret)
	}

	existed, err := store.RemoveAssociation(ctx, "http://provider.example.com", "h1")
	if err != nil || !existed {
		t.Fatalf("remove: existed=%v err=%v", existed, err)
	}
}

func TestStore_NonceRedeemedOnce(t *testing.T) {
	ctx := context.Background()
	conn, err := postgres.NewConnection(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	store := postgres.New(conn)

	if err := store.StoreNonce(ctx, "n-pg-1"); err != nil {
		t.Fatalf("store nonce: %v", err)
	}
	first, err := store.UseNonce(ctx, "n-pg-1")
	if err != nil || !first {
		t.Fatalf("first redemption: existed=%v err=%v", first, err)
	}
	second, err := store.UseNonce(ctx, "n-pg-1")
	if err != nil || second {
		t.Fatalf("second redemption should fail: existed=%v err=%v", second, err)
	}
}

func TestStore_AuthKeyStable(t *testing.T) {
	ctx := context.Background()
	conn, err := postgres.NewConnection(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	store := postgres.New(conn)

	k1, err := store.GetAuthKey(ctx)
	if err != nil {
		t.Fatalf("get auth key: %v", err)
	}
	k2, err := store.GetAuthKey(ctx)
	if err != nil {
		t.Fatalf("get auth key again: %v", err)
	}
	if string(k1) != string(k2) {
		t.Fatalf("auth key not stable")
	}
}
