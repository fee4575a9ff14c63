// Command relyingparty runs the OpenID 1.1 relying party as an HTTP
// service: GET /login begins a checkid_setup round-trip against a
// discovered provider, GET /callback completes it.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/go-openid/relyingparty/audit"
	"github.com/go-openid/relyingparty/cmd/relyingparty/httpapi"
	"github.com/go-openid/relyingparty/discovery/html"
	"github.com/go-openid/relyingparty/internal/platform/config"
	"github.com/go-openid/relyingparty/internal/platform/httpserver"
	"github.com/go-openid/relyingparty/internal/platform/logger"
	"github.com/go-openid/relyingparty/metrics"
	"github.com/go-openid/relyingparty/openid"
	"github.com/go-openid/relyingparty/session/cookie"
	sessionredis "github.com/go-openid/relyingparty/session/redis"
	"github.com/go-openid/relyingparty/store/memory"
	"github.com/go-openid/relyingparty/store/postgres"
	storeredis "github.com/go-openid/relyingparty/store/redis"
	"github.com/go-openid/relyingparty/transport/httpfetch"
)

func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("relyingparty: exiting", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	sessions, err := buildSessionFactory(ctx, cfg)
	if err != nil {
		return err
	}

	fetcher := httpfetch.New(10*time.Second, "")
	discovery := html.New(nil)
	metricsReg := metrics.New()

	var auditor *audit.Trail
	if len(cfg.KafkaBrokers) > 0 {
		auditor, err = audit.New(ctx, cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			return err
		}
		defer auditor.Close()
	}

	gc, err := openid.NewGenericConsumer(store, fetcher, discovery, openid.WithLogger(log), openid.WithTokenLifetime(cfg.TokenLifetime))
	if err != nil {
		return err
	}

	server := &httpapi.Server{
		Consumer:  gc,
		Sessions:  sessions,
		Metrics:   metricsReg,
		Logger:    log,
		TrustRoot: cfg.TrustRoot,
		ReturnTo:  cfg.ReturnTo,
	}
	if auditor != nil {
		server.Audit = auditor
	}

	httpSrv := httpserver.New(cfg.Addr, server.Routes())

	errCh := make(chan error, 1)
	go func() {
		log.Info("relyingparty: listening", "addr", cfg.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("relyingparty: shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func buildStore(ctx context.Context, cfg config.Config) (openid.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreBackendRedis:
		client, err := storeredis.NewClient(ctx, storeredis.Config{Addr: cfg.RedisAddr})
		if err != nil {
			return nil, nil, err
		}
		return storeredis.New(client), func() { _ = client.Close() }, nil
	case config.StoreBackendPostgres:
		conn, err := postgres.NewConnection(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return postgres.New(conn), func() { _ = conn.Close() }, nil
	default:
		s, err := memory.New()
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}
}

func buildSessionFactory(ctx context.Context, cfg config.Config) (httpapi.SessionFactory, error) {
	switch cfg.SessionBackend {
	case config.SessionBackendRedis:
		client, err := storeredis.NewClient(ctx, storeredis.Config{Addr: cfg.RedisAddr})
		if err != nil {
			return nil, err
		}
		return func(w http.ResponseWriter, r *http.Request) (openid.Session, func() error) {
			sessionID, err := r.Cookie(sessionredis.CookieName)
			id := ""
			if err == nil {
				id = sessionID.Value
			} else {
				id = newSessionID()
				http.SetCookie(w, &http.Cookie{
					Name: sessionredis.CookieName, Value: id, Path: "/", HttpOnly: true,
					Secure: cfg.Secure, SameSite: http.SameSiteLaxMode,
				})
			}
			return sessionredis.New(client, id, cfg.TokenLifetime), func() error { return nil }
		}, nil
	default:
		codec := cookie.NewCodec([]byte(cfg.SessionSigningKey), cfg.TrustRoot, cfg.TokenLifetime)
		return func(w http.ResponseWriter, r *http.Request) (openid.Session, func() error) {
			sess := cookie.FromRequest(codec, cookie.CookieName, r)
			return sess, func() error {
				if !sess.Dirty() {
					return nil
				}
				return sess.Flush(w, cfg.Secure)
			}
		}, nil
	}
}

func newSessionID() string {
	return uuid.NewString()
}
