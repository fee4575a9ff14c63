// Package httpapi wires the openid consumer engine into chi HTTP handlers:
// GET /login starts a checkid_setup round-trip, GET /callback completes it.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/go-openid/relyingparty/metrics"
	"github.com/go-openid/relyingparty/openid"
	"github.com/go-openid/relyingparty/pkg/requestcontext"
)

// Auditor records consumer outcomes; satisfied by *audit.Trail. It is
// optional — a nil Auditor disables audit logging entirely.
type Auditor interface {
	Record(ctx context.Context, kind, identityURL, serverURL, message, userAgent string) error
}

// SessionFactory builds the per-request openid.Session for r, and a flush
// function the handler calls once it knows the response is ready to be
// written (so a cookie-backed session can set its Set-Cookie header
// before headers are sent).
type SessionFactory func(w http.ResponseWriter, r *http.Request) (openid.Session, func() error)

// Server holds the collaborators httpapi's handlers need.
type Server struct {
	Consumer  *openid.GenericConsumer
	Sessions  SessionFactory
	Metrics   *metrics.Metrics
	Audit     Auditor
	Logger    *slog.Logger
	TrustRoot string
	ReturnTo  string
}

// Routes returns a chi.Router with /login and /callback mounted, plus
// request-ID and client-metadata middleware.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.withRequestContext)
	r.Get("/login", s.handleLogin)
	r.Get("/callback", s.handleCallback)
	return r
}

func (s *Server) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ctx = requestcontext.WithClientMetadata(ctx, r.RemoteAddr, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	identifier := r.URL.Query().Get("identifier")
	if identifier == "" {
		http.Error(w, "missing identifier", http.StatusBadRequest)
		return
	}

	session, flush := s.Sessions(w, r)
	consumer, err := openid.NewConsumer(s.Consumer, session)
	if err != nil {
		s.Logger.Error("httpapi: failed to build consumer", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	req, err := consumer.Begin(r.Context(), identifier)
	if err != nil {
		s.Logger.Warn("httpapi: begin failed", "identifier", identifier, "error", err)
		if s.Metrics != nil {
			s.Metrics.ObserveDiscoveryFailure()
		}
		http.Error(w, "could not discover an OpenID provider for this identifier", http.StatusBadGateway)
		return
	}
	if req == nil {
		http.Error(w, "no OpenID provider found for this identifier", http.StatusNotFound)
		return
	}

	redirectURL, err := req.RedirectURL(s.TrustRoot, s.ReturnTo, false)
	if err != nil {
		s.Logger.Error("httpapi: failed to build redirect", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if s.Metrics != nil {
		s.Metrics.ObserveAssociationCreated()
	}
	if err := flush(); err != nil {
		s.Logger.Error("httpapi: failed to flush session", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if s.Audit != nil {
		_ = s.Audit.Record(r.Context(), "begin", identifier, req.Endpoint().ServerURL, "", r.UserAgent())
	}

	http.Redirect(w, r, redirectURL, http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	session, flush := s.Sessions(w, r)
	consumer, err := openid.NewConsumer(s.Consumer, session)
	if err != nil {
		s.Logger.Error("httpapi: failed to build consumer", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp, _ := consumer.Complete(r.Context(), r.URL.Query())
	if err := flush(); err != nil {
		s.Logger.Error("httpapi: failed to flush session", "error", err)
	}

	if s.Metrics != nil {
		s.Metrics.ObserveVerification(resp.Kind.String())
	}
	if s.Audit != nil {
		_ = s.Audit.Record(r.Context(), resp.Kind.String(), resp.IdentityURL, "", resp.Message, r.UserAgent())
	}

	switch resp.Kind {
	case openid.KindSuccess:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("logged in as " + resp.IdentityURL))
	case openid.KindCancel:
		http.Error(w, "login cancelled", http.StatusOK)
	case openid.KindSetupNeeded:
		http.Redirect(w, r, resp.SetupURL, http.StatusFound)
	default:
		http.Error(w, resp.Message, http.StatusBadRequest)
	}
}
