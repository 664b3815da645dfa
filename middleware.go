// Package kcauth is the framework-facing surface of the authentication
// core: an HTTP middleware that runs an authenticator chain against each
// request, renders classified failures as 401 responses with a
// {code, detail} JSON body and installs the authenticated principal in the
// request context for downstream handlers.
//
// The middleware itself never demands credentials. Requests that no
// authenticator claims pass through anonymously; wrap individual routes in
// RequireAuth to turn anonymity into a 401.
package kcauth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/cms-dials/kcauth/auth"
	"github.com/cms-dials/kcauth/internal/logctx"
)

// MiddlewareConfig configures the authentication middleware.
type MiddlewareConfig struct {
	// Authenticator decides each request, usually an auth.Chain.
	Authenticator auth.Authenticator

	// LogHandler is an optional slog.Handler for request logging. If nil,
	// logging is discarded.
	LogHandler slog.Handler
}

// NewMiddleware builds the middleware as a standard wrapper so it composes
// with other net/http middleware.
func NewMiddleware(cfg MiddlewareConfig) (func(http.Handler) http.Handler, error) {
	if cfg.Authenticator == nil {
		return nil, errors.New("kcauth: MiddlewareConfig.Authenticator is required")
	}
	lh := cfg.LogHandler
	if lh == nil {
		lh = slog.DiscardHandler
	}
	log := slog.New(logctx.Handler{Handler: lh})

	return func(next http.Handler) http.Handler {
		return &middleware{next: next, auth: cfg.Authenticator, log: log}
	}, nil
}

type middleware struct {
	next http.Handler
	auth auth.Authenticator
	log  *slog.Logger
}

func (m *middleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  uuid.NewString(),
		Method:     r.Method,
		Path:       r.URL.Path,
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	})

	principal, err := m.auth.Authenticate(ctx, r)
	if err != nil {
		var ae *auth.Error
		if !errors.As(err, &ae) {
			// Authenticators classify everything they return. Anything else
			// is a bug worth logging loudly, but the client still gets a
			// well-formed rejection.
			ae = auth.NewError(auth.CodeBadAccessToken, "Authentication failed.")
			m.log.ErrorContext(ctx, "unclassified authentication error", slog.String("err", err.Error()))
		}
		ctx = logctx.WithAuthData(ctx, &logctx.AuthData{Scheme: m.auth.Name(), Code: string(ae.Code)})
		m.log.WarnContext(ctx, "authentication rejected")
		writeAuthError(w, ae)
		return
	}

	if principal != nil {
		ctx = auth.ContextWithPrincipal(ctx, principal)
		ctx = logctx.WithAuthData(ctx, &logctx.AuthData{Scheme: m.auth.Name(), Subject: principal.Subject})
		m.log.DebugContext(ctx, "request authenticated")
	}
	m.next.ServeHTTP(w, r.WithContext(ctx))
}

// RequireAuth guards a route that must not be served anonymously. It runs
// after the middleware and rejects requests that carry no principal with the
// same 401 body shape the middleware uses for bad credentials.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.PrincipalFromContext(r.Context()); !ok {
			writeAuthError(w, auth.NewError(auth.CodeAuthorizationNotFound, "Authorization header not found."))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type authErrorBody struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

func writeAuthError(w http.ResponseWriter, ae *auth.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(authErrorBody{Code: string(ae.Code), Detail: ae.Detail})
}
