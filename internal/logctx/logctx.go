// Package logctx enriches slog records with request and authentication
// attributes carried on the context, so call sites log plain messages and
// still get correlated output.
package logctx

import (
	"context"
	"log/slog"
)

type Handler struct {
	slog.Handler
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		r.AddAttrs(slog.Group("req",
			slog.String("id", rd.RequestID),
			slog.String("method", rd.Method),
			slog.String("user_agent", rd.UserAgent),
			slog.String("remote_addr", rd.RemoteAddr),
			slog.String("path", rd.Path),
		))
	}

	if ad, ok := ctx.Value(authDataKey{}).(*AuthData); ok {
		attrs := []slog.Attr{
			slog.String("scheme", ad.Scheme),
		}
		if ad.Subject != "" {
			attrs = append(attrs, slog.String("subject", ad.Subject))
		}
		if ad.Code != "" {
			attrs = append(attrs, slog.String("code", ad.Code))
		}
		r.AddAttrs(slog.Attr{Key: "auth", Value: slog.GroupValue(attrs...)})
	}

	return h.Handler.Handle(ctx, r)
}

type requestDataKey struct{}

type RequestData struct {
	RequestID  string
	Method     string
	UserAgent  string
	RemoteAddr string
	Path       string
}

func WithRequestData(ctx context.Context, data *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, data)
}

type authDataKey struct{}

// AuthData records which scheme decided the request and how. Code is set
// only on failures.
type AuthData struct {
	Scheme  string
	Subject string
	Code    string
}

func WithAuthData(ctx context.Context, data *AuthData) context.Context {
	return context.WithValue(ctx, authDataKey{}, data)
}
