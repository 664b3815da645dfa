package auth

import "context"

type principalKey struct{}

// ContextWithPrincipal installs the authenticated principal for downstream
// handlers.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal installed by the middleware, if
// the request authenticated.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}
