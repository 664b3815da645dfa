package auth

import (
	"context"
	"net/http"

	"github.com/cms-dials/kcauth/keycloak"
)

// ClientSecretAuthenticator authenticates automation that presents a
// registered machine client's secret in the X-CLIENT-SECRET header. On a
// match it mints a fresh token for that client's own identity and trusts it
// without a verification round-trip (see keycloak.NewPreTrustedToken).
//
// Machine tokens carry the client's service account identity, not an end
// user's: everyone sharing a secret is indistinguishable. Keep one client
// per automation and rotate secrets accordingly.
type ClientSecretAuthenticator struct {
	registry *keycloak.Registry
}

// NewClientSecret builds the secret-based authenticator over the realm's
// machine client registry.
func NewClientSecret(registry *keycloak.Registry) *ClientSecretAuthenticator {
	return &ClientSecretAuthenticator{registry: registry}
}

// Name implements Authenticator.
func (a *ClientSecretAuthenticator) Name() string { return "client-secret" }

// Authenticate abstains when the secret header is absent. A present but
// unregistered secret hard-fails: it must never fall through to weaker
// schemes.
func (a *ClientSecretAuthenticator) Authenticate(ctx context.Context, r *http.Request) (*Principal, error) {
	secret := r.Header.Get(SecretHeader)
	if secret == "" {
		return nil, nil
	}

	client, ok := a.registry.Lookup(secret)
	if !ok {
		return nil, NewError(CodeAppSecretNotAuthorized, "App secret is not authorized.")
	}

	raw, err := client.IssueToken(ctx)
	if err != nil {
		return nil, classify(err)
	}
	tok, err := client.NewPreTrustedToken(raw)
	if err != nil {
		return nil, classify(err)
	}
	p, err := NewPrincipal(tok)
	if err != nil {
		return nil, classify(err)
	}
	return p, nil
}
