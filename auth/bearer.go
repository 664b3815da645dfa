package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/cms-dials/kcauth/keycloak"
)

// PublicBearerAuthenticator accepts bearer tokens issued directly to the
// public client: both aud and azp must name it. Wire this only to routes
// that exchange a public token for a confidential one.
type PublicBearerAuthenticator struct {
	client *keycloak.Client
}

// NewPublicBearer builds the public-token variant around the realm's public
// client.
func NewPublicBearer(client *keycloak.Client) *PublicBearerAuthenticator {
	return &PublicBearerAuthenticator{client: client}
}

// Name implements Authenticator.
func (a *PublicBearerAuthenticator) Name() string { return "public-bearer" }

// Authenticate abstains when no Authorization header is present, so a
// terminal policy (not this scheme) decides what an unauthenticated request
// is worth.
func (a *PublicBearerAuthenticator) Authenticate(ctx context.Context, r *http.Request) (*Principal, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, nil
	}
	id := a.client.ID()
	return authenticateBearer(ctx, a.client, header, []string{id}, []string{id})
}

// ConfidentialBearerAuthenticator accepts tokens whose audience is the
// confidential client. The authorized party may be either the confidential
// client itself or the public client, which covers tokens that started life
// as public tokens and were exchanged.
type ConfidentialBearerAuthenticator struct {
	client         *keycloak.Client
	publicClientID string
}

// NewConfidentialBearer builds the confidential-token variant. publicClientID
// names the public client whose exchanged tokens are also accepted.
func NewConfidentialBearer(client *keycloak.Client, publicClientID string) *ConfidentialBearerAuthenticator {
	return &ConfidentialBearerAuthenticator{client: client, publicClientID: publicClientID}
}

// Name implements Authenticator.
func (a *ConfidentialBearerAuthenticator) Name() string { return "confidential-bearer" }

// Authenticate abstains when no Authorization header is present.
func (a *ConfidentialBearerAuthenticator) Authenticate(ctx context.Context, r *http.Request) (*Principal, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, nil
	}
	id := a.client.ID()
	return authenticateBearer(ctx, a.client, header, []string{id}, []string{id, a.publicClientID})
}

// authenticateBearer is the shared bearer path: parse the header, build an
// unvalidated token against the client and validate it with the variant's
// expected aud/azp sets.
func authenticateBearer(ctx context.Context, client *keycloak.Client, header string, wantAud, wantAzp []string) (*Principal, error) {
	raw, ok := parseBearer(header)
	if !ok {
		return nil, NewError(CodeBadAccessToken, "Malformed access token.")
	}
	tok, err := client.NewToken(raw)
	if err != nil {
		return nil, classify(err)
	}
	if err := tok.Validate(ctx, wantAud, wantAzp); err != nil {
		return nil, classify(err)
	}
	p, err := NewPrincipal(tok)
	if err != nil {
		return nil, classify(err)
	}
	return p, nil
}

// parseBearer extracts the compact token from an Authorization header value
// of the form "Bearer <token>".
func parseBearer(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	raw := strings.TrimSpace(header[len(prefix):])
	if raw == "" || strings.ContainsAny(raw, " \t") {
		return "", false
	}
	return raw, true
}
