package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cms-dials/kcauth/keycloak"
)

// Principal is the authenticated identity handed to downstream authorization
// and business logic. It is a read-only view over a Validated or PreTrusted
// token and is never built from a Rejected one.
type Principal struct {
	// Subject is the stable identity claim (sub).
	Subject string
	// Username is the display name (preferred_username, falling back to
	// the subject).
	Username string
	// Roles aggregates the realm roles and the validating client's
	// resource roles.
	Roles []string

	token *keycloak.Token
}

// NewPrincipal derives a Principal from a token that finished validation or
// was pre-trusted at mint time.
func NewPrincipal(tok *keycloak.Token) (*Principal, error) {
	claims := tok.Claims()
	if claims == nil {
		return nil, fmt.Errorf("auth: principal requires a validated or pre-trusted token, have %s", tok.State())
	}

	sub, _ := claims["sub"].(string)
	username, _ := claims["preferred_username"].(string)
	if username == "" {
		username = sub
	}

	return &Principal{
		Subject:  sub,
		Username: username,
		Roles:    rolesFromClaims(claims, tok.Client().ID()),
		token:    tok,
	}, nil
}

// Token returns the token that authenticated this principal.
func (p *Principal) Token() *keycloak.Token { return p.token }

// HasRole reports whether the principal carries the given role.
func (p *Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// rolesFromClaims collects realm_access roles plus the resource_access roles
// scoped to the validating client.
func rolesFromClaims(claims jwt.MapClaims, clientID string) []string {
	var roles []string
	if ra, ok := claims["realm_access"].(map[string]any); ok {
		roles = append(roles, stringList(ra["roles"])...)
	}
	if res, ok := claims["resource_access"].(map[string]any); ok {
		if ca, ok := res[clientID].(map[string]any); ok {
			roles = append(roles, stringList(ca["roles"])...)
		}
	}
	return roles
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
