package keycloak

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// State tracks a token through its validation lifecycle. A token leaves
// Unvalidated exactly once and never returns.
type State int

const (
	// Unvalidated is the initial state: claims are decoded but untrusted.
	Unvalidated State = iota
	// Validated means signature, time and aud/azp policy all checked out.
	Validated
	// Rejected means validation failed; the reason is recorded.
	Rejected
	// PreTrusted marks a token this process minted for itself via
	// IssueToken and trusts by policy without re-verification.
	PreTrusted
)

func (s State) String() string {
	switch s {
	case Unvalidated:
		return "unvalidated"
	case Validated:
		return "validated"
	case Rejected:
		return "rejected"
	case PreTrusted:
		return "pre-trusted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Token is one access token plus its validation state. Tokens are
// request-scoped: create, validate once, discard. They are not safe for
// concurrent use and never shared across requests.
type Token struct {
	raw        string
	client     *Client
	unverified jwt.MapClaims
	claims     jwt.MapClaims
	state      State
	rejection  error
}

// NewToken wraps a raw bearer token for later validation against this
// client. The claims are decoded eagerly but remain untrusted until Validate
// succeeds. A string that is not even a decodable JWT fails here with
// ErrMalformedToken.
func (c *Client) NewToken(raw string) (*Token, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return &Token{raw: raw, client: c, unverified: claims}, nil
}

// NewPreTrustedToken wraps a token this process just obtained from the
// provider through its own client credentials. The decoded claims are
// promoted without a signature round-trip.
//
// This is a deliberate policy shortcut: the process trusts credentials it
// just received over TLS from the provider for its own identity. It also
// means the full verification path is never exercised for self-issued
// tokens. Only use this constructor with the direct result of IssueToken.
func (c *Client) NewPreTrustedToken(raw string) (*Token, error) {
	t, err := c.NewToken(raw)
	if err != nil {
		return nil, err
	}
	t.state = PreTrusted
	t.claims = t.unverified
	return t, nil
}

// Validate verifies the token via the owning client and then enforces the
// route's audience and authorized-party policy: the aud claim must intersect
// wantAud and the azp claim must be one of wantAzp. On success the token
// becomes Validated and Claims is populated; on failure it becomes Rejected
// with the reason recorded.
//
// A token validates at most once. A second call is a programming error and
// fails immediately with ErrAlreadyValidated without touching state.
func (t *Token) Validate(ctx context.Context, wantAud, wantAzp []string) error {
	if t.state != Unvalidated {
		return fmt.Errorf("%w: token is %s", ErrAlreadyValidated, t.state)
	}

	claims, err := t.client.Verify(ctx, t.raw)
	if err != nil {
		return t.reject(err)
	}

	if !audIntersects(claims["aud"], wantAud) {
		return t.reject(fmt.Errorf("%w: aud %v not among %v", ErrInvalidAudience, claims["aud"], wantAud))
	}
	azp, _ := claims["azp"].(string)
	if !containsString(wantAzp, azp) {
		return t.reject(fmt.Errorf("%w: azp %q not among %v", ErrInvalidAuthorizedParty, azp, wantAzp))
	}

	t.claims = claims
	t.state = Validated
	return nil
}

func (t *Token) reject(err error) error {
	t.state = Rejected
	t.rejection = err
	return err
}

// Raw returns the compact token string.
func (t *Token) Raw() string { return t.raw }

// State returns the token's lifecycle state.
func (t *Token) State() State { return t.state }

// Client returns the client this token validates against.
func (t *Token) Client() *Client { return t.client }

// Claims returns the trusted claims. It is non-nil exactly when the token is
// Validated or PreTrusted.
func (t *Token) Claims() jwt.MapClaims {
	if t.state != Validated && t.state != PreTrusted {
		return nil
	}
	return t.claims
}

// UnverifiedClaims returns the decoded-but-untrusted claims. Do not make
// authorization decisions on these.
func (t *Token) UnverifiedClaims() jwt.MapClaims { return t.unverified }

// RejectionReason returns why validation failed, or nil.
func (t *Token) RejectionReason() error { return t.rejection }

// audIntersects reports whether the aud claim (string or array form) shares
// at least one entry with wants.
func audIntersects(aud any, wants []string) bool {
	wantSet := make(map[string]struct{}, len(wants))
	for _, w := range wants {
		wantSet[w] = struct{}{}
	}
	switch v := aud.(type) {
	case string:
		_, ok := wantSet[v]
		return ok
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok {
				if _, ok2 := wantSet[s]; ok2 {
					return true
				}
			}
		}
	case []string:
		for _, s := range v {
			if _, ok := wantSet[s]; ok {
				return true
			}
		}
	}
	return false
}

func containsString(set []string, s string) bool {
	if s == "" {
		return false
	}
	for _, e := range set {
		if e == s {
			return true
		}
	}
	return false
}
