// Package authtest provides canned authenticators for wiring tests and
// development environments where a real identity provider is unwelcome.
package authtest

import (
	"context"
	"net/http"

	"github.com/cms-dials/kcauth/auth"
)

// Static always authenticates as a fixed subject.
type Static struct {
	Subject string
	Role    string
}

// NewStatic creates a Static authenticator. An empty subject defaults to
// "test-user".
func NewStatic(subject string) *Static {
	if subject == "" {
		subject = "test-user"
	}
	return &Static{Subject: subject}
}

// Name implements auth.Authenticator.
func (s *Static) Name() string { return "static" }

// Authenticate always succeeds with the configured subject.
func (s *Static) Authenticate(ctx context.Context, r *http.Request) (*auth.Principal, error) {
	p := &auth.Principal{Subject: s.Subject, Username: s.Subject}
	if s.Role != "" {
		p.Roles = []string{s.Role}
	}
	return p, nil
}

// Abstain never has an opinion, letting the chain continue.
type Abstain struct{}

// Name implements auth.Authenticator.
func (Abstain) Name() string { return "abstain" }

// Authenticate always returns (nil, nil).
func (Abstain) Authenticate(ctx context.Context, r *http.Request) (*auth.Principal, error) {
	return nil, nil
}

// Reject always fails with the configured code.
type Reject struct {
	Code   auth.Code
	Detail string
}

// Name implements auth.Authenticator.
func (Reject) Name() string { return "reject" }

// Authenticate always returns a classified failure.
func (rj Reject) Authenticate(ctx context.Context, r *http.Request) (*auth.Principal, error) {
	code := rj.Code
	if code == "" {
		code = auth.CodeBadAccessToken
	}
	detail := rj.Detail
	if detail == "" {
		detail = "Rejected by test authenticator."
	}
	return nil, auth.NewError(code, detail)
}
