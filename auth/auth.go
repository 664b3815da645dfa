package auth

import (
	"context"
	"net/http"
)

// SecretHeader carries a machine client's pre-shared secret.
const SecretHeader = "X-CLIENT-SECRET"

// Authenticator is the contract every authentication scheme implements.
//
// Return values:
//   - (principal, nil): authentication succeeded
//   - (nil, nil): the credential this scheme understands is absent; the
//     chain continues
//   - (nil, error): a credential was present but bad; the chain aborts
type Authenticator interface {
	// Name identifies the scheme in logs.
	Name() string

	Authenticate(ctx context.Context, r *http.Request) (*Principal, error)
}

// Chain runs authenticators in order. The first principal wins, the first
// classified failure aborts, and if every scheme abstains the chain abstains
// too: (nil, nil) leaves the request unauthenticated for the caller's policy
// to judge.
type Chain []Authenticator

// Authenticate implements the same contract as a single Authenticator.
func (c Chain) Authenticate(ctx context.Context, r *http.Request) (*Principal, error) {
	for _, a := range c {
		p, err := a.Authenticate(ctx, r)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
	}
	return nil, nil
}

// Name implements Authenticator.
func (c Chain) Name() string { return "chain" }
