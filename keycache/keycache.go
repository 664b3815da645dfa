// Package keycache provides pluggable persistence for identity-provider key
// set snapshots. The key ring writes a snapshot after every successful JWKS
// fetch and falls back to the most recent snapshot when the provider is
// unreachable and no in-memory key material exists (for example, right after
// a process restart during a provider outage).
package keycache

import (
	"context"
	"time"
)

// Snapshot is one fetched JWKS document plus the time it was fetched.
type Snapshot struct {
	// Keys is the raw JWKS JSON as served by the provider.
	Keys []byte
	// FetchedAt records when the key set was retrieved from the provider.
	FetchedAt time.Time
}

// Store persists key set snapshots keyed by issuer URL.
//
// Implementations must be safe for concurrent use. Load returns a nil
// Snapshot (and nil error) when no snapshot exists for the issuer; errors are
// reserved for genuine backend failures.
type Store interface {
	Load(ctx context.Context, issuer string) (*Snapshot, error)
	Save(ctx context.Context, issuer string, snap *Snapshot) error

	// Close releases backend resources.
	Close() error
}
