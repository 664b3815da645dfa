// Package memory provides an in-process implementation of the keycache.Store
// interface. It is the default snapshot store and is primarily useful for
// single-replica deployments and tests.
package memory

import (
	"context"
	"sync"

	"github.com/cms-dials/kcauth/keycache"
)

// Store implements keycache.Store with a mutex-guarded map.
type Store struct {
	mu    sync.RWMutex
	snaps map[string]keycache.Snapshot
}

// New creates an empty in-memory snapshot store.
func New() *Store {
	return &Store{snaps: make(map[string]keycache.Snapshot)}
}

// Load returns the snapshot for the issuer, or nil if none was saved.
func (s *Store) Load(ctx context.Context, issuer string) (*keycache.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snaps[issuer]
	if !ok {
		return nil, nil
	}
	dup := keycache.Snapshot{
		Keys:      append([]byte(nil), snap.Keys...),
		FetchedAt: snap.FetchedAt,
	}
	return &dup, nil
}

// Save stores a copy of the snapshot for the issuer, replacing any prior one.
func (s *Store) Save(ctx context.Context, issuer string, snap *keycache.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snaps[issuer] = keycache.Snapshot{
		Keys:      append([]byte(nil), snap.Keys...),
		FetchedAt: snap.FetchedAt,
	}
	return nil
}

// Close releases the map.
func (s *Store) Close() error {
	s.mu.Lock()
	s.snaps = nil
	s.mu.Unlock()
	return nil
}
