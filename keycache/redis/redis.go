// Package redis provides a Redis-backed implementation of the keycache.Store
// interface so that a fleet of replicas shares one key set snapshot per
// issuer. A replica that boots during a provider outage can then still serve
// (stale) key material fetched earlier by a sibling.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cms-dials/kcauth/keycache"
)

// Config contains configuration options for the Redis snapshot store.
type Config struct {
	// Client is the Redis client instance.
	Client *redis.Client

	// KeyPrefix is the prefix for all Redis keys.
	// Default: "kcauth:jwks:"
	KeyPrefix string

	// TTL bounds how long a snapshot survives in Redis. Zero means no
	// expiry; the key ring already treats snapshots as degraded data, so an
	// unbounded TTL is acceptable.
	TTL time.Duration
}

// Store implements keycache.Store using Redis.
type Store struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// storedSnapshot is the JSON structure stored in Redis.
type storedSnapshot struct {
	Keys      []byte    `json:"keys"`
	FetchedAt time.Time `json:"fetched_at"`
}

// New creates a Redis-backed snapshot store.
func New(config Config) (*Store, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "kcauth:jwks:"
	}
	return &Store{
		client:    config.Client,
		keyPrefix: config.KeyPrefix,
		ttl:       config.TTL,
	}, nil
}

// Load returns the snapshot for the issuer, or nil if none exists.
func (s *Store) Load(ctx context.Context, issuer string) (*keycache.Snapshot, error) {
	raw, err := s.client.Get(ctx, s.keyPrefix+issuer).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var item storedSnapshot
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &keycache.Snapshot{Keys: item.Keys, FetchedAt: item.FetchedAt}, nil
}

// Save stores the snapshot for the issuer, replacing any prior one.
func (s *Store) Save(ctx context.Context, issuer string, snap *keycache.Snapshot) error {
	raw, err := json.Marshal(storedSnapshot{Keys: snap.Keys, FetchedAt: snap.FetchedAt})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.keyPrefix+issuer, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close closes the underlying Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
