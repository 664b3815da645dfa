// Package keyring caches identity-provider signing keys by key id.
//
// A Ring lazily fetches the provider's JWKS document, indexes the usable
// signing keys by kid and serves them until the configured TTL elapses.
// Concurrent cache misses coalesce onto a single fetch. When the provider is
// unreachable the ring degrades to previously cached (possibly stale) key
// material, or to a persisted snapshot, before giving up.
package keyring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/cenkalti/backoff/v5"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/cms-dials/kcauth/keycache"
)

// ErrKeyNotFound indicates the requested key id is absent even after a fresh
// key set fetch. Tokens signed by rotated-out or unknown keys surface this.
var ErrKeyNotFound = errors.New("keyring: key not found")

// ErrUnavailable indicates the key set could not be fetched and no cached or
// persisted key material exists to fall back on.
var ErrUnavailable = errors.New("keyring: key set unavailable")

// Source produces a raw JWKS document.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// HTTPSource fetches a JWKS document from the provider's jwks_uri.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// Fetch performs a single GET of the key set.
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks endpoint returned %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

// Config controls the construction of a Ring.
type Config struct {
	// Source produces the raw key set. Required.
	Source Source

	// Issuer keys persisted snapshots. Required when Snapshots is set.
	Issuer string

	// TTL bounds how long fetched keys are served without refresh.
	// Default: 15 minutes.
	TTL time.Duration

	// FetchTimeout bounds one refresh including retries. Default: 15s.
	FetchTimeout time.Duration

	// MaxAttempts bounds fetch attempts per refresh. Default: 3.
	MaxAttempts uint

	// MinRefresh rate-limits consecutive fetches: a refresh that finds key
	// material fetched less than MinRefresh ago is a no-op. This stops a
	// flood of tokens bearing an unknown kid from hammering the provider.
	// Default: 1 second.
	MinRefresh time.Duration

	// Snapshots optionally persists fetched key sets for degraded fallback.
	Snapshots keycache.Store

	Logger *slog.Logger
}

// Ring is a concurrency-safe kid -> public key cache.
type Ring struct {
	src          Source
	issuer       string
	ttl          time.Duration
	fetchTimeout time.Duration
	maxAttempts  uint
	minRefresh   time.Duration
	snaps        keycache.Store
	log          *slog.Logger

	group singleflight.Group

	mu        sync.RWMutex
	keys      map[string]any
	fetchedAt time.Time
}

// New creates a Ring. No network traffic happens until the first Key call.
func New(cfg Config) (*Ring, error) {
	if cfg.Source == nil {
		return nil, errors.New("keyring: source is required")
	}
	if cfg.Snapshots != nil && cfg.Issuer == "" {
		return nil, errors.New("keyring: issuer is required when snapshots are configured")
	}
	if cfg.TTL == 0 {
		cfg.TTL = 15 * time.Minute
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = 15 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.MinRefresh == 0 {
		cfg.MinRefresh = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Ring{
		src:          cfg.Source,
		issuer:       cfg.Issuer,
		ttl:          cfg.TTL,
		fetchTimeout: cfg.FetchTimeout,
		maxAttempts:  cfg.MaxAttempts,
		minRefresh:   cfg.MinRefresh,
		snaps:        cfg.Snapshots,
		log:          cfg.Logger,
	}, nil
}

// Key returns the public key for kid. A cache miss (unknown kid or expired
// key set) triggers exactly one underlying fetch regardless of how many
// callers observe the miss at once.
func (r *Ring) Key(ctx context.Context, kid string) (any, error) {
	if key, ok := r.cached(kid); ok {
		return key, nil
	}
	if err := r.refresh(ctx); err != nil {
		return nil, err
	}
	if key, ok := r.lookup(kid); ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, kid)
}

// Keyfunc adapts the ring to golang-jwt's key resolution callback. The
// returned function resolves keys by the token header's kid.
func (r *Ring) Keyfunc(ctx context.Context) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: token header carries no kid", ErrKeyNotFound)
		}
		return r.Key(ctx, kid)
	}
}

// cached returns the key only when the key set is still within its TTL.
func (r *Ring) cached(kid string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if time.Since(r.fetchedAt) >= r.ttl {
		return nil, false
	}
	key, ok := r.keys[kid]
	return key, ok
}

// lookup returns the key regardless of key set age. Used after a refresh,
// which may have installed stale material as a degraded fallback.
func (r *Ring) lookup(kid string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.keys[kid]
	return key, ok
}

// refresh coalesces concurrent callers onto one fetch. The caller's context
// only governs how long it waits: cancellation abandons the wait without
// aborting the shared fetch other waiters depend on.
func (r *Ring) refresh(ctx context.Context) error {
	ch := r.group.DoChan("refresh", func() (any, error) {
		return nil, r.fetchAndStore()
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fetchAndStore runs detached from any request context so that an aborted
// request cannot poison the fetch for other waiters.
func (r *Ring) fetchAndStore() error {
	r.mu.RLock()
	recent := len(r.keys) > 0 && time.Since(r.fetchedAt) < r.minRefresh
	r.mu.RUnlock()
	if recent {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.fetchTimeout)
	defer cancel()

	raw, err := backoff.Retry(ctx, func() ([]byte, error) {
		return r.src.Fetch(ctx)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(r.maxAttempts))
	if err != nil {
		return r.degrade(err)
	}

	keys, perr := parseJWKS(raw)
	if perr != nil {
		return r.degrade(perr)
	}

	now := time.Now()
	r.mu.Lock()
	r.keys = keys
	r.fetchedAt = now
	r.mu.Unlock()

	if r.snaps != nil {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if serr := r.snaps.Save(sctx, r.issuer, &keycache.Snapshot{Keys: raw, FetchedAt: now}); serr != nil {
			r.log.Warn("failed to persist key set snapshot", "issuer", r.issuer, "err", serr)
		}
	}
	return nil
}

// degrade serves stale in-memory keys, then a persisted snapshot, before
// reporting the ring unavailable.
func (r *Ring) degrade(cause error) error {
	r.mu.RLock()
	stale := len(r.keys) > 0
	age := time.Since(r.fetchedAt)
	r.mu.RUnlock()
	if stale {
		r.log.Warn("key set refresh failed, serving stale keys",
			"issuer", r.issuer, "age", age, "err", cause)
		return nil
	}

	if r.snaps != nil {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		snap, serr := r.snaps.Load(sctx, r.issuer)
		if serr != nil {
			r.log.Warn("key set snapshot load failed", "issuer", r.issuer, "err", serr)
		} else if snap != nil {
			if keys, perr := parseJWKS(snap.Keys); perr == nil {
				r.mu.Lock()
				r.keys = keys
				r.fetchedAt = time.Now()
				r.mu.Unlock()
				r.log.Warn("key set refresh failed, serving persisted snapshot",
					"issuer", r.issuer, "fetched_at", snap.FetchedAt, "err", cause)
				return nil
			}
		}
	}

	return fmt.Errorf("%w: %v", ErrUnavailable, cause)
}

// parseJWKS indexes the usable signing keys of a JWKS document by kid.
func parseJWKS(raw []byte) (map[string]any, error) {
	var set jwkset.JWKSMarshal
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("invalid JWKS document: %w", err)
	}
	keys := make(map[string]any, len(set.Keys))
	for _, km := range set.Keys {
		if km.KID == "" {
			continue
		}
		if km.USE != "" && km.USE != jwkset.UseSig {
			continue
		}
		jwk, err := jwkset.NewJWKFromMarshal(km, jwkset.JWKMarshalOptions{}, jwkset.JWKValidateOptions{})
		if err != nil {
			// Skip keys this process cannot represent (unknown kty, etc.).
			continue
		}
		keys[km.KID] = jwk.Key()
	}
	if len(keys) == 0 {
		return nil, errors.New("JWKS document contains no usable signing keys")
	}
	return keys, nil
}
