package keycloak

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/cms-dials/kcauth/internal/keyring"
	"github.com/cms-dials/kcauth/keycache"
)

// Provider bundles the realm's clients after one-time initialization: the
// public and confidential clients plus the machine client registry. It is
// immutable once constructed; hand it (or its parts) to authenticators by
// reference rather than reaching for globals.
type Provider struct {
	Public       *Client
	Confidential *Client
	Registry     *Registry

	cfg  Config
	ring *keyring.Ring
}

// Option customizes Provider construction.
type Option func(*options)

type options struct {
	httpClient *http.Client
	logger     *slog.Logger
	snapshots  keycache.Store
	keySource  keyring.Source
	leeway     time.Duration
	algs       []string
}

// WithHTTPClient sets the HTTP client used for discovery, token issuance and
// key set fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithLogger sets the logger used for degraded-mode warnings.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSnapshotStore persists fetched key sets so a replica can fall back to
// the last known key material when the provider is unreachable.
func WithSnapshotStore(s keycache.Store) Option {
	return func(o *options) { o.snapshots = s }
}

// WithKeySource overrides where signing keys come from (for example a local
// JWKS file). By default keys are fetched from the realm's jwks_uri.
func WithKeySource(s keyring.Source) Option {
	return func(o *options) { o.keySource = s }
}

// WithLeeway sets the clock-skew tolerance for exp/nbf checks. Default 60s.
func WithLeeway(d time.Duration) Option {
	return func(o *options) { o.leeway = d }
}

// WithAllowedAlgs restricts acceptable JWS algorithms. Default: RS256.
func WithAllowedAlgs(algs ...string) Option {
	return func(o *options) { o.algs = append([]string(nil), algs...) }
}

// NewProvider discovers the realm's endpoints and constructs the public,
// confidential and machine clients around one shared key ring. Call it once
// at startup.
func NewProvider(ctx context.Context, cfg Config, opts ...Option) (*Provider, error) {
	o := &options{
		logger: slog.Default(),
		leeway: 60 * time.Second,
		algs:   []string{"RS256"},
	}
	for _, opt := range opts {
		opt(o)
	}

	issuer := cfg.Issuer()
	if o.httpClient != nil {
		ctx = oidc.ClientContext(ctx, o.httpClient)
	}
	discovered, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("keycloak: discovery for %s failed: %w", issuer, err)
	}
	var meta struct {
		JwksURI string `json:"jwks_uri"`
	}
	if err := discovered.Claims(&meta); err != nil {
		return nil, fmt.Errorf("keycloak: invalid discovery metadata: %w", err)
	}
	if meta.JwksURI == "" {
		return nil, fmt.Errorf("keycloak: discovery for %s yielded no jwks_uri", issuer)
	}
	tokenURL := discovered.Endpoint().TokenURL
	if tokenURL == "" {
		return nil, fmt.Errorf("keycloak: discovery for %s yielded no token_endpoint", issuer)
	}

	source := o.keySource
	if source == nil {
		source = &keyring.HTTPSource{URL: meta.JwksURI, Client: o.httpClient}
	}
	ring, err := keyring.New(keyring.Config{
		Source:    source,
		Issuer:    issuer,
		TTL:       cfg.KeyTTL,
		Snapshots: o.snapshots,
		Logger:    o.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("keycloak: %w", err)
	}

	newClient := func(id, secret string) *Client {
		return &Client{
			clientID:    id,
			secret:      secret,
			issuer:      issuer,
			tokenURL:    tokenURL,
			ring:        ring,
			httpClient:  o.httpClient,
			leeway:      o.leeway,
			algs:        append([]string(nil), o.algs...),
			maxAttempts: 3,
			log:         o.logger,
		}
	}

	machines := make(map[string]*Client, len(cfg.APIClients))
	for secret, id := range cfg.APIClients {
		machines[secret] = newClient(id, secret)
	}

	return &Provider{
		Public:       newClient(cfg.PublicClientID, ""),
		Confidential: newClient(cfg.ConfidentialClientID, cfg.ConfidentialSecret),
		Registry:     NewRegistry(machines),
		cfg:          cfg,
		ring:         ring,
	}, nil
}

// Config returns the configuration the provider was built from.
func (p *Provider) Config() Config { return p.cfg }
