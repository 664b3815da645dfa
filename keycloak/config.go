package keycloak

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config carries the realm's client registrations. It is usually populated
// from the environment via FromEnv.
type Config struct {
	// ServerURL is the Keycloak base URL, e.g. "https://auth.example.org".
	ServerURL string `env:"KEYCLOAK_SERVER_URL,required"`

	// Realm is the realm name under ServerURL.
	Realm string `env:"KEYCLOAK_REALM,required"`

	// PublicClientID identifies the public client used by interactive
	// end-user sessions.
	PublicClientID string `env:"KEYCLOAK_PUBLIC_CLIENT_ID,required"`

	// ConfidentialClientID and ConfidentialSecret identify the confidential
	// client tokens are exchanged against.
	ConfidentialClientID string `env:"KEYCLOAK_CONFIDENTIAL_CLIENT_ID,required"`
	ConfidentialSecret   string `env:"KEYCLOAK_CONFIDENTIAL_SECRET_KEY,required"`

	// APIClients maps machine client secrets to their client ids. Machine
	// clients authenticate with the X-CLIENT-SECRET header and mint tokens
	// for their own identity.
	APIClients APIClientMap `env:"KEYCLOAK_API_CLIENTS,default={}"`

	// KeyTTL bounds how long fetched signing keys are served without a
	// refresh.
	KeyTTL time.Duration `env:"KEYCLOAK_KEY_TTL,default=15m"`
}

// APIClientMap maps machine client secret -> client id. It decodes from a
// JSON object so the whole registry seed fits in one environment variable.
type APIClientMap map[string]string

// Decode implements envdecode.Decoder.
func (m *APIClientMap) Decode(repl string) error {
	return json.Unmarshal([]byte(repl), m)
}

// FromEnv populates a Config from KEYCLOAK_* environment variables.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		return Config{}, fmt.Errorf("keycloak: decode environment: %w", err)
	}
	return cfg, nil
}

// Issuer returns the realm's issuer URL, which also anchors OIDC discovery.
func (c Config) Issuer() string {
	return strings.TrimRight(c.ServerURL, "/") + "/realms/" + c.Realm
}
