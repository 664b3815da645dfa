package keycloak

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

// mockIdP is a minimal Keycloak stand-in: discovery document, JWKS endpoint
// and a client-credentials token endpoint that signs real tokens.
type mockIdP struct {
	srv    *httptest.Server
	issuer string

	pk   *rsa.PrivateKey
	kid  string
	jwks []byte

	tokenCalls    atomic.Int32
	tokenFailures atomic.Int32 // respond 503 this many times
	tokenReject   atomic.Bool  // respond 401 invalid_client
}

func newMockIdP(t *testing.T) *mockIdP {
	t.Helper()
	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	m := &mockIdP{pk: pk, kid: "mock-kid"}

	jwk := jose.JSONWebKey{Key: &pk.PublicKey, KeyID: m.kid, Algorithm: "RS256", Use: "sig"}
	set := struct {
		Keys []jose.JSONWebKey `json:"keys"`
	}{Keys: []jose.JSONWebKey{jwk}}
	m.jwks, err = json.Marshal(set)
	if err != nil {
		t.Fatalf("marshal jwks: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/realms/testrealm/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 m.issuer,
			"jwks_uri":               m.issuer + "/protocol/openid-connect/certs",
			"token_endpoint":         m.issuer + "/protocol/openid-connect/token",
			"authorization_endpoint": m.issuer + "/protocol/openid-connect/auth",
		})
	})
	mux.HandleFunc("/realms/testrealm/protocol/openid-connect/certs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(m.jwks)
	})
	mux.HandleFunc("/realms/testrealm/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		m.tokenCalls.Add(1)
		if m.tokenReject.Load() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_client"})
			return
		}
		if m.tokenFailures.Load() > 0 {
			m.tokenFailures.Add(-1)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		clientID, _, ok := r.BasicAuth()
		if !ok {
			clientID = r.PostForm.Get("client_id")
		}
		raw := m.sign(t, jwt.MapClaims{
			"iss":                m.issuer,
			"sub":                "service-account-" + clientID,
			"preferred_username": "service-account-" + clientID,
			"aud":                clientID,
			"azp":                clientID,
			"exp":                time.Now().Add(5 * time.Minute).Unix(),
			"iat":                time.Now().Unix(),
		})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": raw,
			"token_type":   "Bearer",
			"expires_in":   300,
		})
	})

	m.srv = httptest.NewServer(mux)
	t.Cleanup(m.srv.Close)
	m.issuer = m.srv.URL + "/realms/testrealm"
	return m
}

func (m *mockIdP) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = m.kid
	raw, err := tok.SignedString(m.pk)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return raw
}

// signWithKey signs with a foreign key but advertises the mock's kid, which
// yields a token whose signature cannot verify.
func (m *mockIdP) signWithKey(t *testing.T, pk *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = m.kid
	raw, err := tok.SignedString(pk)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return raw
}

func signWithKid(t *testing.T, pk *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	raw, err := tok.SignedString(pk)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return raw
}

func (m *mockIdP) config() Config {
	return Config{
		ServerURL:            m.srv.URL,
		Realm:                "testrealm",
		PublicClientID:       "webclient",
		ConfidentialClientID: "api-confidential",
		ConfidentialSecret:   "conf-secret",
		APIClients:           APIClientMap{"machine-secret-1": "robot-1"},
		KeyTTL:               time.Minute,
	}
}

func (m *mockIdP) provider(t *testing.T, opts ...Option) *Provider {
	t.Helper()
	p, err := NewProvider(t.Context(), m.config(), opts...)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return p
}

// userClaims builds a plausible end-user access token payload.
func (m *mockIdP) userClaims(aud any, azp string) jwt.MapClaims {
	return jwt.MapClaims{
		"iss":                m.issuer,
		"sub":                "f:1234:jdoe",
		"preferred_username": "jdoe",
		"aud":                aud,
		"azp":                azp,
		"exp":                time.Now().Add(time.Hour).Unix(),
		"iat":                time.Now().Unix(),
		"realm_access":       map[string]any{"roles": []any{"viewer"}},
	}
}
