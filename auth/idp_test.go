package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"

	"github.com/cms-dials/kcauth/keycloak"
)

const (
	publicID       = "webclient"
	confidentialID = "api-confidential"
	machineSecret  = "machine-secret-1"
	machineID      = "robot-1"
)

// testIdP fakes the provider endpoints the authenticators touch: discovery,
// JWKS and the client-credentials token endpoint.
type testIdP struct {
	srv    *httptest.Server
	issuer string
	pk     *rsa.PrivateKey
	kid    string
}

func newTestIdP(t *testing.T) *testIdP {
	t.Helper()
	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	m := &testIdP{pk: pk, kid: "test-kid"}

	jwk := jose.JSONWebKey{Key: &pk.PublicKey, KeyID: m.kid, Algorithm: "RS256", Use: "sig"}
	jwks, err := json.Marshal(struct {
		Keys []jose.JSONWebKey `json:"keys"`
	}{Keys: []jose.JSONWebKey{jwk}})
	if err != nil {
		t.Fatalf("marshal jwks: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/realms/testrealm/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":         m.issuer,
			"jwks_uri":       m.issuer + "/protocol/openid-connect/certs",
			"token_endpoint": m.issuer + "/protocol/openid-connect/token",
		})
	})
	mux.HandleFunc("/realms/testrealm/protocol/openid-connect/certs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(jwks)
	})
	mux.HandleFunc("/realms/testrealm/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
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

func (m *testIdP) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = m.kid
	raw, err := tok.SignedString(m.pk)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return raw
}

func (m *testIdP) provider(t *testing.T) *keycloak.Provider {
	t.Helper()
	p, err := keycloak.NewProvider(t.Context(), keycloak.Config{
		ServerURL:            m.srv.URL,
		Realm:                "testrealm",
		PublicClientID:       publicID,
		ConfidentialClientID: confidentialID,
		ConfidentialSecret:   "conf-secret",
		APIClients:           keycloak.APIClientMap{machineSecret: machineID},
		KeyTTL:               time.Minute,
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return p
}

// userToken signs an end-user style access token.
func (m *testIdP) userToken(t *testing.T, aud any, azp string) string {
	t.Helper()
	return m.sign(t, jwt.MapClaims{
		"iss":                m.issuer,
		"sub":                "f:1234:jdoe",
		"preferred_username": "jdoe",
		"aud":                aud,
		"azp":                azp,
		"exp":                time.Now().Add(time.Hour).Unix(),
		"realm_access":       map[string]any{"roles": []any{"viewer", "operator"}},
	})
}

func newRequest(t *testing.T, headers map[string]string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/api/things", nil)
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	return r
}

// wantCode asserts err is a classified *Error with the given code.
func wantCode(t *testing.T, err error, code Code) *Error {
	t.Helper()
	if err == nil {
		t.Fatalf("want %s failure, got nil error", code)
	}
	ae, ok := err.(*Error)
	if !ok {
		t.Fatalf("want *Error, got %T: %v", err, err)
	}
	if ae.Code != code {
		t.Fatalf("want code %s, got %s (%v)", code, ae.Code, err)
	}
	return ae
}
