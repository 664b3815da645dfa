// Package keycloak models this service's registrations with a Keycloak
// realm: a public client for interactive end-user sessions, a confidential
// client the service exchanges tokens against, and any number of machine
// clients that authenticate with a pre-shared secret.
//
// A Client can mint a token for its own identity via the client-credentials
// grant (IssueToken) and can verify an arbitrary bearer token's signature and
// time claims against the realm's published signing keys (Verify). Audience
// and authorized-party policy is deliberately not part of Verify; it varies
// by route and is enforced by Token.Validate with caller-supplied sets.
//
// All types are constructed once at startup (NewProvider) and are immutable
// afterwards, so they can be shared freely across request handlers. The only
// mutable shared state, the signing key cache, lives behind the internal key
// ring and is concurrency-safe.
package keycloak
