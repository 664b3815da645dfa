// Package auth provides the authenticator chain that guards HTTP routes.
//
// Three interchangeable authenticators implement one contract: given a
// request, return a Principal, abstain, or fail with a classified error.
// Abstention (nil, nil) means "the credential I understand is not present,
// let the chain continue". A present-but-bad credential never falls through
// to weaker schemes; it aborts the chain with an *Error carrying a stable
// code that the HTTP layer renders as a 401 {code, detail} body.
//
//   - ClientSecretAuthenticator handles the X-CLIENT-SECRET header for
//     registered machine clients, minting a fresh token for the client's own
//     identity.
//   - PublicBearerAuthenticator accepts bearer tokens issued directly to
//     interactive end-user sessions; typically wired only to a token
//     exchange route.
//   - ConfidentialBearerAuthenticator accepts tokens minted by the
//     confidential client, or public tokens exchanged for confidential ones
//     (azp still records the originating public client).
//
// Authenticators are stateless and safe for concurrent use; construct them
// once from a keycloak.Provider and compose them with Chain.
package auth
