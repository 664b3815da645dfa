package keycloak

import "errors"

// Sentinel errors produced while verifying or validating tokens. Callers
// match them with errors.Is; the auth package maps them onto wire-level
// error codes.
var (
	// ErrMalformedToken indicates the compact token could not be decoded.
	ErrMalformedToken = errors.New("keycloak: malformed token")

	// ErrBadSignature indicates the token signature did not verify against
	// the resolved signing key (or the algorithm was not acceptable).
	ErrBadSignature = errors.New("keycloak: bad signature")

	// ErrTokenExpired indicates exp has passed beyond the leeway.
	ErrTokenExpired = errors.New("keycloak: token expired")

	// ErrTokenNotYetValid indicates nbf lies in the future beyond the leeway.
	ErrTokenNotYetValid = errors.New("keycloak: token not yet valid")

	// ErrInvalidAudience indicates the aud claim does not intersect the
	// expected audiences for the route.
	ErrInvalidAudience = errors.New("keycloak: invalid audience")

	// ErrInvalidAuthorizedParty indicates the azp claim is not one of the
	// expected authorized parties for the route.
	ErrInvalidAuthorizedParty = errors.New("keycloak: invalid authorized party")

	// ErrKeyNotFound indicates the token names a signing key the provider
	// does not publish, even after a fresh key set fetch.
	ErrKeyNotFound = errors.New("keycloak: signing key not found")

	// ErrKeyRingUnavailable indicates the provider's key set could not be
	// obtained and no cached material was available.
	ErrKeyRingUnavailable = errors.New("keycloak: key ring unavailable")

	// ErrTokenIssuance indicates the client-credentials exchange failed.
	ErrTokenIssuance = errors.New("keycloak: token issuance failed")

	// ErrAlreadyValidated is returned when Validate is called on a token
	// that already left the Unvalidated state. That is a programming error;
	// a token validates at most once.
	ErrAlreadyValidated = errors.New("keycloak: token already validated")
)
