package auth

import (
	"errors"
	"fmt"

	"github.com/cms-dials/kcauth/keycloak"
)

// Code is a stable, wire-visible classification of an authentication
// failure.
type Code string

const (
	CodeAuthorizationNotFound  Code = "authorization_not_found"
	CodeBadAccessToken         Code = "bad_access_token"
	CodeAppSecretNotAuthorized Code = "app_secret_not_authorized"
	CodeBadSignature           Code = "bad_signature"
	CodeTokenExpired           Code = "token_expired"
	CodeTokenNotYetValid       Code = "token_not_yet_valid"
	CodeInvalidAudience        Code = "invalid_audience"
	CodeInvalidAZP             Code = "invalid_azp"
	CodeKeyNotFound            Code = "key_not_found"
	CodeKeyRingUnavailable     Code = "key_ring_unavailable"
	CodeTokenIssuanceFailed    Code = "token_issuance_failed"
)

// Error is a classified authentication failure. The surrounding HTTP layer
// maps it to a 401 response carrying {code, detail}.
type Error struct {
	Code   Code
	Detail string
	cause  error
}

// NewError builds a classified failure without an underlying cause.
func NewError(code Code, detail string) *Error {
	return &Error{Code: code, Detail: detail}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Detail, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

func (e *Error) Unwrap() error { return e.cause }

// classify maps keycloak sentinel errors onto wire codes. Anything
// unrecognized is treated as a bad access token.
func classify(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}

	code := CodeBadAccessToken
	detail := "Malformed access token."
	switch {
	case errors.Is(err, keycloak.ErrBadSignature):
		code, detail = CodeBadSignature, "Token signature verification failed."
	case errors.Is(err, keycloak.ErrTokenExpired):
		code, detail = CodeTokenExpired, "Token has expired."
	case errors.Is(err, keycloak.ErrTokenNotYetValid):
		code, detail = CodeTokenNotYetValid, "Token is not yet valid."
	case errors.Is(err, keycloak.ErrInvalidAudience):
		code, detail = CodeInvalidAudience, "Token audience is not accepted here."
	case errors.Is(err, keycloak.ErrInvalidAuthorizedParty):
		code, detail = CodeInvalidAZP, "Token authorized party is not accepted here."
	case errors.Is(err, keycloak.ErrKeyNotFound):
		code, detail = CodeKeyNotFound, "Token signing key is unknown."
	case errors.Is(err, keycloak.ErrKeyRingUnavailable):
		code, detail = CodeKeyRingUnavailable, "Identity provider keys are unavailable."
	case errors.Is(err, keycloak.ErrTokenIssuance):
		code, detail = CodeTokenIssuanceFailed, "Token issuance failed."
	}
	return &Error{Code: code, Detail: detail, cause: err}
}
