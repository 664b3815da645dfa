package keycloak

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/cms-dials/kcauth/internal/keyring"
)

// Client is one registration with the realm: public (no secret),
// confidential, or a machine client. It is immutable after construction and
// safe for concurrent use; all clients of a Provider share one key ring.
type Client struct {
	clientID string
	secret   string

	issuer   string
	tokenURL string

	ring        *keyring.Ring
	httpClient  *http.Client
	leeway      time.Duration
	algs        []string
	maxAttempts uint
	log         *slog.Logger
}

// ID returns the client identifier.
func (c *Client) ID() string { return c.clientID }

// Issuer returns the realm issuer URL this client belongs to.
func (c *Client) Issuer() string { return c.issuer }

// IssueToken performs a client-credentials exchange for this client's own
// identity and returns the raw access token. Transient provider failures are
// retried with backoff; provider rejections (bad credentials, disabled
// client) are not. Exhaustion surfaces ErrTokenIssuance.
func (c *Client) IssueToken(ctx context.Context) (string, error) {
	if c.secret == "" {
		return "", fmt.Errorf("%w: client %q has no secret", ErrTokenIssuance, c.clientID)
	}

	cc := clientcredentials.Config{
		ClientID:     c.clientID,
		ClientSecret: c.secret,
		TokenURL:     c.tokenURL,
	}
	if c.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	}

	tok, err := backoff.Retry(ctx, func() (*oauth2.Token, error) {
		t, err := cc.Token(ctx)
		if err != nil {
			var rerr *oauth2.RetrieveError
			if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode < 500 {
				// The provider understood the request and said no.
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return t, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(c.maxAttempts))
	if err != nil {
		return "", fmt.Errorf("%w: client %q: %v", ErrTokenIssuance, c.clientID, err)
	}
	return tok.AccessToken, nil
}

// Verify checks the token's signature against the realm's signing keys and
// its exp/nbf claims with the configured leeway, returning the decoded
// claims. It does not enforce audience or authorized-party policy; that
// varies by route and belongs to Token.Validate.
func (c *Client) Verify(ctx context.Context, raw string) (jwt.MapClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods(c.algs),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(c.leeway),
	)
	parsed, err := parser.Parse(raw, c.ring.Keyfunc(ctx))
	if err != nil {
		return nil, classifyParseError(err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type", ErrMalformedToken)
	}
	return claims, nil
}

// classifyParseError maps golang-jwt and key ring failures onto this
// package's sentinels.
func classifyParseError(err error) error {
	switch {
	case errors.Is(err, keyring.ErrKeyNotFound):
		return fmt.Errorf("%w: %v", ErrKeyNotFound, err)
	case errors.Is(err, keyring.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrKeyRingUnavailable, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return fmt.Errorf("%w: %v", ErrTokenNotYetValid, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	default:
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
}
