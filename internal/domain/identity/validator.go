package identity

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/astro-web3/obo-data-gateway/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
)

const clockLeeway = 30 * time.Second

// Validator turns an Authorization header value into a Principal, or fails.
// There is no partial success.
type Validator interface {
	Validate(ctx context.Context, authorizationHeader string) (*Principal, error)
}

// KeySource resolves the public signing key for a token's kid from the
// trusted issuer's published metadata. Lookups that fail because the
// metadata cannot be reached must wrap ErrKeyUnavailable.
type KeySource interface {
	SigningKey(ctx context.Context, kid string) (crypto.PublicKey, error)
}

type keyedValidator struct {
	keys     KeySource
	issuers  []string
	audience string
}

// NewValidator builds the signature-verifying validator. issuers is the set
// of accepted issuer URIs for the tenant; audience is this service's own
// identifier.
func NewValidator(keys KeySource, issuers []string, audience string) Validator {
	return &keyedValidator{
		keys:     keys,
		issuers:  issuers,
		audience: audience,
	}
}

func (v *keyedValidator) Validate(ctx context.Context, authorizationHeader string) (*Principal, error) {
	token, ok := TrimBearer(authorizationHeader)
	if !ok {
		return nil, &AuthError{Reason: ReasonMalformedHeader, Err: errors.New("empty bearer token")}
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, v.keyFor(ctx),
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockLeeway),
	)
	if err != nil {
		if errors.Is(err, ErrKeyUnavailable) {
			return nil, &AuthError{Reason: ReasonMetadataUnavailable, Err: err}
		}
		logger.WarnContext(ctx, "token validation failed", slog.String("error", err.Error()))
		return nil, &AuthError{Reason: ReasonInvalidToken, Err: err}
	}
	if !parsed.Valid {
		return nil, &AuthError{Reason: ReasonInvalidToken, Err: errors.New("token is invalid")}
	}

	issuer, err := claims.GetIssuer()
	if err != nil || !v.issuerTrusted(issuer) {
		logger.WarnContext(ctx, "token issuer not trusted", slog.String("issuer", issuer))
		return nil, &AuthError{Reason: ReasonInvalidToken, Err: fmt.Errorf("untrusted issuer %q", issuer)}
	}

	// The oid claim is the stable object identifier; name claims are not.
	oid, _ := claims["oid"].(string)
	if oid == "" {
		return nil, &AuthError{Reason: ReasonInvalidToken, Err: errors.New("oid claim missing")}
	}

	return &Principal{SubjectID: oid, Claims: claims}, nil
}

func (v *keyedValidator) keyFor(ctx context.Context) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token header has no kid")
		}
		key, err := v.keys.SigningKey(ctx, kid)
		if err != nil {
			return nil, err
		}
		return key, nil
	}
}

func (v *keyedValidator) issuerTrusted(issuer string) bool {
	for _, trusted := range v.issuers {
		if issuer == trusted {
			return true
		}
	}
	return false
}
